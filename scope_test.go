package container

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ScopeTestSuite struct {
	suite.Suite
}

func TestScopeTestSuite(t *testing.T) {
	suite.Run(t, new(ScopeTestSuite))
}

func (s *ScopeTestSuite) TestPrototypeScopeNeverCaches() {
	scope := prototypeScope{}
	calls := 0
	producer := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	first, err := scope.Get("x", producer)
	assert.NoError(s.T(), err)
	second, err := scope.Get("x", producer)
	assert.NoError(s.T(), err)

	assert.NotEqual(s.T(), first, second)
	assert.Equal(s.T(), 2, calls)
}

func (s *ScopeTestSuite) TestRequestScopeCachesWithinSameBinding() {
	scope := NewRequestScope()
	calls := 0
	producer := func() (interface{}, error) {
		calls++
		return "instance", nil
	}

	first, err := scope.Get("x", producer)
	assert.NoError(s.T(), err)
	second, err := scope.Get("x", producer)
	assert.NoError(s.T(), err)

	assert.Equal(s.T(), first, second)
	assert.Equal(s.T(), 1, calls)
}

func (s *ScopeTestSuite) TestRequestScopeRunsDestructionCallbackOnContextDone() {
	scope := NewRequestScope()
	done := make(chan struct{})
	scope.RegisterDestructionCallback("x", func() {
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	scope.Bind(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.T().Fatal("destruction callback was not invoked after context cancellation")
	}
}

func (s *ScopeTestSuite) TestContainerWithCustomScope() {
	c := NewContainer(nil)
	custom := NewRequestScope()
	c.RegisterScope("request", custom)

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&Greeter{})
	def.Scope = "request"
	c.RegisterBeanDefinition("requestGreeter", def)

	first, err := c.GetBean("requestGreeter")
	assert.NoError(s.T(), err)
	second, err := c.GetBean("requestGreeter")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), first, second)
}
