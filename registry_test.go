package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	r *singletonRegistry
}

func (s *RegistryTestSuite) SetupTest() {
	s.r = newSingletonRegistry()
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) TestGetSingletonOrCreateCallsProducerOnce() {
	calls := 0
	producer := func() (interface{}, error) {
		calls++
		return "value", nil
	}

	first, err := s.r.getSingletonOrCreate("bean", producer)
	assert.NoError(s.T(), err)
	second, err := s.r.getSingletonOrCreate("bean", producer)
	assert.NoError(s.T(), err)

	assert.Equal(s.T(), 1, calls)
	assert.Equal(s.T(), first, second)
}

func (s *RegistryTestSuite) TestReentrantCreationReportsCycle() {
	var innerErr error
	_, err := s.r.getSingletonOrCreate("bean", func() (interface{}, error) {
		_, innerErr = s.r.getSingletonOrCreate("bean", func() (interface{}, error) {
			return "unreachable", nil
		})
		return "outer", nil
	})
	assert.NoError(s.T(), err)
	assert.Error(s.T(), innerErr)
	var cycleErr *CycleError
	assert.ErrorAs(s.T(), innerErr, &cycleErr)
}

func (s *RegistryTestSuite) TestEarlyReferenceServedDuringCreation() {
	s.r.currentlyInCreation["bean"] = true
	s.r.addSingletonFactory("bean", func() (interface{}, error) {
		return "early", nil
	})

	val, ok := s.r.getSingleton("bean", true)
	assert.True(s.T(), ok)
	assert.Equal(s.T(), "early", val)

	// second call reuses the cached early object rather than invoking the
	// factory again
	val2, ok2 := s.r.getSingleton("bean", true)
	assert.True(s.T(), ok2)
	assert.Equal(s.T(), "early", val2)
}

func (s *RegistryTestSuite) TestGetSingletonWithoutAllowEarlyIgnoresInCreation() {
	s.r.currentlyInCreation["bean"] = true
	s.r.addSingletonFactory("bean", func() (interface{}, error) {
		return "early", nil
	})

	_, ok := s.r.getSingleton("bean", false)
	assert.False(s.T(), ok)
}

func (s *RegistryTestSuite) TestDestroySingletonsRunsDependentsFirst() {
	var order []string

	s.r.registerSingleton("base", "base-instance")
	s.r.registerSingleton("dependent", "dependent-instance")
	s.r.registerDependentBean("base", "dependent")

	s.r.registerDisposableBean("base", disposableFunc(func() error {
		order = append(order, "base")
		return nil
	}))
	s.r.registerDisposableBean("dependent", disposableFunc(func() error {
		order = append(order, "dependent")
		return nil
	}))

	s.r.destroySingletons()

	assert.Equal(s.T(), []string{"dependent", "base"}, order)
}
