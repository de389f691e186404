package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type namedInitBean struct {
	Started bool
}

func (b *namedInitBean) Start() {
	b.Started = true
}

type awareBean struct {
	name string
	c    *Container
}

func (b *awareBean) SetBeanName(name string) { b.name = name }
func (b *awareBean) SetContainer(c *Container) { b.c = c }

type LifecycleTestSuite struct {
	suite.Suite
	c *Container
}

func (s *LifecycleTestSuite) SetupTest() {
	s.c = NewContainer(nil)
}

func TestLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTestSuite))
}

func (s *LifecycleTestSuite) TestNamedInitMethodIsInvoked() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&namedInitBean{})
	def.InitMethodName = "Start"
	s.c.RegisterBeanDefinition("bean", def)

	instance, err := s.c.GetBean("bean")
	assert.NoError(s.T(), err)
	assert.True(s.T(), instance.(*namedInitBean).Started)
}

func (s *LifecycleTestSuite) TestAwarenessInterfacesAreInvoked() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&awareBean{})
	s.c.RegisterBeanDefinition("aware", def)

	instance, err := s.c.GetBean("aware")
	assert.NoError(s.T(), err)
	bean := instance.(*awareBean)
	assert.Equal(s.T(), "aware", bean.name)
	assert.Same(s.T(), s.c, bean.c)
}

func (s *LifecycleTestSuite) TestPostConstructIsInvokedOnce() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&initBumpCounter{})
	s.c.RegisterBeanDefinition("counter", def)

	instance, err := s.c.GetBean("counter")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, instance.(*initBumpCounter).Calls)
}
