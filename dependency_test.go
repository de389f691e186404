package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type Notifier interface {
	Notify() string
}

type emailNotifier struct{}

func (emailNotifier) Notify() string { return "email" }

type smsNotifier struct{}

func (smsNotifier) Notify() string { return "sms" }

type notifierConsumer struct {
	N Notifier `inject:""`
}

type DependencyTestSuite struct {
	suite.Suite
	c *Container
}

func (s *DependencyTestSuite) SetupTest() {
	s.c = NewContainer(nil)
}

func TestDependencyTestSuite(t *testing.T) {
	suite.Run(t, new(DependencyTestSuite))
}

func (s *DependencyTestSuite) registerNotifier(name string, t reflect.Type, primary bool) {
	def := newBeanDefinition()
	def.ClassType = t
	def.Primary = primary
	s.c.RegisterBeanDefinition(name, def)
}

func (s *DependencyTestSuite) TestAmbiguousTypeWithoutPrimaryFails() {
	s.registerNotifier("email", reflect.TypeOf(&emailNotifier{}), false)
	s.registerNotifier("sms", reflect.TypeOf(&smsNotifier{}), false)

	consumerDef := newBeanDefinition()
	consumerDef.ClassType = reflect.TypeOf(&notifierConsumer{})
	s.c.RegisterBeanDefinition("consumer", consumerDef)

	_, err := s.c.GetBean("consumer")
	assert.Error(s.T(), err)
}

func (s *DependencyTestSuite) TestPrimaryBeanWinsAmbiguousResolution() {
	s.registerNotifier("email", reflect.TypeOf(&emailNotifier{}), true)
	s.registerNotifier("sms", reflect.TypeOf(&smsNotifier{}), false)

	consumerDef := newBeanDefinition()
	consumerDef.ClassType = reflect.TypeOf(&notifierConsumer{})
	s.c.RegisterBeanDefinition("consumer", consumerDef)

	instance, err := s.c.GetBean("consumer")
	assert.NoError(s.T(), err)
	consumer := instance.(*notifierConsumer)
	assert.Equal(s.T(), "email", consumer.N.Notify())
}

func (s *DependencyTestSuite) TestByTypeLookupWithSingleCandidate() {
	s.registerNotifier("email", reflect.TypeOf(&emailNotifier{}), false)

	instance, err := s.c.GetBeanByType(reflect.TypeOf((*Notifier)(nil)).Elem())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "email", instance.(Notifier).Notify())
}

func (s *DependencyTestSuite) TestSliceInjectionCollectsAllCandidates() {
	s.registerNotifier("email", reflect.TypeOf(&emailNotifier{}), false)
	s.registerNotifier("sms", reflect.TypeOf(&smsNotifier{}), false)

	desc := &DependencyDescriptor{
		DeclaredType: reflect.TypeOf([]Notifier(nil)),
		Required:     true,
		Eager:        true,
	}
	val, names, err := s.c.resolveDependency(desc, "test", newLookupContext())
	assert.NoError(s.T(), err)
	assert.Len(s.T(), names, 2)
	assert.Equal(s.T(), 2, val.Len())
}
