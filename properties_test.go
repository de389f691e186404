package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type byNameTarget struct {
	collaboratorBean *Greeter
}

type byTypeTarget struct {
	Collaborator *Greeter
}

type PropertiesTestSuite struct {
	suite.Suite
	c *Container
}

func (s *PropertiesTestSuite) SetupTest() {
	s.c = NewContainer(nil)
}

func TestPropertiesTestSuite(t *testing.T) {
	suite.Run(t, new(PropertiesTestSuite))
}

func (s *PropertiesTestSuite) TestAutowireByNameMatchesFieldNameToBeanName() {
	collaborator := &Greeter{Message: "by-name"}
	assert.NoError(s.T(), s.c.RegisterBeanInstance("collaboratorBean", collaborator))

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&byNameTarget{})
	def.Autowire = AutowireByName
	def.AllowNonPublicAccess = true // collaboratorBean is unexported
	s.c.RegisterBeanDefinition("target", def)

	instance, err := s.c.GetBean("target")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), collaborator, instance.(*byNameTarget).collaboratorBean)
}

func (s *PropertiesTestSuite) TestAutowireByTypeMatchesFieldType() {
	collaborator := &Greeter{Message: "by-type"}
	assert.NoError(s.T(), s.c.RegisterBeanInstance("anyName", collaborator))

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&byTypeTarget{})
	def.Autowire = AutowireByType
	s.c.RegisterBeanDefinition("target", def)

	instance, err := s.c.GetBean("target")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), collaborator, instance.(*byTypeTarget).Collaborator)
}

func (s *PropertiesTestSuite) TestExplicitPropertyValueIsApplied() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&byTypeTarget{})
	explicit := &Greeter{Message: "explicit"}
	def.PropertyValues.Add("Collaborator", explicit)
	s.c.RegisterBeanDefinition("target", def)

	instance, err := s.c.GetBean("target")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), explicit, instance.(*byTypeTarget).Collaborator)
}
