package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type orderedProcessor struct {
	order int
	log   *[]string
	label string
}

func (p *orderedProcessor) Order() int { return p.order }

func (p *orderedProcessor) PostProcessBeforeInitialization(instance interface{}, beanName string) (interface{}, error) {
	*p.log = append(*p.log, p.label)
	return instance, nil
}

type priorityProcessor struct {
	priority int
	log      *[]string
	label    string
}

func (p *priorityProcessor) Priority() int { return p.priority }

func (p *priorityProcessor) PostProcessBeforeInitialization(instance interface{}, beanName string) (interface{}, error) {
	*p.log = append(*p.log, p.label)
	return instance, nil
}

type shortCircuitProcessor struct{}

func (shortCircuitProcessor) PostProcessAfterInitialization(instance interface{}, beanName string) (interface{}, error) {
	return nil, nil
}

type laterAfterProcessor struct {
	called *bool
}

func (p *laterAfterProcessor) PostProcessAfterInitialization(instance interface{}, beanName string) (interface{}, error) {
	*p.called = true
	return instance, nil
}

type PostprocessorTestSuite struct {
	suite.Suite
}

func TestPostprocessorTestSuite(t *testing.T) {
	suite.Run(t, new(PostprocessorTestSuite))
}

func (s *PostprocessorTestSuite) TestPriorityOrderedRunsBeforeOrdered() {
	chain := newProcessorChain()
	var log []string
	chain.add(&orderedProcessor{order: 1, log: &log, label: "ordered"})
	chain.add(&priorityProcessor{priority: 5, log: &log, label: "priority"})

	_, err := chain.applyBeforeInitialization("instance", "bean")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"priority", "ordered"}, log)
}

func (s *PostprocessorTestSuite) TestAfterInitializationNilShortCircuitsChain() {
	chain := newProcessorChain()
	called := false
	chain.add(shortCircuitProcessor{})
	chain.add(&laterAfterProcessor{called: &called})

	result, err := chain.applyAfterInitializationChecked("instance", "bean")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "instance", result)
	assert.False(s.T(), called)
}

func (s *PostprocessorTestSuite) TestRegisterBeanPostprocessorOnlyAppliesToMatchingType() {
	c := NewContainer(nil)
	var touched []string
	c.RegisterBeanPostprocessor(reflect.TypeOf(&Greeter{}), func(bean interface{}) error {
		touched = append(touched, bean.(*Greeter).Message)
		return nil
	})

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&Greeter{})
	c.RegisterBeanDefinition("greeter", def)

	other := newBeanDefinition()
	other.ClassType = reflect.TypeOf(&initBumpCounter{})
	c.RegisterBeanDefinition("counter", other)

	_, err := c.GetBean("greeter")
	assert.NoError(s.T(), err)
	_, err = c.GetBean("counter")
	assert.NoError(s.T(), err)

	assert.Equal(s.T(), []string{""}, touched)
}
