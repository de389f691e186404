package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type Greeter struct {
	Message string
}

type initBumpCounter struct {
	Calls int
}

func (c *initBumpCounter) PostConstruct() error {
	c.Calls++
	return nil
}

type ContainerTestSuite struct {
	suite.Suite
	c *Container
}

func (s *ContainerTestSuite) SetupTest() {
	s.c = NewContainer(nil)
}

func TestContainerTestSuite(t *testing.T) {
	suite.Run(t, new(ContainerTestSuite))
}

func (s *ContainerTestSuite) TestSimpleSingletonWithInitBump() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&initBumpCounter{})
	def.Scope = ScopeSingleton
	s.c.RegisterBeanDefinition("counter", def)

	first, err := s.c.GetBean("counter")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, first.(*initBumpCounter).Calls)

	second, err := s.c.GetBean("counter")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), first, second)
	assert.Equal(s.T(), 1, second.(*initBumpCounter).Calls)
}

func (s *ContainerTestSuite) TestPrototypeProducesDistinctInstances() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&Greeter{})
	def.Scope = ScopePrototype
	s.c.RegisterBeanDefinition("greeter", def)

	a, err := s.c.GetBean("greeter")
	assert.NoError(s.T(), err)
	b, err := s.c.GetBean("greeter")
	assert.NoError(s.T(), err)
	assert.NotSame(s.T(), a, b)
}

func (s *ContainerTestSuite) TestRegisterBeanInstance() {
	g := &Greeter{Message: "hi"}
	err := s.c.RegisterBeanInstance("greeter", g)
	assert.NoError(s.T(), err)

	got, err := s.c.GetBean("greeter")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), g, got)
}

func (s *ContainerTestSuite) TestGetBeanUnknownName() {
	_, err := s.c.GetBean("nope")
	assert.Error(s.T(), err)
	var nf *NotFoundError
	assert.ErrorAs(s.T(), err, &nf)
}

func (s *ContainerTestSuite) TestAliasResolvesToCanonicalName() {
	g := &Greeter{Message: "aliased"}
	assert.NoError(s.T(), s.c.RegisterBeanInstance("realName", g))
	s.c.RegisterAlias("nickname", "realName")

	got, err := s.c.GetBean("nickname")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), g, got)
	assert.Contains(s.T(), s.c.GetAliases("realName"), "nickname")
}

type simpleFactoryBean struct {
	built int
}

func (f *simpleFactoryBean) Object() (interface{}, error) {
	f.built++
	return &Greeter{Message: "product"}, nil
}

func (f *simpleFactoryBean) ObjectType() reflect.Type { return reflect.TypeOf(&Greeter{}) }
func (f *simpleFactoryBean) Singleton() bool          { return true }

func (s *ContainerTestSuite) TestFactoryBeanProductIsCachedWhenSingleton() {
	err := s.c.RegisterBeanInstance("factory", &simpleFactoryBean{})
	assert.NoError(s.T(), err)

	first, err := s.c.GetBean("factory")
	assert.NoError(s.T(), err)
	second, err := s.c.GetBean("factory")
	assert.NoError(s.T(), err)
	assert.Same(s.T(), first, second)
	assert.IsType(s.T(), &Greeter{}, first)
}

func (s *ContainerTestSuite) TestResetClearsDefinitionsAndSingletons() {
	assert.NoError(s.T(), s.c.RegisterBeanInstance("greeter", &Greeter{Message: "before"}))
	assert.True(s.T(), s.c.ContainsBean("greeter"))

	s.c.Reset()

	assert.False(s.T(), s.c.ContainsBean("greeter"))
	_, err := s.c.GetBean("greeter")
	assert.Error(s.T(), err)
}

func (s *ContainerTestSuite) TestDereferenceReturnsFactoryBeanItself() {
	err := s.c.RegisterBeanInstance("factory", &simpleFactoryBean{})
	assert.NoError(s.T(), err)

	raw, err := s.c.GetBean("&factory")
	assert.NoError(s.T(), err)
	assert.IsType(s.T(), &simpleFactoryBean{}, raw)
}
