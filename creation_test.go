package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type cycleA struct {
	B *cycleB
}

func newCycleA(b *cycleB) *cycleA { return &cycleA{B: b} }

type cycleB struct {
	A *cycleA
}

func newCycleB(a *cycleA) *cycleB { return &cycleB{A: a} }

type fieldCycleA struct {
	B *fieldCycleB `inject:""`
}

type fieldCycleB struct {
	A *fieldCycleA `inject:""`
}

type CreationTestSuite struct {
	suite.Suite
	c *Container
}

func (s *CreationTestSuite) SetupTest() {
	s.c = NewContainer(nil)
}

func TestCreationTestSuite(t *testing.T) {
	suite.Run(t, new(CreationTestSuite))
}

func (s *CreationTestSuite) TestConstructorCycleFails() {
	defA := newBeanDefinition()
	defA.ClassType = reflect.TypeOf(&cycleA{})
	defA.Constructors = []reflect.Value{reflect.ValueOf(newCycleA)}
	s.c.RegisterBeanDefinition("cycleA", defA)

	defB := newBeanDefinition()
	defB.ClassType = reflect.TypeOf(&cycleB{})
	defB.Constructors = []reflect.Value{reflect.ValueOf(newCycleB)}
	s.c.RegisterBeanDefinition("cycleB", defB)

	_, err := s.c.GetBean("cycleA")
	assert.Error(s.T(), err)
}

func (s *CreationTestSuite) TestFieldInjectionCycleAllowedByDefault() {
	defA := newBeanDefinition()
	defA.ClassType = reflect.TypeOf(&fieldCycleA{})
	s.c.RegisterBeanDefinition("fieldCycleA", defA)

	defB := newBeanDefinition()
	defB.ClassType = reflect.TypeOf(&fieldCycleB{})
	s.c.RegisterBeanDefinition("fieldCycleB", defB)

	a, err := s.c.GetBean("fieldCycleA")
	assert.NoError(s.T(), err)
	resolvedA, ok := a.(*fieldCycleA)
	assert.True(s.T(), ok)
	assert.NotNil(s.T(), resolvedA.B)
	assert.NotNil(s.T(), resolvedA.B.A)
}

type ambiguousCtorType struct {
	A, B int
}

func newAmbiguousA(a int) *ambiguousCtorType { return &ambiguousCtorType{A: a} }
func newAmbiguousB(a int) *ambiguousCtorType { return &ambiguousCtorType{A: a, B: 1} }

func (s *CreationTestSuite) TestLenientConstructorResolutionPicksFirstTiedCandidate() {
	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&ambiguousCtorType{})
	def.Constructors = []reflect.Value{
		reflect.ValueOf(newAmbiguousA),
		reflect.ValueOf(newAmbiguousB),
	}
	def.ConstructorArgs.AddIndexedArgumentValue(0, 7, nil)
	s.c.RegisterBeanDefinition("ambiguous", def)

	instance, err := s.c.GetBean("ambiguous")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 7, instance.(*ambiguousCtorType).A)
	assert.Equal(s.T(), 0, instance.(*ambiguousCtorType).B)
}

func (s *CreationTestSuite) TestStrictConstructorResolutionRejectsAmbiguity() {
	opts := DefaultOptions()
	opts.StrictConstructorResolution = true
	c := NewContainer(opts)

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&ambiguousCtorType{})
	def.Constructors = []reflect.Value{
		reflect.ValueOf(newAmbiguousA),
		reflect.ValueOf(newAmbiguousB),
	}
	def.ConstructorArgs.AddIndexedArgumentValue(0, 7, nil)
	c.RegisterBeanDefinition("ambiguous", def)

	_, err := c.GetBean("ambiguous")
	assert.Error(s.T(), err)
}

type protoDependency struct {
	id int
}

var protoDependencyCounter int

func newProtoDependency() *protoDependency {
	protoDependencyCounter++
	return &protoDependency{id: protoDependencyCounter}
}

type protoConsumer struct {
	Dep *protoDependency
}

func newProtoConsumer(dep *protoDependency) *protoConsumer {
	return &protoConsumer{Dep: dep}
}

func (s *CreationTestSuite) TestPrototypeConstructorAutowiredArgIsReResolvedPerInstance() {
	protoDependencyCounter = 0

	depDef := newBeanDefinition()
	depDef.ClassType = reflect.TypeOf(&protoDependency{})
	depDef.Scope = ScopePrototype
	depDef.Constructors = []reflect.Value{reflect.ValueOf(newProtoDependency)}
	s.c.RegisterBeanDefinition("dep", depDef)

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&protoConsumer{})
	def.Scope = ScopePrototype
	def.Constructors = []reflect.Value{reflect.ValueOf(newProtoConsumer)}
	s.c.RegisterBeanDefinition("consumer", def)

	first, err := s.c.GetBean("consumer")
	assert.NoError(s.T(), err)
	second, err := s.c.GetBean("consumer")
	assert.NoError(s.T(), err)

	assert.NotSame(s.T(), first, second)
	assert.NotSame(s.T(), first.(*protoConsumer).Dep, second.(*protoConsumer).Dep)
	assert.NotEqual(s.T(), first.(*protoConsumer).Dep.id, second.(*protoConsumer).Dep.id)
}

type lookupTarget struct {
	Tag string
}

type lookupHaver struct {
	GetTarget func() *lookupTarget
}

func (s *CreationTestSuite) TestLookupOverrideDelegatesToGetBean() {
	assert.NoError(s.T(), s.c.RegisterBeanInstance("target", &lookupTarget{Tag: "resolved"}))

	def := newBeanDefinition()
	def.ClassType = reflect.TypeOf(&lookupHaver{})
	def.MethodOverrides = []MethodOverride{{MethodName: "GetTarget", LookupBeanName: "target"}}
	s.c.RegisterBeanDefinition("haver", def)

	instance, err := s.c.GetBean("haver")
	assert.NoError(s.T(), err)

	haver := instance.(*lookupHaver)
	assert.NotNil(s.T(), haver.GetTarget)
	assert.Equal(s.T(), "resolved", haver.GetTarget().Tag)
}
