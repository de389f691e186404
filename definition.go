package container

import (
	"reflect"
	"sync"
)

// ScopeName identifies a bean's scope. "singleton" and "prototype" are
// built in; any other value names a custom scope registered with
// RegisterScope.
type ScopeName string

const (
	ScopeSingleton ScopeName = "singleton"
	ScopePrototype ScopeName = "prototype"
)

// AutowireMode selects how unfulfilled constructor/property injection
// points are resolved when no explicit value was declared.
type AutowireMode int

const (
	AutowireNone AutowireMode = iota
	AutowireByName
	AutowireByType
	AutowireByConstructor
)

// DestroyMethodKind discriminates the three ways a destroy callback can be
// named, replacing the sentinel-string convention spec.md §9 flags as a
// design smell with an explicit tagged variant.
type DestroyMethodKind int

const (
	DestroyMethodNone DestroyMethodKind = iota
	DestroyMethodInferred
	DestroyMethodNamed
)

// DestroyMethodSpec is the tagged variant for a definition's destroy
// method: none declared, infer one from a Close()/Destroy()-shaped method,
// or an explicit name.
type DestroyMethodSpec struct {
	Kind DestroyMethodKind
	Name string
}

// autowiredArgumentMarker is the distinguished placeholder used in a
// MergedBeanDefinition's prepared-argument array to mark a slot that must
// be re-resolved by autowiring on every call, instead of a sentinel
// pointer (spec.md §9).
type autowiredArgumentMarker struct{}

var autowiredArgument = autowiredArgumentMarker{}

// ValueHolder carries one constructor-argument value: its raw value and an
// optional declared type used to disambiguate overloaded constructors.
type ValueHolder struct {
	Value        interface{}
	DeclaredType reflect.Type
	Name         string // optional; matched against names registered with RegisterConstructorParameterNames
}

// ConstructorArgumentValues holds both indexed and generic constructor
// argument declarations, per spec.md §3.
type ConstructorArgumentValues struct {
	Indexed map[int]ValueHolder
	Generic []ValueHolder
}

// NewConstructorArgumentValues returns an empty argument-value set.
func NewConstructorArgumentValues() *ConstructorArgumentValues {
	return &ConstructorArgumentValues{Indexed: make(map[int]ValueHolder)}
}

func (c *ConstructorArgumentValues) clone() *ConstructorArgumentValues {
	if c == nil {
		return NewConstructorArgumentValues()
	}
	out := &ConstructorArgumentValues{Indexed: make(map[int]ValueHolder, len(c.Indexed))}
	for k, v := range c.Indexed {
		out.Indexed[k] = v
	}
	out.Generic = append(out.Generic, c.Generic...)
	return out
}

// AddIndexedArgumentValue declares the value for constructor parameter
// index i.
func (c *ConstructorArgumentValues) AddIndexedArgumentValue(i int, value interface{}, declaredType reflect.Type) {
	c.Indexed[i] = ValueHolder{Value: value, DeclaredType: declaredType}
}

// AddGenericArgumentValue declares a value without a fixed index; it is
// matched to a parameter by declared type (or, with no declared type, by
// the value's own assignable type) during resolution. Position is not
// used.
func (c *ConstructorArgumentValues) AddGenericArgumentValue(value interface{}, declaredType reflect.Type) {
	c.Generic = append(c.Generic, ValueHolder{Value: value, DeclaredType: declaredType})
}

func (c *ConstructorArgumentValues) isEmpty() bool {
	return c == nil || (len(c.Indexed) == 0 && len(c.Generic) == 0)
}

// PropertyValue is one declared property assignment.
type PropertyValue struct {
	Name  string
	Value interface{}
}

// PropertyValues is an ordered list of declared property assignments,
// preserving insertion order the way the teacher's tag-driven injection
// preserves struct field order.
type PropertyValues struct {
	entries []PropertyValue
}

// NewPropertyValues returns an empty property-value list.
func NewPropertyValues() *PropertyValues {
	return &PropertyValues{}
}

func (p *PropertyValues) clone() *PropertyValues {
	if p == nil {
		return NewPropertyValues()
	}
	out := &PropertyValues{entries: append([]PropertyValue(nil), p.entries...)}
	return out
}

// Add appends or overwrites (by name) a property value.
func (p *PropertyValues) Add(name string, value interface{}) {
	for i, e := range p.entries {
		if e.Name == name {
			p.entries[i].Value = value
			return
		}
	}
	p.entries = append(p.entries, PropertyValue{Name: name, Value: value})
}

// Contains reports whether a value for name has already been declared.
func (p *PropertyValues) Contains(name string) bool {
	if p == nil {
		return false
	}
	for _, e := range p.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// All returns the declared property values in insertion order.
func (p *PropertyValues) All() []PropertyValue {
	if p == nil {
		return nil
	}
	return p.entries
}

// MethodOverride records a `lookup-method`-style override: invoking
// MethodName on the bean should instead delegate to getBean(LookupBeanName).
type MethodOverride struct {
	MethodName    string
	LookupBeanName string
}

// BeanDefinition is the declarative description of one component, as
// spec.md §3 describes it. It is produced by an external parser (out of
// scope for this package, per spec.md §1) and merged against its ancestors
// on first resolution.
type BeanDefinition struct {
	// ClassType is the logical class reference. Nil when FactoryMethodName
	// names a factory method instead.
	ClassType reflect.Type

	// FactoryBeanName names the bean on which FactoryMethodName is invoked
	// as a method. Instantiation through a factory method requires it: with
	// FactoryMethodName set and FactoryBeanName empty, creation fails with a
	// DefinitionError; there are no static (package-level) factory functions.
	FactoryBeanName   string
	FactoryMethodName string

	Scope ScopeName

	ConstructorArgs *ConstructorArgumentValues
	PropertyValues  *PropertyValues

	InitMethodName string
	DestroyMethod  DestroyMethodSpec

	ParentName string

	Autowire                     AutowireMode
	LazyInit                     bool
	Primary                      bool
	LenientConstructorResolution bool
	AllowNonPublicAccess         bool
	DependencyCheck              bool

	DependsOn []string

	// InstanceSupplier is the user-supplied producer (spec.md §4.2
	// Instantiation strategy, priority 1). When set it takes precedence
	// over factory-method and constructor resolution.
	InstanceSupplier func() (interface{}, error)

	// Constructors are the candidate constructor functions for ClassType,
	// e.g. reflect.ValueOf(NewFoo). Go has no runtime reflection over a
	// struct's constructors (construction is just zero-value allocation),
	// so spec.md §9's "explicit registration API invoked by the parser"
	// stands in for constructor discovery: when empty, the zero-argument
	// reflect.New(ClassType) path is used, matching goioc/di exactly.
	Constructors []reflect.Value

	Abstract bool

	// MethodOverrides are validated at the start of createBean.
	MethodOverrides []MethodOverride

	// ExternallyManagedConfigMembers records injection points and
	// lifecycle callbacks already accounted for by the metadata scanner,
	// so an explicit InitMethodName/DestroyMethod naming the same member
	// is not invoked twice.
	ExternallyManagedConfigMembers map[string]bool
}

func newBeanDefinition() *BeanDefinition {
	return &BeanDefinition{
		ConstructorArgs:                NewConstructorArgumentValues(),
		PropertyValues:                 NewPropertyValues(),
		ExternallyManagedConfigMembers: make(map[string]bool),
	}
}

func (d *BeanDefinition) clone() *BeanDefinition {
	out := *d
	out.ConstructorArgs = d.ConstructorArgs.clone()
	out.PropertyValues = d.PropertyValues.clone()
	out.DependsOn = append([]string(nil), d.DependsOn...)
	out.MethodOverrides = append([]MethodOverride(nil), d.MethodOverrides...)
	out.ExternallyManagedConfigMembers = make(map[string]bool, len(d.ExternallyManagedConfigMembers))
	for k, v := range d.ExternallyManagedConfigMembers {
		out.ExternallyManagedConfigMembers[k] = v
	}
	return &out
}

// MergedBeanDefinition extends BeanDefinition with resolved slots filled in
// during creation. Slots are populated under mu and read either under mu
// or via the postProcessed/constructorArgumentsResolved flags, matching the
// "per-definition lock, or publication through a volatile flag" invariant
// of spec.md §3.
type MergedBeanDefinition struct {
	BeanDefinition

	beanName string

	mu sync.Mutex

	resolvedConstructorOrFactoryMethod reflect.Value
	factoryTargetBean                  interface{} // non-nil for instance factory methods
	resolvedArgs                       []interface{}
	preparedArgs                       []interface{}
	constructorArgumentsResolved       bool

	targetClass             reflect.Type
	factoryMethodReturnType reflect.Type

	postProcessed bool

	// generation is not incremented anywhere; re-registering a definition
	// drops its cached merged definition instead (RegisterBeanDefinition).
	generation uint64
}

// Name returns the logical bean name this merged definition was resolved
// under.
func (m *MergedBeanDefinition) Name() string { return m.beanName }

func (m *MergedBeanDefinition) withLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// markPostProcessedOnce runs fn exactly once per merged definition, guarded by
// the per-definition lock and the postProcessed flag (spec.md §4.2
// doCreateBean step 2).
func (m *MergedBeanDefinition) markPostProcessedOnce(fn func() error) error {
	m.mu.Lock()
	if m.postProcessed {
		m.mu.Unlock()
		return nil
	}
	defer func() {
		m.postProcessed = true
		m.mu.Unlock()
	}()
	return fn()
}

// mergeBeanDefinition flattens child against parent (which may itself be
// a merged, already-flattened definition), producing a fresh
// MergedBeanDefinition. Indexed constructor args and property values are
// merged by index/name with the child's declarations taking precedence;
// generic constructor args, DependsOn and MethodOverrides are the parent's
// followed by the child's. Class, factory names, scope, init/destroy
// method, instance supplier and constructors are "child wins if set, else
// inherit from parent"; Autowire, LazyInit, Primary,
// LenientConstructorResolution, DependencyCheck and Abstract are always
// taken from the child, and AllowNonPublicAccess is set if either side
// sets it (spec.md §3 parent/child merge).
func mergeBeanDefinition(name string, child *BeanDefinition, parent *MergedBeanDefinition) *MergedBeanDefinition {
	merged := &MergedBeanDefinition{beanName: name}

	if parent != nil {
		merged.BeanDefinition = *parent.BeanDefinition.clone()
	} else {
		merged.BeanDefinition = *newBeanDefinition()
	}

	if child.ClassType != nil {
		merged.ClassType = child.ClassType
	}
	if child.FactoryBeanName != "" {
		merged.FactoryBeanName = child.FactoryBeanName
	}
	if child.FactoryMethodName != "" {
		merged.FactoryMethodName = child.FactoryMethodName
	}
	if child.Scope != "" {
		merged.Scope = child.Scope
	} else if merged.Scope == "" {
		merged.Scope = ScopeSingleton
	}
	if child.InitMethodName != "" {
		merged.InitMethodName = child.InitMethodName
	}
	if child.DestroyMethod.Kind != DestroyMethodNone {
		merged.DestroyMethod = child.DestroyMethod
	}
	merged.Autowire = child.Autowire
	merged.LazyInit = child.LazyInit
	merged.Primary = child.Primary
	merged.LenientConstructorResolution = child.LenientConstructorResolution
	merged.AllowNonPublicAccess = merged.AllowNonPublicAccess || child.AllowNonPublicAccess
	merged.DependencyCheck = child.DependencyCheck
	merged.Abstract = child.Abstract
	if child.InstanceSupplier != nil {
		merged.InstanceSupplier = child.InstanceSupplier
	}
	if len(child.Constructors) > 0 {
		merged.Constructors = child.Constructors
	}

	merged.DependsOn = append(append([]string(nil), merged.DependsOn...), child.DependsOn...)
	merged.MethodOverrides = append(append([]MethodOverride(nil), merged.MethodOverrides...), child.MethodOverrides...)

	for k, v := range child.ConstructorArgs.Indexed {
		merged.ConstructorArgs.Indexed[k] = v
	}
	merged.ConstructorArgs.Generic = append(merged.ConstructorArgs.Generic, child.ConstructorArgs.Generic...)

	for _, pv := range child.PropertyValues.All() {
		merged.PropertyValues.Add(pv.Name, pv.Value)
	}

	for k, v := range child.ExternallyManagedConfigMembers {
		merged.ExternallyManagedConfigMembers[k] = v
	}

	return merged
}
