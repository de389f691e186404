package container

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// lookupContext is the explicit, per-call context threaded through
// recursive resolution in place of the source's thread-locals (spec.md §9:
// "where the runtime provides explicit context parameters, thread them
// through instead"). It carries the prototype re-entry guard, the chain of
// beans whose depends-on lists are being resolved (for declared-dependency
// cycle detection), and a trace id correlating nested creation failures.
type lookupContext struct {
	traceID        string
	prototypeChain map[string]bool
	creatingChain  []string
}

func newLookupContext() *lookupContext {
	return &lookupContext{traceID: uuid.NewString(), prototypeChain: make(map[string]bool)}
}

func (lc *lookupContext) fork() *lookupContext {
	child := &lookupContext{traceID: lc.traceID, prototypeChain: make(map[string]bool, len(lc.prototypeChain))}
	for k, v := range lc.prototypeChain {
		child.prototypeChain[k] = v
	}
	child.creatingChain = append([]string(nil), lc.creatingChain...)
	return child
}

// getMergedDefinition returns the cached MergedBeanDefinition for name,
// merging against its ParentName chain on first resolution (spec.md §3).
func (c *Container) getMergedDefinition(name string) (*MergedBeanDefinition, error) {
	c.mu.RLock()
	if m, ok := c.merged[name]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	def, ok := c.definitions[name]
	c.mu.RUnlock()
	if !ok {
		if c.parent != nil {
			return c.parent.getMergedDefinition(name)
		}
		return nil, newNotFoundError(name, "")
	}

	var parentMerged *MergedBeanDefinition
	if def.ParentName != "" {
		var err error
		parentMerged, err = c.getMergedDefinition(def.ParentName)
		if err != nil {
			return nil, newDefinitionError(name, "parent definition not found: "+def.ParentName, err)
		}
	}

	merged := mergeBeanDefinition(name, def, parentMerged)

	c.mu.Lock()
	if existing, ok := c.merged[name]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.merged[name] = merged
	c.mu.Unlock()
	return merged, nil
}

// resolveTargetClass resolves the actual class a definition will produce:
// its declared ClassType, or (for factory methods) the factory method's
// return type.
func (c *Container) resolveTargetClass(def *MergedBeanDefinition) (reflect.Type, error) {
	def.mu.Lock()
	if def.targetClass != nil {
		t := def.targetClass
		def.mu.Unlock()
		return t, nil
	}
	def.mu.Unlock()

	if def.ClassType != nil {
		def.withLock(func() { def.targetClass = def.ClassType })
		return def.ClassType, nil
	}

	if def.FactoryMethodName != "" {
		retType, err := c.factoryMethodReturnType(def)
		if err != nil {
			return nil, err
		}
		def.withLock(func() {
			def.targetClass = retType
			def.factoryMethodReturnType = retType
		})
		return retType, nil
	}

	return nil, newDefinitionError(def.Name(), "definition has neither ClassType nor FactoryMethodName", nil)
}

func (c *Container) factoryMethodReturnType(def *MergedBeanDefinition) (reflect.Type, error) {
	var factoryType reflect.Type
	if def.FactoryBeanName != "" {
		factoryDef, err := c.getMergedDefinition(def.FactoryBeanName)
		if err != nil {
			return nil, err
		}
		factoryType, err = c.resolveTargetClass(factoryDef)
		if err != nil {
			return nil, err
		}
	} else if def.ClassType != nil {
		factoryType = def.ClassType
	}
	if factoryType == nil {
		return nil, newDefinitionError(def.Name(), "cannot resolve factory method owner type", nil)
	}
	method, ok := factoryType.MethodByName(def.FactoryMethodName)
	if !ok {
		if factoryType.Kind() == reflect.Ptr {
			if m, ok2 := factoryType.Elem().MethodByName(def.FactoryMethodName); ok2 {
				method, ok = m, true
			}
		}
	}
	if !ok {
		return nil, newDefinitionError(def.Name(), "factory method not found: "+def.FactoryMethodName, nil)
	}
	if method.Type.NumOut() == 0 {
		return nil, newDefinitionError(def.Name(), "factory method must have non-void return: "+def.FactoryMethodName, nil)
	}
	return method.Type.Out(0), nil
}

// GetBean implements the public lookup API's getBean(name) (spec.md §4.7).
func (c *Container) GetBean(name string) (interface{}, error) {
	return c.getBean(name, nil, nil, newLookupContext())
}

// GetBeanOfType implements getBean(name, requiredType).
func (c *Container) GetBeanOfType(name string, requiredType reflect.Type) (interface{}, error) {
	return c.getBean(name, requiredType, nil, newLookupContext())
}

// GetBeanWithArgs implements getBean(name, args...): explicit constructor
// arguments bypass the definition's own declared/autowired arguments.
func (c *Container) GetBeanWithArgs(name string, args ...interface{}) (interface{}, error) {
	return c.getBean(name, nil, args, newLookupContext())
}

// GetBeanByType implements getBean(type). When several definitions resolve
// to an assignable type, one is selected by disambiguate (primary flag,
// then priority); there is no parameter-name fallback here (spec.md §4.5).
func (c *Container) GetBeanByType(t reflect.Type) (interface{}, error) {
	names := c.GetBeanNamesForType(t)
	if len(names) == 0 {
		return nil, newNotFoundError("", t.String())
	}
	if len(names) == 1 {
		return c.GetBean(names[0])
	}
	chosen, err := c.disambiguate(names, t)
	if err != nil {
		return nil, err
	}
	return c.GetBean(chosen)
}

func (c *Container) getBean(rawName string, requiredType reflect.Type, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	dereferenced := hasDereferencePrefix(rawName)
	name := c.canonicalName(stripDereference(rawName))

	// allowEarly lets a nested lookup (one bean injecting another that is
	// itself still being constructed) observe the early, pre-initialization
	// reference instead of tripping the currentlyInCreation guard in
	// getSingletonOrCreate (spec.md §4.1's three-level cache).
	if obj, ok := c.registry.getSingleton(name, true); ok {
		return c.finishLookup(name, obj, dereferenced, requiredType, lc)
	}

	def, err := c.getMergedDefinition(name)
	if err != nil {
		if c.parent != nil && c.ContainsBean(name) {
			return c.parent.getBean(rawName, requiredType, explicitArgs, lc)
		}
		return nil, err
	}
	if def.Abstract {
		return nil, newDefinitionError(name, "cannot instantiate an abstract bean definition", nil)
	}

	if err := c.preflightDependsOn(name, def, lc); err != nil {
		return nil, err
	}

	var instance interface{}
	switch def.Scope {
	case ScopeSingleton:
		instance, err = c.registry.getSingletonOrCreate(name, func() (interface{}, error) {
			return c.createBean(name, def, explicitArgs, lc)
		})
	case ScopePrototype:
		instance, err = c.createPrototype(name, def, explicitArgs, lc)
	default:
		scope, ok := c.scopes[def.Scope]
		if !ok {
			return nil, newDefinitionError(name, "unknown scope: "+string(def.Scope), nil)
		}
		instance, err = scope.Get(name, func() (interface{}, error) {
			return c.createBean(name, def, explicitArgs, lc)
		})
	}
	if err != nil {
		return nil, err
	}

	return c.finishLookup(name, instance, dereferenced, requiredType, lc)
}

func (c *Container) createPrototype(name string, def *MergedBeanDefinition, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	c.prototypesMu.Lock()
	if lc.prototypeChain[name] {
		c.prototypesMu.Unlock()
		return nil, newCycleError([]string{name})
	}
	lc.prototypeChain[name] = true
	c.prototypesMu.Unlock()

	defer func() {
		delete(lc.prototypeChain, name)
	}()

	return c.createBean(name, def, explicitArgs, lc)
}

func (c *Container) preflightDependsOn(name string, def *MergedBeanDefinition, lc *lookupContext) error {
	if len(def.DependsOn) == 0 {
		return nil
	}
	lc.creatingChain = append(lc.creatingChain, name)
	defer func() { lc.creatingChain = lc.creatingChain[:len(lc.creatingChain)-1] }()
	for _, dep := range def.DependsOn {
		for _, ancestor := range lc.creatingChain {
			if ancestor == dep {
				return newCycleError(append(append([]string(nil), lc.creatingChain...), dep))
			}
		}
		c.registry.registerDependentBean(dep, name)
		if _, err := c.getBean(dep, nil, nil, lc); err != nil {
			return errors.Wrapf(err, "depends-on bean %q for %q failed", dep, name)
		}
	}
	return nil
}

// finishLookup handles factory-bean product dereferencing (spec.md §4.7
// step 2/5) and required-type coercion.
func (c *Container) finishLookup(name string, instance interface{}, dereferenced bool, requiredType reflect.Type, lc *lookupContext) (interface{}, error) {
	if fb, ok := instance.(FactoryBean); ok && !dereferenced {
		product, err := c.factoryBeanProduct(name, fb)
		if err != nil {
			return nil, err
		}
		instance = product
		instance = c.chain.applyAfterInitialization(instance, name)
	}

	if requiredType != nil {
		t := reflect.TypeOf(instance)
		if t == nil || !(t.AssignableTo(requiredType) || (requiredType.Kind() == reflect.Interface && t.Implements(requiredType))) {
			return nil, newWrongTypeError(name, typeName(t), requiredType.String())
		}
	}
	return instance, nil
}

func (c *Container) factoryBeanProduct(name string, fb FactoryBean) (interface{}, error) {
	if fb.Singleton() {
		c.mu.RLock()
		product, ok := c.factoryObjects[name]
		c.mu.RUnlock()
		if ok {
			return product, nil
		}
		product, err := fb.Object()
		if err != nil {
			return nil, newCreationError(name, "", "factory-bean-product", err)
		}
		c.mu.Lock()
		c.factoryObjects[name] = product
		c.mu.Unlock()
		return product, nil
	}
	return fb.Object()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// FactoryBean is implemented by beans whose role is to produce the actual
// product exposed under their name (spec.md GLOSSARY "Factory bean").
type FactoryBean interface {
	Object() (interface{}, error)
	ObjectType() reflect.Type
	Singleton() bool
}
