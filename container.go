package container

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Container is the lifecycle driver of spec.md §4.7: it owns the
// definition registry, the singleton registry, the metadata scanner, and
// the post-processor pipeline, and exposes the public lookup API.
//
// Grounded on goioc/di's package-level globals (beans, scopes,
// singletonInstances, ...), generalized from a single global container
// into an instantiable type so multiple independent object graphs can
// coexist in one process.
type Container struct {
	opts *ContainerOptions

	mu          sync.RWMutex
	definitions map[string]*BeanDefinition
	merged      map[string]*MergedBeanDefinition
	aliases     map[string]string // alias -> canonical name

	parent *Container

	registry *singletonRegistry
	scanner  *metadataScanner
	chain    *processorChain
	converter *typeConverter

	scopes map[ScopeName]Scope

	// factoryObjects caches the product of a singleton factory-bean,
	// separate from singletonObjects per spec.md §4.7 step 2.
	factoryObjects map[string]interface{}

	// paramNames backs RegisterConstructorParameterNames, the explicit
	// registration API spec.md §9 prescribes in place of a parameter-name
	// discoverer Go reflection cannot provide.
	paramNames map[reflect.Type][]string

	prototypesMu      sync.Mutex
	prototypesInChain map[string]int // allocated but not consulted; prototype re-entry is tracked in lookupContext.prototypeChain

	currentlyCreatingMu sync.Mutex
	currentlyCreating   []string // stack of bean names being created on the calling goroutine's producer closures
}

// NewContainer creates an empty container. Pass nil to use DefaultOptions.
func NewContainer(opts *ContainerOptions) *Container {
	if opts == nil {
		opts = DefaultOptions()
	}
	c := &Container{
		opts:              opts,
		definitions:       make(map[string]*BeanDefinition),
		merged:            make(map[string]*MergedBeanDefinition),
		aliases:           make(map[string]string),
		registry:          newSingletonRegistry(),
		scanner:           newMetadataScanner(opts),
		converter:         newTypeConverter(),
		scopes:            make(map[ScopeName]Scope),
		factoryObjects:    make(map[string]interface{}),
		paramNames:        make(map[reflect.Type][]string),
		prototypesInChain: make(map[string]int),
	}
	c.chain = newProcessorChain()
	c.chain.add(newAnnotationInjectionProcessor(c))
	c.scopes[ScopePrototype] = prototypeScope{}
	return c
}

// NewChildContainer returns a container that delegates unknown lookups to
// parent, mirroring spec.md §4.7 step 3's "delegate to a parent container
// if configured".
func NewChildContainer(parent *Container, opts *ContainerOptions) *Container {
	c := NewContainer(opts)
	c.parent = parent
	return c
}

// RegisterBeanDefinition registers or overwrites def under name. Definition
// validity (parent existence, method-override targets) is checked lazily
// on first merge, matching spec.md §3's "merged with ancestors on first
// resolution".
func (c *Container) RegisterBeanDefinition(name string, def *BeanDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.definitions[name] = def
	delete(c.merged, name)
}

// RegisterBeanType is the struct-tag convenience registration grounded on
// goioc/di's RegisterBean: beanType must be a pointer-to-struct type, and
// its scope is read from a field tagged with ContainerOptions.ScopeTag
// (defaulting to singleton if absent), the same convention goioc/di uses
// for its `di.scope` tag.
func (c *Container) RegisterBeanType(name string, beanType reflect.Type) error {
	if beanType.Kind() != reflect.Ptr {
		return errors.New("bean type must be a pointer")
	}
	scope := ScopeSingleton
	elem := beanType.Elem()
	for i := 0; i < elem.NumField(); i++ {
		if tag, ok := elem.Field(i).Tag.Lookup(c.opts.ScopeTag); ok {
			scope = ScopeName(tag)
			break
		}
	}
	def := newBeanDefinition()
	def.ClassType = beanType
	def.Scope = scope
	c.RegisterBeanDefinition(name, def)
	return nil
}

// RegisterBeanInstance registers a pre-created singleton instance,
// equivalent to goioc/di's RegisterBeanInstance.
func (c *Container) RegisterBeanInstance(name string, instance interface{}) error {
	t := reflect.TypeOf(instance)
	if t == nil || (t.Kind() != reflect.Ptr && t.Kind() != reflect.Interface) {
		return errors.New("bean instance must be a pointer or interface value")
	}
	def := newBeanDefinition()
	def.ClassType = t
	def.Scope = ScopeSingleton
	c.RegisterBeanDefinition(name, def)
	c.registry.registerSingleton(name, instance)
	return nil
}

// RegisterAlias records that alias refers to the bean registered under
// name (spec.md §6 "bean reference grammar").
func (c *Container) RegisterAlias(alias, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = name
}

// GetAliases returns every alias currently pointing at name.
func (c *Container) GetAliases(name string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for alias, target := range c.aliases {
		if target == name {
			out = append(out, alias)
		}
	}
	return out
}

// RegisterScope installs a custom Scope implementation under name
// (spec.md §6 Scope API).
func (c *Container) RegisterScope(name ScopeName, scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[name] = scope
}

// RegisterConstructorParameterNames declares the parameter names for a
// constructor function, the explicit registration spec.md §9 calls for in
// place of a runtime parameter-name discoverer.
func (c *Container) RegisterConstructorParameterNames(ctorType reflect.Type, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paramNames[ctorType] = names
}

func (c *Container) parameterNamesFor(ctorType reflect.Type) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paramNames[ctorType]
}

// RegisterInjectedMethod exposes the metadata scanner's explicit
// method-injection registration (spec.md §4.6 "injected methods").
func (c *Container) RegisterInjectedMethod(beanType reflect.Type, methodName string, required bool, qualifier string) {
	c.scanner.RegisterInjectedMethod(beanType, methodName, required, qualifier)
}

// RegisterLifecycleMethods exposes the metadata scanner's explicit
// init/destroy callback registration.
func (c *Container) RegisterLifecycleMethods(beanType reflect.Type, initMethods, destroyMethods []string) {
	c.scanner.RegisterLifecycleMethods(beanType, initMethods, destroyMethods)
}

// RegisterLookupMethod exposes the metadata scanner's lookup-method
// override registration (spec.md §4.6 "lookup overrides").
func (c *Container) RegisterLookupMethod(beanType reflect.Type, methodName, lookupBeanName string) {
	c.scanner.RegisterLookupMethod(beanType, methodName, lookupBeanName)
}

// AddPostProcessor registers a post-processor into the pipeline. The
// processor may implement any subset of the capability interfaces declared
// in postprocessor.go.
func (c *Container) AddPostProcessor(p interface{}) {
	c.chain.add(p)
}

// ContainsBean reports whether name (after alias resolution) is a known
// definition, a registered singleton, or resolvable via the parent.
func (c *Container) ContainsBean(name string) bool {
	name = c.canonicalName(stripDereference(name))
	c.mu.RLock()
	_, ok := c.definitions[name]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.registry.containsSingleton(name) {
		return true
	}
	if c.parent != nil {
		return c.parent.ContainsBean(name)
	}
	return false
}

// IsSingleton reports whether name's merged definition resolves to
// singleton scope.
func (c *Container) IsSingleton(name string) (bool, error) {
	def, err := c.getMergedDefinition(c.canonicalName(stripDereference(name)))
	if err != nil {
		return false, err
	}
	return def.Scope == ScopeSingleton, nil
}

// IsPrototype reports whether name's merged definition resolves to
// prototype scope.
func (c *Container) IsPrototype(name string) (bool, error) {
	def, err := c.getMergedDefinition(c.canonicalName(stripDereference(name)))
	if err != nil {
		return false, err
	}
	return def.Scope == ScopePrototype, nil
}

// GetType returns the resolved target class for name, without
// instantiating it, resolving factory-method return types where declared.
func (c *Container) GetType(name string) (reflect.Type, error) {
	def, err := c.getMergedDefinition(c.canonicalName(stripDereference(name)))
	if err != nil {
		return nil, err
	}
	return c.resolveTargetClass(def)
}

// GetBeanNamesForType enumerates every registered bean name whose resolved
// type is assignable to t.
func (c *Container) GetBeanNamesForType(t reflect.Type) []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.definitions))
	for name := range c.definitions {
		names = append(names, name)
	}
	c.mu.RUnlock()

	var out []string
	for _, name := range names {
		def, err := c.getMergedDefinition(name)
		if err != nil || def.Abstract {
			continue
		}
		target, err := c.resolveTargetClass(def)
		if err != nil || target == nil {
			continue
		}
		if target.AssignableTo(t) || (t.Kind() == reflect.Interface && target.Implements(t)) {
			out = append(out, name)
		}
	}
	if c.parent != nil {
		out = append(out, c.parent.GetBeanNamesForType(t)...)
	}
	return out
}

func (c *Container) canonicalName(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]bool{}
	for {
		target, ok := c.aliases[name]
		if !ok || seen[name] {
			return name
		}
		seen[name] = true
		name = target
	}
}

// stripDereference removes a leading '&', per spec.md §6's name grammar
// ("[&]<canonical-name> | <alias>"); hasDereferencePrefix reports whether
// it was present.
func stripDereference(name string) string {
	if len(name) > 0 && name[0] == '&' {
		return name[1:]
	}
	return name
}

func hasDereferencePrefix(name string) bool {
	return len(name) > 0 && name[0] == '&'
}

// DestroySingletons destroys every singleton this container owns, in
// reverse registration order, respecting the inter-bean dependency graph
// (spec.md §5).
func (c *Container) DestroySingletons() {
	c.registry.destroySingletons()
}

// Reset clears definitions, merged definitions, aliases, cached
// factory-bean products and the singleton registry, for test teardown use
// (adapted from goioc/di's resetContainer test helper). Registered scopes,
// post-processors, constructor parameter names and metadata-scanner
// registrations are kept.
func (c *Container) Reset() {
	c.mu.Lock()
	c.definitions = make(map[string]*BeanDefinition)
	c.merged = make(map[string]*MergedBeanDefinition)
	c.aliases = make(map[string]string)
	c.factoryObjects = make(map[string]interface{})
	c.mu.Unlock()
	c.registry = newSingletonRegistry()
}

func parseBoolTag(value string, def bool) bool {
	if value == "" {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return b
}
