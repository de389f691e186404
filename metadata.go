package container

import (
	"fmt"
	"reflect"
	"sync"
)

// InitializingBean mirrors goioc/di's interface of the same name: a bean
// implementing it has its PostConstruct method invoked during
// initialization (spec.md §4.4 step 3, "declared init").
type InitializingBean interface {
	PostConstruct() error
}

// elementKind discriminates field vs method injection points.
type elementKind int

const (
	elementField elementKind = iota
	elementMethod
)

// shortcutDescriptor caches the resolved name/type for an injection point
// after its first successful resolution, so prototype-scoped re-resolution
// stays cheap (spec.md §3 InjectionMetadata, §4.6 "shortcut descriptor").
type shortcutDescriptor struct {
	name string
	typ  reflect.Type
}

// InjectedElement is one field or method injection point discovered by the
// metadata scanner.
type InjectedElement struct {
	Kind         elementKind
	FieldIndex   []int // reflect.Value.FieldByIndex path, supports embedded structs
	FieldType    reflect.Type
	FieldName    string
	MethodName   string
	MethodParams []reflect.Type
	Required     bool
	Qualifier    string

	mu       sync.Mutex
	shortcut *shortcutDescriptor
}

func (e *InjectedElement) cachedShortcut() (shortcutDescriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shortcut == nil {
		return shortcutDescriptor{}, false
	}
	return *e.shortcut, true
}

func (e *InjectedElement) cacheShortcut(name string, typ reflect.Type) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shortcut = &shortcutDescriptor{name: name, typ: typ}
}

// InjectionMetadata is the per-type cache of injection points, keyed by
// type, matching spec.md §3's description.
type InjectionMetadata struct {
	Type     reflect.Type
	Elements []*InjectedElement
}

// LifecycleCallback identifies one init or destroy callback. key() prefixes
// the method name with Qualifier when one is set, but buildLifecycleMetadata
// never sets it, so callbacks are identified by method name alone and
// same-named methods from an embedded and an embedding type are not told
// apart (spec.md §3 LifecycleMetadata).
type LifecycleCallback struct {
	MethodName string
	Qualifier  string // declaring type name; left empty by buildLifecycleMetadata
}

func (c LifecycleCallback) key() string {
	if c.Qualifier == "" {
		return c.MethodName
	}
	return c.Qualifier + "#" + c.MethodName
}

// LifecycleMetadata is the per-type cache of init/destroy callbacks.
type LifecycleMetadata struct {
	Type             reflect.Type
	InitCallbacks    []LifecycleCallback
	DestroyCallbacks []LifecycleCallback
}

// LookupOverride records a lookup-method override: invoking MethodName on
// a bean of this type should instead delegate to getBean(LookupBeanName).
type LookupOverride struct {
	MethodName     string
	LookupBeanName string
}

// metadataScanner owns the per-type caches and the explicit registrations
// that stand in for annotation reflection Go cannot perform on methods
// (spec.md §9: "either compile-time code generation... or an explicit
// registration API invoked by the parser").
type metadataScanner struct {
	opts *ContainerOptions

	mu                sync.Mutex
	injectionCache    map[reflect.Type]*InjectionMetadata
	lifecycleCache    map[reflect.Type]*LifecycleMetadata
	registeredMethods map[reflect.Type][]methodInjectionSpec
	registeredInit    map[reflect.Type][]string
	registeredDestroy map[reflect.Type][]string
	registeredLookups map[reflect.Type][]LookupOverride
}

type methodInjectionSpec struct {
	MethodName string
	Required   bool
	Qualifier  string
}

func newMetadataScanner(opts *ContainerOptions) *metadataScanner {
	return &metadataScanner{
		opts:              opts,
		injectionCache:    make(map[reflect.Type]*InjectionMetadata),
		lifecycleCache:    make(map[reflect.Type]*LifecycleMetadata),
		registeredMethods: make(map[reflect.Type][]methodInjectionSpec),
		registeredInit:    make(map[reflect.Type][]string),
		registeredDestroy: make(map[reflect.Type][]string),
		registeredLookups: make(map[reflect.Type][]LookupOverride),
	}
}

// RegisterInjectedMethod declares that methodName on beanType is an
// injection point (spec.md §4.6 "injected methods"), the explicit
// registration Go substitutes for method-level annotation scanning.
func (s *metadataScanner) RegisterInjectedMethod(beanType reflect.Type, methodName string, required bool, qualifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredMethods[beanType] = append(s.registeredMethods[beanType], methodInjectionSpec{
		MethodName: methodName, Required: required, Qualifier: qualifier,
	})
	delete(s.injectionCache, beanType)
}

// RegisterLifecycleMethods declares additional init/destroy callback
// method names for beanType, beyond the InitializingBean interface and a
// definition's explicit InitMethodName/DestroyMethod. Init names are
// invoked by invokeDeclaredInit. Destroy names are recorded in
// LifecycleMetadata and ExternallyManagedConfigMembers only; destruction
// does not invoke them.
func (s *metadataScanner) RegisterLifecycleMethods(beanType reflect.Type, initMethods, destroyMethods []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredInit[beanType] = append(s.registeredInit[beanType], initMethods...)
	s.registeredDestroy[beanType] = append(s.registeredDestroy[beanType], destroyMethods...)
	delete(s.lifecycleCache, beanType)
}

// RegisterLookupMethod declares a lookup-method override (spec.md §4.6
// "Lookup overrides").
func (s *metadataScanner) RegisterLookupMethod(beanType reflect.Type, methodName, lookupBeanName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredLookups[beanType] = append(s.registeredLookups[beanType], LookupOverride{
		MethodName: methodName, LookupBeanName: lookupBeanName,
	})
}

func (s *metadataScanner) lookupOverridesFor(beanType reflect.Type) []LookupOverride {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LookupOverride(nil), s.registeredLookups[beanType]...)
}

// buildInjectionMetadata walks the embedded-struct chain parent-first (the
// Go analogue of spec.md §4.6's "walk the inheritance chain parent-first"),
// collecting tagged fields and registered methods, then caches the result
// by type with put-if-absent semantics.
func (s *metadataScanner) buildInjectionMetadata(t reflect.Type) *InjectionMetadata {
	s.mu.Lock()
	if cached, ok := s.injectionCache[t]; ok {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	elem := t
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	var elements []*InjectedElement
	if elem.Kind() == reflect.Struct {
		elements = s.scanFields(elem, nil)
	}

	s.mu.Lock()
	for _, spec := range s.registeredMethods[t] {
		elements = append(elements, &InjectedElement{
			Kind:       elementMethod,
			MethodName: spec.MethodName,
			Required:   spec.Required,
			Qualifier:  spec.Qualifier,
		})
	}
	meta := &InjectionMetadata{Type: t, Elements: elements}
	if _, ok := s.injectionCache[t]; !ok {
		s.injectionCache[t] = meta
	} else {
		meta = s.injectionCache[t]
	}
	s.mu.Unlock()

	return meta
}

// scanFields recurses into anonymous (embedded) fields first so that
// declarations closer to the embedding root are injected first, matching
// the parent-first ordering spec.md §4.6 requires.
func (s *metadataScanner) scanFields(structType reflect.Type, prefix []int) []*InjectedElement {
	var elements []*InjectedElement
	for i := 0; i < structType.NumField(); i++ {
		if field := structType.Field(i); field.Anonymous && field.Type.Kind() == reflect.Struct {
			elements = append(elements, s.scanFields(field.Type, append(append([]int(nil), prefix...), i))...)
		}
	}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			continue
		}

		tagValue, ok := field.Tag.Lookup(s.opts.InjectTag)
		if !ok {
			continue
		}
		required := true
		if reqTag, ok := field.Tag.Lookup(s.opts.RequiredTag); ok {
			required = reqTag != "false"
		}
		qualifier := tagValue
		if q, ok := field.Tag.Lookup(s.opts.QualifierTag); ok {
			qualifier = q
		}
		elements = append(elements, &InjectedElement{
			Kind:       elementField,
			FieldIndex: path,
			FieldType:  field.Type,
			FieldName:  field.Name,
			Required:   required,
			Qualifier:  qualifier,
		})
	}
	return elements
}

// buildLifecycleMetadata collects the init/destroy callback names
// registered for t via RegisterLifecycleMethods, deduplicated, in
// registration order. The InitializingBean and DisposableBean interfaces
// are not recorded here; invokeDeclaredInit and registerForDestruction
// check for them directly.
func (s *metadataScanner) buildLifecycleMetadata(t reflect.Type) *LifecycleMetadata {
	s.mu.Lock()
	if cached, ok := s.lifecycleCache[t]; ok {
		s.mu.Unlock()
		return cached
	}
	inits := append([]string(nil), s.registeredInit[t]...)
	destroys := append([]string(nil), s.registeredDestroy[t]...)
	s.mu.Unlock()

	meta := &LifecycleMetadata{Type: t}
	seen := make(map[string]bool)
	for _, name := range inits {
		if seen[name] {
			continue
		}
		seen[name] = true
		meta.InitCallbacks = append(meta.InitCallbacks, LifecycleCallback{MethodName: name})
	}
	seenD := make(map[string]bool)
	for _, name := range destroys {
		if seenD[name] {
			continue
		}
		seenD[name] = true
		meta.DestroyCallbacks = append(meta.DestroyCallbacks, LifecycleCallback{MethodName: name})
	}

	s.mu.Lock()
	if _, ok := s.lifecycleCache[t]; !ok {
		s.lifecycleCache[t] = meta
	} else {
		meta = s.lifecycleCache[t]
	}
	s.mu.Unlock()
	return meta
}

// checkConfigMembers records every injection point and lifecycle callback
// discovered for def's target class into def.ExternallyManagedConfigMembers,
// deduplicating against any already-declared explicit init/destroy method
// name, the first time def's class is merged (spec.md §4.6).
func (s *metadataScanner) checkConfigMembers(def *MergedBeanDefinition, targetClass reflect.Type) {
	im := s.buildInjectionMetadata(targetClass)
	for _, e := range im.Elements {
		key := fmt.Sprintf("field:%s", e.FieldName)
		if e.Kind == elementMethod {
			key = fmt.Sprintf("method:%s", e.MethodName)
		}
		def.ExternallyManagedConfigMembers[key] = true
	}
	lm := s.buildLifecycleMetadata(targetClass)
	for _, c := range lm.InitCallbacks {
		if c.MethodName == def.InitMethodName {
			continue
		}
		def.ExternallyManagedConfigMembers["init:"+c.key()] = true
	}
	for _, c := range lm.DestroyCallbacks {
		if def.DestroyMethod.Kind == DestroyMethodNamed && c.MethodName == def.DestroyMethod.Name {
			continue
		}
		def.ExternallyManagedConfigMembers["destroy:"+c.key()] = true
	}
}
