package container

import "sync"

// singletonRegistry is the process-wide identity cache described in
// spec.md §3/§4.1: a three-level cache that breaks circular references
// between singletons while preserving identity and post-processing
// invariants.
//
// goioc/di keeps only a single-level singletonInstances map because it
// forbids constructor cycles outright and always injects after raw
// instantiation; this type generalizes that to the full three-level
// protocol spec.md requires (singletonFactories -> earlySingletonObjects
// -> singletonObjects, monotonic within one creation).
type singletonRegistry struct {
	mu sync.Mutex

	singletonObjects      map[string]interface{}
	earlySingletonObjects map[string]interface{}
	singletonFactories    map[string]func() (interface{}, error)

	registeredSingletons []string
	registeredSet        map[string]bool

	currentlyInCreation map[string]bool

	disposableOrder []string
	disposableBeans map[string]DisposableBean

	dependentBeanMap      map[string]map[string]bool // bean -> set of beans that depend on it
	dependenciesForBean   map[string]map[string]bool // bean -> set of beans it depends on
}

// DisposableBean is implemented by destruction callbacks registered with
// registerDisposableBean; it mirrors spec.md's DestructionAware contract
// without requiring the bean itself to implement anything.
type DisposableBean interface {
	Destroy() error
}

type disposableFunc func() error

func (f disposableFunc) Destroy() error { return f() }

func newSingletonRegistry() *singletonRegistry {
	return &singletonRegistry{
		singletonObjects:      make(map[string]interface{}),
		earlySingletonObjects: make(map[string]interface{}),
		singletonFactories:    make(map[string]func() (interface{}, error)),
		registeredSet:         make(map[string]bool),
		currentlyInCreation:   make(map[string]bool),
		disposableBeans:       make(map[string]DisposableBean),
		dependentBeanMap:      make(map[string]map[string]bool),
		dependenciesForBean:   make(map[string]map[string]bool),
	}
}

// getSingleton returns a fully constructed instance if present; if
// allowEarly and the bean is currently being created, it returns the early
// reference, promoting the level-3 producer to level-2 on first access so
// the producer runs at most once per creation.
func (r *singletonRegistry) getSingleton(name string, allowEarly bool) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if obj, ok := r.singletonObjects[name]; ok {
		return obj, true
	}
	if !allowEarly || !r.currentlyInCreation[name] {
		return nil, false
	}
	if obj, ok := r.earlySingletonObjects[name]; ok {
		return obj, true
	}
	if factory, ok := r.singletonFactories[name]; ok {
		obj, err := factory()
		if err != nil {
			return nil, false
		}
		r.earlySingletonObjects[name] = obj
		delete(r.singletonFactories, name)
		return obj, true
	}
	return nil, false
}

// getSingletonOrCreate is the double-checked producer form: if already
// present, return it; else mark creation-in-progress, invoke producer, and
// on success publish to level-1, removing the two lower caches; on failure
// propagate the error and remove the in-progress marker so a later retry
// starts clean.
func (r *singletonRegistry) getSingletonOrCreate(name string, producer func() (interface{}, error)) (interface{}, error) {
	r.mu.Lock()
	if obj, ok := r.singletonObjects[name]; ok {
		r.mu.Unlock()
		return obj, nil
	}
	if r.currentlyInCreation[name] {
		r.mu.Unlock()
		return nil, newCycleError([]string{name})
	}
	r.currentlyInCreation[name] = true
	r.mu.Unlock()

	obj, err := producer()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.currentlyInCreation, name)
	if err != nil {
		delete(r.singletonFactories, name)
		delete(r.earlySingletonObjects, name)
		return nil, err
	}
	r.singletonObjects[name] = obj
	delete(r.earlySingletonObjects, name)
	delete(r.singletonFactories, name)
	if !r.registeredSet[name] {
		r.registeredSet[name] = true
		r.registeredSingletons = append(r.registeredSingletons, name)
	}
	return obj, nil
}

// addSingletonFactory installs a level-3 entry, but only while name is
// marked currently-in-creation, clearing any existing level-2 entry so
// promotion stays monotonic.
func (r *singletonRegistry) addSingletonFactory(name string, producer func() (interface{}, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentlyInCreation[name] {
		return
	}
	if _, exists := r.singletonObjects[name]; exists {
		return
	}
	r.singletonFactories[name] = producer
	delete(r.earlySingletonObjects, name)
}

func (r *singletonRegistry) isCurrentlyInCreation(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentlyInCreation[name]
}

// registerSingleton directly publishes an already-constructed instance
// (RegisterBeanInstance-equivalent), bypassing the producer protocol.
func (r *singletonRegistry) registerSingleton(name string, instance interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singletonObjects[name] = instance
	delete(r.earlySingletonObjects, name)
	delete(r.singletonFactories, name)
	if !r.registeredSet[name] {
		r.registeredSet[name] = true
		r.registeredSingletons = append(r.registeredSingletons, name)
	}
}

func (r *singletonRegistry) registerDisposableBean(name string, bean DisposableBean) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.disposableBeans[name]; !exists {
		r.disposableOrder = append(r.disposableOrder, name)
	}
	r.disposableBeans[name] = bean
}

// registerDependentBean records that dependentName depends on name, for
// both the forward (dependentBeanMap: name -> dependents) and reverse
// (dependenciesForBean: dependent -> dependencies) edges.
func (r *singletonRegistry) registerDependentBean(name, dependentName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dependentBeanMap[name] == nil {
		r.dependentBeanMap[name] = make(map[string]bool)
	}
	r.dependentBeanMap[name][dependentName] = true
	if r.dependenciesForBean[dependentName] == nil {
		r.dependenciesForBean[dependentName] = make(map[string]bool)
	}
	r.dependenciesForBean[dependentName][name] = true
}

func (r *singletonRegistry) dependentBeans(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.dependentBeanMap[name]))
	for d := range r.dependentBeanMap[name] {
		out = append(out, d)
	}
	return out
}

// destroySingleton removes name from every cache and invokes its
// registered disposable callback, after first recursively destroying every
// bean that depends on it (spec.md §5 "destruction traverses disposableBeans
// in reverse registration order; dependents destroyed first").
func (r *singletonRegistry) destroySingleton(name string) {
	for _, dependent := range r.dependentBeans(name) {
		r.destroySingleton(dependent)
	}

	r.mu.Lock()
	delete(r.singletonObjects, name)
	delete(r.earlySingletonObjects, name)
	delete(r.singletonFactories, name)
	bean, hasBean := r.disposableBeans[name]
	delete(r.disposableBeans, name)
	r.mu.Unlock()

	if hasBean {
		if err := bean.Destroy(); err != nil {
			log.WithField("bean", name).WithError(err).Warn("error destroying bean; continuing")
		}
	}
}

// destroySingletons destroys every registered singleton in reverse
// registration order.
func (r *singletonRegistry) destroySingletons() {
	r.mu.Lock()
	order := append([]string(nil), r.disposableOrder...)
	r.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		r.destroySingleton(order[i])
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.singletonObjects = make(map[string]interface{})
	r.earlySingletonObjects = make(map[string]interface{})
	r.singletonFactories = make(map[string]func() (interface{}, error))
	r.registeredSingletons = nil
	r.registeredSet = make(map[string]bool)
	r.disposableOrder = nil
	r.disposableBeans = make(map[string]DisposableBean)
}

func (r *singletonRegistry) containsSingleton(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.singletonObjects[name]
	return ok
}

func (r *singletonRegistry) singletonNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.registeredSingletons...)
}
