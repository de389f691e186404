package container

import (
	"reflect"
	"sort"
	"sync"
)

// Capability interfaces. A post-processor implements any subset of these;
// spec.md §9 deliberately replaces the source's deep inheritance of
// post-processor interfaces with this kind of capability polymorphism,
// generalizing mwantia-fabric's single-purpose TagProcessor interface
// (container/processor.go) to the several fixed lifecycle phases spec.md
// §6 names.

// MergedDefinitionProcessor rewrites a merged definition; invoked exactly
// once per definition (spec.md §4.2 doCreateBean step 2).
type MergedDefinitionProcessor interface {
	PostProcessMergedDefinition(def *MergedBeanDefinition, beanType reflect.Type, beanName string) error
}

// InstantiationAwareProcessor is the hook through which short-circuiting,
// skip-population, and annotation-driven property injection run.
type InstantiationAwareProcessor interface {
	// BeforeInstantiation may return a non-nil substitute instance to
	// short-circuit normal instantiation.
	BeforeInstantiation(beanType reflect.Type, beanName string) (interface{}, error)
	// AfterInstantiation reports whether property population should
	// continue.
	AfterInstantiation(instance interface{}, beanName string) (bool, error)
	// PostProcessProperties may rewrite the property-value list, e.g. to
	// perform annotation-driven field/method injection.
	PostProcessProperties(pvs *PropertyValues, instance interface{}, beanName string) (*PropertyValues, error)
}

// SmartInstantiationAwareProcessor nominates constructor candidates,
// produces early references for proxying, and predicts bean types.
type SmartInstantiationAwareProcessor interface {
	DetermineCandidateConstructors(beanType reflect.Type, beanName string) ([]reflect.Value, error)
	GetEarlyBeanReference(instance interface{}, beanName string) (interface{}, error)
	PredictBeanType(beanType reflect.Type, beanName string) (reflect.Type, error)
}

// BeforeInitializationProcessor runs before a bean's declared init
// callback. Init callbacks registered with RegisterLifecycleMethods do not
// run through this interface; invokeDeclaredInit calls them in the
// declared-init step.
type BeforeInitializationProcessor interface {
	PostProcessBeforeInitialization(instance interface{}, beanName string) (interface{}, error)
}

// AfterInitializationProcessor runs after a bean's declared init callback.
// Returning nil short-circuits the remaining chain (spec.md §4.4 step 4).
type AfterInitializationProcessor interface {
	PostProcessAfterInitialization(instance interface{}, beanName string) (interface{}, error)
}

// DestructionAwareProcessor runs immediately before a bean is destroyed.
type DestructionAwareProcessor interface {
	RequiresDestruction(instance interface{}) bool
	PostProcessBeforeDestruction(instance interface{}, beanName string) error
}

// PriorityOrdered processors run before Ordered processors, which run
// before unordered ones (spec.md §5 "Ordering guarantees").
type PriorityOrdered interface {
	Priority() int
}

// Ordered processors are sorted by Order() within their tier.
type Ordered interface {
	Order() int
}

type processorEntry struct {
	processor    interface{}
	tier         int
	order        int
	registration int
}

// processorChain is the ordered list of capability-typed hooks invoked at
// the fixed phases spec.md §4 describes. Grounded on mwantia-fabric's
// TagProcessorManager (container/processor.go): a slice of processors
// re-sorted on every registration via sort.Slice.
type processorChain struct {
	mu      sync.Mutex
	entries []processorEntry
	nextReg int
}

func newProcessorChain() *processorChain {
	return &processorChain{}
}

func (c *processorChain) add(p interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tier, order := 2, 0
	if po, ok := p.(PriorityOrdered); ok {
		tier, order = 0, po.Priority()
	} else if o, ok := p.(Ordered); ok {
		tier, order = 1, o.Order()
	}
	c.entries = append(c.entries, processorEntry{processor: p, tier: tier, order: order, registration: c.nextReg})
	c.nextReg++
	sort.SliceStable(c.entries, func(i, j int) bool {
		a, b := c.entries[i], c.entries[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.registration < b.registration
	})
}

func (c *processorChain) snapshot() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.processor
	}
	return out
}

func (c *processorChain) applyMergedDefinition(def *MergedBeanDefinition, beanType reflect.Type, beanName string) error {
	for _, p := range c.snapshot() {
		if mp, ok := p.(MergedDefinitionProcessor); ok {
			if err := mp.PostProcessMergedDefinition(def, beanType, beanName); err != nil {
				return newPostProcessingError("merged-definition", beanName, err)
			}
		}
	}
	return nil
}

func (c *processorChain) applyBeforeInstantiation(beanType reflect.Type, beanName string) (interface{}, error) {
	for _, p := range c.snapshot() {
		if ip, ok := p.(InstantiationAwareProcessor); ok {
			inst, err := ip.BeforeInstantiation(beanType, beanName)
			if err != nil {
				return nil, newPostProcessingError("before-instantiation", beanName, err)
			}
			if inst != nil {
				return inst, nil
			}
		}
	}
	return nil, nil
}

func (c *processorChain) applyAfterInstantiation(instance interface{}, beanName string) (bool, error) {
	cont := true
	for _, p := range c.snapshot() {
		if ip, ok := p.(InstantiationAwareProcessor); ok {
			ok2, err := ip.AfterInstantiation(instance, beanName)
			if err != nil {
				return false, newPostProcessingError("after-instantiation", beanName, err)
			}
			if !ok2 {
				cont = false
			}
		}
	}
	return cont, nil
}

func (c *processorChain) applyPostProcessProperties(pvs *PropertyValues, instance interface{}, beanName string) (*PropertyValues, error) {
	for _, p := range c.snapshot() {
		if ip, ok := p.(InstantiationAwareProcessor); ok {
			next, err := ip.PostProcessProperties(pvs, instance, beanName)
			if err != nil {
				return nil, newPostProcessingError("post-process-properties", beanName, err)
			}
			if next != nil {
				pvs = next
			}
		}
	}
	return pvs, nil
}

func (c *processorChain) determineCandidateConstructors(beanType reflect.Type, beanName string) []reflect.Value {
	for _, p := range c.snapshot() {
		if sp, ok := p.(SmartInstantiationAwareProcessor); ok {
			ctors, err := sp.DetermineCandidateConstructors(beanType, beanName)
			if err == nil && len(ctors) > 0 {
				return ctors
			}
		}
	}
	return nil
}

func (c *processorChain) getEarlyBeanReference(instance interface{}, beanName string) interface{} {
	for _, p := range c.snapshot() {
		if sp, ok := p.(SmartInstantiationAwareProcessor); ok {
			if wrapped, err := sp.GetEarlyBeanReference(instance, beanName); err == nil && wrapped != nil {
				instance = wrapped
			}
		}
	}
	return instance
}

func (c *processorChain) applyBeforeInitialization(instance interface{}, beanName string) (interface{}, error) {
	for _, p := range c.snapshot() {
		if bp, ok := p.(BeforeInitializationProcessor); ok {
			next, err := bp.PostProcessBeforeInitialization(instance, beanName)
			if err != nil {
				return nil, newPostProcessingError("before-initialization", beanName, err)
			}
			if next != nil {
				instance = next
			}
		}
	}
	return instance, nil
}

// applyAfterInitializationChecked runs the after-initialization chain. A
// processor returning nil short-circuits the remaining chain (spec.md
// §4.4 step 4), in which case the last non-nil instance is returned.
func (c *processorChain) applyAfterInitializationChecked(instance interface{}, beanName string) (interface{}, error) {
	for _, p := range c.snapshot() {
		if ap, ok := p.(AfterInitializationProcessor); ok {
			next, err := ap.PostProcessAfterInitialization(instance, beanName)
			if err != nil {
				return nil, newPostProcessingError("after-initialization", beanName, err)
			}
			if next == nil {
				return instance, nil
			}
			instance = next
		}
	}
	return instance, nil
}

// applyAfterInitialization is the error-swallowing convenience form used
// by factory-bean product dereferencing (spec.md §4.7 step 5).
func (c *processorChain) applyAfterInitialization(instance interface{}, beanName string) interface{} {
	out, err := c.applyAfterInitializationChecked(instance, beanName)
	if err != nil {
		log.WithField("bean", beanName).WithError(err).Warn("after-initialization post-processor failed for factory-bean product")
		return instance
	}
	return out
}

func (c *processorChain) applyBeforeDestruction(instance interface{}, beanName string) {
	for _, p := range c.snapshot() {
		if dp, ok := p.(DestructionAwareProcessor); ok {
			if !dp.RequiresDestruction(instance) {
				continue
			}
			if err := dp.PostProcessBeforeDestruction(instance, beanName); err != nil {
				log.WithField("bean", beanName).WithError(err).Warn("destruction post-processor failed; continuing")
			}
		}
	}
}

// typedPostprocessor adapts goioc/di's RegisterBeanPostprocessor
// convenience (a plain func(bean interface{}) error keyed by reflect.Type)
// onto the AfterInitializationProcessor capability.
type typedPostprocessor struct {
	beanType reflect.Type
	fn       func(bean interface{}) error
}

func (t *typedPostprocessor) PostProcessAfterInitialization(instance interface{}, beanName string) (interface{}, error) {
	if reflect.TypeOf(instance) != t.beanType {
		return instance, nil
	}
	if err := t.fn(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// RegisterBeanPostprocessor registers a simple, type-keyed postprocessor,
// equivalent to goioc/di's function of the same name.
func (c *Container) RegisterBeanPostprocessor(beanType reflect.Type, fn func(bean interface{}) error) {
	c.AddPostProcessor(&typedPostprocessor{beanType: beanType, fn: fn})
}
