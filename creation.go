package container

import (
	"reflect"
	"sort"
	"unsafe"

	"github.com/pkg/errors"
)

// createBean is the creation engine's entry point (spec.md §4.2).
func (c *Container) createBean(name string, def *MergedBeanDefinition, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	targetClass, err := c.resolveTargetClass(def)
	if err != nil {
		return nil, err
	}

	if err := c.validateMethodOverrides(def, targetClass); err != nil {
		return nil, err
	}

	if substitute, err := c.chain.applyBeforeInstantiation(targetClass, name); err != nil {
		return nil, err
	} else if substitute != nil {
		return c.chain.applyAfterInitializationChecked(substitute, name)
	}

	return c.doCreateBean(name, def, targetClass, explicitArgs, lc)
}

// validateMethodOverrides checks every declared/registered lookup override
// (spec.md §4.6 "Lookup overrides") names a field this type can actually
// redirect. Go has no CGLIB-style bytecode method interception, so a lookup
// override is expressed as an exported, zero-argument, single-return
// func-typed field matching MethodName; applyMethodOverrides populates it
// with a closure that calls GetBean(LookupBeanName) fresh on every
// invocation, the Go-idiomatic stand-in for the vtable patch spec.md's
// originating runtime performs.
func (c *Container) validateMethodOverrides(def *MergedBeanDefinition, targetClass reflect.Type) error {
	for _, mo := range c.allMethodOverrides(def, targetClass) {
		field, ok := lookupOverrideField(targetClass, mo.MethodName)
		if !ok {
			return newDefinitionError(def.Name(), "lookup override names no matching func field: "+mo.MethodName, nil)
		}
		if field.Type.Kind() != reflect.Func || field.Type.NumIn() != 0 || field.Type.NumOut() != 1 {
			return newDefinitionError(def.Name(),
				"lookup override field must be a zero-argument, single-return func: "+mo.MethodName, nil)
		}
	}
	return nil
}

// allMethodOverrides merges a definition's explicit MethodOverrides with
// any RegisterLookupMethod registrations for the same type, definition
// entries first.
func (c *Container) allMethodOverrides(def *MergedBeanDefinition, targetClass reflect.Type) []MethodOverride {
	overrides := append([]MethodOverride(nil), def.MethodOverrides...)
	for _, lo := range c.scanner.lookupOverridesFor(targetClass) {
		overrides = append(overrides, MethodOverride{MethodName: lo.MethodName, LookupBeanName: lo.LookupBeanName})
	}
	return overrides
}

func lookupOverrideField(targetClass reflect.Type, methodName string) (reflect.StructField, bool) {
	elem := targetClass
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	return fieldByName(elem, methodName)
}

// applyMethodOverrides installs the GetBean-delegating closures lookup
// overrides require, after instantiation so the field exists to write into
// but before property population/init, matching the point goioc/di wires
// its own post-construction reflective writes.
func (c *Container) applyMethodOverrides(name string, def *MergedBeanDefinition, targetClass reflect.Type, raw interface{}) error {
	overrides := c.allMethodOverrides(def, targetClass)
	if len(overrides) == 0 {
		return nil
	}

	elem := elemOf(raw)
	if elem.Kind() != reflect.Struct {
		return nil
	}

	allowNonPublic := c.opts.AllowNonPublicAccess || def.AllowNonPublicAccess

	for _, mo := range overrides {
		field, ok := fieldByName(elem.Type(), mo.MethodName)
		if !ok {
			return newDefinitionError(name, "lookup override names no matching func field: "+mo.MethodName, nil)
		}
		fv := elem.FieldByIndex(field.Index)
		if !fv.CanSet() {
			if !allowNonPublic {
				log.WithField("bean", name).WithField("method", mo.MethodName).
					Debug("unexported lookup-override field, AllowNonPublicAccess is off, skipping")
				continue
			}
			fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}

		lookupBeanName := mo.LookupBeanName
		fnType := fv.Type()
		returnType := fnType.Out(0)
		fv.Set(reflect.MakeFunc(fnType, func(_ []reflect.Value) []reflect.Value {
			val, err := c.GetBean(lookupBeanName)
			if err != nil {
				log.WithField("bean", name).WithField("lookup", lookupBeanName).WithError(err).
					Warn("lookup override failed to resolve target bean")
				return []reflect.Value{reflect.Zero(returnType)}
			}
			rv := reflect.ValueOf(val)
			if !rv.IsValid() || !rv.Type().AssignableTo(returnType) {
				return []reflect.Value{reflect.Zero(returnType)}
			}
			return []reflect.Value{rv}
		}))
	}
	return nil
}

// doCreateBean implements spec.md §4.2's doCreateBean, steps 1-7.
func (c *Container) doCreateBean(name string, def *MergedBeanDefinition, targetClass reflect.Type, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	raw, err := c.instantiate(name, def, targetClass, explicitArgs, lc)
	if err != nil {
		return nil, newCreationError(name, lc.traceID, "instantiation", err)
	}

	if err := c.applyMethodOverrides(name, def, targetClass, raw); err != nil {
		return nil, newCreationError(name, lc.traceID, "method-override", err)
	}

	if err := def.markPostProcessedOnce(func() error {
		c.scanner.checkConfigMembers(def, targetClass)
		return c.chain.applyMergedDefinition(def, targetClass, name)
	}); err != nil {
		return nil, err
	}

	earlyExposed := false
	if def.Scope == ScopeSingleton && c.opts.AllowCircularReferences {
		earlyExposed = true
		c.registry.addSingletonFactory(name, func() (interface{}, error) {
			return c.chain.getEarlyBeanReference(raw, name), nil
		})
	}

	exposedRef, _ := c.registry.getSingleton(name, true)

	populated, err := c.populateProperties(name, def, raw, lc)
	if err != nil {
		return nil, newCreationError(name, lc.traceID, "property-population", err)
	}

	initialized, err := c.initializeBeanInstance(name, def, populated)
	if err != nil {
		return nil, newCreationError(name, lc.traceID, "initialization", err)
	}

	if earlyExposed {
		if exposedRef != nil && exposedRef != raw && initialized != exposedRef {
			if !c.opts.AllowRawInjectionDespiteWrapping {
				return nil, newCycleError([]string{name})
			}
			log.WithField("bean", name).Warn(
				"initialization replaced the early-exposed reference after it was already observed; " +
					"continuing because raw-injection-despite-wrapping is enabled (spec.md §9 open question)")
		}
	}

	if def.Scope != ScopePrototype {
		c.registerForDestruction(name, def, initialized)
	}

	return initialized, nil
}

func (c *Container) registerForDestruction(name string, def *MergedBeanDefinition, instance interface{}) {
	switch def.DestroyMethod.Kind {
	case DestroyMethodNamed:
		methodName := def.DestroyMethod.Name
		c.registry.registerDisposableBean(name, disposableFunc(func() error {
			c.chain.applyBeforeDestruction(instance, name)
			return invokeZeroArgMethod(instance, methodName)
		}))
	case DestroyMethodInferred:
		if methodName, ok := inferDestroyMethod(instance); ok {
			c.registry.registerDisposableBean(name, disposableFunc(func() error {
				c.chain.applyBeforeDestruction(instance, name)
				return invokeZeroArgMethod(instance, methodName)
			}))
			return
		}
		if db, ok := instance.(DisposableBean); ok {
			c.registry.registerDisposableBean(name, disposableFunc(func() error {
				c.chain.applyBeforeDestruction(instance, name)
				return db.Destroy()
			}))
		}
	default:
		if db, ok := instance.(DisposableBean); ok {
			c.registry.registerDisposableBean(name, disposableFunc(func() error {
				c.chain.applyBeforeDestruction(instance, name)
				return db.Destroy()
			}))
		}
	}
}

func inferDestroyMethod(instance interface{}) (string, bool) {
	for _, candidate := range []string{"Close", "Destroy", "Shutdown"} {
		if _, ok := reflect.TypeOf(instance).MethodByName(candidate); ok {
			return candidate, true
		}
	}
	return "", false
}

func invokeZeroArgMethod(instance interface{}, methodName string) error {
	v := reflect.ValueOf(instance)
	m := v.MethodByName(methodName)
	if !m.IsValid() {
		return errors.Errorf("method %s not found on %T", methodName, instance)
	}
	results := m.Call(nil)
	return firstError(results)
}

func firstError(results []reflect.Value) error {
	for _, r := range results {
		if err, ok := r.Interface().(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// instantiate selects among the four instantiation strategies of spec.md
// §4.2 in priority order: user-supplied producer, factory method,
// cached/resolved constructor, or fresh constructor resolution.
func (c *Container) instantiate(name string, def *MergedBeanDefinition, targetClass reflect.Type, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	if def.InstanceSupplier != nil {
		c.pushCreating(name)
		defer c.popCreating()
		return def.InstanceSupplier()
	}

	if def.FactoryMethodName != "" {
		return c.instantiateViaFactoryMethod(name, def, explicitArgs, lc)
	}

	def.mu.Lock()
	resolved := def.constructorArgumentsResolved
	def.mu.Unlock()
	if resolved {
		return c.instantiateWithPreparedArgs(name, def, lc)
	}

	if len(def.Constructors) == 0 {
		elem := targetClass
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		instance := reflect.New(elem).Interface()
		def.withLock(func() {
			def.constructorArgumentsResolved = true
			def.resolvedConstructorOrFactoryMethod = reflect.Value{}
		})
		return instance, nil
	}

	candidates := def.Constructors
	if nominated := c.chain.determineCandidateConstructors(targetClass, name); len(nominated) > 0 {
		candidates = nominated
	}

	return c.resolveAndInvokeConstructor(name, def, candidates, explicitArgs, lc)
}

func (c *Container) instantiateViaFactoryMethod(name string, def *MergedBeanDefinition, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	var factoryTarget interface{}
	var methodType reflect.Type
	var call func(args []reflect.Value) []reflect.Value

	if def.FactoryBeanName != "" {
		fb, err := c.getBean(def.FactoryBeanName, nil, nil, lc)
		if err != nil {
			return nil, err
		}
		factoryTarget = fb
		method := reflect.ValueOf(fb).MethodByName(def.FactoryMethodName)
		if !method.IsValid() {
			return nil, newDefinitionError(name, "factory method not found: "+def.FactoryMethodName, nil)
		}
		methodType = method.Type()
		call = method.Call
	} else {
		return nil, newDefinitionError(name, "factory method requires a FactoryBeanName", nil)
	}

	args, _, _, _, err := c.buildConstructorArgs(name, methodType, def.ConstructorArgs, explicitArgs, lc)
	if err != nil {
		return nil, err
	}
	results := call(toReflectValues(args, methodType))
	if len(results) == 0 {
		return nil, newDefinitionError(name, "factory method returned no values", nil)
	}
	if err, ok := lastResultError(results); ok && err != nil {
		return nil, err
	}
	def.withLock(func() { def.factoryTargetBean = factoryTarget })
	return results[0].Interface(), nil
}

func lastResultError(results []reflect.Value) (error, bool) {
	last := results[len(results)-1]
	if err, ok := last.Interface().(error); ok {
		return err, true
	}
	return nil, false
}

// resolveAndInvokeConstructor implements spec.md §4.2.1: score every
// candidate with parameter count >= the minimum, pick the lowest
// type-difference weight, tie-break per ContainerOptions.StrictConstructorResolution,
// and cache the winner plus its prepared-argument array.
func (c *Container) resolveAndInvokeConstructor(name string, def *MergedBeanDefinition, candidates []reflect.Value, explicitArgs []interface{}, lc *lookupContext) (interface{}, error) {
	minArgs := len(explicitArgs)
	if minArgs == 0 {
		minArgs = countDeclaredArgs(def.ConstructorArgs)
	}

	sorted := append([]reflect.Value(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type().NumIn() > sorted[j].Type().NumIn()
	})

	type scored struct {
		ctor     reflect.Value
		args     []interface{}
		prepared []interface{}
		weight   int
		rawW     int
	}
	var best *scored
	ambiguous := false
	var firstErr error

	for _, ctor := range sorted {
		t := ctor.Type()
		if t.NumIn() < minArgs {
			continue
		}
		args, prepared, weight, rawWeight, err := c.buildConstructorArgs(name, t, def.ConstructorArgs, explicitArgs, lc)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		effectiveWeight := weight
		if applyRawArgsBias(rawWeight) < effectiveWeight {
			effectiveWeight = applyRawArgsBias(rawWeight)
		}
		if best == nil || effectiveWeight < best.weight {
			best = &scored{ctor: ctor, args: args, prepared: prepared, weight: effectiveWeight, rawW: rawWeight}
			ambiguous = false
		} else if effectiveWeight == best.weight {
			ambiguous = true
		}
	}

	if best == nil {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, newDefinitionError(name, "no matching constructor found", nil)
	}
	if ambiguous && c.opts.StrictConstructorResolution {
		return nil, newDefinitionError(name, "ambiguous constructor resolution", nil)
	}

	results := best.ctor.Call(toReflectValues(best.args, best.ctor.Type()))
	if err, ok := lastResultError(results); ok && err != nil {
		return nil, err
	}

	def.withLock(func() {
		def.resolvedConstructorOrFactoryMethod = best.ctor
		def.constructorArgumentsResolved = true
		def.preparedArgs = best.prepared
	})

	return results[0].Interface(), nil
}

func toReflectValues(args []interface{}, fnType reflect.Type) []reflect.Value {
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			out[i] = reflect.Zero(fnType.In(i))
			continue
		}
		out[i] = reflect.ValueOf(a)
	}
	return out
}

func countDeclaredArgs(cav *ConstructorArgumentValues) int {
	if cav == nil {
		return 0
	}
	max := len(cav.Generic)
	for idx := range cav.Indexed {
		if idx+1 > max {
			max = idx + 1
		}
	}
	return max
}

// buildConstructorArgs builds one candidate's argument list, scoring both
// the converted-argument weight and the raw-argument weight (spec.md
// §4.2.1 step 2). The second returned slice mirrors args except that
// autowire-by-type slots carry autowiredArgument instead of the resolved
// value, so the caller can cache it as the prepared-argument array and
// re-resolve those slots fresh on every future invocation (spec.md §9).
func (c *Container) buildConstructorArgs(beanName string, fnType reflect.Type, cav *ConstructorArgumentValues, explicitArgs []interface{}, lc *lookupContext) ([]interface{}, []interface{}, int, int, error) {
	numIn := fnType.NumIn()
	args := make([]interface{}, numIn)
	prepared := make([]interface{}, numIn)
	totalWeight := 0
	totalRawWeight := 0
	addRaw := func(value interface{}, paramType reflect.Type) {
		if t := reflect.TypeOf(value); (t == nil && isNilable(paramType)) || (t != nil && t.AssignableTo(paramType)) {
			return
		}
		totalRawWeight = weightUnassignable
	}

	for i := 0; i < numIn; i++ {
		paramType := fnType.In(i)

		if i < len(explicitArgs) {
			converted, w, err := c.converter.convert(explicitArgs[i], paramType)
			if err != nil {
				return nil, nil, 0, 0, err
			}
			args[i] = converted.Interface()
			prepared[i] = args[i]
			totalWeight += w
			addRaw(explicitArgs[i], paramType)
			continue
		}

		if vh, ok := cav.Indexed[i]; ok {
			converted, w, err := c.converter.convert(vh.Value, paramType)
			if err != nil {
				return nil, nil, 0, 0, err
			}
			args[i] = converted.Interface()
			prepared[i] = args[i]
			totalWeight += w
			addRaw(vh.Value, paramType)
			continue
		}

		if vh, ok := matchGenericByType(cav.Generic, paramType); ok {
			converted, w, err := c.converter.convert(vh.Value, paramType)
			if err != nil {
				return nil, nil, 0, 0, err
			}
			args[i] = converted.Interface()
			prepared[i] = args[i]
			totalWeight += w
			addRaw(vh.Value, paramType)
			continue
		}

		names := c.parameterNamesFor(fnType)
		var paramName string
		if i < len(names) {
			paramName = names[i]
		}
		if paramName != "" {
			if vh, ok := matchGenericByName(cav.Generic, paramName); ok {
				converted, w, err := c.converter.convert(vh.Value, paramType)
				if err != nil {
					return nil, nil, 0, 0, err
				}
				args[i] = converted.Interface()
				prepared[i] = args[i]
				totalWeight += w
				addRaw(vh.Value, paramType)
				continue
			}
		}

		desc := &DependencyDescriptor{DeclaredType: paramType, Required: true, Eager: true, ParameterName: paramName}
		val, _, err := c.resolveDependency(desc, beanName, lc)
		if err != nil {
			return nil, nil, 0, 0, err
		}
		if !val.IsValid() {
			args[i] = nil
		} else {
			args[i] = val.Interface()
		}
		prepared[i] = autowiredArgument
		totalWeight += weightExactMatch
		totalRawWeight += weightExactMatch
	}

	return args, prepared, totalWeight, totalRawWeight, nil
}

func matchGenericByType(generic []ValueHolder, t reflect.Type) (ValueHolder, bool) {
	for _, vh := range generic {
		if vh.DeclaredType != nil && vh.DeclaredType == t {
			return vh, true
		}
	}
	for _, vh := range generic {
		if vh.DeclaredType == nil {
			if rv := reflect.ValueOf(vh.Value); rv.IsValid() && rv.Type().AssignableTo(t) {
				return vh, true
			}
		}
	}
	return ValueHolder{}, false
}

func matchGenericByName(generic []ValueHolder, name string) (ValueHolder, bool) {
	for _, vh := range generic {
		if vh.Name == name {
			return vh, true
		}
	}
	return ValueHolder{}, false
}

// instantiateWithPreparedArgs re-invokes a previously resolved constructor,
// reusing cached literal values and re-resolving autowired-argument-marker
// slots fresh (spec.md §3's "prepared argument array").
func (c *Container) instantiateWithPreparedArgs(name string, def *MergedBeanDefinition, lc *lookupContext) (interface{}, error) {
	def.mu.Lock()
	ctor := def.resolvedConstructorOrFactoryMethod
	prepared := append([]interface{}(nil), def.preparedArgs...)
	def.mu.Unlock()

	if !ctor.IsValid() {
		elem := def.targetClass
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		return reflect.New(elem).Interface(), nil
	}

	fnType := ctor.Type()
	for i, a := range prepared {
		if _, isMarker := a.(autowiredArgumentMarker); isMarker {
			desc := &DependencyDescriptor{DeclaredType: fnType.In(i), Required: true, Eager: true}
			val, _, err := c.resolveDependency(desc, name, lc)
			if err != nil {
				return nil, err
			}
			if val.IsValid() {
				prepared[i] = val.Interface()
			} else {
				prepared[i] = nil
			}
		}
	}

	results := ctor.Call(toReflectValues(prepared, fnType))
	if err, ok := lastResultError(results); ok && err != nil {
		return nil, err
	}
	return results[0].Interface(), nil
}

func (c *Container) pushCreating(name string) {
	c.currentlyCreatingMu.Lock()
	c.currentlyCreating = append(c.currentlyCreating, name)
	c.currentlyCreatingMu.Unlock()
}

func (c *Container) popCreating() {
	c.currentlyCreatingMu.Lock()
	if len(c.currentlyCreating) > 0 {
		c.currentlyCreating = c.currentlyCreating[:len(c.currentlyCreating)-1]
	}
	c.currentlyCreatingMu.Unlock()
}

func (c *Container) currentCreatingBean() (string, bool) {
	c.currentlyCreatingMu.Lock()
	defer c.currentlyCreatingMu.Unlock()
	if len(c.currentlyCreating) == 0 {
		return "", false
	}
	return c.currentlyCreating[len(c.currentlyCreating)-1], true
}
