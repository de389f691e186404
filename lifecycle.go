package container

import "reflect"

// BeanNameAware is implemented by beans that want to know their own
// registered name (spec.md §4.4 step 1 "Awareness invocation").
type BeanNameAware interface {
	SetBeanName(name string)
}

// ContainerAware is implemented by beans that want a reference to their
// owning Container (the "factory" a bean may be aware of, per spec.md
// §4.4 step 1).
type ContainerAware interface {
	SetContainer(c *Container)
}

// initializeBeanInstance implements spec.md §4.4 in order: awareness
// invocation, before-initialization post-processors, declared init, then
// after-initialization post-processors.
func (c *Container) initializeBeanInstance(name string, def *MergedBeanDefinition, instance interface{}) (interface{}, error) {
	c.invokeAwareness(name, instance)

	instance, err := c.chain.applyBeforeInitialization(instance, name)
	if err != nil {
		return nil, err
	}

	if err := c.invokeDeclaredInit(name, def, instance); err != nil {
		return nil, err
	}

	instance, err = c.chain.applyAfterInitializationChecked(instance, name)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

func (c *Container) invokeAwareness(name string, instance interface{}) {
	if aware, ok := instance.(BeanNameAware); ok {
		aware.SetBeanName(name)
	}
	if aware, ok := instance.(ContainerAware); ok {
		aware.SetContainer(c)
	}
}

// invokeDeclaredInit runs, in order: the InitializingBean.PostConstruct
// callback, the definition's explicit named init method, and any
// additional init callbacks the metadata scanner discovered that are not
// the same method as the explicit one (spec.md §4.4 step 3, §4.6
// "checkConfigMembers" deduplication).
func (c *Container) invokeDeclaredInit(name string, def *MergedBeanDefinition, instance interface{}) error {
	if ib, ok := instance.(InitializingBean); ok {
		if err := ib.PostConstruct(); err != nil {
			return err
		}
	}

	if def.InitMethodName != "" {
		if err := invokeInitMethod(instance, def.InitMethodName); err != nil {
			return err
		}
	}

	t := reflect.TypeOf(instance)
	lm := c.scanner.buildLifecycleMetadata(t)
	for _, cb := range lm.InitCallbacks {
		if cb.MethodName == def.InitMethodName {
			continue
		}
		if !def.ExternallyManagedConfigMembers["init:"+cb.key()] {
			continue
		}
		if err := invokeInitMethod(instance, cb.MethodName); err != nil {
			return err
		}
	}
	return nil
}

// invokeInitMethod calls a named init method, accepting either zero
// arguments or a single bool (passed true); any other arity is a
// DefinitionError (spec.md §4.4 step 3).
func invokeInitMethod(instance interface{}, methodName string) error {
	v := reflect.ValueOf(instance)
	m := v.MethodByName(methodName)
	if !m.IsValid() {
		return newDefinitionError(methodName, "init method not found on "+v.Type().String(), nil)
	}
	mt := m.Type()
	switch mt.NumIn() {
	case 0:
		return firstError(m.Call(nil))
	case 1:
		if mt.In(0).Kind() != reflect.Bool {
			return newDefinitionError(methodName, "init method's single parameter must be bool", nil)
		}
		return firstError(m.Call([]reflect.Value{reflect.ValueOf(true)}))
	default:
		return newDefinitionError(methodName, "init method must take zero arguments or a single bool", nil)
	}
}
