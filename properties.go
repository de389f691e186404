package container

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// populateProperties implements spec.md §4.3 end to end.
func (c *Container) populateProperties(name string, def *MergedBeanDefinition, raw interface{}, lc *lookupContext) (interface{}, error) {
	if cont, err := c.chain.applyAfterInstantiation(raw, name); err != nil {
		return nil, err
	} else if !cont {
		return raw, nil
	}

	pvs := def.PropertyValues.clone()

	if def.Autowire == AutowireByName {
		c.autowireByName(name, raw, pvs, lc)
	} else if def.Autowire == AutowireByType {
		if err := c.autowireByType(name, raw, pvs, lc); err != nil {
			return nil, err
		}
	}

	next, err := c.chain.applyPostProcessProperties(pvs, raw, name)
	if err != nil {
		return nil, err
	}
	if next != nil {
		pvs = next
	}

	if def.DependencyCheck {
		if err := c.checkDependencies(raw, pvs); err != nil {
			return nil, err
		}
	}

	allowNonPublic := c.opts.AllowNonPublicAccess || def.AllowNonPublicAccess
	if err := c.applyPropertyValues(name, raw, pvs, allowNonPublic); err != nil {
		return nil, err
	}

	return raw, nil
}

// elemOf dereferences a pointer-to-struct instance to its addressable
// struct value.
func elemOf(instance interface{}) reflect.Value {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

func isSimpleType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// autowireByName looks up a bean named after each unfulfilled, non-simple
// property and adds it to pvs (spec.md §4.3 step 2).
func (c *Container) autowireByName(name string, raw interface{}, pvs *PropertyValues, lc *lookupContext) {
	elem := elemOf(raw)
	if elem.Kind() != reflect.Struct {
		return
	}
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if isSimpleType(field.Type) || pvs.Contains(field.Name) {
			continue
		}
		if !c.ContainsBean(field.Name) {
			continue
		}
		val, err := c.getBean(field.Name, nil, nil, lc)
		if err != nil {
			continue
		}
		pvs.Add(field.Name, val)
	}
}

// autowireByType resolves a dependency by type for each unfulfilled,
// non-simple property (spec.md §4.3 step 3). The descriptor is marked
// non-eager, but resolveDependency does not read the Eager flag, so a
// matching candidate is still fully instantiated.
func (c *Container) autowireByType(name string, raw interface{}, pvs *PropertyValues, lc *lookupContext) error {
	elem := elemOf(raw)
	if elem.Kind() != reflect.Struct {
		return nil
	}
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if isSimpleType(field.Type) || pvs.Contains(field.Name) {
			continue
		}
		desc := &DependencyDescriptor{DeclaredType: field.Type, Required: false, Eager: false}
		val, _, err := c.resolveDependency(desc, name, lc)
		if err != nil {
			return err
		}
		if val.IsValid() && !val.IsZero() {
			pvs.Add(field.Name, val.Interface())
		}
	}
	return nil
}

func (c *Container) checkDependencies(raw interface{}, pvs *PropertyValues) error {
	elem := elemOf(raw)
	if elem.Kind() != reflect.Struct {
		return nil
	}
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if isSimpleType(field.Type) {
			continue
		}
		if _, optional := field.Tag.Lookup("optional"); optional {
			continue
		}
		if !pvs.Contains(field.Name) {
			return errors.Errorf("unsatisfied dependency check: property %q not provided", field.Name)
		}
	}
	return nil
}

// applyPropertyValues writes every declared property value onto raw via
// reflection, using the same unsafe.Pointer trick goioc/di uses to write
// unexported fields (di.go's injectDependencies). That trick is only taken
// when allowNonPublic is set (ContainerOptions.AllowNonPublicAccess or the
// bean definition's own override); otherwise an unexported, unsettable
// field is left untouched, matching plain reflect.Value.Set semantics.
func (c *Container) applyPropertyValues(beanName string, raw interface{}, pvs *PropertyValues, allowNonPublic bool) error {
	elem := elemOf(raw)
	if elem.Kind() != reflect.Struct {
		return nil
	}
	t := elem.Type()
	for _, pv := range pvs.All() {
		field, ok := fieldByName(t, pv.Name)
		if !ok {
			continue
		}
		fv := elem.FieldByIndex(field.Index)
		if !fv.CanSet() {
			if !allowNonPublic {
				log.WithField("bean", beanName).WithField("field", pv.Name).
					Debug("unexported property field, AllowNonPublicAccess is off, skipping")
				continue
			}
			fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}
		converted, _, err := c.converter.convert(pv.Value, fv.Type())
		if err != nil {
			return newUnsatisfiedDependencyError(beanName, pv.Name, err)
		}
		fv.Set(converted)
	}
	return nil
}

func fieldByName(t reflect.Type, name string) (reflect.StructField, bool) {
	return t.FieldByName(name)
}
