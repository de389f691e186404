package container

import (
	"reflect"
	"sort"
)

// DependencyDescriptor describes one injection point to be resolved by
// type, per spec.md §4.5: a constructor parameter, a field, or a property,
// with its declared type (which may be a container of a component type),
// required/eager flags, and an optional qualifier.
type DependencyDescriptor struct {
	DeclaredType  reflect.Type
	Required      bool
	Eager         bool
	Qualifier     string
	ParameterName string
	FallbackEmptyContainer bool

	shortcutName string
}

// QualifierResolver filters candidate bean names against a descriptor's
// qualifier attribute (spec.md §4.5 step 4). The default resolver matches
// the qualifier string against the candidate's registered name.
type QualifierResolver func(container *Container, candidateName string, qualifier string) bool

func defaultQualifierResolver(c *Container, candidateName, qualifier string) bool {
	return qualifier == "" || candidateName == qualifier
}

// resolveDependency implements spec.md §4.5 end to end, returning the
// resolved value, the bean name(s) it was satisfied from (for
// dependent-bean graph registration), and an error.
func (c *Container) resolveDependency(desc *DependencyDescriptor, requestingBeanName string, lc *lookupContext) (reflect.Value, []string, error) {
	if desc.shortcutName != "" {
		val, err := c.getBean(desc.shortcutName, nil, nil, lc)
		if err == nil {
			return reflect.ValueOf(val), []string{desc.shortcutName}, nil
		}
		desc.shortcutName = ""
	}

	elemType, isContainer, containerKind := containerElementType(desc.DeclaredType)
	if isContainer {
		return c.resolveContainerDependency(desc, elemType, containerKind, requestingBeanName, lc)
	}

	candidates := c.candidateNamesAssignableTo(desc.DeclaredType)
	candidates = c.filterByQualifier(candidates, desc.Qualifier)

	if len(candidates) == 0 {
		if desc.Required {
			return reflect.Value{}, nil, newUnsatisfiedDependencyError(requestingBeanName, desc.ParameterName,
				newNotFoundError("", desc.DeclaredType.String()))
		}
		return reflect.Zero(desc.DeclaredType), nil, nil
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		var err error
		chosen, err = c.disambiguate(candidates, desc.DeclaredType)
		if err != nil {
			if pn := desc.ParameterName; pn != "" {
				for _, name := range candidates {
					if name == pn {
						chosen = name
						err = nil
						break
					}
				}
			}
			if err != nil {
				return reflect.Value{}, nil, newUnsatisfiedDependencyError(requestingBeanName, desc.ParameterName, err)
			}
		}
	}

	val, err := c.getBean(chosen, nil, nil, lc)
	if err != nil {
		return reflect.Value{}, nil, newUnsatisfiedDependencyError(requestingBeanName, desc.ParameterName, err)
	}
	desc.shortcutName = chosen
	return reflect.ValueOf(val), []string{chosen}, nil
}

// disambiguate picks among multiple candidates of the same type: a single
// primary-flagged candidate first, then the lowest Priority() value among
// already-instantiated singletons implementing PriorityOrdered, then (by
// the caller) a parameter-name match; otherwise NotUnique (spec.md §4.5
// step 5).
func (c *Container) disambiguate(candidates []string, t reflect.Type) (string, error) {
	var primary []string
	for _, name := range candidates {
		if def, err := c.getMergedDefinition(name); err == nil && def.Primary {
			primary = append(primary, name)
		}
	}
	if len(primary) == 1 {
		return primary[0], nil
	}

	best := ""
	bestPriority := 0
	found := false
	for _, name := range candidates {
		if obj, ok := c.registry.getSingleton(name, false); ok {
			if po, ok := obj.(PriorityOrdered); ok {
				if !found || po.Priority() < bestPriority {
					best, bestPriority, found = name, po.Priority(), true
				}
			}
		}
	}
	if found {
		return best, nil
	}

	return "", newNotUniqueError(t.String(), candidates)
}

func (c *Container) filterByQualifier(candidates []string, qualifier string) []string {
	if qualifier == "" {
		return candidates
	}
	var out []string
	for _, name := range candidates {
		if defaultQualifierResolver(c, name, qualifier) {
			out = append(out, name)
		}
	}
	return out
}

// candidateNamesAssignableTo enumerates every registered bean name whose
// resolved type is assignable to t, deterministically ordered.
func (c *Container) candidateNamesAssignableTo(t reflect.Type) []string {
	names := c.GetBeanNamesForType(t)
	sort.Strings(names)
	return names
}

type containerKind int

const (
	containerNone containerKind = iota
	containerSlice
	containerArray
	containerMap
)

// containerElementType reports whether t is a container of a component
// type this package resolves collectively (spec.md §4.5 step 2: array,
// slice, or string-keyed map).
func containerElementType(t reflect.Type) (reflect.Type, bool, containerKind) {
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem(), true, containerSlice
	case reflect.Array:
		return t.Elem(), true, containerArray
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return t.Elem(), true, containerMap
		}
	}
	return nil, false, containerNone
}

func (c *Container) resolveContainerDependency(desc *DependencyDescriptor, elemType reflect.Type, kind containerKind, requestingBeanName string, lc *lookupContext) (reflect.Value, []string, error) {
	candidates := c.candidateNamesAssignableTo(elemType)
	candidates = c.filterByQualifier(candidates, desc.Qualifier)

	if len(candidates) == 0 {
		if desc.FallbackEmptyContainer || !desc.Required {
			return reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0).Convert(desc.DeclaredType), nil, nil
		}
		return reflect.Value{}, nil, newUnsatisfiedDependencyError(requestingBeanName, desc.ParameterName,
			newNotFoundError("", elemType.String()))
	}

	var chosenNames []string
	switch kind {
	case containerMap:
		m := reflect.MakeMapWithSize(desc.DeclaredType, len(candidates))
		for _, name := range candidates {
			val, err := c.getBean(name, nil, nil, lc)
			if err != nil {
				return reflect.Value{}, nil, newUnsatisfiedDependencyError(requestingBeanName, desc.ParameterName, err)
			}
			m.SetMapIndex(reflect.ValueOf(name), reflect.ValueOf(val))
			chosenNames = append(chosenNames, name)
		}
		return m, chosenNames, nil
	default:
		slice := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(candidates))
		for _, name := range candidates {
			val, err := c.getBean(name, nil, nil, lc)
			if err != nil {
				return reflect.Value{}, nil, newUnsatisfiedDependencyError(requestingBeanName, desc.ParameterName, err)
			}
			slice = reflect.Append(slice, reflect.ValueOf(val))
			chosenNames = append(chosenNames, name)
		}
		if kind == containerArray {
			arr := reflect.New(desc.DeclaredType).Elem()
			reflect.Copy(arr, slice)
			return arr, chosenNames, nil
		}
		return slice.Convert(desc.DeclaredType), chosenNames, nil
	}
}
