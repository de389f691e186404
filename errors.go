package container

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefinitionError reports a malformed bean definition: an abstract
// definition resolved directly, a missing parent, a method override that
// names a method which does not exist, or an init/destroy method with the
// wrong arity.
type DefinitionError struct {
	BeanName string
	Reason   string
	cause    error
}

func (e *DefinitionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("bean %q: definition error: %s: %v", e.BeanName, e.Reason, e.cause)
	}
	return fmt.Sprintf("bean %q: definition error: %s", e.BeanName, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return e.cause }

func newDefinitionError(name, reason string, cause error) error {
	return errors.WithStack(&DefinitionError{BeanName: name, Reason: reason, cause: cause})
}

// NotFoundError reports that no bean matched a name or type lookup.
type NotFoundError struct {
	Name string
	Type string
}

func (e *NotFoundError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("no bean of type %q found (name %q)", e.Type, e.Name)
	}
	return fmt.Sprintf("no bean named %q found", e.Name)
}

func newNotFoundError(name, typ string) error {
	return errors.WithStack(&NotFoundError{Name: name, Type: typ})
}

// NotUniqueError reports that more than one candidate matched and none
// could be chosen as primary, highest-priority, or name-matched.
type NotUniqueError struct {
	Type       string
	Candidates []string
}

func (e *NotUniqueError) Error() string {
	return fmt.Sprintf("no unique bean of type %q: candidates %v", e.Type, e.Candidates)
}

func newNotUniqueError(typ string, candidates []string) error {
	return errors.WithStack(&NotUniqueError{Type: typ, Candidates: candidates})
}

// WrongTypeError reports that a found bean cannot be coerced to the
// requested type.
type WrongTypeError struct {
	Name     string
	Actual   string
	Expected string
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("bean %q has type %q, expected %q", e.Name, e.Actual, e.Expected)
}

func newWrongTypeError(name, actual, expected string) error {
	return errors.WithStack(&WrongTypeError{Name: name, Actual: actual, Expected: expected})
}

// CreationError wraps a failure raised during instantiation, property
// population, or initialization of a named bean.
type CreationError struct {
	BeanName string
	TraceID  string
	Stage    string
	cause    error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("error creating bean %q [trace=%s] during %s: %v", e.BeanName, e.TraceID, e.Stage, e.cause)
}

func (e *CreationError) Unwrap() error { return e.cause }

func newCreationError(name, traceID, stage string, cause error) error {
	return errors.WithStack(&CreationError{BeanName: name, TraceID: traceID, Stage: stage, cause: cause})
}

// CycleError reports a circular constructor-argument dependency, a
// disallowed singleton cycle, or a prototype re-entry.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %v", e.Chain)
}

func newCycleError(chain []string) error {
	return errors.WithStack(&CycleError{Chain: append([]string(nil), chain...)})
}

// UnsatisfiedDependencyError reports that a required injection point could
// not be resolved.
type UnsatisfiedDependencyError struct {
	BeanName       string
	InjectionPoint string
	cause          error
}

func (e *UnsatisfiedDependencyError) Error() string {
	return fmt.Sprintf("unsatisfied dependency in bean %q at %s: %v", e.BeanName, e.InjectionPoint, e.cause)
}

func (e *UnsatisfiedDependencyError) Unwrap() error { return e.cause }

func newUnsatisfiedDependencyError(beanName, injectionPoint string, cause error) error {
	return errors.WithStack(&UnsatisfiedDependencyError{BeanName: beanName, InjectionPoint: injectionPoint, cause: cause})
}

// PostProcessingError reports a failure raised by a post-processor during
// one of its phases.
type PostProcessingError struct {
	Phase    string
	BeanName string
	cause    error
}

func (e *PostProcessingError) Error() string {
	return fmt.Sprintf("post-processor failed in phase %q for bean %q: %v", e.Phase, e.BeanName, e.cause)
}

func (e *PostProcessingError) Unwrap() error { return e.cause }

func newPostProcessingError(phase, beanName string, cause error) error {
	return errors.WithStack(&PostProcessingError{Phase: phase, BeanName: beanName, cause: cause})
}
