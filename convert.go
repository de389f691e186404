package container

import (
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// typeDifferenceWeight models spec.md §4.2.1's type-difference weight:
// an exact match costs nothing, a widening/convertible match accrues cost
// proportional to how far it strayed from an exact match, and an
// unassignable value costs weightUnassignable.
const (
	weightExactMatch     = 0
	weightWidenStep       = 4
	weightUnassignable    = 1 << 30
	rawArgsBiasDiscount   = 1024
)

// typeConverter converts raw declared values to a parameter/field's
// declared reflect.Type (spec.md §4 Type Conversion row).
type typeConverter struct{}

func newTypeConverter() *typeConverter { return &typeConverter{} }

// convert coerces value to target, returning the converted reflect.Value
// and the weight that conversion cost (weightUnassignable if impossible).
func (c *typeConverter) convert(value interface{}, target reflect.Type) (reflect.Value, int, error) {
	if value == nil {
		if isNilable(target) {
			return reflect.Zero(target), weightExactMatch, nil
		}
		return reflect.Value{}, weightUnassignable, errors.Errorf("cannot assign nil to non-nilable type %s", target)
	}

	v := reflect.ValueOf(value)

	if v.Type() == target {
		return v, weightExactMatch, nil
	}
	if v.Type().AssignableTo(target) {
		return v.Convert(target), weightExactMatch, nil
	}
	if v.Type().ConvertibleTo(target) && isScalarKind(v.Kind()) && isScalarKind(target.Kind()) {
		return v.Convert(target), weightWidenStep, nil
	}

	// String-to-scalar conversions, e.g. declared config values like "1".
	if v.Kind() == reflect.String {
		converted, err := convertStringTo(v.String(), target)
		if err == nil {
			return converted, weightWidenStep * 2, nil
		}
	}

	if target.Kind() == reflect.Interface && v.Type().Implements(target) {
		return v, weightWidenStep, nil
	}

	return reflect.Value{}, weightUnassignable, errors.Errorf("cannot convert value of type %s to %s", v.Type(), target)
}

// weigh reports only the weight a conversion would cost, without
// performing it; used by constructor resolution to score candidates
// without committing to a conversion.
func (c *typeConverter) weigh(value interface{}, target reflect.Type) int {
	_, w, err := c.convert(value, target)
	if err != nil {
		return weightUnassignable
	}
	return w
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func convertStringTo(s string, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(target), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(target), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.New(target).Elem()
		rv.SetInt(n)
		return rv, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.New(target).Elem()
		rv.SetUint(n)
		return rv, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.New(target).Elem()
		rv.SetFloat(f)
		return rv, nil
	default:
		return reflect.Value{}, errors.Errorf("unsupported string conversion target %s", target)
	}
}

func applyRawArgsBias(weight int) int {
	biased := weight - rawArgsBiasDiscount
	if biased < 0 {
		return 0
	}
	return biased
}
