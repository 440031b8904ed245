package rbind

import (
	"reflect"

	"github.com/google/uuid"
)

// convertKind tags which of the opcode's conversion strategies a step
// should apply at invocation time; the strategy itself is decided once,
// at plan-build time, from the policy sampled then (spec.md §9).
type convertKind uint8

const (
	convertNone convertKind = iota
	convertCast
	convertGuidFromString
	convertStringFromGuid
	convertNumeric
)

// convertPlan is the "ConvertViaFn" opcode of the design notes: a
// pre-decided conversion strategy plus its target type, built once per
// plan and applied on every invocation without re-deciding anything.
type convertPlan struct {
	kind   convertKind
	target reflect.Type
}

// buildConvertPlan decides, at build time, how values read as srcType
// should be converted into dstType under the given policy. forced
// indicates the conversion must run even if srcType == dstType (set by
// the caller when the fallback untyped reader was used).
func buildConvertPlan(policy Policy, srcType, dstType reflect.Type, forced bool) *convertPlan {
	if srcType == dstType && !forced {
		return nil
	}

	if policy == PolicyStrict {
		return &convertPlan{kind: convertCast, target: dstType}
	}

	switch {
	case srcType.Kind() == reflect.String && dstType == uuidType:
		return &convertPlan{kind: convertGuidFromString, target: dstType}
	case srcType == uuidType && dstType.Kind() == reflect.String:
		return &convertPlan{kind: convertStringFromGuid, target: dstType}
	}

	if isNumericKind(srcType.Kind()) && isNumericKind(dstType.Kind()) {
		return &convertPlan{kind: convertNumeric, target: dstType}
	}
	if srcType == timeType && dstType.Kind() == reflect.String {
		return &convertPlan{kind: convertCast, target: dstType}
	}
	if srcType.Kind() == reflect.String && dstType == timeType {
		return &convertPlan{kind: convertCast, target: dstType}
	}

	// No standard widening/narrowing conversion exists; fall back to a
	// direct cast, per §4.4.1 step 5's Automatic branch.
	return &convertPlan{kind: convertCast, target: dstType}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// apply executes the decided conversion strategy against v (of the
// original source type). Cast failures surface as ConversionError,
// matching §4.4.7: "any cast failure at invocation time is surfaced as
// the underlying runtime cast failure."
func (p *convertPlan) apply(v any) (any, error) {
	if p == nil {
		return v, nil
	}
	rv := reflect.ValueOf(v)

	switch p.kind {
	case convertGuidFromString:
		s, _ := v.(string)
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, newConversionError(rv.Type(), p.target, err)
		}
		return id, nil
	case convertStringFromGuid:
		id, ok := v.(uuid.UUID)
		if !ok {
			return nil, newConversionError(rv.Type(), p.target, errNotAGuid)
		}
		return id.String(), nil
	case convertNumeric, convertCast:
		return castValue(rv, p.target)
	}
	return v, nil
}

var errNotAGuid = errConversion("value is not a uuid.UUID")

type errConversion string

func (e errConversion) Error() string { return string(e) }

// castValue performs reflect.Value.Convert, recovering panics (e.g. an
// unconvertible pair of kinds) into a ConversionError instead of
// propagating a runtime panic out of a compiled accessor.
func castValue(rv reflect.Value, target reflect.Type) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newConversionError(rv.Type(), target, errConversion("panic during convert"))
		}
	}()
	if !rv.IsValid() {
		return reflect.Zero(target).Interface(), nil
	}
	if rv.Type() == target {
		return rv.Interface(), nil
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target).Interface(), nil
	}
	return nil, newConversionError(rv.Type(), target, errConversion("not convertible"))
}

// guidFromStringRuntime is used by the parameter-emission path (§4.4.3
// step 4), which applies the string->Guid coercion independently of the
// row-read convertPlan machinery.
func guidFromStringRuntime(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
