package rbind

import (
	"reflect"
	"strconv"
)

// ParamWriter reads a previously-executed command's output parameter
// back into a record attribute (spec.md §4.4.5). record must be a
// non-nil pointer so the target attribute is addressable.
type ParamWriter func(record any, cmd Command) error

// CompileParamWriter builds a writer that reads the parameter named
// field.UnquotedName (or field.UnquotedName + "_" + index when index >
// 0) from cmd's parameter collection, casts its value to attr's
// underlying type, and assigns it into attr on record. Used to
// propagate identity columns and other output parameters back after
// execution.
func CompileParamWriter(field DbField, index int, attr AttributeInfo) (ParamWriter, error) {
	name := field.UnquotedName
	if index > 0 {
		name = name + "_" + strconv.Itoa(index)
	}
	path := attr.FieldIndex
	target := attr.UnderlyingType
	nullKind, valueField, validField := attr.NullKind, attr.NullValueField, attr.NullValidField

	return func(record any, cmd Command) error {
		rv := reflect.ValueOf(record)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return newMetadataError(reflect.TypeOf(record), "record must be a non-nil pointer")
		}
		param, ok := cmd.Parameters().ByName(name)
		if !ok {
			return newNoMatchedFieldsError(rv.Elem().Type(), name)
		}
		dst := fieldByPathAlloc(rv.Elem(), path)
		return writeCastedValue(dst, param.Value(), target, nullKind, valueField, validField)
	}, nil
}

// ValueWriter is a general-purpose (record, value) -> error setter used
// outside the command flow (spec.md §4.4.6).
type ValueWriter func(record any, value any) error

// CompileValueWriter builds a writer that casts value to field's
// declared type (falling back to attr's underlying type when the field
// carries none) and assigns it into attr on record.
func CompileValueWriter(field DbField, attr AttributeInfo) (ValueWriter, error) {
	path := attr.FieldIndex
	target := field.ValueType
	if target == nil {
		target = attr.UnderlyingType
	}
	nullKind, valueField, validField := attr.NullKind, attr.NullValueField, attr.NullValidField

	return func(record any, value any) error {
		rv := reflect.ValueOf(record)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return newMetadataError(reflect.TypeOf(record), "record must be a non-nil pointer")
		}
		dst := fieldByPathAlloc(rv.Elem(), path)
		return writeCastedValue(dst, value, target, nullKind, valueField, validField)
	}, nil
}

// writeCastedValue is the shared cast-then-assign tail of both writers:
// a nil or DBNull source clears the destination to its empty form;
// otherwise the value is cast to target and, for a nullable-of-value-type
// attribute, wrapped in either a fresh pointer or a populated Null*
// struct before assignment, matching the destination's own shape.
func writeCastedValue(dst reflect.Value, val any, target reflect.Type, nullKind NullKind, valueField, validField int) error {
	if val == nil || val == any(DBNull) {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	casted, err := castValue(reflect.ValueOf(val), target)
	if err != nil {
		return err
	}

	switch nullKind {
	case NullKindPointer:
		ptr := reflect.New(dst.Type().Elem())
		assignInto(ptr.Elem(), casted)
		dst.Set(ptr)
	case NullKindStruct:
		wrapper := reflect.New(dst.Type()).Elem()
		assignInto(wrapper.Field(valueField), casted)
		wrapper.Field(validField).SetBool(true)
		dst.Set(wrapper)
	default:
		assignInto(dst, casted)
	}
	return nil
}
