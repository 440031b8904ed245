package rbind

import (
	"reflect"
)

// snapshotReaderFields captures a cursor's schema once, at build time.
// Its result feeds both the shape fingerprint used for cache lookup and
// the per-column matching logic in buildRowPlan/buildMapPlan.
func snapshotReaderFields(cursor Cursor) []ReaderFieldDef {
	n := cursor.FieldCount()
	out := make([]ReaderFieldDef, n)
	for i := 0; i < n; i++ {
		out[i] = ReaderFieldDef{
			Ordinal:    i,
			Name:       cursor.Name(i),
			SourceType: cursor.FieldType(i),
			Nullable:   true, // refined against the DbField list by the caller
		}
	}
	return out
}

// typedAccessorName returns the "Get<Kind>" suffix used to discover a
// cursor's typed reader method by reflection, mirroring the source's
// runtime-discovered get<T>(ordinal) accessors. An empty string means
// no typed accessor convention exists for t.
func typedAccessorName(t reflect.Type) string {
	switch {
	case t == timeType:
		return "GetTime"
	case t == uuidType:
		return "GetGuid"
	case t == bytesType:
		return "GetBytes"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "GetBool"
	case reflect.Int8:
		return "GetInt8"
	case reflect.Int16:
		return "GetInt16"
	case reflect.Int32, reflect.Int:
		return "GetInt32"
	case reflect.Int64:
		return "GetInt64"
	case reflect.Uint8:
		return "GetUint8"
	case reflect.Uint16:
		return "GetUint16"
	case reflect.Uint32:
		return "GetUint32"
	case reflect.Uint64, reflect.Uint:
		return "GetUint64"
	case reflect.Float32:
		return "GetFloat32"
	case reflect.Float64:
		return "GetFloat64"
	case reflect.String:
		return "GetString"
	}
	return ""
}

// findTypedGetter looks for a "Get<Kind>(int) (T, error)" method on the
// concrete cursor value, whose result type is exactly expected. Presence
// is discovered by name, per spec.md §6.
func findTypedGetter(cursorVal reflect.Value, name string, expected reflect.Type) (reflect.Value, bool) {
	if name == "" || !cursorVal.IsValid() {
		return reflect.Value{}, false
	}
	m := cursorVal.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	mt := m.Type()
	if mt.NumIn() != 1 || mt.In(0).Kind() != reflect.Int {
		return reflect.Value{}, false
	}
	if mt.NumOut() != 2 || mt.Out(0) != expected {
		return reflect.Value{}, false
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if !mt.Out(1).Implements(errType) {
		return reflect.Value{}, false
	}
	return m, true
}

// callTypedGetter invokes a getter found by findTypedGetter for ordinal.
func callTypedGetter(getter reflect.Value, ordinal int) (any, error) {
	out := getter.Call([]reflect.Value{reflect.ValueOf(ordinal)})
	errVal := out[1]
	if !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	return out[0].Interface(), nil
}

// fieldByPathAlloc walks path from root, allocating nil embedded
// pointers so the final field is addressable and settable. Mirrors the
// teacher's fieldByPathAlloc in mapper.go, generalized to any record
// shape rbind compiles against.
func fieldByPathAlloc(root reflect.Value, path []int) reflect.Value {
	v := root
	for _, i := range path {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

var objectType = reflect.TypeOf((*any)(nil)).Elem()
