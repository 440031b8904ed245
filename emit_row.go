package rbind

import (
	"reflect"
	"strings"
)

// RowAccessor is a compiled Row->Record accessor: it reads one row off
// cursor and returns a populated T. Built once per (T, cursor shape)
// and safe to invoke repeatedly with no further reflection beyond the
// reflect.Value plumbing needed to assign into T's fields.
type RowAccessor[T any] func(Cursor) (T, error)

// rowReadKind tags how a column's value is obtained.
type rowReadKind uint8

const (
	rowReadTyped rowReadKind = iota
	rowReadFallback
)

// rowStep is the per-column opcode of a Row->Record plan: read, guard,
// convert, (optionally) wrap-nullable, assign. It is built once and
// walked by execute on every invocation (spec.md §9's "ReadIntAt",
// "IsNullCheck", "ConvertViaFn", "WrapNullable", "AssignAttr" family,
// collapsed into one record per column since Go has no expression-tree
// JIT to target).
type rowStep struct {
	ordinal        int
	attrPath       []int
	kind           rowReadKind
	getter         reflect.Value
	colNullable    bool
	convert        *convertPlan
	handler        Handler
	attr           *AttributeInfo
	nullKind       NullKind
	nullValueField int
	nullValidField int
	underlying     reflect.Type
	fieldType      reflect.Type
}

type rowPlan struct {
	rt    reflect.Type
	steps []rowStep
}

func (p *rowPlan) execute(cursor Cursor, dst reflect.Value) error {
	for i := range p.steps {
		st := &p.steps[i]
		field := fieldByPathAlloc(dst, st.attrPath)

		if st.colNullable && cursor.IsNull(st.ordinal) {
			field.Set(reflect.Zero(st.fieldType))
			continue
		}

		var raw any
		var err error
		if st.kind == rowReadTyped {
			raw, err = callTypedGetter(st.getter, st.ordinal)
		} else {
			raw, err = cursor.Value(st.ordinal)
		}
		if err != nil {
			return err
		}

		var converted any
		if st.handler != nil {
			converted, err = st.handler.TransformIn(raw, st.attr)
		} else {
			converted, err = st.convert.apply(raw)
		}
		if err != nil {
			return err
		}

		switch st.nullKind {
		case NullKindPointer:
			ptr := reflect.New(st.underlying)
			assignInto(ptr.Elem(), converted)
			field.Set(ptr)
		case NullKindStruct:
			wrapper := reflect.New(field.Type()).Elem()
			assignInto(wrapper.Field(st.nullValueField), converted)
			wrapper.Field(st.nullValidField).SetBool(true)
			field.Set(wrapper)
		default:
			assignInto(field, converted)
		}
	}
	return nil
}

func assignInto(field reflect.Value, v any) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		field.Set(reflect.Zero(field.Type()))
		return
	}
	if rv.Type() == field.Type() {
		field.Set(rv)
		return
	}
	if rv.Type().ConvertibleTo(field.Type()) {
		field.Set(rv.Convert(field.Type()))
		return
	}
	field.Set(reflect.Zero(field.Type()))
}

// CompileRowToRecord synthesizes a Row->Record accessor for T against
// cursor's current schema and the table's known nullability (dbFields).
// cursor is consulted only for schema discovery and typed-accessor
// probing at build time (spec.md §4.4.1); it is not retained.
func CompileRowToRecord[T any](cursor Cursor, dbFields []DbField) (RowAccessor[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return nil, newMetadataError(rt, "T must be a struct")
	}

	info, err := getRecordTypeInfo(rt)
	if err != nil {
		return nil, err
	}

	readerFields := snapshotReaderFields(cursor)
	shape := fingerprintReaderFields(readerFields)
	if len(dbFields) > 0 {
		tokens := make([]string, len(dbFields))
		for i, f := range dbFields {
			tokens[i] = f.lowerName()
			if f.Nullable {
				tokens[i] += ":null"
			}
		}
		shape ^= fingerprintDbFields(nil, tokens...)
	}
	policy := CurrentPolicy()
	cursorVal := reflect.ValueOf(cursor)

	cached, err := globalAccessorCache.getOrBuild(cacheKey{rt: rt, shape: shape ^ uint64(policy)}, func() (any, error) {
		return buildRowPlan(rt, info, cursorVal, readerFields, dbFields, policy)
	})
	if err != nil {
		return nil, err
	}
	plan := cached.(*rowPlan)

	return func(c Cursor) (T, error) {
		var out T
		dst := reflect.ValueOf(&out).Elem()
		if err := plan.execute(c, dst); err != nil {
			return out, err
		}
		return out, nil
	}, nil
}

func buildRowPlan(rt reflect.Type, info *RecordTypeInfo, cursorVal reflect.Value, readerFields []ReaderFieldDef, dbFields []DbField, policy Policy) (*rowPlan, error) {
	dbByName := make(map[string]DbField, len(dbFields))
	for _, f := range dbFields {
		dbByName[f.lowerName()] = f
	}

	plan := &rowPlan{rt: rt}
	matched := 0
	for _, rf := range readerFields {
		attr, ok := info.ByMappedName(rf.Name)
		if !ok || !attr.Writable {
			continue
		}
		matched++

		nullable := true
		if dbf, ok := dbByName[strings.ToLower(rf.Name)]; ok {
			nullable = dbf.Nullable
		}

		step, err := buildRowStep(rt, cursorVal, rf, attr, nullable, policy)
		if err != nil {
			return nil, err
		}
		plan.steps = append(plan.steps, step)
	}
	if matched == 0 {
		return nil, newNoMatchedFieldsError(rt, "")
	}
	return plan, nil
}

func buildRowStep(rt reflect.Type, cursorVal reflect.Value, rf ReaderFieldDef, attr *AttributeInfo, colNullable bool, policy Policy) (rowStep, error) {
	step := rowStep{
		ordinal:     rf.Ordinal,
		attrPath:    attr.FieldIndex,
		colNullable: colNullable,
		fieldType:   attr.Type,
		underlying:  attr.UnderlyingType,
		handler:     resolveHandler(rt, attr),
		attr:        attr,
	}

	srcType := rf.SourceType
	if srcType == nil {
		srcType = objectType
	}

	convertType := srcType
	forced := false

	if getter, ok := findTypedGetter(cursorVal, typedAccessorName(srcType), srcType); ok {
		step.kind = rowReadTyped
		step.getter = getter
	} else if policy == PolicyStrict && attr.UnderlyingType.Kind() != reflect.Float32 {
		if getter, ok := findTypedGetter(cursorVal, typedAccessorName(attr.UnderlyingType), attr.UnderlyingType); ok {
			step.kind = rowReadTyped
			step.getter = getter
			convertType = attr.UnderlyingType
		} else {
			step.kind = rowReadFallback
			convertType = objectType
			forced = true
		}
	} else {
		step.kind = rowReadFallback
		convertType = objectType
		forced = true
	}

	step.convert = buildConvertPlan(policy, convertType, attr.UnderlyingType, forced)
	step.nullKind = attr.NullKind
	step.nullValueField = attr.NullValueField
	step.nullValidField = attr.NullValidField
	return step, nil
}

// MapAccessor is a compiled Row->Dynamic-Dictionary accessor.
type MapAccessor func(Cursor) (map[string]any, error)

type mapStep struct {
	ordinal int
	name    string
	kind    rowReadKind
	getter  reflect.Value
}

type mapPlan struct {
	steps []mapStep
}

func (p *mapPlan) execute(cursor Cursor) (map[string]any, error) {
	out := make(map[string]any, len(p.steps))
	for i := range p.steps {
		st := &p.steps[i]

		if cursor.IsNull(st.ordinal) {
			// Both the value-type ("IsNull ? null : box(read)") and
			// reference-type ("IsNull ? default(T) : read") branches of
			// spec.md §4.4.2 collapse to the same observable result
			// under Go's `any`: a nil map value.
			out[st.name] = nil
			continue
		}

		var v any
		var err error
		if st.kind == rowReadTyped {
			v, err = callTypedGetter(st.getter, st.ordinal)
		} else {
			v, err = cursor.Value(st.ordinal)
		}
		if err != nil {
			return nil, err
		}
		out[st.name] = v
	}
	return out, nil
}

// CompileRowToMap synthesizes a Row->Dynamic-Dictionary accessor. Unlike
// CompileRowToRecord, no record type is known statically: every column
// becomes a map key, with its original (non-lowercased) casing
// preserved (spec.md §4.4.2).
func CompileRowToMap(cursor Cursor) (MapAccessor, error) {
	readerFields := snapshotReaderFields(cursor)
	if len(readerFields) == 0 {
		return nil, newNoMatchedFieldsError(nil, "")
	}

	shape := fingerprintReaderFields(readerFields)
	cursorVal := reflect.ValueOf(cursor)

	cached, err := globalAccessorCache.getOrBuild(cacheKey{rt: nil, shape: shape}, func() (any, error) {
		return buildMapPlan(cursorVal, readerFields), nil
	})
	if err != nil {
		return nil, err
	}
	plan := cached.(*mapPlan)

	return func(c Cursor) (map[string]any, error) {
		return plan.execute(c)
	}, nil
}

func buildMapPlan(cursorVal reflect.Value, readerFields []ReaderFieldDef) *mapPlan {
	plan := &mapPlan{}
	for _, rf := range readerFields {
		srcType := rf.SourceType
		if srcType == nil {
			srcType = objectType
		}

		st := mapStep{
			ordinal: rf.Ordinal,
			name:    rf.Name,
		}
		if getter, ok := findTypedGetter(cursorVal, typedAccessorName(srcType), srcType); ok {
			st.kind = rowReadTyped
			st.getter = getter
		} else {
			st.kind = rowReadFallback
		}
		plan.steps = append(plan.steps, st)
	}
	return plan
}
