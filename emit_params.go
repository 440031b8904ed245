package rbind

import (
	"reflect"
	"strconv"
	"strings"
)

// DBNull is the sentinel written into a Parameter's value when the
// source attribute (or dynamic lookup) resolved to Go's nil, so a
// Parameter implementation can distinguish "explicitly NULL" from
// "never set" the way ADO.NET's DBNull.Value does.
type dbNullType struct{}

var DBNull = dbNullType{}

// ParamAccessor is a compiled Record->Command-parameters accessor.
type ParamAccessor[T any] func(record T, cmd Command) error

// BatchParamAccessor is a compiled Record[]->Command-parameters
// accessor. It always processes exactly the batch size it was compiled
// for; a shorter records slice is a caller error, not defended against.
type BatchParamAccessor[T any] func(records []T, cmd Command) error

// paramStep is the per-field opcode of a Record->Params plan.
type paramStep struct {
	baseName       string
	suffix         string // "" for slot 0, "_"+i otherwise
	attrPath       []int
	dynamic        bool
	guidFromString bool
	nullableGuard  bool
	handler        Handler
	attr           *AttributeInfo
	dbType         DbType
	hasDbType      bool
	size           *int
	skipSize       bool // image vendor type quirk, §4.4.3 step 9
	precision      *int
	scale          *int
	direction      Direction
}

func (s *paramStep) paramName() string { return s.baseName + s.suffix }

func (s *paramStep) apply(recVal reflect.Value, cmd Command) error {
	param := cmd.CreateParameter()
	param.SetName(s.paramName())

	if s.direction != DirectionOutput {
		v, err := s.resolveValue(recVal)
		if err != nil {
			return err
		}
		if v == nil && s.nullableGuard {
			v = DBNull
		}
		param.SetValue(v)
	}

	if s.hasDbType {
		param.SetDbType(s.dbType)
	}
	param.SetDirection(s.direction)

	if s.size != nil && !s.skipSize {
		param.SetSize(*s.size)
	}
	if s.precision != nil {
		param.SetPrecision(*s.precision)
	}
	if s.scale != nil {
		param.SetScale(*s.scale)
	}

	cmd.Parameters().Add(param)
	return nil
}

func (s *paramStep) resolveValue(recVal reflect.Value) (any, error) {
	var raw any

	if s.dynamic {
		raw = lookupDynamic(recVal, s.baseName)
	} else {
		raw = readAttrValue(recVal, s.attrPath)
	}

	if s.handler != nil {
		return s.handler.TransformOut(raw, s.attr)
	}

	if s.guidFromString && raw != nil {
		str, ok := raw.(string)
		if !ok {
			return nil, newConversionError(reflect.TypeOf(raw), uuidType, errConversion("expected string for guid coercion"))
		}
		id, err := guidFromStringRuntime(str)
		if err != nil {
			return nil, newConversionError(reflect.TypeOf(raw), uuidType, err)
		}
		return id, nil
	}
	return raw, nil
}

func lookupDynamic(recVal reflect.Value, name string) any {
	if recVal.Kind() != reflect.Map {
		return nil
	}
	if v := recVal.MapIndex(reflect.ValueOf(name)); v.IsValid() {
		return v.Interface()
	}
	lower := strings.ToLower(name)
	iter := recVal.MapRange()
	for iter.Next() {
		if strings.ToLower(iter.Key().String()) == lower {
			return iter.Value().Interface()
		}
	}
	return nil
}

func readAttrValue(recVal reflect.Value, path []int) any {
	v := recVal
	for _, i := range path {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		return v.Elem().Interface()
	}
	return v.Interface()
}

type paramPlan struct {
	rt    reflect.Type
	steps []paramStep
}

func (p *paramPlan) execute(recVal reflect.Value, cmd Command) error {
	cmd.Parameters().Clear()
	for i := range p.steps {
		if err := p.steps[i].apply(recVal, cmd); err != nil {
			return err
		}
	}
	return nil
}

// CompileRecordToParams synthesizes a Record->Command-parameters
// accessor for T against dbFields (spec.md §4.4.3). If T's underlying
// kind is a map, it is treated as a dynamic record: attributes are
// looked up by name at invocation time instead of bound to a
// compile-time AttributeInfo.
func CompileRecordToParams[T any](dbFields []DbField) (ParamAccessor[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	policy := CurrentPolicy()

	shape := fingerprintDbFields(dbFields, "single", rt.String(), strconv.Itoa(int(policy)))
	cached, err := globalAccessorCache.getOrBuild(cacheKey{rt: rt, shape: shape}, func() (any, error) {
		return buildParamPlan(rt, dbFields, "", policy)
	})
	if err != nil {
		return nil, err
	}
	plan := cached.(*paramPlan)

	return func(rec T, cmd Command) error {
		return plan.execute(reflect.ValueOf(rec), cmd)
	}, nil
}

func buildParamPlan(rt reflect.Type, dbFields []DbField, suffix string, policy Policy) (*paramPlan, error) {
	dynamic := rt.Kind() == reflect.Map

	var info *RecordTypeInfo
	if !dynamic {
		var err error
		info, err = getRecordTypeInfo(rt)
		if err != nil {
			return nil, err
		}
	}

	plan := &paramPlan{rt: rt}
	for _, f := range dbFields {
		step, err := buildParamStep(rt, info, dynamic, f, suffix, DirectionInput, policy)
		if err != nil {
			return nil, err
		}
		plan.steps = append(plan.steps, step)
	}
	return plan, nil
}

func buildParamStep(rt reflect.Type, info *RecordTypeInfo, dynamic bool, f DbField, suffix string, direction Direction, policy Policy) (paramStep, error) {
	step := paramStep{
		baseName:  f.UnquotedName,
		suffix:    suffix,
		size:      f.Size,
		skipSize:  f.isImageVendorType(),
		precision: f.Precision,
		scale:     f.Scale,
		direction: direction,
	}

	var attr *AttributeInfo
	if dynamic {
		step.dynamic = true
		step.nullableGuard = true
		// No canonical AttributeInfo exists for a dynamic lookup; only a
		// type-level handler on rt (not an attribute-level one) can apply.
		attr = &AttributeInfo{Name: f.UnquotedName, MappedName: f.UnquotedName}
		step.handler = resolveHandler(rt, nil)
	} else {
		var ok bool
		attr, ok = info.ByMappedName(f.UnquotedName)
		if !ok {
			return paramStep{}, newNoMatchedFieldsError(rt, f.UnquotedName)
		}
		step.attrPath = attr.FieldIndex
		step.nullableGuard = attr.Nullable
		step.handler = resolveHandler(rt, attr)
	}
	step.attr = attr

	effective := f.ValueType
	if !dynamic {
		if policy == PolicyAutomatic && attr.UnderlyingType.Kind() == reflect.String && f.ValueType == uuidType {
			step.guidFromString = true
		}
		if policy == PolicyAutomatic && effective != nil && isKnownCoercion(attr.UnderlyingType, effective) {
			effective = attr.UnderlyingType
		} else if effective == nil {
			effective = attr.UnderlyingType
		}
	}

	if effective != nil {
		dt, ok := lookupTypeMapper(effective)
		if !ok {
			dt = resolveDbType(effective)
		}
		if dt != DbTypeInterval && dt != DbTypeUnknown {
			step.dbType = dt
			step.hasDbType = true
		}
	}

	return step, nil
}

func isKnownCoercion(a, b reflect.Type) bool {
	if a == nil || b == nil {
		return false
	}
	switch {
	case (a == timeType && b.Kind() == reflect.String) || (b == timeType && a.Kind() == reflect.String):
		return true
	case (a == uuidType && b.Kind() == reflect.String) || (b == uuidType && a.Kind() == reflect.String):
		return true
	}
	return isNumericKind(a.Kind()) && isNumericKind(b.Kind())
}

// CompileBatchToParams synthesizes a Record[]->Command-parameters
// accessor that clears the command's parameters once, then emits every
// input field for each of exactly batchSize slots, followed by every
// output field for each slot (A, B, A_1, B_1, ..., Id, Id_1, ...),
// applying the `_i` name-suffix rule for slots after the first
// (spec.md §4.4.4, §9).
func CompileBatchToParams[T any](inputFields, outputFields []DbField, batchSize int) (BatchParamAccessor[T], error) {
	if batchSize < 1 {
		return nil, newMetadataError(reflect.TypeOf((*T)(nil)).Elem(), "batch size must be >= 1")
	}
	rt := reflect.TypeOf((*T)(nil)).Elem()
	policy := CurrentPolicy()

	shape := fingerprintDbFields(inputFields, append([]string{"batch", batchSizeToken(batchSize), rt.String(), strconv.Itoa(int(policy))}, fieldNames(outputFields)...)...)
	cached, err := globalAccessorCache.getOrBuild(cacheKey{rt: rt, shape: shape}, func() (any, error) {
		return buildBatchPlan(rt, inputFields, outputFields, batchSize, policy)
	})
	if err != nil {
		return nil, err
	}
	plan := cached.(*batchPlan)

	return func(recs []T, cmd Command) error {
		return plan.execute(recs, cmd)
	}, nil
}

func fieldNames(fields []DbField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.UnquotedName
	}
	return out
}

// batchParamStep pairs a paramStep with the batch slot (record index) it
// reads from, since a flat, ordered step list no longer groups by slot.
type batchParamStep struct {
	paramStep
	slot int
}

type batchPlan struct {
	rt        reflect.Type
	batchSize int
	// steps is ordered as all input fields across every slot 0..B-1,
	// followed by all output fields across every slot 0..B-1 — the
	// concrete parameter ordering spec.md §8's boundary scenario 5
	// requires (A, B, A_1, B_1, A_2, B_2, Id, Id_1, Id_2), which groups
	// by field role across the whole batch rather than by slot.
	steps []batchParamStep
}

// execute applies every step in compiled order against the record at
// that step's slot index (recs, a []T passed in as any). recs shorter
// than the compiled batch size is a caller error.
func (p *batchPlan) execute(recs any, cmd Command) error {
	cmd.Parameters().Clear()
	rv := reflect.ValueOf(recs)
	for i := range p.steps {
		st := &p.steps[i]
		if err := st.apply(rv.Index(st.slot), cmd); err != nil {
			return err
		}
	}
	return nil
}

func buildBatchPlan(rt reflect.Type, inputFields, outputFields []DbField, batchSize int, policy Policy) (*batchPlan, error) {
	dynamic := rt.Kind() == reflect.Map

	var info *RecordTypeInfo
	if !dynamic {
		var err error
		info, err = getRecordTypeInfo(rt)
		if err != nil {
			return nil, err
		}
	}

	plan := &batchPlan{rt: rt, batchSize: batchSize}
	for i := 0; i < batchSize; i++ {
		suffix := batchSuffix(i)
		for _, f := range inputFields {
			st, err := buildParamStep(rt, info, dynamic, f, suffix, DirectionInput, policy)
			if err != nil {
				return nil, err
			}
			plan.steps = append(plan.steps, batchParamStep{paramStep: st, slot: i})
		}
	}
	for i := 0; i < batchSize; i++ {
		suffix := batchSuffix(i)
		for _, f := range outputFields {
			st, err := buildParamStep(rt, info, dynamic, f, suffix, DirectionOutput, policy)
			if err != nil {
				return nil, err
			}
			plan.steps = append(plan.steps, batchParamStep{paramStep: st, slot: i})
		}
	}
	return plan, nil
}

func batchSuffix(i int) string {
	if i == 0 {
		return ""
	}
	return "_" + strconv.Itoa(i)
}
