package rbind

import (
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderParams struct {
	OrderId int64   `col:"OrderId"`
	Note    *string `col:"Note"`
	Guid    string  `col:"Guid"`
}

func TestCompileRecordToParamsBasic(t *testing.T) {
	note := "hello"
	rec := orderParams{OrderId: 42, Note: &note}

	accessor, err := CompileRecordToParams[orderParams]([]DbField{
		{UnquotedName: "OrderId"},
		{UnquotedName: "Note"},
	})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(rec, cmd))

	params := cmd.Parameters().(*FakeParameterCollection).All()
	require.Len(t, params, 2)

	p0 := params[0].(*FakeParameter)
	assert.Equal(t, "OrderId", p0.Name())
	assert.Equal(t, int64(42), p0.Value())
	assert.Equal(t, DirectionInput, p0.Direction())

	p1 := params[1].(*FakeParameter)
	assert.Equal(t, "Note", p1.Name())
	assert.Equal(t, "hello", p1.Value())
}

func TestCompileRecordToParamsNullableSubstitutesDBNull(t *testing.T) {
	rec := orderParams{OrderId: 1, Note: nil}

	accessor, err := CompileRecordToParams[orderParams]([]DbField{{UnquotedName: "Note"}})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(rec, cmd))

	p := cmd.Parameters().(*FakeParameterCollection).All()[0].(*FakeParameter)
	assert.Equal(t, DBNull, p.Value())
}

func TestCompileRecordToParamsGuidFromStringUnderAutomatic(t *testing.T) {
	prev := CurrentPolicy()
	defer SetPolicy(prev)
	SetPolicy(PolicyAutomatic)

	rec := orderParams{Guid: "00000000-0000-0000-0000-000000000001"}
	accessor, err := CompileRecordToParams[orderParams]([]DbField{
		{UnquotedName: "Guid", ValueType: uuidType},
	})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(rec, cmd))

	p := cmd.Parameters().(*FakeParameterCollection).All()[0].(*FakeParameter)
	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-000000000001"), p.Value())
	// DbType resolution's "attribute type wins" rule (spec.md §4.4.3)
	// resolves against the attribute's underlying type (string) here,
	// not the column's declared Guid type.
	assert.Equal(t, DbTypeString, p.DbType())
}

func TestCompileRecordToParamsImageVendorTypeSkipsSize(t *testing.T) {
	type blobRecord struct {
		Photo    []byte `col:"Photo"`
		Document []byte `col:"Document"`
	}
	size := 8000
	accessor, err := CompileRecordToParams[blobRecord]([]DbField{
		{UnquotedName: "Photo", VendorType: "image", Size: &size},
		{UnquotedName: "Document", VendorType: "varbinary", Size: &size},
	})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(blobRecord{Photo: []byte("x"), Document: []byte("y")}, cmd))

	params := cmd.Parameters().(*FakeParameterCollection).All()
	assert.Equal(t, 0, params[0].(*FakeParameter).Size())
	assert.Equal(t, 8000, params[1].(*FakeParameter).Size())
}

type batchRecord struct {
	A  string `col:"A"`
	B  string `col:"B"`
	Id int64  `col:"Id"`
}

func TestCompileBatchToParamsOrdersInputSlotsBeforeOutputSlots(t *testing.T) {
	accessor, err := CompileBatchToParams[batchRecord](
		[]DbField{{UnquotedName: "A"}, {UnquotedName: "B"}},
		[]DbField{{UnquotedName: "Id"}},
		3,
	)
	require.NoError(t, err)

	cmd := &FakeCommand{}
	recs := []batchRecord{{A: "a0", B: "b0"}, {A: "a1", B: "b1"}, {A: "a2", B: "b2"}}
	require.NoError(t, accessor(recs, cmd))

	params := cmd.Parameters().(*FakeParameterCollection).All()
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.(*FakeParameter).Name()
	}
	assert.Equal(t, []string{"A", "B", "A_1", "B_1", "A_2", "B_2", "Id", "Id_1", "Id_2"}, names)

	for _, p := range params {
		fp := p.(*FakeParameter)
		if fp.Name() == "Id" || fp.Name() == "Id_1" || fp.Name() == "Id_2" {
			assert.Equal(t, DirectionOutput, fp.Direction())
			assert.Nil(t, fp.Value())
		}
	}
}

func TestCompileBatchToParamsRejectsZeroBatchSize(t *testing.T) {
	_, err := CompileBatchToParams[batchRecord](nil, nil, 0)
	require.Error(t, err)
}

type handlerParamRow struct {
	Code string `col:"Code"`
}

func TestCompileRecordToParamsUsesTypeLevelHandler(t *testing.T) {
	rt := reflect.TypeOf(handlerParamRow{})
	h := HandlerFuncs{
		Out: func(v any, a *AttributeInfo) (any, error) {
			s, _ := v.(string)
			return strings.ToUpper(s), nil
		},
	}
	require.NoError(t, Register(rt, h, false))
	t.Cleanup(func() { Remove(rt) })

	accessor, err := CompileRecordToParams[handlerParamRow]([]DbField{{UnquotedName: "Code"}})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(handlerParamRow{Code: "abc"}, cmd))

	p := cmd.Parameters().(*FakeParameterCollection).All()[0].(*FakeParameter)
	assert.Equal(t, "ABC", p.Value())
}

func TestCompileRecordToParamsDynamicMap(t *testing.T) {
	accessor, err := CompileRecordToParams[map[string]any]([]DbField{{UnquotedName: "Name"}})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(map[string]any{"Name": "ada"}, cmd))

	p := cmd.Parameters().(*FakeParameterCollection).All()[0].(*FakeParameter)
	assert.Equal(t, "ada", p.Value())
}

func TestCompileRecordToParamsDynamicMapNilSubstitutesDBNull(t *testing.T) {
	accessor, err := CompileRecordToParams[map[string]any]([]DbField{{UnquotedName: "Missing"}})
	require.NoError(t, err)

	cmd := &FakeCommand{}
	require.NoError(t, accessor(map[string]any{}, cmd))

	p := cmd.Parameters().(*FakeParameterCollection).All()[0].(*FakeParameter)
	assert.Equal(t, DBNull, p.Value())
}
