package rbind

import (
	"database/sql"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `col:"city"`
	Zip  string `col:"zip"`
}

type person struct {
	ID      int64   `col:"id"`
	Name    string  `col:"full_name"`
	Age     *int    `col:"age"`
	Email   sql.NullString `col:"email"`
	Skip    string  `col:"-"`
	address `col:",inline"`
}

func TestBuildRecordTypeInfoFlattensInline(t *testing.T) {
	info, err := getRecordTypeInfo(reflect.TypeOf(person{}))
	require.NoError(t, err)

	_, ok := info.ByMappedName("Skip")
	assert.False(t, ok)

	nameAttr, ok := info.ByMappedName("full_name")
	require.True(t, ok)
	assert.Equal(t, "Name", nameAttr.Name)

	cityAttr, ok := info.ByMappedName("CITY")
	require.True(t, ok)
	assert.Equal(t, []int{5, 0}, cityAttr.FieldIndex)

	ageAttr, ok := info.ByMappedName("age")
	require.True(t, ok)
	assert.True(t, ageAttr.Nullable)
	assert.Equal(t, reflect.TypeOf(0), ageAttr.UnderlyingType)
	assert.Equal(t, NullKindPointer, ageAttr.NullKind)

	emailAttr, ok := info.ByMappedName("email")
	require.True(t, ok)
	assert.True(t, emailAttr.Nullable)
	assert.Equal(t, NullKindStruct, emailAttr.NullKind)
	assert.Equal(t, reflect.TypeOf(""), emailAttr.UnderlyingType)
}

func TestUnwrapNullableStructStyle(t *testing.T) {
	underlying, nullable, kind, valueField, validField := unwrapNullable(reflect.TypeOf(sql.NullInt64{}))
	require.True(t, nullable)
	assert.Equal(t, NullKindStruct, kind)
	assert.Equal(t, reflect.TypeOf(int64(0)), underlying)

	rt := reflect.TypeOf(sql.NullInt64{})
	assert.Equal(t, "Int64", rt.Field(valueField).Name)
	assert.Equal(t, "Valid", rt.Field(validField).Name)
}

func TestUnwrapNullablePointerStyle(t *testing.T) {
	underlying, nullable, kind, _, _ := unwrapNullable(reflect.TypeOf((*string)(nil)))
	assert.True(t, nullable)
	assert.Equal(t, NullKindPointer, kind)
	assert.Equal(t, reflect.TypeOf(""), underlying)
}

func TestUnwrapNullableNonNullable(t *testing.T) {
	underlying, nullable, kind, _, _ := unwrapNullable(reflect.TypeOf(""))
	assert.False(t, nullable)
	assert.Equal(t, NullKindNone, kind)
	assert.Equal(t, reflect.TypeOf(""), underlying)
}

type dup struct {
	A string `col:"x"`
	B string `col:"x"`
}

func TestBuildRecordTypeInfoDuplicateColumnFails(t *testing.T) {
	_, err := getRecordTypeInfo(reflect.TypeOf(dup{}))
	require.Error(t, err)

	var me *MetadataError
	require.ErrorAs(t, err, &me)
}

func TestGetRecordTypeInfoCaches(t *testing.T) {
	a, err := getRecordTypeInfo(reflect.TypeOf(person{}))
	require.NoError(t, err)
	b, err := getRecordTypeInfo(reflect.TypeOf(person{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCamelToSnake(t *testing.T) {
	assert.Equal(t, "id", camelToSnake("ID"))
	assert.Equal(t, "user_name", camelToSnake("UserName"))
	assert.Equal(t, "http_url", camelToSnake("HTTPUrl"))
}
