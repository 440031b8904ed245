package rbind

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoMatchedFieldsError(t *testing.T) {
	rt := reflect.TypeOf(struct{ Name string }{})
	err := newNoMatchedFieldsError(rt, "unknown_col")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_col")

	var nmf *NoMatchedFieldsError
	require.ErrorAs(t, err, &nmf)
	assert.Equal(t, rt, nmf.Type)
}

func TestMappingExistsError(t *testing.T) {
	rt := reflect.TypeOf(0)
	err := newMappingExistsError(rt, "Field")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field")
}

func TestConversionErrorUnwraps(t *testing.T) {
	cause := errConversion("boom")
	err := newConversionError(reflect.TypeOf(""), reflect.TypeOf(0), cause)
	require.Error(t, err)

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cause, ce.Unwrap())
}
