package rbind

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// NoMatchedFieldsError is returned when an emitter could not bind any
// attribute to any column (or, for an explicit field list, when one of
// the requested fields has no matching attribute on a statically typed
// record).
type NoMatchedFieldsError struct {
	Type  reflect.Type
	Field string // set when a specific requested field failed to match
}

func (e *NoMatchedFieldsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("rbind: no attribute on %s matches field %q", e.Type, e.Field)
	}
	return fmt.Sprintf("rbind: no attribute on %s matched any column", e.Type)
}

func newNoMatchedFieldsError(rt reflect.Type, field string) error {
	return errors.WithStack(&NoMatchedFieldsError{Type: rt, Field: field})
}

// MappingExistsError is returned by HandlerRegistry.Register/RegisterAttr
// when the exact key already carries a handler and force was not set.
type MappingExistsError struct {
	Type      reflect.Type
	Attribute string // empty for a type-level handler
}

func (e *MappingExistsError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("rbind: handler already registered for %s", e.Type)
	}
	return fmt.Sprintf("rbind: handler already registered for %s.%s", e.Type, e.Attribute)
}

func newMappingExistsError(rt reflect.Type, attr string) error {
	return errors.WithStack(&MappingExistsError{Type: rt, Attribute: attr})
}

// MetadataError signals an unrecoverable type-introspection failure:
// duplicate mapped column names on one record type, an unreadable
// field, or a reader-accessor synthesis failure.
type MetadataError struct {
	Type   reflect.Type
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("rbind: metadata error on %s: %s", e.Type, e.Reason)
}

func newMetadataError(rt reflect.Type, reason string) error {
	return errors.WithStack(&MetadataError{Type: rt, Reason: reason})
}

// ConversionError wraps a runtime cast or conversion failure surfaced
// while invoking a compiled accessor. The emitter never pre-checks
// conversion feasibility beyond method existence; failures at
// invocation time are reported through this type.
type ConversionError struct {
	From, To reflect.Type
	cause    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("rbind: cannot convert %s to %s: %v", e.From, e.To, e.cause)
}

func (e *ConversionError) Unwrap() error { return e.cause }

func newConversionError(from, to reflect.Type, cause error) error {
	return errors.WithStack(&ConversionError{From: from, To: to, cause: cause})
}
