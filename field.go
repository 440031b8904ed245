package rbind

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DbType is the database parameter type enumeration a resolved Go type
// maps to. Values are deliberately coarse; a dialect layer built on top
// of rbind is free to translate these into vendor-specific codes.
type DbType int

const (
	DbTypeUnknown DbType = iota
	DbTypeBool
	DbTypeInt16
	DbTypeInt32
	DbTypeInt64
	DbTypeUint64
	DbTypeFloat32
	DbTypeFloat64
	DbTypeDecimal
	DbTypeString
	DbTypeBytes
	DbTypeDateTime
	DbTypeGuid
	// DbTypeInterval is the "fixed-interval" type (time.Duration). Per
	// §4.4.3 step 7, this type is deliberately never set on a parameter;
	// it exists so callers can recognize it and skip the assignment.
	DbTypeInterval
)

// DbField describes one column of a table as reported by the caller's
// field cache (out of scope for this package; supplied as plain data).
type DbField struct {
	UnquotedName string
	ValueType    reflect.Type
	Nullable     bool
	Size         *int
	Precision    *int
	Scale        *int
	VendorType   string
}

func (f DbField) lowerName() string { return strings.ToLower(f.UnquotedName) }

// isImageVendorType reports the case-insensitive "image" vendor type,
// for which §4.4.3 step 9 deliberately omits setting parameter.Size —
// a documented quirk, not a bug, compensating for a driver default that
// truncates binary payloads.
func (f DbField) isImageVendorType() bool {
	return strings.EqualFold(f.VendorType, "image")
}

// ReaderFieldDef describes one column as reported by a Cursor's schema
// at build time. Its lifetime is a single emitter invocation.
type ReaderFieldDef struct {
	Ordinal    int
	Name       string
	SourceType reflect.Type
	Nullable   bool
}

// TypeMapper lets a caller override DbType resolution for a specific Go
// type (e.g. a custom money type), consulted before the static resolver.
type TypeMapper func(reflect.Type) (DbType, bool)

var (
	typeMapperMu sync.RWMutex
	typeMappers  = map[reflect.Type]TypeMapper{}
)

// RegisterTypeMapper attaches a DbType override for exactly one Go type.
func RegisterTypeMapper(t reflect.Type, m TypeMapper) {
	typeMapperMu.Lock()
	defer typeMapperMu.Unlock()
	typeMappers[t] = m
}

func lookupTypeMapper(t reflect.Type) (DbType, bool) {
	typeMapperMu.RLock()
	m, ok := typeMappers[t]
	typeMapperMu.RUnlock()
	if !ok || m == nil {
		return DbTypeUnknown, false
	}
	return m(t)
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	bytesType    = reflect.TypeOf([]byte(nil))
)

// resolveDbType maps a runtime value type to a DbType. The mapping is
// deterministic and static; unknown types resolve to DbTypeUnknown,
// which a caller may override via RegisterTypeMapper, and otherwise the
// compiled accessor creates the parameter without an explicit DbType.
func resolveDbType(t reflect.Type) DbType {
	if dt, ok := lookupTypeMapper(t); ok {
		return dt
	}

	switch {
	case t == timeType:
		return DbTypeDateTime
	case t == durationType:
		return DbTypeInterval
	case t == uuidType:
		return DbTypeGuid
	case t == bytesType:
		return DbTypeBytes
	}

	switch t.Kind() {
	case reflect.Bool:
		return DbTypeBool
	case reflect.Int8, reflect.Int16, reflect.Uint8, reflect.Uint16:
		return DbTypeInt16
	case reflect.Int32, reflect.Int:
		return DbTypeInt32
	case reflect.Int64:
		return DbTypeInt64
	case reflect.Uint32, reflect.Uint64, reflect.Uint:
		return DbTypeUint64
	case reflect.Float32:
		return DbTypeFloat32
	case reflect.Float64:
		return DbTypeFloat64
	case reflect.String:
		return DbTypeString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return DbTypeBytes
		}
	}
	return DbTypeUnknown
}
