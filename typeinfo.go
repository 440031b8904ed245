package rbind

import (
	"reflect"
	"strings"
	"sync"
)

// NullKind distinguishes the two nullable-of-value-type representations
// unwrapNullable recognizes: a plain pointer, or a database/sql
// Null*-shaped struct (Valid bool + one value field).
type NullKind uint8

const (
	NullKindNone NullKind = iota
	NullKindPointer
	NullKindStruct
)

// AttributeInfo describes one mapped field of a record type.
type AttributeInfo struct {
	Name           string       // Go field name
	MappedName     string       // unquoted column name, original case
	Type           reflect.Type // declared field type
	UnderlyingType reflect.Type // value type with nullable-wrapping removed
	FieldIndex     []int        // path, supports embedded/inline fields
	Nullable       bool         // *T or sql.Null* wrapper
	NullKind       NullKind
	NullValueField int // field index of the value within a NullKindStruct wrapper
	NullValidField int // field index of Valid within a NullKindStruct wrapper
	Writable       bool
	Handler        Handler // attribute-level handler carried on the AttributeInfo itself; buildRecordTypeInfo leaves it nil. When set, it takes precedence over a registry handler for the same attribute (see resolveHandler in handler.go)
}

func (a *AttributeInfo) mappedNameLower() string { return strings.ToLower(a.MappedName) }

// RecordTypeInfo is canonical, cached metadata about a record type.
type RecordTypeInfo struct {
	Type       reflect.Type
	TableName  string
	Attributes []*AttributeInfo

	byMappedNameLower map[string]*AttributeInfo
}

// ByMappedName looks up an attribute by its mapped column name,
// case-insensitively, per the column-matching invariant in spec.md §3.
func (r *RecordTypeInfo) ByMappedName(name string) (*AttributeInfo, bool) {
	a, ok := r.byMappedNameLower[strings.ToLower(name)]
	return a, ok
}

var typeInfoCache sync.Map // reflect.Type -> *RecordTypeInfo

// getRecordTypeInfo returns memoized metadata for T, building it on
// first demand. Entries are immortal for the process.
func getRecordTypeInfo(t reflect.Type) (*RecordTypeInfo, error) {
	t = derefType(t)
	if v, ok := typeInfoCache.Load(t); ok {
		return v.(*RecordTypeInfo), nil
	}
	info, err := buildRecordTypeInfo(t)
	if err != nil {
		return nil, err
	}
	actual, _ := typeInfoCache.LoadOrStore(t, info)
	return actual.(*RecordTypeInfo), nil
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func buildRecordTypeInfo(t reflect.Type) (*RecordTypeInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, newMetadataError(t, "record type must be a struct")
	}

	info := &RecordTypeInfo{
		Type:              t,
		TableName:         camelToSnake(t.Name()),
		byMappedNameLower: make(map[string]*AttributeInfo),
	}

	var walk func(rt reflect.Type, base []int)
	walk = func(rt reflect.Type, base []int) {
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous {
				continue // unexported
			}

			tag := sf.Tag.Get("col")
			name, inline, omit := parseColTag(tag)
			if omit {
				continue
			}

			path := append(append([]int(nil), base...), i)
			ft := sf.Type

			if inline || (sf.Anonymous && tag == "") {
				et := derefType(ft)
				if et.Kind() == reflect.Struct && et != timeType && et != uuidType {
					walk(et, path)
					continue
				}
			}

			if name == "" {
				name = sf.Name
			}

			underlying, nullable, nullKind, valueField, validField := unwrapNullable(ft)
			attr := &AttributeInfo{
				Name:           sf.Name,
				MappedName:     name,
				Type:           ft,
				UnderlyingType: underlying,
				FieldIndex:     path,
				Nullable:       nullable,
				NullKind:       nullKind,
				NullValueField: valueField,
				NullValidField: validField,
				Writable:       true,
			}

			lower := attr.mappedNameLower()
			if _, dup := info.byMappedNameLower[lower]; dup {
				panic(newMetadataError(t, "duplicate mapped column name: "+attr.MappedName))
			}
			info.Attributes = append(info.Attributes, attr)
			info.byMappedNameLower[lower] = attr
		}
	}

	// buildRecordTypeInfo is only ever reached with a true struct value
	// (checked above); duplicate detection panics are caught here so the
	// public error path stays a plain returned error, matching
	// spec.md §4.1's "fails with MetadataError".
	var buildErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					buildErr = err
					return
				}
				panic(r)
			}
		}()
		walk(t, nil)
	}()
	if buildErr != nil {
		return nil, buildErr
	}

	return info, nil
}

// unwrapNullable reports whether t is a nullable-of-value-type wrapper
// (any pointer type, or a database/sql Null*-named struct exposing
// Valid+value fields) and returns its underlying type
// plus enough shape information (NullKind and, for the struct style,
// the value/Valid field indices) to reconstruct the wrapper later.
func unwrapNullable(t reflect.Type) (underlying reflect.Type, nullable bool, kind NullKind, valueField int, validField int) {
	if t.Kind() == reflect.Ptr {
		return t.Elem(), true, NullKindPointer, 0, 0
	}
	if t.Kind() == reflect.Struct && strings.HasPrefix(t.Name(), "Null") {
		validIdx := -1
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Name == "Valid" && f.Type.Kind() == reflect.Bool {
				validIdx = i
				break
			}
		}
		if validIdx >= 0 {
			if vf, ok := t.FieldByName("String"); ok {
				for i := 0; i < t.NumField(); i++ {
					if t.Field(i).Name == "String" {
						return vf.Type, true, NullKindStruct, i, validIdx
					}
				}
			}
			for i := 0; i < t.NumField(); i++ {
				if t.Field(i).Name != "Valid" {
					return t.Field(i).Type, true, NullKindStruct, i, validIdx
				}
			}
		}
	}
	return t, false, NullKindNone, 0, 0
}

// parseColTag supports: "-", "name", ",inline", "name,inline".
func parseColTag(tag string) (name string, inline bool, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	if tag == "" {
		return "", false, false
	}
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			part := tag[start:i]
			switch {
			case part == "inline":
				inline = true
			case part != "" && name == "":
				name = part
			}
			start = i + 1
		}
	}
	return name, inline, false
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	var res []rune
	for i, r := range s {
		if 'A' <= r && r <= 'Z' {
			if i > 0 && (isLower(rune(s[i-1])) || (i+1 < len(s) && isLower(rune(s[i+1])))) {
				res = append(res, '_')
			}
			res = append(res, r-'A'+'a')
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}

func isLower(r rune) bool { return 'a' <= r && r <= 'z' }
