package rbind

import (
	"hash/fnv"
	"reflect"
	"strconv"
	"sync"
)

// cacheKey identifies a compiled accessor by record type and the
// fingerprint of the shape (row schema, or input/output field lists and
// batch size) it was built against.
type cacheKey struct {
	rt    reflect.Type
	shape uint64
}

// accessorCache maps (record type, shape fingerprint) to a compiled
// accessor. Entries are never invalidated within a process; a later
// HandlerRegistry.Clear or SetPolicy does not retroactively affect
// accessors already present here (spec.md §3, §4.5).
type accessorCache struct {
	m  sync.Map
	mu sync.Mutex // serializes builds on a cache miss
}

// getOrBuild implements the double-checked get-or-build idiom: a
// lock-free read via sync.Map.Load, then, on miss, a re-check under mu
// before build runs, so racing callers for one key run build() once and
// all observe the stored value. A failed build stores nothing.
func (c *accessorCache) getOrBuild(key cacheKey, build func() (any, error)) (any, error) {
	if v, ok := c.m.Load(key); ok {
		return v, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m.Load(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	c.m.Store(key, v)
	return v, nil
}

var globalAccessorCache accessorCache

// fingerprintReaderFields hashes a cursor schema snapshot, used as the
// "shape" half of the accessor cache key for Row->Record/Row->Map.
func fingerprintReaderFields(fields []ReaderFieldDef) uint64 {
	h := fnv.New64a()
	for _, f := range fields {
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{0})
		if f.SourceType != nil {
			_, _ = h.Write([]byte(f.SourceType.String()))
		}
		_, _ = h.Write([]byte{0})
		if f.Nullable {
			_, _ = h.Write([]byte{1})
		}
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// fingerprintDbFields hashes an ordered field-list shape, used for the
// Record->Params and batched Record[]->Params emitters. extra lets the
// batched variant fold batch size into the fingerprint.
func fingerprintDbFields(fields []DbField, extra ...string) uint64 {
	h := fnv.New64a()
	for _, f := range fields {
		_, _ = h.Write([]byte(f.UnquotedName))
		_, _ = h.Write([]byte{0})
		if f.ValueType != nil {
			_, _ = h.Write([]byte(f.ValueType.String()))
		}
		_, _ = h.Write([]byte{0})
	}
	for _, e := range extra {
		_, _ = h.Write([]byte(e))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func batchSizeToken(n int) string { return "batch:" + strconv.Itoa(n) }
