package rbind

import (
	"reflect"
	"sync"
)

// Handler is a user-supplied pair of pure transforms applied when
// marshaling a value into or out of a record attribute.
type Handler interface {
	// TransformIn converts an incoming column value into an attribute value.
	TransformIn(columnValue any, attr *AttributeInfo) (any, error)
	// TransformOut converts an outgoing attribute value into a parameter value.
	TransformOut(attrValue any, attr *AttributeInfo) (any, error)
}

// HandlerFuncs adapts a pair of plain functions to the Handler interface.
type HandlerFuncs struct {
	In  func(columnValue any, attr *AttributeInfo) (any, error)
	Out func(attrValue any, attr *AttributeInfo) (any, error)
}

func (h HandlerFuncs) TransformIn(v any, a *AttributeInfo) (any, error)  { return h.In(v, a) }
func (h HandlerFuncs) TransformOut(v any, a *AttributeInfo) (any, error) { return h.Out(v, a) }

type handlerKey struct {
	rt   reflect.Type
	attr string
}

// HandlerRegistry is a bidirectional mapping from (record type) or
// (record type, attribute name) to a user-supplied Handler. Reads are
// lock-free-friendly via RWMutex; writes serialize exclusively.
type HandlerRegistry struct {
	mu           sync.RWMutex
	typeHandlers map[reflect.Type]Handler
	attrHandlers map[handlerKey]Handler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		typeHandlers: make(map[reflect.Type]Handler),
		attrHandlers: make(map[handlerKey]Handler),
	}
}

// Register attaches a type-level handler. Without force, registering
// over an existing key fails with MappingExistsError.
func (r *HandlerRegistry) Register(rt reflect.Type, h Handler, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.typeHandlers[rt]; exists && !force {
		return newMappingExistsError(rt, "")
	}
	r.typeHandlers[rt] = h
	return nil
}

// RegisterAttr attaches an attribute-level handler, addressed by the
// attribute's canonical (case-sensitive) name.
func (r *HandlerRegistry) RegisterAttr(rt reflect.Type, attrName string, h Handler, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := handlerKey{rt, attrName}
	if _, exists := r.attrHandlers[key]; exists && !force {
		return newMappingExistsError(rt, attrName)
	}
	r.attrHandlers[key] = h
	return nil
}

// Lookup returns the type-level handler for rt, if any.
func (r *HandlerRegistry) Lookup(rt reflect.Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.typeHandlers[rt]
	return h, ok
}

// LookupAttr returns the attribute-level handler for (rt, attrName), if any.
func (r *HandlerRegistry) LookupAttr(rt reflect.Type, attrName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.attrHandlers[handlerKey{rt, attrName}]
	return h, ok
}

// Remove deletes the handler(s) for rt (type-level when no attribute
// names are given, attribute-level otherwise). Removing an absent key
// is a no-op.
func (r *HandlerRegistry) Remove(rt reflect.Type, attrNames ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(attrNames) == 0 {
		delete(r.typeHandlers, rt)
		return
	}
	for _, name := range attrNames {
		delete(r.attrHandlers, handlerKey{rt, name})
	}
}

// Clear drops every registered handler. It does not invalidate accessors
// already compiled against a prior snapshot of the registry (spec.md §3
// ownership note, §4.5).
func (r *HandlerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typeHandlers = make(map[reflect.Type]Handler)
	r.attrHandlers = make(map[handlerKey]Handler)
}

// defaultRegistry is the process-wide registry consulted by the
// package-level Register/Lookup/Remove/Clear helpers and by every
// Compile* entry point.
var defaultRegistry = NewHandlerRegistry()

func Register(rt reflect.Type, h Handler, force bool) error {
	return defaultRegistry.Register(rt, h, force)
}

func RegisterAttr(rt reflect.Type, attrName string, h Handler, force bool) error {
	return defaultRegistry.RegisterAttr(rt, attrName, h, force)
}

func Lookup(rt reflect.Type) (Handler, bool) { return defaultRegistry.Lookup(rt) }

func LookupAttr(rt reflect.Type, attrName string) (Handler, bool) {
	return defaultRegistry.LookupAttr(rt, attrName)
}

func Remove(rt reflect.Type, attrNames ...string) { defaultRegistry.Remove(rt, attrNames...) }

func Clear() { defaultRegistry.Clear() }

// resolveHandler picks the handler that governs one attribute of record
// type rt, snapshotting the registry's current state so the result can
// be baked into a compiled plan (spec.md §3: "emitters borrow them...
// compiled accessors... referentially transparent w.r.t. the registry
// snapshot taken at emission time"). Precedence, most specific first:
// a handler set directly on the AttributeInfo (struct analysis itself
// never sets one), an attribute-level registry handler, then a
// type-level one.
func resolveHandler(rt reflect.Type, attr *AttributeInfo) Handler {
	if attr != nil && attr.Handler != nil {
		return attr.Handler
	}
	if attr != nil {
		if h, ok := defaultRegistry.LookupAttr(rt, attr.Name); ok {
			return h
		}
	}
	if h, ok := defaultRegistry.Lookup(rt); ok {
		return h
	}
	return nil
}
