package rbind

import "reflect"

// LegacyRegistry is a deprecated alias of HandlerRegistry, kept for
// backward compatibility. Every method forwards one-to-one to the
// non-deprecated entry points on HandlerRegistry; it adds no behavior.
//
// Deprecated: use HandlerRegistry (or the package-level Register /
// Lookup / Remove / Clear helpers) directly.
type LegacyRegistry struct {
	inner *HandlerRegistry
}

// NewLegacyRegistry wraps an existing HandlerRegistry behind the
// deprecated surface. Passing nil wraps the process-wide default
// registry.
//
// Deprecated: use NewHandlerRegistry.
func NewLegacyRegistry(inner *HandlerRegistry) *LegacyRegistry {
	if inner == nil {
		inner = defaultRegistry
	}
	return &LegacyRegistry{inner: inner}
}

// Deprecated: use HandlerRegistry.Register.
func (l *LegacyRegistry) RegisterHandler(rt reflect.Type, h Handler, force bool) error {
	return l.inner.Register(rt, h, force)
}

// Deprecated: use HandlerRegistry.RegisterAttr.
func (l *LegacyRegistry) RegisterAttributeHandler(rt reflect.Type, attrName string, h Handler, force bool) error {
	return l.inner.RegisterAttr(rt, attrName, h, force)
}

// Deprecated: use HandlerRegistry.Lookup.
func (l *LegacyRegistry) GetHandler(rt reflect.Type) (Handler, bool) {
	return l.inner.Lookup(rt)
}

// Deprecated: use HandlerRegistry.LookupAttr.
func (l *LegacyRegistry) GetAttributeHandler(rt reflect.Type, attrName string) (Handler, bool) {
	return l.inner.LookupAttr(rt, attrName)
}

// Deprecated: use HandlerRegistry.Remove.
func (l *LegacyRegistry) RemoveHandler(rt reflect.Type, attrNames ...string) {
	l.inner.Remove(rt, attrNames...)
}

// Deprecated: use HandlerRegistry.Clear.
func (l *LegacyRegistry) ClearHandlers() {
	l.inner.Clear()
}
