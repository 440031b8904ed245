/*
Package rbind is a reflective compilation core for mapping between
database rows/command parameters and Go record types. It compiles a
reflection-heavy accessor once per (record type, shape) and invokes it
with no further reflection on the hot path.

# Overview

rbind does not generate SQL, resolve a dialect, manage connections, or
orchestrate transactions — those are a caller's concern, expressed
against the Cursor and Command interfaces this package defines. What it
does is turn a row cursor or a record value into a compiled function
that reads or writes without re-deriving field offsets and conversions
on every call.

# Compiled accessors

  - CompileRowToRecord builds a Cursor -> (T, error) function.
  - CompileRowToMap builds a Cursor -> (map[string]any, error) function for callers with no static record type.
  - CompileRecordToParams builds a (T, Command) -> error function.
  - CompileBatchToParams builds a ([]T, Command) -> error function for batched statements, applying the `_i` parameter-name suffix convention for slots after the first.
  - CompileParamWriter and CompileValueWriter build small (record, ...) -> error setters used to propagate output parameters, or arbitrary values, back into a record.

Every Compile* call is a build step: it inspects a cursor's schema (or a
caller-supplied []DbField) once, decides reader/writer strategy and
conversion policy, and returns a closure that is safe to call
repeatedly and concurrently. Built accessors are cached by
(reflect.Type, shape fingerprint) in a process-wide sync.Map, so
calling Compile* again for the same shape returns the same compiled
plan rather than rebuilding it.

# Mapping rules

  - Fields bind by the `col:"name"` tag first; otherwise case-insensitive field <-> column name.
  - Nested structs can be flattened with `col:",inline"`, or are flattened automatically when anonymously embedded.
  - A pointer field, or a database/sql Null* struct field, is treated as nullable-of-value-type.
  - Extra columns are ignored; an attribute with no matching column is left at its zero value.

# Conversion policy

Policy (Strict or Automatic) governs what a compiled accessor does when
a column's source type does not exactly match an attribute's type.
Strict permits only a direct cast; Automatic additionally knows a
handful of standard conversions (numeric widening and narrowing,
Guid<->string); time.Time and string are not converted into each other
and get the direct cast, which fails at invocation. The active policy is sampled once per Compile*
call from a process-wide atomic default (SetPolicy/CurrentPolicy),
never re-read inside a compiled accessor's hot path, so changing the
default has no effect on accessors already built.

# Handlers

HandlerRegistry lets a caller attach a Handler to a type or to one
attribute of one type, to run arbitrary transform logic in place of the
standard conversion table. LegacyRegistry is a deprecated one-to-one
forwarding façade kept for callers migrating off an older handler API.

# Concurrency

All shared state (handler registry, type-metadata cache, accessor
cache) is safe for concurrent readers with occasional writers. Writes
to the handler registry do not retroactively affect accessors already
compiled.
*/
package rbind
