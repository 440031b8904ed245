package rbind

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Querier is implemented by *sql.DB, *sql.Tx, *sql.Conn, and any wrapper
// that can execute a query returning rows a caller hands to NewSQLCursor.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is implemented by *sql.DB, *sql.Tx, *sql.Conn, and any wrapper
// that can execute a statement built from a compiled ParamAccessor's
// Command and does not return rows.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Beginner is implemented by *sql.DB and *sql.Conn. It starts a
// transaction a caller may run several compiled accessors against.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// SQLCursor adapts *sql.Rows to the Cursor interface. database/sql
// exposes no typed get<T>(ordinal) accessors, so SQLCursor never defines
// any Get<Kind> methods of its own: the emitter's typed-accessor probe
// always misses against it, and every column goes through Value/IsNull,
// matching how a real driver-backed caller exercises the emitter's
// fallback path (spec.md §4.4.1 step 4).
type SQLCursor struct {
	rows    *sql.Rows
	cols    []*sql.ColumnType
	names   []string
	vals    []any
	scanned bool
}

// RunQuery executes query against q and wraps the resulting rows in a
// SQLCursor, ready to drive a compiled RowAccessor/MapAccessor.
func RunQuery(ctx context.Context, q Querier, query string, args ...any) (*SQLCursor, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return NewSQLCursor(rows)
}

// Exec runs a statement that returns no rows, such as one built from a
// compiled ParamAccessor's populated Command.
func Exec(ctx context.Context, e Execer, query string, args ...any) (sql.Result, error) {
	return e.ExecContext(ctx, query, args...)
}

// WithTransaction begins a transaction on b and runs fn against it,
// committing on success and rolling back on error or panic (re-raising
// the panic after rollback).
func WithTransaction(ctx context.Context, b Beginner, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := b.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// NewSQLCursor wraps rows, inspecting its column metadata once.
// Advance with Next before reading any column.
func NewSQLCursor(rows *sql.Rows) (*SQLCursor, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return &SQLCursor{rows: rows, cols: cols, names: names, vals: make([]any, len(cols))}, nil
}

// Next advances to the next row, invalidating any previously scanned values.
func (c *SQLCursor) Next() bool {
	c.scanned = false
	return c.rows.Next()
}

// Err reports the terminal error of the underlying *sql.Rows, if any.
func (c *SQLCursor) Err() error { return c.rows.Err() }

// Close releases the underlying *sql.Rows.
func (c *SQLCursor) Close() error { return c.rows.Close() }

func (c *SQLCursor) FieldCount() int { return len(c.cols) }

func (c *SQLCursor) Name(ordinal int) string { return c.names[ordinal] }

func (c *SQLCursor) FieldType(ordinal int) reflect.Type { return c.cols[ordinal].ScanType() }

func (c *SQLCursor) ensureScanned() error {
	if c.scanned {
		return nil
	}
	ptrs := make([]any, len(c.vals))
	for i := range c.vals {
		ptrs[i] = &c.vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return err
	}
	c.scanned = true
	return nil
}

func (c *SQLCursor) IsNull(ordinal int) bool {
	if err := c.ensureScanned(); err != nil {
		return false
	}
	return c.vals[ordinal] == nil
}

func (c *SQLCursor) Value(ordinal int) (any, error) {
	if err := c.ensureScanned(); err != nil {
		return nil, err
	}
	return c.vals[ordinal], nil
}

// FakeColumn describes one column of a FakeCursor's schema.
type FakeColumn struct {
	Name string
	Type reflect.Type
}

// FakeCursor is an in-memory Cursor double used by tests. Unlike
// SQLCursor, it implements every Get<Kind> accessor the emitter knows
// how to probe for, so the "prefer typed get<T>" branch of the emitter
// (spec.md §4.4.1 step 4) has a concrete, exercised implementation.
type FakeCursor struct {
	Columns []FakeColumn
	current []any
}

// NewFakeCursor builds a cursor over a single row.
func NewFakeCursor(columns []FakeColumn, row []any) *FakeCursor {
	return &FakeCursor{Columns: columns, current: row}
}

// SetRow replaces the current row in place, letting one FakeCursor be
// reused across several CompileRowToRecord invocations.
func (c *FakeCursor) SetRow(row []any) { c.current = row }

func (c *FakeCursor) FieldCount() int { return len(c.Columns) }

func (c *FakeCursor) Name(ordinal int) string { return c.Columns[ordinal].Name }

func (c *FakeCursor) FieldType(ordinal int) reflect.Type { return c.Columns[ordinal].Type }

func (c *FakeCursor) IsNull(ordinal int) bool { return c.current[ordinal] == nil }

func (c *FakeCursor) Value(ordinal int) (any, error) { return c.current[ordinal], nil }

func fakeGet[T any](c *FakeCursor, ordinal int) (T, error) {
	var zero T
	if ordinal < 0 || ordinal >= len(c.current) {
		return zero, newMetadataError(reflect.TypeOf(zero), "ordinal out of range")
	}
	v := c.current[ordinal]
	t, ok := v.(T)
	if !ok {
		return zero, newConversionError(reflect.TypeOf(v), reflect.TypeOf(zero), errConversion("fake cursor column type mismatch"))
	}
	return t, nil
}

func (c *FakeCursor) GetBool(ordinal int) (bool, error)       { return fakeGet[bool](c, ordinal) }
func (c *FakeCursor) GetInt8(ordinal int) (int8, error)       { return fakeGet[int8](c, ordinal) }
func (c *FakeCursor) GetInt16(ordinal int) (int16, error)     { return fakeGet[int16](c, ordinal) }
func (c *FakeCursor) GetInt32(ordinal int) (int32, error)     { return fakeGet[int32](c, ordinal) }
func (c *FakeCursor) GetInt64(ordinal int) (int64, error)     { return fakeGet[int64](c, ordinal) }
func (c *FakeCursor) GetUint8(ordinal int) (uint8, error)     { return fakeGet[uint8](c, ordinal) }
func (c *FakeCursor) GetUint16(ordinal int) (uint16, error)   { return fakeGet[uint16](c, ordinal) }
func (c *FakeCursor) GetUint32(ordinal int) (uint32, error)   { return fakeGet[uint32](c, ordinal) }
func (c *FakeCursor) GetUint64(ordinal int) (uint64, error)   { return fakeGet[uint64](c, ordinal) }
func (c *FakeCursor) GetFloat32(ordinal int) (float32, error) { return fakeGet[float32](c, ordinal) }
func (c *FakeCursor) GetFloat64(ordinal int) (float64, error) { return fakeGet[float64](c, ordinal) }
func (c *FakeCursor) GetString(ordinal int) (string, error)   { return fakeGet[string](c, ordinal) }
func (c *FakeCursor) GetTime(ordinal int) (time.Time, error)  { return fakeGet[time.Time](c, ordinal) }
func (c *FakeCursor) GetGuid(ordinal int) (uuid.UUID, error)  { return fakeGet[uuid.UUID](c, ordinal) }
func (c *FakeCursor) GetBytes(ordinal int) ([]byte, error)    { return fakeGet[[]byte](c, ordinal) }

// FakeParameter is an in-memory Parameter double used by tests and by
// callers that don't yet have a driver-backed Command implementation.
type FakeParameter struct {
	name      string
	value     any
	dbType    DbType
	direction Direction
	size      int
	precision int
	scale     int
}

func (p *FakeParameter) SetName(name string)     { p.name = name }
func (p *FakeParameter) SetValue(v any)          { p.value = v }
func (p *FakeParameter) Value() any              { return p.value }
func (p *FakeParameter) SetDbType(t DbType)      { p.dbType = t }
func (p *FakeParameter) SetDirection(d Direction) { p.direction = d }
func (p *FakeParameter) SetSize(n int)           { p.size = n }
func (p *FakeParameter) SetPrecision(n int)      { p.precision = n }
func (p *FakeParameter) SetScale(n int)          { p.scale = n }
func (p *FakeParameter) Name() string            { return p.name }
func (p *FakeParameter) DbType() DbType          { return p.dbType }
func (p *FakeParameter) Direction() Direction    { return p.direction }
func (p *FakeParameter) Size() int               { return p.size }
func (p *FakeParameter) Precision() int          { return p.precision }
func (p *FakeParameter) Scale() int              { return p.scale }

// FakeParameterCollection is an in-memory ParameterCollection double.
type FakeParameterCollection struct {
	params []Parameter
}

func (pc *FakeParameterCollection) Add(p Parameter) { pc.params = append(pc.params, p) }

func (pc *FakeParameterCollection) Clear() { pc.params = pc.params[:0] }

func (pc *FakeParameterCollection) ByName(name string) (Parameter, bool) {
	for _, p := range pc.params {
		if fp, ok := p.(*FakeParameter); ok && fp.name == name {
			return fp, true
		}
	}
	return nil, false
}

// All returns the parameters added so far, in append order.
func (pc *FakeParameterCollection) All() []Parameter { return pc.params }

// FakeCommand is an in-memory Command double used by tests.
type FakeCommand struct {
	params FakeParameterCollection
}

func (c *FakeCommand) Parameters() ParameterCollection { return &c.params }

func (c *FakeCommand) CreateParameter() Parameter { return &FakeParameter{} }
