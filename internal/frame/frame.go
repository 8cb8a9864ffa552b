package frame

import (
	"fmt"
	"time"
)

// Series is a named, typed column of values.
type Series struct {
	name   string
	typ    DataType
	values []any
}

// NewSeries creates a Series. values must hold the Go type matching typ, or nil.
func NewSeries(name string, typ DataType, values []any) *Series {
	return &Series{name: name, typ: typ, values: values}
}

func (s *Series) Name() string { return s.name }
func (s *Series) Type() DataType { return s.typ }
func (s *Series) Len() int { return len(s.values) }
func (s *Series) Value(i int) any { return s.values[i] }
func (s *Series) IsNull(i int) bool { return s.values[i] == nil }

// Values returns the underlying values. Callers must not modify them.
func (s *Series) Values() []any { return s.values }

// Rename returns a Series sharing s's values under a new name.
func (s *Series) Rename(name string) *Series {
	return &Series{name: name, typ: s.typ, values: s.values}
}

func (s *Series) take(idx []int) *Series {
	values := make([]any, len(idx))
	for i, j := range idx {
		values[i] = s.values[j]
	}
	return &Series{name: s.name, typ: s.typ, values: values}
}

// Frame is a materialized table: equal-length columns with unique names.
type Frame struct {
	columns []*Series
	index   map[string]int
	height  int
}

// New creates a Frame from columns of equal length.
func New(columns ...*Series) (*Frame, error) {
	height := 0
	if len(columns) > 0 {
		height = columns[0].Len()
	}
	return newWithHeight(height, columns)
}

func newWithHeight(height int, columns []*Series) (*Frame, error) {
	f := &Frame{columns: columns, index: make(map[string]int, len(columns)), height: height}
	for i, c := range columns {
		if _, dup := f.index[c.name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.name)
		}
		if c.Len() != height {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), height)
		}
		f.index[c.name] = i
	}
	return f, nil
}

// Height returns the number of rows.
func (f *Frame) Height() int { return f.height }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.columns) }

// IsEmpty reports whether the frame has no rows.
func (f *Frame) IsEmpty() bool { return f.height == 0 }

// Columns returns the columns in order.
func (f *Frame) Columns() []*Series { return f.columns }

// Schema returns the frame's column names and types.
func (f *Frame) Schema() Schema {
	s := make(Schema, len(f.columns))
	for i, c := range f.columns {
		s[i] = Field{Name: c.name, Type: c.typ}
	}
	return s
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Series, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found in %v", name, f.Schema().Names())
	}
	return f.columns[i], nil
}

// Row returns the values of row i in column order.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.columns))
	for j, c := range f.columns {
		row[j] = c.values[i]
	}
	return row
}

func (f *Frame) take(idx []int) *Frame {
	cols := make([]*Series, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.take(idx)
	}
	return &Frame{columns: cols, index: f.index, height: len(idx)}
}

// Vstack concatenates frames row-wise. All frames must share one schema.
func Vstack(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return New()
	}
	schema := frames[0].Schema()
	height := 0
	for i, f := range frames {
		if !f.Schema().Equal(schema) {
			return nil, fmt.Errorf("frame %d has schema %s, want %s", i, f.Schema(), schema)
		}
		height += f.height
	}
	cols := make([]*Series, len(schema))
	for j, field := range schema {
		values := make([]any, 0, height)
		for _, f := range frames {
			values = append(values, f.columns[j].values...)
		}
		cols[j] = NewSeries(field.Name, field.Type, values)
	}
	return newWithHeight(height, cols)
}

// TruncateMicro drops sub-microsecond precision and normalizes to UTC.
func TruncateMicro(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
