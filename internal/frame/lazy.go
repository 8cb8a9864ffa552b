package frame

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ScanFunc materializes the source of a LazyFrame.
type ScanFunc func(ctx context.Context) (*Frame, error)

// SchemaFunc reports the source schema without running the plan.
type SchemaFunc func(ctx context.Context) (Schema, error)

type step struct {
	name   string
	schema func(Schema) (Schema, error)
	apply  func(ctx context.Context, f *Frame) (*Frame, error)
}

// LazyFrame is a deferred query plan: a source plus pure transformation
// steps. Nothing runs until Collect or CollectSchema is called. Builder
// methods return a new LazyFrame and never modify the receiver.
type LazyFrame struct {
	schema SchemaFunc
	scan   ScanFunc
	steps  []step
}

// Scan creates a LazyFrame over a source.
func Scan(schema SchemaFunc, scan ScanFunc) *LazyFrame {
	return &LazyFrame{schema: schema, scan: scan}
}

// FromFrame wraps an already materialized frame.
func FromFrame(f *Frame) *LazyFrame {
	return Scan(
		func(context.Context) (Schema, error) { return f.Schema(), nil },
		func(context.Context) (*Frame, error) { return f, nil },
	)
}

func (lf *LazyFrame) with(s step) *LazyFrame {
	steps := make([]step, len(lf.steps), len(lf.steps)+1)
	copy(steps, lf.steps)
	return &LazyFrame{schema: lf.schema, scan: lf.scan, steps: append(steps, s)}
}

// CollectSchema resolves the output schema of the plan. Only the source
// schema is read; no step is executed.
func (lf *LazyFrame) CollectSchema(ctx context.Context) (Schema, error) {
	s, err := lf.schema(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range lf.steps {
		if s, err = st.schema(s); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return s, nil
}

// Collect executes the plan.
func (lf *LazyFrame) Collect(ctx context.Context) (*Frame, error) {
	f, err := lf.scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range lf.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f, err = st.apply(ctx, f); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return f, nil
}

// Count collects the plan and returns its row count.
func (lf *LazyFrame) Count(ctx context.Context) (int, error) {
	f, err := lf.Collect(ctx)
	if err != nil {
		return 0, err
	}
	return f.Height(), nil
}

// Sort orders rows by a column, ascending with nulls last. Rows with equal
// keys keep their source order.
func (lf *LazyFrame) Sort(by string) *LazyFrame {
	return lf.with(step{
		name: "sort",
		schema: func(s Schema) (Schema, error) {
			if !s.Has(by) {
				return nil, fmt.Errorf("column %q not found in %v", by, s.Names())
			}
			return s, nil
		},
		apply: func(_ context.Context, f *Frame) (*Frame, error) {
			col, err := f.Column(by)
			if err != nil {
				return nil, err
			}
			idx := make([]int, f.Height())
			for i := range idx {
				idx[i] = i
			}
			sort.SliceStable(idx, func(a, b int) bool {
				return compareValues(col.values[idx[a]], col.values[idx[b]]) < 0
			})
			return f.take(idx), nil
		},
	})
}

// Select replaces the columns with the given expressions, all evaluated
// against the input rows.
func (lf *LazyFrame) Select(exprs ...Expr) *LazyFrame {
	return lf.with(step{
		name: "select",
		schema: func(s Schema) (Schema, error) {
			out := make(Schema, len(exprs))
			for i, e := range exprs {
				t, err := e.Type(s)
				if err != nil {
					return nil, err
				}
				out[i] = Field{Name: e.Name(), Type: t}
			}
			return out, nil
		},
		apply: func(ctx context.Context, f *Frame) (*Frame, error) {
			cols := make([]*Series, len(exprs))
			for i, e := range exprs {
				s, err := e.Eval(ctx, f)
				if err != nil {
					return nil, err
				}
				cols[i] = s
			}
			return newWithHeight(f.Height(), cols)
		},
	})
}

// Unique drops rows identical to an earlier row across all columns. The
// first occurrence is kept, so the output order is deterministic.
func (lf *LazyFrame) Unique() *LazyFrame {
	return lf.with(step{
		name:   "unique",
		schema: func(s Schema) (Schema, error) { return s, nil },
		apply: func(_ context.Context, f *Frame) (*Frame, error) {
			seen := make(map[string]struct{}, f.Height())
			idx := make([]int, 0, f.Height())
			for i := 0; i < f.Height(); i++ {
				k := rowKey(f, i)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				idx = append(idx, i)
			}
			if len(idx) == f.Height() {
				return f, nil
			}
			return f.take(idx), nil
		},
	})
}

// Concat stacks the outputs of frames vertically, in order. All inputs must
// produce the same schema.
func Concat(frames ...*LazyFrame) *LazyFrame {
	return Scan(
		func(ctx context.Context) (Schema, error) {
			var first Schema
			for i, lf := range frames {
				s, err := lf.CollectSchema(ctx)
				if err != nil {
					return nil, err
				}
				if i == 0 {
					first = s
				} else if !s.Equal(first) {
					return nil, fmt.Errorf("concat input %d has schema %s, want %s", i, s, first)
				}
			}
			return first, nil
		},
		func(ctx context.Context) (*Frame, error) {
			collected := make([]*Frame, len(frames))
			for i, lf := range frames {
				f, err := lf.Collect(ctx)
				if err != nil {
					return nil, err
				}
				collected[i] = f
			}
			return Vstack(collected...)
		},
	)
}

// compareValues orders two values of the same column. nil sorts last.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	case int64, float64:
		return toDecimal(a).Cmp(toDecimal(b))
	}
	panic(fmt.Sprintf("frame: cannot compare %T", a))
}

func rowKey(f *Frame, i int) string {
	var b strings.Builder
	for _, c := range f.columns {
		switch v := c.values[i].(type) {
		case nil:
			b.WriteString("n")
		case string:
			b.WriteString(strconv.Quote(v))
		case time.Time:
			b.WriteString("t" + strconv.FormatInt(v.UnixMicro(), 10))
		default:
			b.WriteString("v" + formatValue(v))
		}
		b.WriteByte(',')
	}
	return b.String()
}
