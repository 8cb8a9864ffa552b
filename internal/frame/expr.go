package frame

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Expr is a deferred column computation. It is evaluated against a frame only
// when a LazyFrame plan is collected.
type Expr struct {
	name string
	typ  func(Schema) (DataType, error)
	eval func(ctx context.Context, f *Frame) (*Series, error)
}

// Name returns the output column name.
func (e Expr) Name() string { return e.name }

// Type resolves the output type against an input schema.
func (e Expr) Type(s Schema) (DataType, error) { return e.typ(s) }

// Eval computes the expression over f.
func (e Expr) Eval(ctx context.Context, f *Frame) (*Series, error) {
	s, err := e.eval(ctx, f)
	if err != nil {
		return nil, err
	}
	if s.Len() != f.Height() {
		return nil, fmt.Errorf("expression %q produced %d rows, want %d", e.name, s.Len(), f.Height())
	}
	if s.name != e.name {
		s = s.Rename(e.name)
	}
	return s, nil
}

// Alias renames the output column.
func (e Expr) Alias(name string) Expr {
	e.name = name
	return e
}

// Col references an input column by name.
func Col(name string) Expr {
	return Expr{
		name: name,
		typ: func(s Schema) (DataType, error) {
			t, ok := s.Get(name)
			if !ok {
				return Null, fmt.Errorf("column %q not found in %v", name, s.Names())
			}
			return t, nil
		},
		eval: func(_ context.Context, f *Frame) (*Series, error) {
			return f.Column(name)
		},
	}
}

// Lit broadcasts a constant to every row. Ints are widened to int64 and
// times truncated to microseconds.
func Lit(v any) Expr {
	var typ DataType
	switch x := v.(type) {
	case nil:
		typ = Null
	case bool:
		typ = Bool
	case int:
		v, typ = int64(x), Int64
	case int64:
		typ = Int64
	case float64:
		typ = Float64
	case string:
		typ = String
	case time.Time:
		v, typ = TruncateMicro(x), Datetime
	default:
		panic(fmt.Sprintf("frame: unsupported literal %T", v))
	}
	return Expr{
		name: "literal",
		typ:  func(Schema) (DataType, error) { return typ, nil },
		eval: func(_ context.Context, f *Frame) (*Series, error) {
			values := make([]any, f.Height())
			for i := range values {
				values[i] = v
			}
			return NewSeries("literal", typ, values), nil
		},
	}
}

// unary builds an expression that maps each non-null value of e.
func unary(e Expr, op string, outType func(DataType) (DataType, error), fn func(any) (any, error)) Expr {
	resolve := func(in DataType) (DataType, error) {
		t, err := outType(in)
		if err != nil {
			return Null, fmt.Errorf("%s on %q: %w", op, e.name, err)
		}
		return t, nil
	}
	return Expr{
		name: e.name,
		typ: func(s Schema) (DataType, error) {
			in, err := e.Type(s)
			if err != nil {
				return Null, err
			}
			return resolve(in)
		},
		eval: func(ctx context.Context, f *Frame) (*Series, error) {
			in, err := e.Eval(ctx, f)
			if err != nil {
				return nil, err
			}
			typ, err := resolve(in.typ)
			if err != nil {
				return nil, err
			}
			out := make([]any, in.Len())
			for i, v := range in.values {
				if v == nil {
					continue
				}
				if out[i], err = fn(v); err != nil {
					return nil, fmt.Errorf("%s on %q row %d: %w", op, e.name, i, err)
				}
			}
			return NewSeries(e.name, typ, out), nil
		},
	}
}

// binary combines two expressions row by row. A null on either side yields null.
func binary(a, b Expr, op string, outType func(DataType, DataType) (DataType, error), fn func(x, y any) (any, error)) Expr {
	resolve := func(l, r DataType) (DataType, error) {
		t, err := outType(l, r)
		if err != nil {
			return Null, fmt.Errorf("%s %q and %q: %w", op, a.name, b.name, err)
		}
		return t, nil
	}
	return Expr{
		name: a.name,
		typ: func(s Schema) (DataType, error) {
			l, err := a.Type(s)
			if err != nil {
				return Null, err
			}
			r, err := b.Type(s)
			if err != nil {
				return Null, err
			}
			return resolve(l, r)
		},
		eval: func(ctx context.Context, f *Frame) (*Series, error) {
			l, err := a.Eval(ctx, f)
			if err != nil {
				return nil, err
			}
			r, err := b.Eval(ctx, f)
			if err != nil {
				return nil, err
			}
			typ, err := resolve(l.typ, r.typ)
			if err != nil {
				return nil, err
			}
			out := make([]any, f.Height())
			for i := range out {
				x, y := l.values[i], r.values[i]
				if x == nil || y == nil {
					continue
				}
				if out[i], err = fn(x, y); err != nil {
					return nil, fmt.Errorf("%s row %d: %w", op, i, err)
				}
			}
			return NewSeries(a.name, typ, out), nil
		},
	}
}

func numericResult(l, r DataType) (DataType, error) {
	if (l.IsNumeric() || l == Null) && (r.IsNumeric() || r == Null) {
		return Float64, nil
	}
	return Null, fmt.Errorf("want numeric operands, got %s and %s", l, r)
}

func toDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case int64:
		return decimal.NewFromInt(x)
	case float64:
		return decimal.NewFromFloat(x)
	}
	panic(fmt.Sprintf("frame: %T is not numeric", v))
}

// Sub subtracts o from e. The result is always f64.
func (e Expr) Sub(o Expr) Expr {
	return binary(e, o, "subtract", numericResult, func(x, y any) (any, error) {
		return toDecimal(x).Sub(toDecimal(y)).InexactFloat64(), nil
	})
}

// Mul multiplies e by o. The result is always f64.
func (e Expr) Mul(o Expr) Expr {
	return binary(e, o, "multiply", numericResult, func(x, y any) (any, error) {
		return toDecimal(x).Mul(toDecimal(y)).InexactFloat64(), nil
	})
}

// Abs returns the absolute value as f64.
func (e Expr) Abs() Expr {
	return unary(e, "abs", func(in DataType) (DataType, error) {
		return numericResult(in, Null)
	}, func(v any) (any, error) {
		return toDecimal(v).Abs().InexactFloat64(), nil
	})
}

// Gt compares e > o numerically.
func (e Expr) Gt(o Expr) Expr {
	return binary(e, o, "compare", func(l, r DataType) (DataType, error) {
		if _, err := numericResult(l, r); err != nil {
			return Null, err
		}
		return Bool, nil
	}, func(x, y any) (any, error) {
		return toDecimal(x).GreaterThan(toDecimal(y)), nil
	})
}

// Eq compares e == o. Operands must share a type, numbers compare by value.
func (e Expr) Eq(o Expr) Expr {
	return binary(e, o, "compare", comparisonResult, func(x, y any) (any, error) {
		return compareValues(x, y) == 0, nil
	})
}

// Ne compares e != o.
func (e Expr) Ne(o Expr) Expr {
	return binary(e, o, "compare", comparisonResult, func(x, y any) (any, error) {
		return compareValues(x, y) != 0, nil
	})
}

func comparisonResult(l, r DataType) (DataType, error) {
	switch {
	case l == r, l == Null, r == Null:
		return Bool, nil
	case l.IsNumeric() && r.IsNumeric():
		return Bool, nil
	}
	return Null, fmt.Errorf("cannot compare %s with %s", l, r)
}

// Cast converts values to another type. Strings cast to f64 are parsed as
// decimals, strings cast to datetime are parsed leniently.
func (e Expr) Cast(to DataType) Expr {
	return Expr{
		name: e.name,
		typ: func(s Schema) (DataType, error) {
			from, err := e.Type(s)
			if err != nil {
				return Null, err
			}
			if err := checkCast(from, to); err != nil {
				return Null, fmt.Errorf("cast %q: %w", e.name, err)
			}
			return to, nil
		},
		eval: func(ctx context.Context, f *Frame) (*Series, error) {
			in, err := e.Eval(ctx, f)
			if err != nil {
				return nil, err
			}
			if err := checkCast(in.typ, to); err != nil {
				return nil, fmt.Errorf("cast %q: %w", e.name, err)
			}
			out := make([]any, in.Len())
			for i, v := range in.values {
				if v == nil {
					continue
				}
				if out[i], err = castValue(v, to); err != nil {
					return nil, fmt.Errorf("cast %q row %d: %w", e.name, i, err)
				}
			}
			return NewSeries(e.name, to, out), nil
		},
	}
}

func checkCast(from, to DataType) error {
	if from == to || from == Null || to == String {
		return nil
	}
	switch to {
	case Float64, Int64:
		if from.IsNumeric() || from == String || from == Bool {
			return nil
		}
	case Datetime:
		if from == String {
			return nil
		}
	case Bool:
		if from == String || from.IsNumeric() {
			return nil
		}
	}
	return fmt.Errorf("cannot cast %s to %s", from, to)
}

func castValue(v any, to DataType) (any, error) {
	switch to {
	case String:
		return formatValue(v), nil
	case Float64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case bool:
			if x {
				return 1.0, nil
			}
			return 0.0, nil
		case string:
			return ParseNumber(x)
		}
	case Int64:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case Datetime:
		switch x := v.(type) {
		case time.Time:
			return TruncateMicro(x), nil
		case string:
			return parseDatetime(x, "")
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
	}
	return nil, fmt.Errorf("cannot cast %T to %s", v, to)
}

// ParseNumber parses a decimal string into a float64.
func ParseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05.999999")
	}
	return fmt.Sprint(v)
}

// BatchFunc computes one output value per row from the evaluated inputs.
type BatchFunc func(ctx context.Context, inputs []*Series) ([]any, error)

// MapBatches applies fn to whole input columns in a single call.
func MapBatches(name string, typ DataType, fn BatchFunc, inputs ...Expr) Expr {
	return Expr{
		name: name,
		typ: func(s Schema) (DataType, error) {
			for _, in := range inputs {
				if _, err := in.Type(s); err != nil {
					return Null, err
				}
			}
			return typ, nil
		},
		eval: func(ctx context.Context, f *Frame) (*Series, error) {
			cols := make([]*Series, len(inputs))
			for i, in := range inputs {
				s, err := in.Eval(ctx, f)
				if err != nil {
					return nil, err
				}
				cols[i] = s
			}
			out, err := fn(ctx, cols)
			if err != nil {
				return nil, err
			}
			if len(out) != f.Height() {
				return nil, fmt.Errorf("batch %q returned %d values, want %d", name, len(out), f.Height())
			}
			return NewSeries(name, typ, out), nil
		},
	}
}
