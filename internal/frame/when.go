package frame

import (
	"context"
	"fmt"
)

// WhenClause is the condition half of a when/then/otherwise expression.
type WhenClause struct {
	cond Expr
}

// ThenClause holds the branch taken for rows where the condition is true.
type ThenClause struct {
	cond, then Expr
}

// When starts a conditional expression.
func When(cond Expr) WhenClause { return WhenClause{cond: cond} }

// Then sets the value for rows where the condition holds.
func (w WhenClause) Then(e Expr) ThenClause { return ThenClause{cond: w.cond, then: e} }

// Otherwise sets the value for the remaining rows, including rows where the
// condition is null.
//
// Each branch is evaluated only over the rows that select it, so a branch with
// side effects never sees rows it does not produce values for.
func (t ThenClause) Otherwise(e Expr) Expr {
	cond, then, other := t.cond, t.then, e
	resolve := func(s Schema) (DataType, error) {
		c, err := cond.Type(s)
		if err != nil {
			return Null, err
		}
		if c != Bool && c != Null {
			return Null, fmt.Errorf("when condition %q is %s, want bool", cond.name, c)
		}
		l, err := then.Type(s)
		if err != nil {
			return Null, err
		}
		r, err := other.Type(s)
		if err != nil {
			return Null, err
		}
		return supertype(l, r)
	}
	return Expr{
		name: then.name,
		typ:  resolve,
		eval: func(ctx context.Context, f *Frame) (*Series, error) {
			c, err := cond.Eval(ctx, f)
			if err != nil {
				return nil, err
			}
			if c.typ != Bool && c.typ != Null {
				return nil, fmt.Errorf("when condition %q is %s, want bool", cond.name, c.typ)
			}
			var yes, no []int
			for i, v := range c.values {
				if b, _ := v.(bool); b {
					yes = append(yes, i)
				} else {
					no = append(no, i)
				}
			}

			typ, err := resolve(f.Schema())
			if err != nil {
				return nil, err
			}
			out := make([]any, f.Height())
			for _, branch := range []struct {
				rows []int
				expr Expr
			}{{yes, then}, {no, other}} {
				if len(branch.rows) == 0 {
					continue
				}
				s, err := branch.expr.Eval(ctx, f.take(branch.rows))
				if err != nil {
					return nil, err
				}
				for j, i := range branch.rows {
					out[i] = s.values[j]
				}
			}

			if typ == Float64 {
				for i, v := range out {
					if n, ok := v.(int64); ok {
						out[i] = float64(n)
					}
				}
			}
			return NewSeries(then.name, typ, out), nil
		},
	}
}

func supertype(l, r DataType) (DataType, error) {
	switch {
	case l == r:
		return l, nil
	case l == Null:
		return r, nil
	case r == Null:
		return l, nil
	case l.IsNumeric() && r.IsNumeric():
		return Float64, nil
	}
	return Null, fmt.Errorf("incompatible branch types %s and %s", l, r)
}
