package frame

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/itchyny/timefmt-go"
)

// StrExpr groups string operations on an expression.
type StrExpr struct {
	e Expr
}

// Str returns the string namespace of e. Operations fail on non-str input.
func (e Expr) Str() StrExpr { return StrExpr{e: e} }

func (s StrExpr) apply(op string, out DataType, fn func(string) (any, error)) Expr {
	return unary(s.e, "str."+op, func(in DataType) (DataType, error) {
		if in != String && in != Null {
			return Null, fmt.Errorf("want str, got %s", in)
		}
		return out, nil
	}, func(v any) (any, error) {
		return fn(v.(string))
	})
}

// Replace removes every literal occurrence of old with repl.
func (s StrExpr) Replace(old, repl string) Expr {
	return s.apply("replace", String, func(v string) (any, error) {
		return strings.ReplaceAll(v, old, repl), nil
	})
}

// ReplaceRegexp replaces every match of re with repl.
func (s StrExpr) ReplaceRegexp(re *regexp.Regexp, repl string) Expr {
	return s.apply("replace_all", String, func(v string) (any, error) {
		return re.ReplaceAllString(v, repl), nil
	})
}

// Strip trims leading and trailing whitespace.
func (s StrExpr) Strip() Expr {
	return s.apply("strip_chars", String, func(v string) (any, error) {
		return strings.TrimSpace(v), nil
	})
}

// Lower lower-cases the value.
func (s StrExpr) Lower() Expr {
	return s.apply("to_lowercase", String, func(v string) (any, error) {
		return strings.ToLower(v), nil
	})
}

// ToDatetime parses the value with a strftime format such as "%Y-%m-%d".
// With an empty format the common date layouts are recognized.
func (s StrExpr) ToDatetime(format string) Expr {
	return s.apply("to_datetime", Datetime, func(v string) (any, error) {
		return parseDatetime(v, format)
	})
}

func parseDatetime(v, format string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var (
		t   time.Time
		err error
	)
	if format == "" {
		t, err = dateparse.ParseIn(v, time.UTC)
	} else {
		t, err = timefmt.Parse(v, format)
	}
	if err != nil {
		return time.Time{}, err
	}
	return TruncateMicro(t), nil
}
