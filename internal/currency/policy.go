package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finwrap-dev/finwrap/internal/config"
	"github.com/finwrap-dev/finwrap/internal/frame"
)

// Strategy controls how precisely conversion rates are resolved.
type Strategy string

const (
	// StrategyLatest resolves one current rate per currency, ignoring dates.
	StrategyLatest Strategy = "latest"
	// StrategyDynamic resolves one rate per currency and transaction day.
	StrategyDynamic Strategy = "dynamic"
)

// ErrInvalidStrategy is returned for an unknown strategy name.
var ErrInvalidStrategy = errors.New("invalid currency strategy")

// ParseStrategy parses a strategy name. Empty means StrategyLatest.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategyLatest:
		return StrategyLatest, nil
	case StrategyDynamic:
		return StrategyDynamic, nil
	}
	return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidStrategy, name, StrategyLatest, StrategyDynamic)
}

// RateSource resolves a single exchange rate. *Resolver implements it.
type RateSource interface {
	Rate(ctx context.Context, from, to string, on Date, def *float64) (float64, error)
}

// Policy turns an account's currency settings into a per-row rate expression.
type Policy struct {
	column   string
	target   string
	def      *float64
	strategy Strategy
	rates    RateSource
}

// NewPolicy validates cfg and binds it to a rate source.
func NewPolicy(cfg config.Currency, rates RateSource) (*Policy, error) {
	s, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.CurrencyCol == "" || cfg.ConvertTo == "" {
		return nil, errors.New("currency_col and convert_to are required")
	}
	return &Policy{
		column:   cfg.CurrencyCol,
		target:   normalizeCode(cfg.ConvertTo),
		def:      cfg.DefaultRate,
		strategy: s,
		rates:    rates,
	}, nil
}

// Column returns the source column holding currency codes.
func (p *Policy) Column() string { return p.column }

// Strategy returns the rate resolution strategy.
func (p *Policy) Strategy() Strategy { return p.strategy }

// Rate returns a f64 expression with the rate converting each row into the
// target currency. Rows already in the target currency, or with no currency
// code, get 1.0 and never reach the rate source. date is only read by the
// dynamic strategy and must evaluate to datetime.
func (p *Policy) Rate(date frame.Expr) frame.Expr {
	code := frame.Col(p.column)
	convert := code.Str().Lower().Str().Strip().Ne(frame.Lit(p.target))

	var lookup frame.Expr
	switch p.strategy {
	case StrategyDynamic:
		lookup = frame.MapBatches("rate", frame.Float64, p.dynamic, code, date)
	default:
		lookup = frame.MapBatches("rate", frame.Float64, p.latest, code)
	}
	return frame.When(convert).Then(lookup).Otherwise(frame.Lit(1.0)).Alias("rate")
}

func (p *Policy) latest(ctx context.Context, in []*frame.Series) ([]any, error) {
	codes := in[0]
	out := make([]any, codes.Len())
	seen := make(map[string]float64)
	for i, v := range codes.Values() {
		code, ok := v.(string)
		if !ok {
			continue
		}
		rate, ok := seen[code]
		if !ok {
			var err error
			if rate, err = p.rates.Rate(ctx, code, p.target, Latest, p.def); err != nil {
				return nil, err
			}
			seen[code] = rate
		}
		out[i] = rate
	}
	return out, nil
}

func (p *Policy) dynamic(ctx context.Context, in []*frame.Series) ([]any, error) {
	codes, dates := in[0], in[1]
	if dates.Type() != frame.Datetime && dates.Type() != frame.Null {
		return nil, fmt.Errorf("dynamic rate needs a datetime column, got %s", dates.Type())
	}
	out := make([]any, codes.Len())
	for i, v := range codes.Values() {
		code, ok := v.(string)
		if !ok {
			continue
		}
		day, ok := dates.Value(i).(time.Time)
		if !ok {
			continue
		}
		rate, err := p.rates.Rate(ctx, code, p.target, On(day), p.def)
		if err != nil {
			return nil, err
		}
		out[i] = rate
	}
	return out, nil
}
