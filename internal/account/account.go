package account

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/finwrap-dev/finwrap/internal/config"
	"github.com/finwrap-dev/finwrap/internal/currency"
	"github.com/finwrap-dev/finwrap/internal/frame"
	"github.com/finwrap-dev/finwrap/internal/model"
	"github.com/finwrap-dev/finwrap/internal/source"
)

// MissingColumnError reports a configured column absent from the source.
type MissingColumnError struct {
	Account   string
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("account %q: column %q is not in data columns: [%s]",
		e.Account, e.Column, strings.Join(e.Available, ", "))
}

// Source produces canonical transactions as a lazy plan.
type Source interface {
	GetData(ctx context.Context) (*frame.LazyFrame, error)
}

// Account maps one configured source onto the canonical schema.
type Account struct {
	cfg     config.Account
	data    *frame.LazyFrame
	cleaner *regexp.Regexp
	policy  *currency.Policy

	mu     sync.Mutex
	schema frame.Schema
}

// New validates cfg and prepares the account's source. Files are not read
// until the schema or the data is needed. rates is only used when cfg has a
// currency section.
func New(cfg config.Account, rates currency.RateSource) (*Account, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := source.Scan(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", cfg.Name, err)
	}
	a := &Account{cfg: cfg, data: data}

	if cfg.TransactionColCleaningRegex != "" {
		if a.cleaner, err = regexp.Compile(cfg.TransactionColCleaningRegex); err != nil {
			return nil, fmt.Errorf("account %q: transaction_col_cleaning_regex: %w", cfg.Name, err)
		}
	}
	if cfg.Currency != nil {
		if rates == nil {
			return nil, fmt.Errorf("account %q: currency conversion needs a rate source", cfg.Name)
		}
		if a.policy, err = currency.NewPolicy(*cfg.Currency, rates); err != nil {
			return nil, fmt.Errorf("account %q: %w", cfg.Name, err)
		}
	}
	return a, nil
}

// Name returns the configured account name.
func (a *Account) Name() string { return a.cfg.Name }

// Schema returns the column names and types of the source. It is resolved
// once and cached; failures are not cached.
func (a *Account) Schema(ctx context.Context) (frame.Schema, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.schema != nil {
		return a.schema, nil
	}
	s, err := a.data.CollectSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", a.cfg.Name, err)
	}
	a.schema = s
	return s, nil
}

// GetData returns the plan producing the account's canonical transactions:
// source rows sorted by the raw date column, mapped onto account_name, date,
// transaction and amount, with exact duplicates dropped. Nothing is
// materialized and no rate is fetched until the plan is collected.
func (a *Account) GetData(ctx context.Context) (*frame.LazyFrame, error) {
	schema, err := a.Schema(ctx)
	if err != nil {
		return nil, err
	}
	required := []string{a.cfg.DateCol, a.cfg.TransactionCol, a.cfg.AmountCol}
	if a.cfg.FeesCol != "" {
		required = append(required, a.cfg.FeesCol)
	}
	if a.policy != nil {
		required = append(required, a.policy.Column())
	}
	for _, col := range required {
		if !schema.Has(col) {
			return nil, &MissingColumnError{Account: a.cfg.Name, Column: col, Available: schema.Names()}
		}
	}

	date, err := a.date(schema)
	if err != nil {
		return nil, err
	}
	transaction, err := a.transaction(schema)
	if err != nil {
		return nil, err
	}
	amount, err := a.amount(schema, date)
	if err != nil {
		return nil, err
	}

	return a.data.
		Sort(a.cfg.DateCol).
		Select(
			frame.Lit(a.cfg.Name).Alias(model.ColAccountName),
			date.Alias(model.ColDate),
			transaction.Alias(model.ColTransaction),
			amount.Alias(model.ColAmount),
		).
		Unique(), nil
}

// date parses textual dates with the configured strftime format, or
// leniently without one. Temporal columns are cast to microseconds.
func (a *Account) date(schema frame.Schema) (frame.Expr, error) {
	typ, _ := schema.Get(a.cfg.DateCol)
	col := frame.Col(a.cfg.DateCol)
	switch {
	case typ.IsTextual():
		return col.Str().ToDatetime(a.cfg.DateColFormat), nil
	case typ == frame.Datetime:
		return col.Cast(frame.Datetime), nil
	case a.cfg.DateColFormat != "" && typ != frame.Null:
		// Compact dates such as 20240101 are read as integers.
		return col.Cast(frame.String).Str().ToDatetime(a.cfg.DateColFormat), nil
	}
	return frame.Expr{}, fmt.Errorf("account %q: date column %q has type %s, want str or datetime", a.cfg.Name, a.cfg.DateCol, typ)
}

func (a *Account) transaction(schema frame.Schema) (frame.Expr, error) {
	typ, _ := schema.Get(a.cfg.TransactionCol)
	col := frame.Col(a.cfg.TransactionCol)
	if !typ.IsTextual() {
		col = col.Cast(frame.String)
	}
	if a.cleaner != nil {
		col = col.Str().ReplaceRegexp(a.cleaner, "")
	}
	return col.Str().Strip(), nil
}

// amount is numeric(amount) - numeric(fees), times the conversion rate of
// the row's date.
func (a *Account) amount(schema frame.Schema, date frame.Expr) (frame.Expr, error) {
	amount, err := a.numeric(schema, a.cfg.AmountCol)
	if err != nil {
		return frame.Expr{}, err
	}
	if a.cfg.FeesCol != "" {
		fees, err := a.numeric(schema, a.cfg.FeesCol)
		if err != nil {
			return frame.Expr{}, err
		}
		amount = amount.Sub(fees)
	}
	if a.policy != nil {
		amount = amount.Mul(a.policy.Rate(date))
	}
	return amount, nil
}

// numeric strips thousands separators from textual columns before parsing.
func (a *Account) numeric(schema frame.Schema, name string) (frame.Expr, error) {
	typ, _ := schema.Get(name)
	col := frame.Col(name)
	switch {
	case typ.IsTextual():
		return col.Str().Replace(",", "").Cast(frame.Float64), nil
	case typ.IsNumeric(), typ == frame.Null:
		return col.Cast(frame.Float64), nil
	}
	return frame.Expr{}, fmt.Errorf("account %q: column %q has type %s, want a number", a.cfg.Name, name, typ)
}
