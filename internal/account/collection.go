package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finwrap-dev/finwrap/internal/config"
	"github.com/finwrap-dev/finwrap/internal/currency"
	"github.com/finwrap-dev/finwrap/internal/frame"
	"github.com/finwrap-dev/finwrap/internal/logger"
	"github.com/finwrap-dev/finwrap/internal/model"
)

// Collection is an ordered set of accounts whose output is concatenated.
type Collection struct {
	accounts []*Account
}

// NewCollection builds every configured account.
func NewCollection(cfg config.Collection, rates currency.RateSource) (*Collection, error) {
	if len(cfg.Accounts) == 0 {
		return nil, errors.New("collection has no accounts")
	}
	c := &Collection{accounts: make([]*Account, 0, len(cfg.Accounts))}
	for _, ac := range cfg.Accounts {
		a, err := New(ac, rates)
		if err != nil {
			return nil, err
		}
		c.accounts = append(c.accounts, a)
	}
	return c, nil
}

// Accounts returns the member accounts in order.
func (c *Collection) Accounts() []*Account { return c.accounts }

// GetData stacks the members' canonical output in order. Rows are not
// deduplicated across accounts.
func (c *Collection) GetData(ctx context.Context) (*frame.LazyFrame, error) {
	plans := make([]*frame.LazyFrame, len(c.accounts))
	for i, a := range c.accounts {
		lf, err := a.GetData(ctx)
		if err != nil {
			return nil, err
		}
		plans[i] = lf
	}
	return frame.Concat(plans...), nil
}

// Transactions collects a canonical plan into Transactions. Rows with no
// date or amount cannot be reconciled and are skipped with a warning; a
// missing label becomes empty.
func Transactions(ctx context.Context, lf *frame.LazyFrame) ([]model.Transaction, error) {
	f, err := lf.Collect(ctx)
	if err != nil {
		return nil, err
	}
	cols := make([]*frame.Series, 4)
	for i, name := range []string{model.ColAccountName, model.ColDate, model.ColTransaction, model.ColAmount} {
		if cols[i], err = f.Column(name); err != nil {
			return nil, fmt.Errorf("canonical data: %w", err)
		}
	}
	names, dates, labels, amounts := cols[0], cols[1], cols[2], cols[3]

	log := logger.FromContext(ctx)
	txns := make([]model.Transaction, 0, f.Height())
	for i := 0; i < f.Height(); i++ {
		date, okDate := dates.Value(i).(time.Time)
		amount, okAmount := amounts.Value(i).(float64)
		name, _ := names.Value(i).(string)
		if !okDate || !okAmount {
			log.Warn().Str("account", name).Int("row", i).Msg("skipping transaction without date or amount")
			continue
		}
		label, _ := labels.Value(i).(string)
		txns = append(txns, model.Transaction{
			AccountName: name,
			Date:        date,
			Label:       label,
			Amount:      amount,
		})
	}
	return txns, nil
}
