package bagels

import (
	"context"
	"math"
	"time"

	"github.com/finwrap-dev/finwrap/internal/logger"
	"github.com/finwrap-dev/finwrap/internal/model"
)

// MissingLabel replaces empty transaction labels on export.
const MissingLabel = "N/A"

// Result summarizes one export.
type Result struct {
	AccountsCreated []string
	Incoming        int // canonical transactions received
	Unresolved      int // dropped because their account id could not be resolved
	Duplicates      int // already present in the store
	Written         int
}

// Exporter reconciles canonical transactions into a bagels store.
type Exporter struct {
	store    *Store
	category model.Category
	now      func() time.Time
}

// NewExporter creates an Exporter filing records under DefaultCategory.
func NewExporter(store *Store) *Exporter {
	return &Exporter{store: store, category: DefaultCategory, now: time.Now}
}

// Export writes the transactions that are not in the store yet.
//
// It runs in two phases. First, missing accounts and the import category
// are created; this is idempotent. Then the new records are inserted in one
// transaction. If the second phase fails, the accounts and category stay,
// and exporting the same data again is safe.
func (e *Exporter) Export(ctx context.Context, txns []model.Transaction) (Result, error) {
	log := logger.FromContext(ctx)
	res := Result{Incoming: len(txns)}
	now := e.now()

	created, err := e.store.CreateAccounts(ctx, accountNames(txns), now)
	if err != nil {
		return res, err
	}
	res.AccountsCreated = created
	for _, name := range created {
		log.Info().Str("account", name).Msg("created account")
	}

	categoryID, err := e.store.EnsureCategory(ctx, e.category, now)
	if err != nil {
		return res, err
	}
	accountIDs, err := e.store.AccountIDs(ctx)
	if err != nil {
		return res, err
	}

	incoming := make([]model.Record, 0, len(txns))
	for _, tx := range txns {
		id, ok := accountIDs[tx.AccountName]
		if !ok {
			res.Unresolved++
			continue
		}
		incoming = append(incoming, toRecord(tx, id, categoryID, now))
	}
	if res.Unresolved > 0 {
		log.Warn().Int("rows", res.Unresolved).Msg("dropped rows with unresolved accounts")
	}

	n, err := e.store.RecordCount(ctx)
	if err != nil {
		return res, err
	}
	fresh := incoming
	if n > 0 {
		log.Debug().Int("existing", n).Msg("reconciling against existing records")
		existing, err := e.store.Records(ctx)
		if err != nil {
			return res, err
		}
		fresh = NewRecords(incoming, existing)
	}
	res.Duplicates = len(incoming) - len(fresh)

	if len(fresh) == 0 {
		log.Info().Msg("no new records to write")
		return res, nil
	}
	log.Info().Int("records", len(fresh)).Msg("writing records")
	if err := e.store.InsertRecords(ctx, fresh); err != nil {
		return res, err
	}
	res.Written = len(fresh)
	return res, nil
}

// NewRecords returns the incoming records whose (label, amount, date) does
// not match any existing record, in their original order.
func NewRecords(incoming, existing []model.Record) []model.Record {
	seen := make(map[model.RecordKey]struct{}, len(existing))
	for _, r := range existing {
		seen[r.Key()] = struct{}{}
	}
	out := make([]model.Record, 0, len(incoming))
	for _, r := range incoming {
		if _, ok := seen[r.Key()]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func toRecord(tx model.Transaction, accountID, categoryID int64, now time.Time) model.Record {
	label := tx.Label
	if label == "" {
		label = MissingLabel
	}
	return model.Record{
		CreatedAt:  now,
		UpdatedAt:  now,
		Label:      label,
		Amount:     math.Abs(tx.Amount),
		Date:       tx.Date,
		AccountID:  accountID,
		CategoryID: categoryID,
		IsIncome:   tx.Amount > 0,
	}
}

func accountNames(txns []model.Transaction) []string {
	seen := make(map[string]bool)
	var names []string
	for _, tx := range txns {
		if !seen[tx.AccountName] {
			seen[tx.AccountName] = true
			names = append(names, tx.AccountName)
		}
	}
	return names
}
