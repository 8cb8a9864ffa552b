package bagels

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finwrap-dev/finwrap/internal/model"
)

// timeLayout is how bagels stores DATETIME columns.
const timeLayout = "2006-01-02 15:04:05.000000"

// Description marks accounts created by finwrap.
const Description = "Imported with finwrap"

// DefaultCategory receives every imported record.
var DefaultCategory = model.Category{Name: "imported", Nature: model.NatureNeed, Color: "blue"}

// Store reads and writes a bagels SQLite database.
type Store struct {
	db *sql.DB
}

// Open connects to an existing bagels database.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// AccountIDs maps account names to ids.
func (s *Store) AccountIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM account`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// CreateAccounts creates the named accounts that do not exist yet, with a
// zero beginning balance, and returns the names it created. Calling it again
// with the same names creates nothing.
func (s *Store) CreateAccounts(ctx context.Context, names []string, now time.Time) ([]string, error) {
	existing, err := s.AccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var created []string
	ts := now.Format(timeLayout)
	for _, name := range names {
		if _, ok := existing[name]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO account (name, description, createdAt, updatedAt, beginningBalance, hidden) VALUES (?, ?, ?, ?, ?, ?)`,
			name, Description, ts, ts, 0.0, 0,
		); err != nil {
			return nil, fmt.Errorf("create account %q: %w", name, err)
		}
		existing[name] = 0
		created = append(created, name)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accounts: %w", err)
	}
	return created, nil
}

// EnsureCategory returns the id of the category named c.Name, creating it
// first if needed.
func (s *Store) EnsureCategory(ctx context.Context, c model.Category, now time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM category WHERE name = ? ORDER BY id LIMIT 1`, c.Name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query category: %w", err)
	}

	ts := now.Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO category (name, createdAt, updatedAt, nature, color) VALUES (?, ?, ?, ?, ?)`,
		c.Name, ts, ts, string(c.Nature), c.Color,
	)
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	return id, nil
}

// RecordCount returns the number of stored records.
func (s *Store) RecordCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM record`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Records returns every stored record, decoding bagels' textual timestamps
// and integer booleans.
func (s *Store) Records(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, createdAt, updatedAt, label, amount, date, accountId, categoryId,
		       isIncome, isInProgress, isTransfer
		FROM record
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var (
			r          model.Record
			label      sql.NullString
			categoryID sql.NullInt64
		)
		var createdAt, updatedAt, date, amount, isIncome, isInProgress, isTransfer any
		if err := rows.Scan(&r.ID, &createdAt, &updatedAt, &label, &amount, &date, &r.AccountID, &categoryID,
			&isIncome, &isInProgress, &isTransfer); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Label = label.String
		r.CategoryID = categoryID.Int64
		if err := decodeRecord(&r, createdAt, updatedAt, date, amount, isIncome, isInProgress, isTransfer); err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeRecord(r *model.Record, createdAt, updatedAt, date, amount, isIncome, isInProgress, isTransfer any) error {
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return fmt.Errorf("updatedAt: %w", err)
	}
	if r.Date, err = parseTime(date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if r.Amount, err = parseFloat(amount); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if r.IsIncome, err = parseBool(isIncome); err != nil {
		return fmt.Errorf("isIncome: %w", err)
	}
	if r.IsInProgress, err = parseBool(isInProgress); err != nil {
		return fmt.Errorf("isInProgress: %w", err)
	}
	if r.IsTransfer, err = parseBool(isTransfer); err != nil {
		return fmt.Errorf("isTransfer: %w", err)
	}
	return nil
}

// InsertRecords writes records in a single transaction.
func (s *Store) InsertRecords(ctx context.Context, records []model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO record (createdAt, updatedAt, label, amount, date, accountId, categoryId,
		                    isIncome, isInProgress, isTransfer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.CreatedAt.Format(timeLayout), r.UpdatedAt.Format(timeLayout),
			r.Label, r.Amount, r.Date.Format(timeLayout),
			r.AccountID, r.CategoryID,
			boolInt(r.IsIncome), boolInt(r.IsInProgress), boolInt(r.IsTransfer),
		); err != nil {
			return fmt.Errorf("insert record %q: %w", r.Label, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	time.DateOnly,
}

func parseTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Truncate(time.Microsecond), nil
	case string:
		return parseTimeString(x)
	case []byte:
		return parseTimeString(string(x))
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected time value %T", v)
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

func parseFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	}
	return 0, fmt.Errorf("unexpected number value %T", v)
}

func parseBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x == 1, nil
	case float64:
		return x == 1, nil
	case string:
		return x == "1" || strings.EqualFold(x, "true"), nil
	case []byte:
		return parseBool(string(x))
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("unexpected boolean value %T", v)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
