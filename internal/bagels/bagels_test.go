package bagels

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwrap-dev/finwrap/internal/model"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// newStore creates an empty bagels database from testdata/bagels.sql.
func newStore(t *testing.T) *Store {
	t.Helper()
	schema, err := os.ReadFile("../../testdata/bagels.sql")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "db.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newExporter(s *Store) *Exporter {
	e := NewExporter(s)
	e.now = func() time.Time { return fixedNow }
	return e
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExport_EmptyStoreWritesEverything(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	res, err := newExporter(s).Export(ctx, []model.Transaction{
		{AccountName: "Checking", Date: day(1), Label: "Coffee", Amount: -5},
		{AccountName: "Checking", Date: day(2), Label: "Salary", Amount: 3000},
		{AccountName: "Savings", Date: day(3), Label: "", Amount: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Checking", "Savings"}, res.AccountsCreated)
	assert.Equal(t, 3, res.Incoming)
	assert.Equal(t, 3, res.Written)
	assert.Zero(t, res.Duplicates)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	ids, err := s.AccountIDs(ctx)
	require.NoError(t, err)

	coffee := records[0]
	assert.Equal(t, "Coffee", coffee.Label)
	assert.Equal(t, 5.0, coffee.Amount)
	assert.False(t, coffee.IsIncome)
	assert.False(t, coffee.IsTransfer)
	assert.False(t, coffee.IsInProgress)
	assert.Equal(t, day(1), coffee.Date)
	assert.Equal(t, fixedNow, coffee.CreatedAt)
	assert.Equal(t, ids["Checking"], coffee.AccountID)

	assert.True(t, records[1].IsIncome)
	assert.Equal(t, 3000.0, records[1].Amount)

	assert.Equal(t, MissingLabel, records[2].Label)
	assert.Equal(t, ids["Savings"], records[2].AccountID)
}

func TestExport_WritesOnlyNewRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := newExporter(s)

	_, err := e.Export(ctx, []model.Transaction{
		{AccountName: "Checking", Date: day(1), Label: "Coffee", Amount: -5},
	})
	require.NoError(t, err)

	res, err := e.Export(ctx, []model.Transaction{
		{AccountName: "Checking", Date: day(1), Label: "Coffee", Amount: -5},
		{AccountName: "Checking", Date: day(3), Label: "Rent", Amount: -1200},
	})
	require.NoError(t, err)
	assert.Empty(t, res.AccountsCreated)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Written)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Rent", records[1].Label)
	assert.Equal(t, 1200.0, records[1].Amount)
}

func TestExport_NothingNew(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := newExporter(s)
	txns := []model.Transaction{
		{AccountName: "Checking", Date: day(1), Label: "Coffee", Amount: -5},
		{AccountName: "Checking", Date: day(2), Label: "Books", Amount: -12},
	}

	_, err := e.Export(ctx, txns)
	require.NoError(t, err)
	res, err := e.Export(ctx, txns)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Duplicates)
	assert.Zero(t, res.Written)

	n, err := s.RecordCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExport_MatchesTextualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateAccounts(ctx, []string{"Checking"}, fixedNow)
	require.NoError(t, err)
	catID, err := s.EnsureCategory(ctx, DefaultCategory, fixedNow)
	require.NoError(t, err)
	ids, err := s.AccountIDs(ctx)
	require.NoError(t, err)

	// Rows written by bagels itself.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO record (createdAt, updatedAt, label, amount, date, accountId, categoryId, isIncome, isInProgress, isTransfer)
		VALUES ('2024-01-05 10:00:00.000000', '2024-01-05 10:00:00.000000', 'Coffee', 5.0, '2024-01-01 00:00:00.000000', ?, ?, 0, 0, 0)`,
		ids["Checking"], catID)
	require.NoError(t, err)

	res, err := newExporter(s).Export(ctx, []model.Transaction{
		{AccountName: "Checking", Date: day(1), Label: "Coffee", Amount: -5},
		{AccountName: "Checking", Date: day(3), Label: "Rent", Amount: -1200},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Written)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), records[0].CreatedAt)
	assert.Equal(t, "Rent", records[1].Label)
}

func TestCreateAccounts_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	created, err := s.CreateAccounts(ctx, []string{"A", "B"}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, created)

	created, err = s.CreateAccounts(ctx, []string{"B", "C", "C"}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, created)

	ids, err := s.AccountIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	var desc string
	var balance float64
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT description, beginningBalance FROM account WHERE name = 'A'`).Scan(&desc, &balance))
	assert.Equal(t, Description, desc)
	assert.Zero(t, balance)
}

func TestEnsureCategory_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.EnsureCategory(ctx, DefaultCategory, fixedNow)
	require.NoError(t, err)
	second, err := s.EnsureCategory(ctx, DefaultCategory, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM category`).Scan(&n))
	assert.Equal(t, 1, n)

	var nature, color string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT nature, color FROM category WHERE id = ?`, first).Scan(&nature, &color))
	assert.Equal(t, "NEED", nature)
	assert.Equal(t, "blue", color)
}

func TestNewRecords(t *testing.T) {
	existing := []model.Record{{Label: "Coffee", Amount: 5, Date: day(1)}}
	incoming := []model.Record{
		{Label: "Coffee", Amount: 5, Date: day(1)},
		{Label: "Coffee", Amount: 5, Date: day(2)},
		{Label: "Coffee", Amount: 6, Date: day(1)},
		{Label: "coffee", Amount: 5, Date: day(1)},
	}

	got := NewRecords(incoming, existing)
	assert.Equal(t, incoming[1:], got)
	assert.Equal(t, incoming, NewRecords(incoming, nil))
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   any
		want time.Time
	}{
		{"2024-01-01 00:00:00.000000", day(1)},
		{"2024-01-01 13:14:15.123456", time.Date(2024, 1, 1, 13, 14, 15, 123456000, time.UTC)},
		{"2024-01-01T00:00:00", day(1)},
		{"2024-01-01", day(1)},
		{[]byte("2024-01-02 00:00:00"), day(2)},
		{time.Date(2024, 1, 1, 0, 0, 0, 999, time.UTC), day(1)},
		{nil, time.Time{}},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	_, err := parseTime("yesterday")
	assert.Error(t, err)
	_, err = parseTime(3.5)
	assert.Error(t, err)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bagels")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestLocateDatabase(t *testing.T) {
	bin := writeScript(t, "echo 'Database file:'\necho '  /home/me/.local/share/bagels/db.db  '\n")

	path, err := LocateDatabase(context.Background(), bin)
	require.NoError(t, err)
	assert.Equal(t, "/home/me/.local/share/bagels/db.db", path)
}

func TestLocateDatabase_NotInstalled(t *testing.T) {
	for _, bin := range []string{
		"finwrap-test-no-such-bagels",
		filepath.Join(t.TempDir(), "bagels"),
	} {
		_, err := LocateDatabase(context.Background(), bin)
		var notFound *BinaryNotFoundError
		require.ErrorAs(t, err, &notFound, bin)
		assert.Equal(t, bin, notFound.Binary)
	}
}

func TestLocateDatabase_CommandFails(t *testing.T) {
	bin := writeScript(t, "echo 'no config' >&2\nexit 2\n")

	_, err := LocateDatabase(context.Background(), bin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config")
	var notFound *BinaryNotFoundError
	assert.NotErrorAs(t, err, &notFound)
}

func TestLocateDatabase_EmptyOutput(t *testing.T) {
	bin := writeScript(t, "exit 0\n")

	_, err := LocateDatabase(context.Background(), bin)
	assert.ErrorContains(t, err, "no path")
}
