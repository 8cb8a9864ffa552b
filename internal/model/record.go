package model

import "time"

// Nature classifies a Bagels category.
type Nature string

const (
	NatureWant Nature = "WANT"
	NatureNeed Nature = "NEED"
	NatureMust Nature = "MUST"
)

// Account is a row of the Bagels account table.
type Account struct {
	ID               int64
	Name             string
	Description      string
	BeginningBalance float64
	Hidden           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Category is a row of the Bagels category table.
type Category struct {
	ID     int64
	Name   string
	Nature Nature
	Color  string
}

// Record is a row of the Bagels record table.
type Record struct {
	ID           int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Label        string
	Amount       float64 // always non-negative; see IsIncome
	Date         time.Time
	AccountID    int64
	CategoryID   int64
	IsIncome     bool
	IsInProgress bool
	IsTransfer   bool
}

// RecordKey identifies a transaction that was already imported.
type RecordKey struct {
	Label  string
	Amount float64
	Date   int64 // unix microseconds
}

// Key returns the reconciliation key of r.
func (r Record) Key() RecordKey {
	return RecordKey{Label: r.Label, Amount: r.Amount, Date: r.Date.UnixMicro()}
}
