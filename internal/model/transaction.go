package model

import "time"

// Canonical column names produced by every account.
const (
	ColAccountName = "account_name"
	ColDate        = "date"
	ColTransaction = "transaction"
	ColAmount      = "amount"
)

// Transaction is one canonical transaction row.
type Transaction struct {
	AccountName string
	Date        time.Time // microsecond precision, UTC
	Label       string
	Amount      float64 // target currency; negative = expense, positive = income
}
