package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyBucket is one calendar month of the trailing window.
type MonthlyBucket struct {
	Key     string          `json:"key"`   // YYYY-MM
	Label   string          `json:"label"` // e.g. "Mar 2025"
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategoryAggregate is the total of one category for a single transaction type.
type CategoryAggregate struct {
	CategoryName string          `json:"categoryName"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Color        string          `json:"color"`
}

// TopCategoryAggregate ranks expense categories by amount.
type TopCategoryAggregate struct {
	CategoryName     string          `json:"categoryName"`
	TransactionCount int             `json:"transactionCount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Color            string          `json:"color"`
}

// Summary holds all-time income and expense totals. The balance is derived.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

// Balance returns TotalIncome - TotalExpense.
func (s Summary) Balance() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalIncome  decimal.Decimal `json:"totalIncome"`
		TotalExpense decimal.Decimal `json:"totalExpense"`
		Balance      decimal.Decimal `json:"balance"`
	}{s.TotalIncome, s.TotalExpense, s.Balance()})
}

// Snapshot is the dashboard payload computed from a user's transactions.
type Snapshot struct {
	UserID           string                 `json:"userId"`
	Monthly          []MonthlyBucket        `json:"monthly"`
	ExpenseBreakdown []CategoryAggregate    `json:"expenseBreakdown"`
	IncomeBreakdown  []CategoryAggregate    `json:"incomeBreakdown"`
	TopCategories    []TopCategoryAggregate `json:"topCategories"`
	Summary          Summary                `json:"summary"`
	TransactionCount int                    `json:"transactionCount"`
	ComputedAt       time.Time              `json:"computedAt"`
}
