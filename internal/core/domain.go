package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Weekly  BudgetPeriod = "weekly"
	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"
)

// UncategorizedLabel is the category name used when a transaction's category
// is missing or cannot be resolved.
const UncategorizedLabel = "Uncategorized"

// DateLayout is the ISO calendar date layout used by transaction and budget dates.
const DateLayout = "2006-01-02"

type (
	TransactionType string
	BudgetPeriod    string

	Transaction struct {
		ID           string          `json:"id"`
		UserID       string          `json:"userId"`
		Amount       Amount          `json:"amount"`
		Type         TransactionType `json:"type"`
		CategoryID   string          `json:"categoryId,omitempty"`
		CategoryName string          `json:"categoryName,omitempty"` // resolved by join, not persisted
		Description  string          `json:"description,omitempty"`
		Date         string          `json:"date"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	Category struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		UserID   *string         `json:"userId"` // nil for global categories
		Type     TransactionType `json:"type"`
		IsActive bool            `json:"isActive"`
	}

	Budget struct {
		ID         string          `json:"id"`
		UserID     string          `json:"userId"`
		CategoryID string          `json:"categoryId"`
		Amount     decimal.Decimal `json:"amount"`
		Period     BudgetPeriod    `json:"period"`
		StartDate  string          `json:"startDate"`
		EndDate    string          `json:"endDate,omitempty"`
		CreatedAt  time.Time       `json:"createdAt"`
		UpdatedAt  time.Time       `json:"updatedAt"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPeriod    = errors.New("invalid budget period")
	ErrEmptyUser        = errors.New("empty user id")
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyCategory    = errors.New("empty category id")
	ErrDescriptionLimit = errors.New("description too long (max 200 characters)")
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Valid reports whether p is one of the known budget periods.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// ParseDate parses the calendar date at the start of s. Timestamps such as
// "2025-03-14T10:00:00Z" are accepted; only the date part is used.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, ErrInvalidDate
	}
	d, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// MonthKeyOf formats the year-month bucket key for a point in time.
func MonthKeyOf(t time.Time) string {
	return t.Format("2006-01")
}

// MonthKey returns the YYYY-MM key of the transaction date. It reports false
// when the date cannot be parsed.
func (t Transaction) MonthKey() (string, bool) {
	d, err := ParseDate(t.Date)
	if err != nil {
		return "", false
	}
	return MonthKeyOf(d), true
}

// CategoryLabel returns the resolved category name or UncategorizedLabel.
func (t Transaction) CategoryLabel() string {
	if name := strings.TrimSpace(t.CategoryName); name != "" {
		return name
	}
	return UncategorizedLabel
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.Valid() || !t.Amount.Decimal().IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLimit
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	start, err := ParseDate(b.StartDate)
	if err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if b.EndDate != "" {
		end, err := ParseDate(b.EndDate)
		if err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if end.Before(start) {
			return errors.New("end date must be after start date")
		}
	}
	return nil
}
