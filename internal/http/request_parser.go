package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
)

var errInvalidBody = errors.New("invalid request body")

// amountInput accepts an amount as a JSON number or string. Both dot and
// comma decimal separators are allowed.
type amountInput string

func (a *amountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountInput(s)
		return nil
	}
	*a = amountInput(data)
	return nil
}

func (a amountInput) parse() (decimal.Decimal, error) {
	return core.ParseAmount(string(a))
}

type transactionRequest struct {
	Amount      amountInput          `json:"amount"`
	Type        core.TransactionType `json:"type"`
	CategoryID  string               `json:"categoryId"`
	Description string               `json:"description"`
	Date        string               `json:"date"`
}

func (r transactionRequest) toTransaction(userID, id string) (core.Transaction, error) {
	amount, err := r.Amount.parse()
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          id,
		UserID:      userID,
		Amount:      core.NewAmount(amount),
		Type:        core.TransactionType(strings.ToLower(strings.TrimSpace(string(r.Type)))),
		CategoryID:  strings.TrimSpace(r.CategoryID),
		Description: sanitizeInput(r.Description),
		Date:        strings.TrimSpace(r.Date),
	}, nil
}

type budgetRequest struct {
	CategoryID string            `json:"categoryId"`
	Amount     amountInput       `json:"amount"`
	Period     core.BudgetPeriod `json:"period"`
	StartDate  string            `json:"startDate"`
	EndDate    string            `json:"endDate"`
}

func (r budgetRequest) toBudget(userID, id string) (core.Budget, error) {
	amount, err := r.Amount.parse()
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		ID:         id,
		UserID:     userID,
		CategoryID: strings.TrimSpace(r.CategoryID),
		Amount:     amount,
		Period:     core.BudgetPeriod(strings.ToLower(strings.TrimSpace(string(r.Period)))),
		StartDate:  strings.TrimSpace(r.StartDate),
		EndDate:    strings.TrimSpace(r.EndDate),
	}, nil
}

type sessionRequest struct {
	UserID   string `json:"userId"`
	Currency string `json:"currency"`
	Theme    string `json:"theme"`
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
