package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSummaryBalanceIsDerived(t *testing.T) {
	s := Summary{TotalIncome: decimal.NewFromInt(100), TotalExpense: decimal.NewFromInt(75)}
	if !s.Balance().Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected 25, got %s", s.Balance())
	}
	s.TotalExpense = decimal.NewFromInt(120)
	if !s.Balance().Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("expected balance to follow totals, got %s", s.Balance())
	}
}

func TestSummaryJSONIncludesBalance(t *testing.T) {
	s := Summary{TotalIncome: decimal.NewFromInt(10), TotalExpense: decimal.NewFromInt(4)}
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"balance":"6"`) {
		t.Fatalf("expected derived balance in %s", out)
	}

	var back Summary
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Balance().Equal(s.Balance()) {
		t.Fatalf("expected %s, got %s", s.Balance(), back.Balance())
	}
}
