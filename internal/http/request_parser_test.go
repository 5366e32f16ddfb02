package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/session"
)

func TestAmountInput(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    string
		wantErr bool
	}{
		{name: "number", json: `12.5`, want: "12.5"},
		{name: "string with dot", json: `"12.34"`, want: "12.34"},
		{name: "string with comma", json: `"12,345"`, want: "12.35"},
		{name: "null", json: `null`, wantErr: true},
		{name: "negative", json: `-3`, wantErr: true},
		{name: "zero", json: `"0"`, wantErr: true},
		{name: "garbage", json: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a amountInput
			if err := json.Unmarshal([]byte(tt.json), &a); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, err := a.parse()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parse() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransactionRequest(t *testing.T) {
	req := transactionRequest{
		Amount:      "7,10",
		Type:        " Expense ",
		CategoryID:  " cat-2 ",
		Description: "rent\x00 ",
		Date:        "2025-03-01",
	}
	tx, err := req.toTransaction("u1", "t-1")
	if err != nil {
		t.Fatalf("toTransaction() error = %v", err)
	}
	if tx.Type != core.Expense || tx.CategoryID != "cat-2" || tx.Description != "rent" {
		t.Errorf("transaction = %+v", tx)
	}
	if tx.Amount.String() != "7.1" {
		t.Errorf("amount = %s, want 7.1", tx.Amount)
	}
	if err := tx.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrNoUser, http.StatusUnauthorized},
		{core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{errInvalidBody, http.StatusUnprocessableEntity},
		{recordstore.ErrNotFound, http.StatusNotFound},
		{services.ErrOffline, http.StatusServiceUnavailable},
		{recordstore.ErrUnavailable, http.StatusBadGateway},
		{offline.ErrCorruptQueue, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
