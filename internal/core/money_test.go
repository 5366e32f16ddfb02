package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAmountCoercion(t *testing.T) {
	cases := []struct {
		json  string
		value string
		valid bool
	}{
		{`12.5`, "12.5", true},
		{`"40"`, "40", true},
		{`null`, "0", false},
		{`"abc"`, "0", false},
		{`true`, "0", false},
		{`""`, "0", false},
	}
	for _, tc := range cases {
		var a Amount
		if err := json.Unmarshal([]byte(tc.json), &a); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.json, err)
		}
		if got := a.Decimal().String(); got != tc.value {
			t.Errorf("%s: expected %s, got %s", tc.json, tc.value, got)
		}
		if a.Valid() != tc.valid {
			t.Errorf("%s: expected valid=%v", tc.json, tc.valid)
		}
	}
}

func TestTransactionAmountPreservesGarbage(t *testing.T) {
	var tx Transaction
	if err := json.Unmarshal([]byte(`{"id":"t1","amount":"n/a","type":"expense"}`), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(tx.Amount)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"n/a"` {
		t.Fatalf("expected raw value to survive, got %s", out)
	}
}
