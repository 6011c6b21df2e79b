package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validExpense() Expense {
	return Expense{
		ID:          "e1",
		OwnerID:     "u1",
		Description: "Lunch",
		Amount:      decimal.RequireFromString("12.50"),
		Category:    "Food",
		Date:        NewDate(2024, 1, 5),
	}
}

func TestExpenseValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Expense)
		ok     bool
	}{
		{"valid", func(e *Expense) {}, true},
		{"missing owner", func(e *Expense) { e.OwnerID = "" }, false},
		{"empty description", func(e *Expense) { e.Description = "  " }, false},
		{"empty category", func(e *Expense) { e.Category = "" }, false},
		{"zero amount", func(e *Expense) { e.Amount = decimal.Zero }, false},
		{"negative amount", func(e *Expense) { e.Amount = decimal.RequireFromString("-1") }, false},
		{"zero date", func(e *Expense) { e.Date = Date{} }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mutate(&e)
			err := e.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
			}
		})
	}
}

func TestExpensePatchValidateAndApply(t *testing.T) {
	desc := "Dinner"
	amount := decimal.RequireFromString("20")
	patch := ExpensePatch{Description: &desc, Amount: &amount}
	if err := patch.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	e := validExpense()
	patch.Apply(&e)
	if e.Description != "Dinner" {
		t.Fatalf("description not applied: %q", e.Description)
	}
	if !e.Amount.Equal(amount) {
		t.Fatalf("amount not applied: %s", e.Amount)
	}
	// Absent fields stay untouched.
	if e.Category != "Food" {
		t.Fatalf("category changed unexpectedly: %q", e.Category)
	}

	empty := ""
	bad := ExpensePatch{Description: &empty}
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if !(ExpensePatch{}).IsEmpty() {
		t.Fatal("empty patch should report IsEmpty")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, 1, 5)
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"2024-01-05"` {
		t.Fatalf("unexpected encoding: %s", raw)
	}
	var back Date
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip mismatch: %v vs %v", back, d)
	}
}

func TestExpenseJSONHidesNothingButHash(t *testing.T) {
	u := User{ID: "u1", Username: "alice", PasswordHash: "secret"}
	raw, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, leaked := m["PasswordHash"]; leaked {
		t.Fatal("password hash must not be serialized")
	}
	if m["username"] != "alice" {
		t.Fatalf("unexpected username field: %v", m["username"])
	}
}

func TestAmountJSONIsBareNumber(t *testing.T) {
	e := validExpense()
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(m["amount"]) != "12.5" {
		t.Fatalf("amount should be a bare number, got %s", m["amount"])
	}
}
