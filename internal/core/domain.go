package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Error kinds surfaced by the credential and expense stores. Callers classify
// failures with errors.Is; the HTTP layer maps each kind to a status code.
var (
	ErrValidation     = errors.New("invalid input")
	ErrConflict       = errors.New("already exists")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage failure")
)

func init() {
	// Amounts are serialized as bare JSON numbers (12.5, not "12.5").
	decimal.MarshalJSONWithoutQuotes = true
}

type (
	// Date is a calendar date without a time component. It marshals as
	// "YYYY-MM-DD", matching the wire format of the expense API.
	Date struct {
		time.Time
	}

	// User is a registered account. The password hash never leaves the
	// process; the json tag guards against accidental exposure.
	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Identity is the authenticated caller resolved from a bearer token.
	Identity struct {
		ID       string
		Username string
	}

	// Expense is a single expense record. OwnerID is always set from the
	// authenticated identity, never from client input.
	Expense struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
	}

	// ExpensePatch carries the fields of a partial update. Nil pointers mean
	// "leave unchanged".
	ExpensePatch struct {
		Description *string
		Amount      *decimal.Decimal
		Category    *string
		Date        *Date
	}

	// Summary aggregates one owner's expenses.
	Summary struct {
		Total      decimal.Decimal            `json:"total"`
		Count      int                        `json:"count"`
		Categories map[string]decimal.Decimal `json:"categories"`
	}
)

const dateLayout = "2006-01-02"

// NewDate builds a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the invariants of a fully formed expense record.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	return nil
}

// Validate checks only the fields present in the patch; the patch itself may
// be empty, which updates nothing but still stamps UpdatedAt.
func (p ExpensePatch) Validate() error {
	if p.Description != nil {
		if strings.TrimSpace(*p.Description) == "" {
			return fmt.Errorf("%w: description cannot be empty", ErrValidation)
		}
		if len(*p.Description) > 200 {
			return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
		}
	}
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return fmt.Errorf("%w: category cannot be empty", ErrValidation)
	}
	if p.Date != nil && p.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be empty", ErrValidation)
	}
	return nil
}

// Apply copies the present patch fields onto e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = strings.TrimSpace(*p.Category)
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
}

// IsEmpty reports whether the patch carries no fields.
func (p ExpensePatch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.Category == nil && p.Date == nil
}
