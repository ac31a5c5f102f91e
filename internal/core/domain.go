package core

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Business Category = "business"
	Personal Category = "personal"
)

type (
	// Category is the fixed two-value expense classification.
	Category string

	ExpenseRecord struct {
		ID       uuid.UUID
		Name     string
		Category Category
		Amount   decimal.Decimal
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrInvalidCategory = errors.New("invalid category")
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{Personal, Business}
}

// ParseCategory accepts the wire value or the display label, case-insensitive.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Business):
		return Business, nil
	case string(Personal):
		return Personal, nil
	default:
		return "", ErrInvalidCategory
	}
}

func (c Category) IsValid() bool {
	return c == Business || c == Personal
}

// String returns the display label.
func (c Category) String() string {
	switch c {
	case Business:
		return "Business"
	case Personal:
		return "Personal"
	default:
		return string(c)
	}
}

// NewRecord creates a record with a freshly generated ID.
func NewRecord(name string, category Category, amount decimal.Decimal) ExpenseRecord {
	return ExpenseRecord{
		ID:       uuid.New(),
		Name:     name,
		Category: category,
		Amount:   amount,
	}
}

// Validate checks the record at the input boundary. The store itself never
// calls it.
func (r ExpenseRecord) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if !r.Category.IsValid() {
		return ErrInvalidCategory
	}
	if r.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Equal reports whether two records carry the same id, name, category and amount.
func (r ExpenseRecord) Equal(o ExpenseRecord) bool {
	return r.ID == o.ID &&
		r.Name == o.Name &&
		r.Category == o.Category &&
		r.Amount.Equal(o.Amount)
}
