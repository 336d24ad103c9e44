package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"foundation_portal/internal/common"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const MaxExpenseDescriptionLength = 500

// Amounts go over the wire as JSON numbers. Decoding accepts numbers and strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Approval is one approver's current vote on an expense.
type Approval struct {
	ApproverID string    `json:"approver_id"`
	Approved   bool      `json:"approved"`
	Date       time.Time `json:"date"`
}

type Expense struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	CategorySlug    string          `json:"category_slug"`
	CreatedBy       string          `json:"created_by"`
	Approvals       []Approval      `json:"approvals"`
	IsFullyApproved bool            `json:"is_fully_approved"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate trims the free-text fields, derives the category slug and checks bounds.
func (e *Expense) Validate() error {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)

	if e.Amount.IsNegative() {
		return common.Validationf("amount must not be negative")
	}
	if e.Description == "" {
		return common.Validationf("description is required")
	}
	if utf8.RuneCountInString(e.Description) > MaxExpenseDescriptionLength {
		return common.Validationf("description must be at most %d characters", MaxExpenseDescriptionLength)
	}
	if e.Category == "" {
		return common.Validationf("category is required")
	}
	e.CategorySlug = slug.Make(e.Category)
	if e.CreatedBy == "" {
		return common.Validationf("creator is required")
	}
	return nil
}

// Clone returns a copy whose approval list can be mutated independently.
func (e *Expense) Clone() *Expense {
	out := *e
	out.Approvals = append([]Approval(nil), e.Approvals...)
	return &out
}
