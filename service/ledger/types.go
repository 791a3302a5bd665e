package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement for a transaction.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// TransactionInput is everything the remote API needs to create a transaction.
// It is also the replay payload of a queued offline write, so it must stay
// self-contained.
type TransactionInput struct {
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        time.Time       `json:"date"`
	Description *string         `json:"description,omitempty"`

	// RequestID is sent as the Idempotency-Key when set.
	RequestID string `json:"request_id,omitempty"`
}

// Category is the category shape embedded in a transaction record.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// Transaction is a transaction record as the rest of the app sees it.
// Pending is true for client-synthesized placeholders whose write has not
// been confirmed by the server yet.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id"`
	Category    Category        `json:"category"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        time.Time       `json:"date"`
	Month       time.Time       `json:"month"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Pending     bool            `json:"pending,omitempty"`
}

// PendingCategory stands in for the real category on placeholders.
var PendingCategory = Category{
	ID:    "pending",
	Name:  "Pending sync",
	Icon:  "cloud-upload",
	Color: "#9E9E9E",
}

// MonthOf returns the first day of t's month, keeping t's location.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// NewPlaceholder projects a queued input into the transaction shape.
func NewPlaceholder(id string, input TransactionInput, now time.Time) *Transaction {
	return &Transaction{
		ID:          id,
		AccountID:   input.AccountID,
		CategoryID:  input.CategoryID,
		Category:    PendingCategory,
		Type:        input.Type,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Date:        input.Date,
		Month:       MonthOf(input.Date),
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Pending:     true,
	}
}

// Validate reports every problem with the input. A nil error means the input
// is complete enough to send to the server.
func (in TransactionInput) Validate() error {
	var errs []error
	if strings.TrimSpace(in.AccountID) == "" {
		errs = append(errs, errors.New("account_id is required"))
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		errs = append(errs, errors.New("category_id is required"))
	}
	if in.Type != TypeIncome && in.Type != TypeExpense {
		errs = append(errs, fmt.Errorf("invalid type %q: must be 'income' or 'expense'", in.Type))
	}
	if !in.Amount.IsPositive() {
		errs = append(errs, errors.New("amount must be positive"))
	}
	if len(in.Currency) != 3 {
		errs = append(errs, errors.New("currency must be a 3-letter code"))
	}
	if in.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	}
	return errors.Join(errs...)
}
