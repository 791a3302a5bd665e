package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMonthOf(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			in:   time.Date(2026, time.March, 17, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "already first",
			in:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "last day of leap february",
			in:   time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC),
			want: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(MonthOf(tt.in)))
		})
	}
}

func TestNewPlaceholder(t *testing.T) {
	desc := "coffee"
	now := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	input := TransactionInput{
		AccountID:   "acc-1",
		CategoryID:  "cat-food",
		Type:        TypeExpense,
		Amount:      decimal.RequireFromString("4.50"),
		Currency:    "EUR",
		Date:        time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC),
		Description: &desc,
	}

	p := NewPlaceholder("pending_1_abc", input, now)

	assert.Equal(t, "pending_1_abc", p.ID)
	assert.True(t, p.Pending)
	assert.Equal(t, PendingCategory, p.Category)
	assert.Equal(t, "cat-food", p.CategoryID)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC).Equal(p.Month))
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, &desc, p.Description)
}

func TestTransactionInputValidate(t *testing.T) {
	valid := TransactionInput{
		AccountID:  "acc-1",
		CategoryID: "cat-food",
		Type:       TypeIncome,
		Amount:     decimal.RequireFromString("10"),
		Currency:   "USD",
		Date:       time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(in *TransactionInput)
		want   string
	}{
		{"missing account", func(in *TransactionInput) { in.AccountID = " " }, "account_id is required"},
		{"missing category", func(in *TransactionInput) { in.CategoryID = "" }, "category_id is required"},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, "invalid type"},
		{"zero amount", func(in *TransactionInput) { in.Amount = decimal.Zero }, "amount must be positive"},
		{"negative amount", func(in *TransactionInput) { in.Amount = decimal.RequireFromString("-1") }, "amount must be positive"},
		{"bad currency", func(in *TransactionInput) { in.Currency = "DOLLARS" }, "currency"},
		{"missing date", func(in *TransactionInput) { in.Date = time.Time{} }, "date is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}

	t.Run("collects every problem", func(t *testing.T) {
		err := TransactionInput{}.Validate()
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "account_id is required")
			assert.Contains(t, err.Error(), "date is required")
		}
	})
}
