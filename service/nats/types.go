package nats

import (
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/shopspring/decimal"
)

// SyncedEvent announces that a write queued offline reached the server.
// It is published to the subject "ledger.synced.{account_id}".
type SyncedEvent struct {
	// Identifiers
	QueuedID      string `json:"queued_id"`
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`

	// Transaction details
	Type     ledger.TransactionType `json:"type"`
	Amount   decimal.Decimal        `json:"amount"`
	Currency string                 `json:"currency"`
	Date     time.Time              `json:"date"`

	// Timing information
	SyncedAt    time.Time `json:"synced_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromSyncedWrite converts a sweep notification into an event.
func FromSyncedWrite(w queue.SyncedWrite) *SyncedEvent {
	event := &SyncedEvent{
		QueuedID:    w.QueuedID,
		AccountID:   w.Payload.AccountID,
		Type:        w.Payload.Type,
		Amount:      w.Payload.Amount,
		Currency:    w.Payload.Currency,
		Date:        w.Payload.Date,
		SyncedAt:    w.SyncedAt,
		PublishedAt: time.Now().UTC(),
	}
	// the confirmed record wins over the replayed payload
	if txn := w.Transaction; txn != nil {
		event.TransactionID = txn.ID
		event.AccountID = txn.AccountID
		event.Type = txn.Type
		event.Amount = txn.Amount
		event.Currency = txn.Currency
		event.Date = txn.Date
	}
	return event
}

// Subject returns the subject an event for accountID is published to.
func Subject(accountID string) string {
	return SubjectPrefix + accountID
}
