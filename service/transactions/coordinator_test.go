package transactions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/ledgersync/client"
	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/metrics"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/brojonat/ledgersync/service/reachability"
	"github.com/brojonat/ledgersync/service/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote stores created transactions and can fail the next create or get.
type fakeRemote struct {
	mu        sync.Mutex
	records   map[string]ledger.Transaction
	byKey     map[string]string
	createErr error
	getErr    error
	creates   int
	gets      int
	keys      []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]ledger.Transaction{}, byKey: map[string]string{}}
}

func (r *fakeRemote) CreateTransaction(ctx context.Context, input ledger.TransactionInput, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.keys = append(r.keys, key)
	if r.createErr != nil {
		return "", r.createErr
	}
	if id, ok := r.byKey[key]; ok && key != "" {
		return id, nil
	}
	id := fmt.Sprintf("txn_%d", len(r.records)+1)
	r.records[id] = ledger.Transaction{
		ID:         id,
		AccountID:  input.AccountID,
		CategoryID: input.CategoryID,
		Category:   ledger.Category{ID: input.CategoryID, Name: "Groceries"},
		Type:       input.Type,
		Amount:     input.Amount,
		Currency:   input.Currency,
		Date:       input.Date,
		Month:      ledger.MonthOf(input.Date),
	}
	r.byKey[key] = id
	return id, nil
}

func (r *fakeRemote) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return nil, r.getErr
	}
	txn, ok := r.records[id]
	if !ok {
		return nil, &client.APIError{StatusCode: http.StatusNotFound, Message: "transaction not found"}
	}
	return &txn, nil
}

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

type fixture struct {
	flag        *reachability.Flag
	remote      *fakeRemote
	engine      *queue.Engine
	coordinator *Coordinator
}

func newFixture(online bool) *fixture {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	remote := newFakeRemote()
	store := storage.NewQueueStore(storage.NewMemorySlot(), "", nil)
	engine := queue.NewEngine(store, remote, staticToken("tok"), m, nil)
	flag := reachability.NewFlag(online)
	coordinator := NewCoordinator(flag, engine, remote, m, nil)
	engine.Subscribe(coordinator)
	return &fixture{flag: flag, remote: remote, engine: engine, coordinator: coordinator}
}

func input() ledger.TransactionInput {
	return ledger.TransactionInput{
		AccountID:  "acc-1",
		CategoryID: "cat-groceries",
		Type:       ledger.TypeExpense,
		Amount:     decimal.RequireFromString("42.10"),
		Currency:   "USD",
		Date:       time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateTransaction_Offline(t *testing.T) {
	f := newFixture(false)

	txn, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(txn.ID, queue.PendingIDPrefix))
	assert.True(t, txn.Pending)
	assert.Equal(t, ledger.PendingCategory, txn.Category)
	assert.True(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC).Equal(txn.Month))
	assert.Zero(t, f.remote.creates)
	assert.Zero(t, f.remote.gets)

	items := f.engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, txn.ID, items[0].ID)

	visible := f.coordinator.Transactions()
	require.Len(t, visible, 1)
	assert.Equal(t, txn.ID, visible[0].ID)
	assert.Equal(t, 1, f.coordinator.Total())
}

func TestCreateTransaction_Online(t *testing.T) {
	f := newFixture(true)
	f.coordinator.SetTransactions([]ledger.Transaction{{ID: "txn_old"}}, 10)

	txn, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	assert.Equal(t, "txn_1", txn.ID)
	assert.False(t, txn.Pending)
	assert.Equal(t, "Groceries", txn.Category.Name)
	assert.Equal(t, 1, f.remote.creates)
	assert.Equal(t, 1, f.remote.gets)
	assert.Zero(t, f.engine.Count())

	visible := f.coordinator.Transactions()
	require.Len(t, visible, 2)
	assert.Equal(t, "txn_1", visible[0].ID)
	assert.Equal(t, "txn_old", visible[1].ID)
	assert.Equal(t, 11, f.coordinator.Total())

	// a request id is minted and sent as the idempotency key
	require.Len(t, f.remote.keys, 1)
	assert.NotEmpty(t, f.remote.keys[0])
}

func TestCreateTransaction_NetworkFailureFallsBack(t *testing.T) {
	f := newFixture(true)
	f.remote.createErr = fmt.Errorf("request failed: %w: %w", client.ErrNetworkUnreachable, errors.New("connection refused"))

	txn, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	assert.True(t, txn.Pending)
	assert.True(t, queue.IsPendingID(txn.ID))
	items := f.engine.Items()
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].Payload.RequestID)
	assert.Equal(t, f.remote.keys[0], items[0].IdempotencyKey())
	assert.Equal(t, 1, f.coordinator.Total())
}

func TestCreateTransaction_ConfirmUnreachableDoesNotDuplicate(t *testing.T) {
	f := newFixture(true)
	f.remote.getErr = fmt.Errorf("request failed: %w", client.ErrNetworkUnreachable)

	txn, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)
	require.True(t, txn.Pending)

	// the create reached the server; the replay reuses its key
	f.remote.getErr = nil
	result := f.engine.Sync(context.Background())
	assert.Equal(t, 1, result.Succeeded)
	assert.Len(t, f.remote.records, 1)
	assert.Equal(t, f.remote.keys[0], f.remote.keys[1])
}

func TestCreateTransaction_OtherErrorsReturnedUnchanged(t *testing.T) {
	f := newFixture(true)
	apiErr := &client.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "amount must be positive"}
	f.remote.createErr = apiErr

	txn, err := f.coordinator.CreateTransaction(context.Background(), input())

	assert.Nil(t, txn)
	assert.Same(t, apiErr, err)
	assert.Zero(t, f.engine.Count())
	assert.Empty(t, f.coordinator.Transactions())
	assert.Zero(t, f.coordinator.Total())
}

func TestOnWriteSynced_ReplacesPlaceholder(t *testing.T) {
	f := newFixture(false)
	placeholder, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	result := f.engine.Sync(context.Background())
	require.Equal(t, 1, result.Succeeded)

	visible := f.coordinator.Transactions()
	require.Len(t, visible, 1)
	assert.Equal(t, "txn_1", visible[0].ID)
	assert.False(t, visible[0].Pending)
	assert.NotEqual(t, placeholder.ID, visible[0].ID)
	assert.Equal(t, 1, f.coordinator.Total())
}

func TestOnWriteSynced_UnknownPlaceholderIsIgnored(t *testing.T) {
	f := newFixture(true)
	f.coordinator.SetTransactions([]ledger.Transaction{{ID: "txn_9"}}, 1)

	f.coordinator.OnWriteSynced(context.Background(), queue.SyncedWrite{
		QueuedID:    "pending_1_aaaaaaaa",
		Transaction: &ledger.Transaction{ID: "txn_10"},
	})

	visible := f.coordinator.Transactions()
	require.Len(t, visible, 1)
	assert.Equal(t, "txn_9", visible[0].ID)
}

func TestRemovePlaceholder(t *testing.T) {
	f := newFixture(false)
	txn, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	assert.False(t, f.coordinator.RemovePlaceholder("txn_not_pending"))
	assert.True(t, f.coordinator.RemovePlaceholder(txn.ID))
	assert.Empty(t, f.coordinator.Transactions())
	assert.Zero(t, f.coordinator.Total())
}

func TestSetTransactions_KeepsPlaceholders(t *testing.T) {
	f := newFixture(false)
	txn, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	f.coordinator.SetTransactions([]ledger.Transaction{{ID: "txn_a"}, {ID: "txn_b"}}, 25)

	visible := f.coordinator.Transactions()
	require.Len(t, visible, 3)
	assert.Equal(t, txn.ID, visible[0].ID)
	assert.Equal(t, "txn_a", visible[1].ID)
	assert.Equal(t, 26, f.coordinator.Total())
}

func TestReset(t *testing.T) {
	f := newFixture(false)
	_, err := f.coordinator.CreateTransaction(context.Background(), input())
	require.NoError(t, err)

	f.coordinator.Reset(context.Background())

	assert.Empty(t, f.coordinator.Transactions())
	assert.Zero(t, f.coordinator.Total())
}
