package devapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/ledgersync/client"
	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/brojonat/ledgersync/service/session"
	"github.com/brojonat/ledgersync/service/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("dev-secret")

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testInput() ledger.TransactionInput {
	return ledger.TransactionInput{
		AccountID:  "acc-1",
		CategoryID: "cat-groceries",
		Type:       ledger.TypeExpense,
		Amount:     decimal.RequireFromString("12.99"),
		Currency:   "usd",
		Date:       time.Date(2026, time.October, 3, 0, 0, 0, 0, time.UTC),
	}
}

func newTestAPI(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	h := NewHandler(testSecret, []ledger.Category{{ID: "cat-groceries", Name: "Groceries"}}, testLogger())
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return h, srv
}

func tokenFor(t *testing.T, userID string) staticToken {
	t.Helper()
	tok, err := session.GenerateToken(testSecret, userID, "device-1", time.Hour)
	require.NoError(t, err)
	return staticToken(tok)
}

func TestCreateAndGet(t *testing.T) {
	_, srv := newTestAPI(t)
	c := client.NewClient(srv.URL, nil, tokenFor(t, "user-1"), testLogger())

	id, err := c.CreateTransaction(context.Background(), testInput(), "key-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "txn_"))

	txn, err := c.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, txn.ID)
	assert.Equal(t, "Groceries", txn.Category.Name)
	assert.Equal(t, "USD", txn.Currency)
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("12.99")))
	assert.True(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC).Equal(txn.Month))
}

func TestIdempotentReplayReturnsOriginalID(t *testing.T) {
	h, srv := newTestAPI(t)
	c := client.NewClient(srv.URL, nil, tokenFor(t, "user-1"), testLogger())

	first, err := c.CreateTransaction(context.Background(), testInput(), "pending_1_abcd1234")
	require.NoError(t, err)
	second, err := c.CreateTransaction(context.Background(), testInput(), "pending_1_abcd1234")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.Count())

	// without a key every create is new
	_, err = c.CreateTransaction(context.Background(), testInput(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Count())
}

func TestIdempotencyKeyReuseWithDifferentBody(t *testing.T) {
	_, srv := newTestAPI(t)
	c := client.NewClient(srv.URL, nil, tokenFor(t, "user-1"), testLogger())

	_, err := c.CreateTransaction(context.Background(), testInput(), "key-1")
	require.NoError(t, err)

	changed := testInput()
	changed.Amount = decimal.RequireFromString("99")
	_, err = c.CreateTransaction(context.Background(), changed, "key-1")

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestKeysAndRecordsAreScopedPerUser(t *testing.T) {
	h, srv := newTestAPI(t)
	alice := client.NewClient(srv.URL, nil, tokenFor(t, "alice"), testLogger())
	bob := client.NewClient(srv.URL, nil, tokenFor(t, "bob"), testLogger())

	a, err := alice.CreateTransaction(context.Background(), testInput(), "same-key")
	require.NoError(t, err)
	b, err := bob.CreateTransaction(context.Background(), testInput(), "same-key")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, h.Count())

	_, err = bob.GetTransaction(context.Background(), a)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestRejectsInvalidInputAndMissingAuth(t *testing.T) {
	_, srv := newTestAPI(t)

	anonymous := client.NewClient(srv.URL, nil, nil, testLogger())
	_, err := anonymous.CreateTransaction(context.Background(), testInput(), "")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	forged, err := session.GenerateToken([]byte("other-secret"), "user-1", "", time.Hour)
	require.NoError(t, err)
	c := client.NewClient(srv.URL, nil, staticToken(forged), testLogger())
	_, err = c.CreateTransaction(context.Background(), testInput(), "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	c = client.NewClient(srv.URL, nil, tokenFor(t, "user-1"), testLogger())
	bad := testInput()
	bad.Amount = decimal.Zero
	_, err = c.CreateTransaction(context.Background(), bad, "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "amount must be positive")
}

func TestNilLoggerDefaultsToDiscard(t *testing.T) {
	var h *Handler
	require.NotPanics(t, func() { h = NewHandler(testSecret, nil, nil) })

	srv := httptest.NewServer(NewRouter(h, nil))
	defer srv.Close()
	c := client.NewClient(srv.URL, nil, tokenFor(t, "user-1"), nil)
	_, err := c.CreateTransaction(context.Background(), testInput(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Count())
}

func TestHealth(t *testing.T) {
	_, srv := newTestAPI(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// A write queued while the API is down is replayed once it comes back, and
// a second replay of the same item does not create a duplicate.
func TestQueueReplayAgainstDevAPI(t *testing.T) {
	h := NewHandler(testSecret, nil, testLogger())
	srv := httptest.NewUnstartedServer(NewRouter(h, nil))

	tok := tokenFor(t, "user-1")
	sess := session.New(testLogger())
	require.NoError(t, sess.SignIn(string(tok)))

	// the listener address is fixed before the server starts accepting
	c := client.NewClient("http://"+srv.Listener.Addr().String(), &http.Client{Timeout: 2 * time.Second}, sess, testLogger())
	store := storage.NewQueueStore(storage.NewMemorySlot(), storage.DefaultQueueKey, testLogger())
	engine := queue.NewEngine(store, c, sess, nil, testLogger())

	id := engine.Enqueue(context.Background(), testInput())
	srv.Start()
	t.Cleanup(srv.Close)

	result := engine.Sync(context.Background())
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, engine.Count())
	assert.Equal(t, 1, h.Count())

	// replaying the same queued id again maps back to the original record
	replayed, err := c.CreateTransaction(context.Background(), testInput(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Count())
	assert.True(t, strings.HasPrefix(replayed, "txn_"))
}
