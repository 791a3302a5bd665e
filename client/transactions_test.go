package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

func testInput() ledger.TransactionInput {
	return ledger.TransactionInput{
		AccountID:  "acc-1",
		CategoryID: "cat-groceries",
		Type:       ledger.TypeExpense,
		Amount:     decimal.RequireFromString("23.40"),
		Currency:   "USD",
		Date:       time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "pending_1_abcd", r.Header.Get("Idempotency-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acc-1", body["account_id"])
		assert.Equal(t, "expense", body["type"])
		assert.Equal(t, "23.4", body["amount"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "txn_42"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, staticToken("tok-123"), nil)
	id, err := client.CreateTransaction(context.Background(), testInput(), "pending_1_abcd")
	require.NoError(t, err)
	assert.Equal(t, "txn_42", id)
}

func TestCreateTransaction_ReplayReturnsOriginal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "txn_original"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, nil)
	id, err := client.CreateTransaction(context.Background(), testInput(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "txn_original", id)
}

func TestCreateTransaction_ValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "amount must be positive"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, nil)
	_, err := client.CreateTransaction(context.Background(), testInput(), "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "amount must be positive", apiErr.Message)
	assert.False(t, errors.Is(err, ErrNetworkUnreachable))
}

func TestCreateTransaction_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, nil)
	_, err := client.CreateTransaction(context.Background(), testInput(), "")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestCreateTransaction_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, nil)
	_, err := client.CreateTransaction(context.Background(), testInput(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing an id")
}

// A server that is gone must surface as ErrNetworkUnreachable so the write
// coordinator can fall back to the offline queue.
func TestCreateTransaction_ServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, &http.Client{Timeout: 2 * time.Second}, nil, nil)
	_, err := client.CreateTransaction(context.Background(), testInput(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkUnreachable))
}

func TestCreateTransaction_ClientTimeoutIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, &http.Client{Timeout: 100 * time.Millisecond}, nil, nil)
	_, err := client.CreateTransaction(context.Background(), testInput(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkUnreachable))
}

func TestCreateTransaction_CallerCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	client := NewClient(server.URL, nil, nil, nil)
	_, err := client.CreateTransaction(ctx, testInput(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrNetworkUnreachable))
}

func TestGetTransaction_Success(t *testing.T) {
	date := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/transactions/txn_42", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		response := map[string]interface{}{
			"id":          "txn_42",
			"account_id":  "acc-1",
			"category_id": "cat-groceries",
			"category":    map[string]string{"id": "cat-groceries", "name": "Groceries"},
			"type":        "expense",
			"amount":      "23.40",
			"currency":    "USD",
			"date":        date,
			"created_at":  date,
			"updated_at":  date,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, staticToken("tok"), nil)
	txn, err := client.GetTransaction(context.Background(), "txn_42")
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, "txn_42", txn.ID)
	assert.Equal(t, "Groceries", txn.Category.Name)
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("23.4")))
	assert.False(t, txn.Pending)
	// month is derived when the server omits it
	assert.True(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC).Equal(txn.Month))
}

func TestGetTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "transaction not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, nil)
	txn, err := client.GetTransaction(context.Background(), "nope")
	require.Error(t, err)
	assert.Nil(t, txn)
	assert.Contains(t, err.Error(), "transaction not found")
}

func TestGetTransaction_MismatchedEcho(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "someone-else"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, nil)
	_, err := client.GetTransaction(context.Background(), "txn_42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected \"txn_42\"")
}
