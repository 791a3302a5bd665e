package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
)

// ErrNetworkUnreachable is returned when a request never got an HTTP response
// (DNS failure, refused connection, reset, client timeout). Callers match it
// with errors.Is to tell "offline" apart from a real API rejection.
var ErrNetworkUnreachable = errors.New("network unreachable")

// APIError is a response from the finance API with a non-success status.
// Message is user facing.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// TokenSource supplies the bearer credential for API requests.
type TokenSource interface {
	Token() (string, bool)
}

// Client is the HTTP client for the remote finance API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates a new finance API client. tokens may be nil, in which
// case requests are sent without an Authorization header.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// CreateTransaction submits a new transaction and returns the server-assigned id.
// idempotencyKey is sent as the Idempotency-Key header so a replayed create
// resolves to the original record instead of a duplicate.
func (c *Client) CreateTransaction(ctx context.Context, input ledger.TransactionInput, idempotencyKey string) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// 200 means the server recognized the idempotency key and returned the original
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", parseErrorResponse(resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create response is missing an id")
	}

	c.logger.Debug("transaction created",
		"id", created.ID,
		"account_id", input.AccountID,
		"idempotency_key", idempotencyKey,
		"replayed", resp.StatusCode == http.StatusOK,
	)
	return created.ID, nil
}

// GetTransaction fetches a confirmed transaction by its server id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	var txn ledger.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if txn.ID != id {
		return nil, fmt.Errorf("confirm fetch returned id %q, expected %q", txn.ID, id)
	}
	if txn.Month.IsZero() {
		txn.Month = ledger.MonthOf(txn.Date)
	}
	return &txn, nil
}

// do attaches credentials and classifies transport failures.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A caller cancelling is not an offline condition.
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		c.logger.Debug("request did not reach the server", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, fmt.Errorf("request failed: %w: %w", ErrNetworkUnreachable, err)
	}
	return resp, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		msg := string(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
