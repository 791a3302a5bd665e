package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/queue"
)

// TransactionList is the visible transaction list held by the agent.
type TransactionList struct {
	Transactions []ledger.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	Total        int                  `json:"total"`
}

// QueueState is the agent's queue status plus the queued writes.
type QueueState struct {
	queue.Status
	Items []queue.QueuedWrite `json:"items"`
}

// SyncResponse is returned by a manual sync.
type SyncResponse struct {
	Result queue.SyncResult `json:"result"`
	Status queue.Status     `json:"status"`
}

// AgentClient talks to the local sync agent over its HTTP API.
type AgentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAgentClient creates a client for the agent at baseURL.
// If httpClient is nil, a default client with a two minute timeout is used
// so a manual sync can finish.
func NewAgentClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *AgentClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &AgentClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateTransaction records a transaction through the agent. The result is a
// placeholder with Pending set when the agent queued the write.
func (c *AgentClient) CreateTransaction(ctx context.Context, input ledger.TransactionInput) (*ledger.Transaction, error) {
	var txn ledger.Transaction
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/transactions", input, http.StatusCreated, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns the agent's visible transaction list.
func (c *AgentClient) ListTransactions(ctx context.Context) (*TransactionList, error) {
	var list TransactionList
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/transactions", nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Queue returns the queue status and its items, oldest first.
func (c *AgentClient) Queue(ctx context.Context) (*QueueState, error) {
	var state QueueState
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/queue", nil, http.StatusOK, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Sync asks the agent to run one sweep now.
func (c *AgentClient) Sync(ctx context.Context) (*SyncResponse, error) {
	var res SyncResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/queue/sync", nil, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Drop discards a queued write and its placeholder.
func (c *AgentClient) Drop(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/queue/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// SignIn hands the agent a bearer token and returns the token's user id.
func (c *AgentClient) SignIn(ctx context.Context, token string) (string, error) {
	var res struct {
		UserID string `json:"user_id"`
	}
	body := map[string]string{"token": token}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/session", body, http.StatusOK, &res); err != nil {
		return "", err
	}
	return res.UserID, nil
}

// Logout signs the agent out and clears its queue and transaction list.
func (c *AgentClient) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/session/logout", nil, http.StatusNoContent, nil)
}

func (c *AgentClient) doJSON(ctx context.Context, method, path string, in interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	c.logger.Debug("agent request completed", "method", method, "path", path, "status", resp.StatusCode)
	return nil
}
