package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/ledgersync/client"
	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/brojonat/ledgersync/service/session"
	"github.com/brojonat/ledgersync/service/transactions"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
)

// handleCreateTransaction returns a handler that records a new transaction
// through the write coordinator. The response is either the confirmed record
// or a placeholder with "pending": true.
// POST /api/v1/transactions
func handleCreateTransaction(coordinator *transactions.Coordinator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var input ledger.TransactionInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			logger.Debug("failed to decode create request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := input.Validate(); err != nil {
			logger.Debug("invalid transaction input", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txn, err := coordinator.CreateTransaction(r.Context(), input)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
				logger.Info("transaction rejected by server", "status", apiErr.StatusCode, "error", apiErr.Message)
				writeError(w, apiErr.Message, apiErr.StatusCode)
				return
			}
			if errors.As(err, &apiErr) {
				logger.Error("server failed to create transaction", "status", apiErr.StatusCode, "error", err)
				writeError(w, "upstream server error", http.StatusBadGateway)
				return
			}
			logger.Error("failed to create transaction", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, txn, http.StatusCreated)
	})
}

// handleListTransactions returns the visible transaction list, placeholders included.
// GET /api/v1/transactions
func handleListTransactions(coordinator *transactions.Coordinator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := coordinator.Transactions()
		logger.Debug("transactions listed", "count", len(list))

		writeJSON(w, map[string]interface{}{
			"transactions": list,
			"count":        len(list),
			"total":        coordinator.Total(),
		}, http.StatusOK)
	})
}

// queueResponse is the JSON response format for the queue status.
type queueResponse struct {
	queue.Status
	Items []queue.QueuedWrite `json:"items"`
}

// handleQueueStatus returns the aggregate queue state and the queued writes.
// GET /api/v1/queue
func handleQueueStatus(engine *queue.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, queueResponse{
			Status: engine.Status(),
			Items:  engine.Items(),
		}, http.StatusOK)
	})
}

// handleSyncQueue runs one sweep and returns its result.
// POST /api/v1/queue/sync
func handleSyncQueue(engine *queue.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := engine.Sync(r.Context())
		logger.Info("manual sync finished",
			"attempted", result.Attempted,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"skipped", string(result.Skipped),
		)

		writeJSON(w, map[string]interface{}{
			"result": result,
			"status": engine.Status(),
		}, http.StatusOK)
	})
}

// handleDropQueued discards a queued write and its placeholder.
// DELETE /api/v1/queue/{id}
func handleDropQueued(engine *queue.Engine, coordinator *transactions.Coordinator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !queue.IsPendingID(id) {
			writeError(w, "invalid id: must be a pending transaction id", http.StatusBadRequest)
			return
		}

		queued := false
		for _, item := range engine.Items() {
			if item.ID == id {
				queued = true
				break
			}
		}

		engine.Dequeue(r.Context(), id)
		removed := coordinator.RemovePlaceholder(id)
		if !queued && !removed {
			writeError(w, "queued write not found", http.StatusNotFound)
			return
		}

		logger.Info("queued write dropped", "id", id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleSignIn stores a bearer token for the sweep and the remote client.
// POST /api/v1/session
func handleSignIn(sess *session.Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}
		if req.Token == "" {
			writeError(w, "token is required", http.StatusBadRequest)
			return
		}

		if err := sess.SignIn(req.Token); err != nil {
			logger.Debug("sign in rejected", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]string{"user_id": sess.UserID()}, http.StatusOK)
	})
}

// handleLogout signs out and resets every registered component.
// POST /api/v1/session/logout
func handleLogout(sess *session.Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess.Logout(r.Context())
		logger.Info("session logged out")
		w.WriteHeader(http.StatusNoContent)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
