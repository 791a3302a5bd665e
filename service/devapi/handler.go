// Package devapi is an in-memory stand-in for the remote finance API. It
// implements the create and read endpoints the sync agent replays against,
// including Idempotency-Key replay protection.
package devapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/session"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxRequestBodySize = 1 << 20

type idempotencyRecord struct {
	requestHash   string
	transactionID string
}

// Handler serves the development API. All state lives in memory and is
// scoped per user id from the bearer token.
type Handler struct {
	secret     []byte
	categories map[string]ledger.Category
	logger     *slog.Logger
	now        func() time.Time

	mu           sync.Mutex
	transactions map[string]ledger.Transaction
	ownerOf      map[string]string
	idempotency  map[string]idempotencyRecord // user id + key
}

// NewHandler creates a handler that accepts tokens signed with secret.
// Categories not in categories are echoed back with their id as name.
func NewHandler(secret []byte, categories []ledger.Category, logger *slog.Logger) *Handler {
	byID := make(map[string]ledger.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Handler{
		secret:       secret,
		categories:   byID,
		logger:       logger.With("component", "devapi"),
		now:          time.Now,
		transactions: map[string]ledger.Transaction{},
		ownerOf:      map[string]string{},
		idempotency:  map[string]idempotencyRecord{},
	}
}

// CreateTransaction handles POST /api/v1/transactions. A repeated
// Idempotency-Key with the same body returns the original id with 200; the
// same key with a different body is rejected.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	idemKey := r.Header.Get("Idempotency-Key")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "request body too large")
		return
	}
	hash := sha256.Sum256(body)
	reqHash := hex.EncodeToString(hash[:])

	var input ledger.TransactionInput
	if err := json.Unmarshal(body, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := input.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	scopedKey := userID + "/" + idemKey
	if idemKey != "" {
		if rec, ok := h.idempotency[scopedKey]; ok {
			if rec.requestHash != reqHash {
				respondError(w, http.StatusUnprocessableEntity, "idempotency key reused with a different request")
				return
			}
			h.logger.Info("idempotent replay", "user_id", userID, "key", idemKey, "id", rec.transactionID)
			respondJSON(w, http.StatusOK, map[string]string{"id": rec.transactionID})
			return
		}
	}

	now := h.now().UTC()
	category, ok := h.categories[input.CategoryID]
	if !ok {
		category = ledger.Category{ID: input.CategoryID, Name: input.CategoryID}
	}
	txn := ledger.Transaction{
		ID:          "txn_" + uuid.NewString(),
		AccountID:   input.AccountID,
		CategoryID:  input.CategoryID,
		Category:    category,
		Type:        input.Type,
		Amount:      input.Amount,
		Currency:    strings.ToUpper(input.Currency),
		Date:        input.Date,
		Month:       ledger.MonthOf(input.Date),
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	h.transactions[txn.ID] = txn
	h.ownerOf[txn.ID] = userID
	if idemKey != "" {
		h.idempotency[scopedKey] = idempotencyRecord{requestHash: reqHash, transactionID: txn.ID}
	}

	h.logger.Info("transaction created", "user_id", userID, "id", txn.ID, "account_id", txn.AccountID)
	w.Header().Set("Location", "/api/v1/transactions/"+txn.ID)
	respondJSON(w, http.StatusCreated, map[string]string{"id": txn.ID})
}

// GetTransaction handles GET /api/v1/transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.Lock()
	txn, ok := h.transactions[id]
	owner := h.ownerOf[id]
	h.mu.Unlock()

	if !ok || owner != userFrom(r) {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

// Count returns the number of stored transactions.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transactions)
}

// requireBearer rejects requests without a valid token and stores the
// token's subject in the request context.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := session.ValidateToken(h.secret, raw)
		if err != nil {
			h.logger.Debug("token rejected", "error", err)
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type userKey struct{}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userKey{}).(string)
	return userID
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
