package transactions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/ledgersync/client"
	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/metrics"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/brojonat/ledgersync/service/reachability"
	"github.com/google/uuid"
)

// Enqueuer diverts a write into the offline queue and returns its pending id.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload ledger.TransactionInput) string
}

// Coordinator is the write path for new transactions. It keeps the
// caller-visible list of transactions, including placeholders for writes
// still waiting in the offline queue.
type Coordinator struct {
	signal  reachability.Signal
	queue   Enqueuer
	remote  queue.Remote
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.RWMutex
	transactions []ledger.Transaction
	total        int
}

// NewCoordinator creates a coordinator with an empty visible list.
// If metrics is nil, no metrics will be recorded.
func NewCoordinator(signal reachability.Signal, q Enqueuer, remote queue.Remote, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Coordinator{
		signal:  signal,
		queue:   q,
		remote:  remote,
		metrics: m,
		logger:  logger.With("component", "transactions"),
		now:     time.Now,
	}
}

// CreateTransaction records a new transaction and returns either the
// server-confirmed record or a pending placeholder.
//
// When the reachability signal says offline the write is queued without
// touching the network. Otherwise the write is created and read back; if
// either call fails with client.ErrNetworkUnreachable the write is queued
// as if offline. Any other error is returned unchanged.
func (c *Coordinator) CreateTransaction(ctx context.Context, input ledger.TransactionInput) (*ledger.Transaction, error) {
	if !c.signal.Online() {
		return c.createOffline(ctx, input, "offline"), nil
	}

	// Minted before the first attempt and kept if the write ends up queued,
	// so a create that landed before the failure is not duplicated on replay.
	if input.RequestID == "" {
		input.RequestID = uuid.NewString()
	}

	txn, err := c.createOnline(ctx, input)
	if err != nil {
		if errors.Is(err, client.ErrNetworkUnreachable) {
			c.logger.WarnContext(ctx, "network unreachable, queueing write",
				"account_id", input.AccountID,
				"request_id", input.RequestID,
				"error", err,
			)
			return c.createOffline(ctx, input, "fallback"), nil
		}
		if c.metrics != nil {
			c.metrics.RecordWritePath("error")
		}
		return nil, err
	}

	c.prepend(*txn)
	if c.metrics != nil {
		c.metrics.RecordWritePath("online")
	}
	c.logger.InfoContext(ctx, "transaction created", "id", txn.ID, "account_id", txn.AccountID)
	return txn, nil
}

func (c *Coordinator) createOnline(ctx context.Context, input ledger.TransactionInput) (*ledger.Transaction, error) {
	id, err := c.remote.CreateTransaction(ctx, input, input.RequestID)
	if err != nil {
		return nil, err
	}
	return c.remote.GetTransaction(ctx, id)
}

func (c *Coordinator) createOffline(ctx context.Context, input ledger.TransactionInput, path string) *ledger.Transaction {
	id := c.queue.Enqueue(ctx, input)
	placeholder := ledger.NewPlaceholder(id, input, c.now())
	c.prepend(*placeholder)

	if c.metrics != nil {
		c.metrics.RecordWritePath(path)
	}
	c.logger.InfoContext(ctx, "transaction queued", "id", id, "path", path)
	return placeholder
}

func (c *Coordinator) prepend(txn ledger.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions = append([]ledger.Transaction{txn}, c.transactions...)
	c.total++
}

// OnWriteSynced swaps the placeholder for a synced write with its confirmed
// record. The visible total is unchanged. Nothing happens when no visible
// placeholder carries the queued id.
func (c *Coordinator) OnWriteSynced(ctx context.Context, w queue.SyncedWrite) {
	c.mu.Lock()
	replaced := false
	if w.Transaction != nil {
		for i := range c.transactions {
			if c.transactions[i].ID == w.QueuedID && c.transactions[i].Pending {
				c.transactions[i] = *w.Transaction
				replaced = true
				break
			}
		}
	}
	c.mu.Unlock()

	result := "not_visible"
	if replaced {
		result = "replaced"
	}
	if c.metrics != nil {
		c.metrics.RecordPlaceholderReconciled(result)
	}
	c.logger.DebugContext(ctx, "placeholder reconciliation", "queued_id", w.QueuedID, "result", result)
}

// RemovePlaceholder drops the placeholder with the given id, e.g. after the
// user discarded the queued write. It reports whether one was removed.
func (c *Coordinator) RemovePlaceholder(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.transactions {
		if c.transactions[i].ID == id && c.transactions[i].Pending {
			c.transactions = append(c.transactions[:i:i], c.transactions[i+1:]...)
			if c.total > 0 {
				c.total--
			}
			return true
		}
	}
	return false
}

// SetTransactions installs a page fetched by the read side. Placeholders
// currently visible stay at the front since the server does not know them
// yet.
func (c *Coordinator) SetTransactions(list []ledger.Transaction, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next []ledger.Transaction
	for _, txn := range c.transactions {
		if txn.Pending {
			next = append(next, txn)
		}
	}
	pending := len(next)
	next = append(next, list...)
	c.transactions = next
	c.total = total + pending
}

// Transactions returns a copy of the visible list, newest first.
func (c *Coordinator) Transactions() []ledger.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ledger.Transaction, len(c.transactions))
	copy(out, c.transactions)
	return out
}

// Total returns the visible total count.
func (c *Coordinator) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Reset clears the visible list. Registered with the session for logout.
func (c *Coordinator) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions = nil
	c.total = 0
	c.logger.InfoContext(ctx, "visible transactions reset")
}
