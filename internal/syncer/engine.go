// Package syncer drains the durable queue into the remote ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/events"
	"github.com/Veraticus/spice-inbox/internal/ledger"
	"github.com/Veraticus/spice-inbox/internal/metrics"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/queue"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// Drain errors.
var (
	// ErrAlreadySyncing is returned when a drain is requested while one is running.
	ErrAlreadySyncing = errors.New("sync already in progress")
	// ErrOffline is returned when a drain is requested while the ledger is unreachable.
	ErrOffline = errors.New("ledger offline")
)

// Connectivity reports whether the ledger is currently reachable.
type Connectivity interface {
	Online() bool
}

// DrainReport summarizes one DrainAll call.
type DrainReport struct {
	// Halted is set when the drain stopped before visiting every operation.
	// Operations it did not visit are left queued without a retry charged.
	Halted    error
	Started   int
	Applied   int
	Failed    int
	Dropped   int
	Remaining int
	Success   bool
}

// Options configures an Engine.
type Options struct {
	Logger  *slog.Logger
	Status  *events.Bus[model.SyncStatus]
	Breaker *gobreaker.CircuitBreaker
	Metrics *metrics.Metrics
}

// Engine applies queued operations to the ledger in enqueue order.
type Engine struct {
	queue   *queue.Queue
	ledger  service.Ledger
	conn    Connectivity
	breaker *gobreaker.CircuitBreaker
	status  *events.Bus[model.SyncStatus]
	metrics *metrics.Metrics
	logger  *slog.Logger
	state   model.SyncStatus
	mu      sync.RWMutex
	syncing atomic.Bool
}

// NewEngine creates a sync engine. A nil conn is treated as always online.
func NewEngine(q *queue.Queue, l service.Ledger, conn Connectivity, opts Options) *Engine {
	if opts.Breaker == nil {
		opts.Breaker = NewBreaker("ledger")
	}
	if opts.Status == nil {
		opts.Status = events.NewBus[model.SyncStatus]()
	}
	return &Engine{
		queue:   q,
		ledger:  l,
		conn:    conn,
		breaker: opts.Breaker,
		status:  opts.Status,
		metrics: opts.Metrics,
		logger:  common.OrDefault(opts.Logger),
		state:   model.SyncIdle,
	}
}

// NewBreaker creates the circuit breaker guarding ledger calls. Missing
// credentials and unknown records do not count as ledger failures.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ledger.ErrNotAuthenticated) ||
				errors.Is(err, ledger.ErrRecordNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})
}

// Status returns the current sync status.
func (e *Engine) Status() model.SyncStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// StatusBus returns the bus status transitions are published on.
func (e *Engine) StatusBus() *events.Bus[model.SyncStatus] {
	return e.status
}

// DrainAll applies every queued operation in enqueue order. Each success
// removes its operation; each failure charges one retry and drops the
// operation once it reaches the queue's limit. Missing credentials or an
// open breaker halt the drain without charging the remaining operations.
//
// Success is reported only when every operation present at the start was
// applied or dropped.
func (e *Engine) DrainAll(ctx context.Context) (DrainReport, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		return DrainReport{}, ErrAlreadySyncing
	}
	defer e.syncing.Store(false)

	if e.conn != nil && !e.conn.Online() {
		return DrainReport{}, ErrOffline
	}

	start := time.Now()
	e.setStatus(ctx, model.SyncSyncing)

	ops, err := e.queue.List(ctx)
	if err != nil {
		e.setStatus(ctx, model.SyncError)
		e.metrics.RecordDrain("error", 0, 0, 0, time.Since(start))
		return DrainReport{}, fmt.Errorf("failed to load queue: %w", err)
	}

	report := DrainReport{Started: len(ops)}
	for _, op := range ops {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Halted = ctxErr
			break
		}

		applyErr := e.apply(ctx, op)
		if applyErr == nil {
			if _, err := e.queue.Remove(ctx, op.ID); err != nil {
				e.logger.Error("Failed to remove applied operation", "id", op.ID, "error", err)
				report.Halted = err
				break
			}
			report.Applied++
			continue
		}

		if halts(applyErr) {
			e.logger.Info("Drain halted", "id", op.ID, "error", applyErr)
			report.Halted = applyErr
			break
		}

		dropped, err := e.queue.RecordFailure(ctx, op.ID, applyErr)
		if errors.Is(err, common.ErrNotFound) {
			// Removed by a concurrent PushOne after it reached the ledger.
			e.logger.Debug("Failed operation already removed", "id", op.ID, "error", applyErr)
			report.Applied++
			continue
		}
		if err != nil {
			e.logger.Error("Failed to record operation failure", "id", op.ID, "error", err)
			report.Halted = err
			break
		}
		if dropped {
			report.Dropped++
		} else {
			report.Failed++
			e.logger.Warn("Operation failed, will retry",
				"id", op.ID,
				"kind", op.Kind,
				"entity", op.EntityType(),
				"error", applyErr)
		}
	}

	report.Remaining = report.Started - report.Applied - report.Dropped
	report.Success = report.Remaining == 0

	result := "success"
	if report.Success {
		e.setStatus(ctx, model.SyncIdle)
	} else {
		result = "error"
		e.setStatus(ctx, model.SyncError)
	}
	e.metrics.RecordDrain(result, report.Applied, report.Failed, report.Dropped, time.Since(start))
	if n, err := e.queue.Len(ctx); err == nil {
		e.metrics.SetQueueDepth(n)
	}

	e.logger.Info("Drain finished",
		"applied", report.Applied,
		"failed", report.Failed,
		"dropped", report.Dropped,
		"remaining", report.Remaining,
		"success", report.Success)
	return report, nil
}

// PushOne applies a single operation and removes it on success. Failures
// leave the operation queued without charging a retry.
func (e *Engine) PushOne(ctx context.Context, op model.PendingOperation) error {
	if err := e.apply(ctx, op); err != nil {
		return err
	}
	if _, err := e.queue.Remove(ctx, op.ID); err != nil {
		return fmt.Errorf("failed to remove pushed operation: %w", err)
	}
	return nil
}

// OnConnectivityChange drains the queue when the ledger comes back online.
func (e *Engine) OnConnectivityChange(ctx context.Context, change model.ConnectivityChange) {
	e.metrics.SetOnline(change.To == model.ConnectivityOnline)
	if !change.Restored() {
		return
	}

	e.logger.Info("Connectivity restored, draining queue")
	if _, err := e.DrainAll(ctx); err != nil && !errors.Is(err, ErrAlreadySyncing) {
		e.logger.Warn("Drain after reconnect failed", "error", err)
	}
}

// Attach subscribes the engine to connectivity changes. The caller owns the
// returned handle.
func (e *Engine) Attach(bus *events.Bus[model.ConnectivityChange]) *events.Subscription {
	return bus.Subscribe(e.OnConnectivityChange)
}

func (e *Engine) apply(ctx context.Context, op model.PendingOperation) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, Apply(ctx, e.ledger, op)
	})
	return err
}

func (e *Engine) setStatus(ctx context.Context, next model.SyncStatus) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()

	if prev != next {
		e.status.Publish(ctx, next)
	}
}

// halts reports whether err should stop the whole drain rather than charge
// the operation a retry.
func halts(err error) bool {
	return errors.Is(err, ledger.ErrNotAuthenticated) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
