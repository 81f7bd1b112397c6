package calsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/booking-reminder/internal/persistence"
)

type changeKind int

const (
	changeUpdated changeKind = iota
	changeDeleted
)

type bookingChange struct {
	kind   changeKind
	before persistence.Booking
	after  persistence.Booking
}

// Worker serializes every synchronizer invocation on one goroutine. Ticks,
// manual triggers and booking subscription events enqueue requests;
// repeated reconcile requests collapse into one pass.
type Worker struct {
	syncer *Synchronizer
	logger *slog.Logger

	mu        sync.Mutex
	reconcile bool
	changes   []bookingChange
	wake      chan struct{}
	passes    chan Stats
}

// NewWorker constructs a worker draining into s.
func NewWorker(s *Synchronizer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = s.logger
	}
	return &Worker{
		syncer: s,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Notify requests a reconciliation pass.
func (w *Worker) Notify() {
	w.mu.Lock()
	w.reconcile = true
	w.mu.Unlock()
	w.signal()
}

// Changed queues the propagation of a booking edit.
func (w *Worker) Changed(before, after persistence.Booking) {
	w.enqueue(bookingChange{kind: changeUpdated, before: before, after: after})
}

// Deleted queues the deletion of a removed booking's events.
func (w *Worker) Deleted(booking persistence.Booking) {
	w.enqueue(bookingChange{kind: changeDeleted, before: booking})
}

func (w *Worker) enqueue(change bookingChange) {
	w.mu.Lock()
	w.changes = append(w.changes, change)
	w.mu.Unlock()
	w.signal()
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run drains requests and follows the bookings collection until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	snapshots, err := w.syncer.bookings.Watch(ctx, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-snapshots:
			if !ok {
				snapshots = nil
				if ctx.Err() == nil {
					w.logger.WarnContext(ctx, "booking subscription closed")
				}
				continue
			}
			w.observe(snapshot)
		case <-w.wake:
		}
		w.drain(ctx)
	}
}

// observe translates subscription changes into requests.
func (w *Worker) observe(snapshot persistence.TypedSnapshot[persistence.Booking]) {
	for _, change := range snapshot.Changes {
		switch change.Kind {
		case persistence.ChangeAdded:
			w.Notify()
		case persistence.ChangeModified:
			if change.Previous == nil {
				w.Notify()
				continue
			}
			before, after := *change.Previous, change.Item
			if PayloadChanged(before, after) || before.Active() != after.Active() {
				w.Changed(before, after)
			}
			if PayloadChanged(before, after) || before.TargetAccount != after.TargetAccount {
				w.Notify()
			}
		case persistence.ChangeRemoved:
			if change.Previous != nil {
				w.Deleted(*change.Previous)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		w.mu.Lock()
		changes := w.changes
		w.changes = nil
		reconcile := w.reconcile
		w.reconcile = false
		w.mu.Unlock()

		if len(changes) == 0 && !reconcile {
			return
		}
		for _, change := range changes {
			w.apply(ctx, change)
		}
		if reconcile {
			stats, err := w.syncer.Reconcile(ctx)
			if err != nil && !errors.Is(err, ErrNotConfigured) && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "calendar reconciliation failed", "error", err)
			}
			w.report(stats)
		}
	}
}

func (w *Worker) apply(ctx context.Context, change bookingChange) {
	var err error
	switch change.kind {
	case changeUpdated:
		err = w.syncer.BookingChanged(ctx, change.before, change.after)
	case changeDeleted:
		err = w.syncer.BookingDeleted(ctx, change.before)
	}
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		w.logger.WarnContext(ctx, "calendar change propagation incomplete",
			"booking_id", change.before.ID, "error", err)
	}
}

// Passes returns a channel receiving the stats of every completed pass.
// It must be called before Run.
func (w *Worker) Passes() <-chan Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.passes == nil {
		w.passes = make(chan Stats, 16)
	}
	return w.passes
}

func (w *Worker) report(stats Stats) {
	w.mu.Lock()
	passes := w.passes
	w.mu.Unlock()
	if passes == nil {
		return
	}
	select {
	case passes <- stats:
	default:
	}
}
