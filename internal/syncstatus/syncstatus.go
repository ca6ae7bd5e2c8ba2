// Package syncstatus defines the notifications emitted around every remote
// write, so unrelated parts of the application can show a "saving" state
// without the writer depending on them.
package syncstatus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observer receives one SyncStart followed by exactly one of SyncComplete or
// SyncError for every remote write.
type Observer interface {
	SyncStart(ctx context.Context)
	SyncComplete(ctx context.Context)
	SyncError(ctx context.Context, err error)
}

// Nop ignores all notifications.
type Nop struct{}

func (Nop) SyncStart(context.Context) {}
func (Nop) SyncComplete(context.Context) {}
func (Nop) SyncError(context.Context, error) {}

// Multi fans notifications out to several observers in order.
type Multi []Observer

func (m Multi) SyncStart(ctx context.Context) {
	for _, o := range m {
		o.SyncStart(ctx)
	}
}

func (m Multi) SyncComplete(ctx context.Context) {
	for _, o := range m {
		o.SyncComplete(ctx)
	}
}

func (m Multi) SyncError(ctx context.Context, err error) {
	for _, o := range m {
		o.SyncError(ctx, err)
	}
}

// LogObserver writes notifications to a slog logger at debug level, errors at warn.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o LogObserver) SyncStart(ctx context.Context) {
	o.logger().DebugContext(ctx, "Sync started", "component", "sync")
}

func (o LogObserver) SyncComplete(ctx context.Context) {
	o.logger().DebugContext(ctx, "Sync completed", "component", "sync")
}

func (o LogObserver) SyncError(ctx context.Context, err error) {
	o.logger().WarnContext(ctx, "Sync failed", "component", "sync", "error", err)
}

// State is a point-in-time view of the tracker.
type State struct {
	InFlight  int       `json:"in_flight"`
	Syncing   bool      `json:"syncing"`
	LastError string    `json:"last_error,omitempty"`
	LastSync  time.Time `json:"last_sync,omitempty"`
}

// Tracker aggregates notifications into the global sync badge state.
type Tracker struct {
	mu       sync.Mutex
	inFlight int
	lastErr  string
	lastSync time.Time
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

func (t *Tracker) SyncStart(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight++
}

func (t *Tracker) SyncComplete(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finish()
	t.lastErr = ""
	t.lastSync = t.now()
}

func (t *Tracker) SyncError(_ context.Context, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finish()
	if err != nil {
		t.lastErr = err.Error()
	}
}

func (t *Tracker) finish() {
	if t.inFlight > 0 {
		t.inFlight--
	}
}

// State returns the current badge state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		InFlight:  t.inFlight,
		Syncing:   t.inFlight > 0,
		LastError: t.lastErr,
		LastSync:  t.lastSync,
	}
}
