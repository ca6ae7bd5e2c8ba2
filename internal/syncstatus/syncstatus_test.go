package syncstatus

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingObserver struct {
	starts, completes, errs int
}

func (c *countingObserver) SyncStart(context.Context)        { c.starts++ }
func (c *countingObserver) SyncComplete(context.Context)     { c.completes++ }
func (c *countingObserver) SyncError(context.Context, error) { c.errs++ }

func TestTracker(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	tr.SyncStart(ctx)
	tr.SyncStart(ctx)
	if st := tr.State(); !st.Syncing || st.InFlight != 2 {
		t.Fatalf("expected two writes in flight, got %+v", st)
	}

	tr.SyncError(ctx, errors.New("boom"))
	st := tr.State()
	if st.InFlight != 1 || st.LastError != "boom" {
		t.Fatalf("unexpected state after error: %+v", st)
	}

	tr.SyncComplete(ctx)
	st = tr.State()
	if st.Syncing || st.LastError != "" || !st.LastSync.Equal(fixed) {
		t.Fatalf("unexpected state after complete: %+v", st)
	}

	// Extra completions never drive the counter negative.
	tr.SyncComplete(ctx)
	if st := tr.State(); st.InFlight != 0 {
		t.Fatalf("in flight = %d", st.InFlight)
	}
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	a, b := &countingObserver{}, &countingObserver{}
	m := Multi{a, b, Nop{}, LogObserver{}}

	m.SyncStart(ctx)
	m.SyncComplete(ctx)
	m.SyncStart(ctx)
	m.SyncError(ctx, errors.New("x"))

	for _, c := range []*countingObserver{a, b} {
		if c.starts != 2 || c.completes != 1 || c.errs != 1 {
			t.Fatalf("unexpected counts %+v", *c)
		}
	}
}
