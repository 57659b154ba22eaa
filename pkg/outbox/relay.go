package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/orna-ly/orna.ly-sub000/pkg/logging"
)

// PublishFunc delivers one outbox record to the broker.
type PublishFunc func(ctx context.Context, rec Record) error

// Relay moves pending outbox rows to the broker in id order. A record is
// marked sent only after the broker accepted it, so delivery is at least once.
type Relay struct {
	DB       DB
	Publish  PublishFunc
	Interval time.Duration
	Batch    int
	Service  string
}

// RunOnce relays one batch and returns how many records were marked sent.
// It stops at the first publish failure to keep per-key order.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	records, err := FetchPending(ctx, r.DB, batch)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}
	sent := 0
	for _, rec := range records {
		if err := r.Publish(ctx, rec); err != nil {
			return sent, fmt.Errorf("publish %s: %w", rec.EventID, err)
		}
		if err := MarkSent(ctx, r.DB, rec.ID); err != nil {
			return sent, fmt.Errorf("mark sent %s: %w", rec.EventID, err)
		}
		sent++
	}
	return sent, nil
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		start := time.Now()
		n, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Log(logging.Fields{Service: r.Service, Step: "outbox_relay", Status: "error", Err: err})
			continue
		}
		if n > 0 {
			logging.Log(logging.Fields{
				Service:    r.Service,
				Step:       "outbox_relay",
				Status:     "sent",
				Count:      n,
				DurationMS: time.Since(start).Milliseconds(),
			})
		}
	}
}

// Start runs the relay in its own goroutine. The returned channel is closed
// once Run has returned and onStop, if set, has finished; callers wait on it
// before closing the DB.
func (r *Relay) Start(ctx context.Context, onStop func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
		if onStop != nil {
			onStop()
		}
	}()
	return done
}
