// Package ratelimit implements the per-identity, per-event fixed-window
// limiter backed by the shared counter store. Because the counters live in
// the store rather than in process memory, the limit holds across every
// server process handling sessions for the same identity.
//
// Two checks compose: a per-event window (keyed identity + event name) and
// a global window (keyed identity alone) bounding total events regardless
// of kind. The first increment of a window creates the counter with a TTL
// equal to the window, so expiry is the only cleanup mechanism.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/provell/go-network-backend/internal/store"
)

// ErrRateLimited is returned when a consumption pushes the window count
// past its maximum. The denied event must not be processed further.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter enforces fixed-window limits on a shared counter store.
type Limiter struct {
	counter store.Counter

	// Window bounds both the per-event and global counters.
	Window time.Duration
	// MaxPerEvent caps consumptions per (identity, event) per window.
	MaxPerEvent int64
	// MaxGlobal caps total consumptions per identity per window.
	// Zero disables the global check.
	MaxGlobal int64
}

// New constructs a Limiter with the given windows and maxima.
func New(counter store.Counter, window time.Duration, maxPerEvent, maxGlobal int64) *Limiter {
	return &Limiter{
		counter:     counter,
		Window:      window,
		MaxPerEvent: maxPerEvent,
		MaxGlobal:   maxGlobal,
	}
}

// TryConsume checks the global window, then the per-event window, for one
// inbound event. It returns nil when the event may proceed, ErrRateLimited
// when either window is exhausted, and a store error (wrapping
// store.ErrUnavailable) when the backend cannot be reached.
//
// The global counter is consumed first so that a flood of one event kind
// still burns the identity's total budget.
func (l *Limiter) TryConsume(ctx context.Context, identityID, eventName string) error {
	if l.MaxGlobal > 0 {
		if err := l.consume(ctx, globalKey(identityID), l.MaxGlobal); err != nil {
			return err
		}
	}
	return l.consume(ctx, eventKey(identityID, eventName), l.MaxPerEvent)
}

// TryConsumeEvent checks only the per-event window with an explicit window
// and maximum, for callers with event-specific budgets.
func (l *Limiter) TryConsumeEvent(ctx context.Context, identityID, eventName string, window time.Duration, max int64) error {
	count, err := l.counter.IncrWindow(ctx, eventKey(identityID, eventName), window.Milliseconds())
	if err != nil {
		return err
	}
	if count > max {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) consume(ctx context.Context, key string, max int64) error {
	count, err := l.counter.IncrWindow(ctx, key, l.Window.Milliseconds())
	if err != nil {
		return err
	}
	if count > max {
		return ErrRateLimited
	}
	return nil
}

func eventKey(identityID, eventName string) string {
	return fmt.Sprintf("rate:%s:%s", identityID, eventName)
}

func globalKey(identityID string) string {
	return fmt.Sprintf("rate:%s", identityID)
}
