// Package coalesce deduplicates concurrent identical operations. Read
// flights for the same key share a single execution, writes are guarded so
// a duplicate submission is rejected instead of repeated.
package coalesce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrInFlight is returned by TryDo when an identical operation is already
// running.
var ErrInFlight = errors.New("coalesce: identical operation already in flight")

// Guard coalesces operations by key. The zero value is not usable, call
// NewGuard.
type Guard struct {
	flights singleflight.Group

	mu      sync.Mutex
	pending map[string]struct{}

	active  atomic.Int64
	primary atomic.Uint64
	joined  atomic.Uint64
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{pending: make(map[string]struct{})}
}

// Key joins parts into a flight key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Do executes fn once per key across concurrent callers and hands every
// caller the same result. The flight is detached from the initiating
// caller's cancellation so a canceled caller cannot poison the result for
// the ones still waiting; a caller whose context expires returns early with
// the context error while the flight finishes for the rest. The second
// return value reports whether the result was shared with other callers.
func Do[T any](ctx context.Context, g *Guard, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	v, shared, err := g.do(ctx, key, func(fctx context.Context) (interface{}, error) {
		return fn(fctx)
	})
	if err != nil {
		return zero, shared, err
	}
	return v.(T), shared, nil
}

// TryDo runs fn under the key's write guard, or returns ErrInFlight when an
// identical operation is already running. Unlike Do the operation stays
// bound to the caller's context. The guard is released when fn returns.
func TryDo[T any](ctx context.Context, g *Guard, key string, fn func(context.Context) (T, error)) (T, error) {
	if !g.acquire(key) {
		var zero T
		return zero, ErrInFlight
	}
	defer g.release(key)

	g.active.Add(1)
	defer g.active.Add(-1)
	return fn(ctx)
}

func (g *Guard) do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	fctx := context.WithoutCancel(ctx)
	ch := g.flights.DoChan(key, func() (interface{}, error) {
		g.primary.Add(1)
		g.active.Add(1)
		defer g.active.Add(-1)
		return fn(fctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			g.joined.Add(1)
		}
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Forget drops the in-flight entry for key so the next Do starts a fresh
// flight instead of joining a stale one.
func (g *Guard) Forget(key string) {
	g.flights.Forget(key)
}

func (g *Guard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[key]; ok {
		return false
	}
	g.pending[key] = struct{}{}
	return true
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, key)
}

// Stats is a point-in-time snapshot of guard activity.
type Stats struct {
	Active  int64  // operations currently running
	Primary uint64 // flights actually executed
	Joined  uint64 // callers that shared another caller's flight
}

// Stats returns current counters.
func (g *Guard) Stats() Stats {
	return Stats{
		Active:  g.active.Load(),
		Primary: g.primary.Load(),
		Joined:  g.joined.Load(),
	}
}
