package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool("test", 2, 8, zap.NewNop())
	defer p.Stop(time.Second)

	var ran atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		ok := p.Submit(context.Background(), Task{
			Name: "tick",
			Fn: func(context.Context) error {
				if ran.Add(1) == 5 {
					close(done)
				}
				return nil
			},
		})
		require.True(t, ok)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks never ran")
	}
	assert.Eventually(t, func() bool {
		return p.Stats().Completed == 5
	}, time.Second, time.Millisecond)
}

func TestPoolRejectsWhenFull(t *testing.T) {
	p := NewPool("test", 1, 1, zap.NewNop())
	defer p.Stop(time.Second)

	gate := make(chan struct{})
	blocker := Task{Name: "blocker", Fn: func(context.Context) error {
		<-gate
		return nil
	}}

	// One task occupies the worker, one fills the queue.
	require.True(t, p.Submit(context.Background(), blocker))
	require.Eventually(t, func() bool {
		return p.Stats().Active == 1
	}, time.Second, time.Millisecond)
	require.True(t, p.Submit(context.Background(), blocker))

	assert.False(t, p.Submit(context.Background(), Task{Name: "extra", Fn: func(context.Context) error { return nil }}),
		"a full queue must drop the task, not block")
	assert.Equal(t, uint64(1), p.Stats().Rejected)

	close(gate)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool("test", 1, 4, zap.NewNop())
	defer p.Stop(time.Second)

	require.True(t, p.Submit(context.Background(), Task{
		Name: "boom",
		Fn:   func(context.Context) error { panic("refresh exploded") },
	}))

	// The worker survives and keeps processing.
	done := make(chan struct{})
	require.True(t, p.Submit(context.Background(), Task{
		Name: "after",
		Fn: func(context.Context) error {
			close(done)
			return nil
		},
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after panic")
	}
	assert.Equal(t, uint64(1), p.Stats().Failed)
}

func TestPoolStops(t *testing.T) {
	p := NewPool("test", 2, 4, zap.NewNop())
	require.NoError(t, p.Stop(time.Second))

	ok := p.Submit(context.Background(), Task{Name: "late", Fn: func(context.Context) error { return nil }})
	assert.False(t, ok, "submissions after stop are rejected")
}

func TestPoolSkipsCanceledContext(t *testing.T) {
	p := NewPool("test", 1, 4, zap.NewNop())
	defer p.Stop(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	submitted := p.Submit(ctx, Task{
		Name: "canceled",
		Fn: func(context.Context) error {
			t.Error("task body must not run under a canceled context")
			return nil
		},
	})
	require.True(t, submitted)

	assert.Eventually(t, func() bool {
		return p.Stats().Failed == 1
	}, time.Second, time.Millisecond)
}
