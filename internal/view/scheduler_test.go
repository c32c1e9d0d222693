package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerInitialLoadAndPolling(t *testing.T) {
	service := &stubService{}
	service.setListResult([]any{}, nil)
	engine := newTestEngine(service, nil)
	scheduler := NewScheduler(engine, nil).WithInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return service.calls() >= 3 },
		2*time.Second, 5*time.Millisecond, "initial load plus periodic ticks")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not tear down on context cancel")
	}
}

func TestSchedulerManualRefreshSupersedesTimer(t *testing.T) {
	service := &stubService{}
	service.setListResult([]any{}, nil)
	engine := newTestEngine(service, nil)
	// A long interval: without a manual trigger no second load would happen.
	scheduler := NewScheduler(engine, nil).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	require.Eventually(t, func() bool { return service.calls() == 1 },
		time.Second, 5*time.Millisecond, "initial load")

	scheduler.Refresh()
	require.Eventually(t, func() bool { return service.calls() == 2 },
		time.Second, 5*time.Millisecond, "manual refresh ran")

	// No extra load sneaks in from a stale timer.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, service.calls())
}

func TestSchedulerRefreshCollapsesBursts(t *testing.T) {
	service := &stubService{
		listStarted: make(chan struct{}, 1),
		listRelease: make(chan struct{}),
	}
	service.setListResult([]any{}, nil)
	engine := newTestEngine(service, nil)
	scheduler := NewScheduler(engine, nil).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	// Hold the initial load open while a burst of refresh requests arrives.
	<-service.listStarted
	for i := 0; i < 5; i++ {
		scheduler.Refresh()
	}
	close(service.listRelease)

	// The burst collapses into a single follow-up load.
	<-service.listStarted
	require.Eventually(t, func() bool { return service.calls() == 2 },
		time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, service.calls())
}
