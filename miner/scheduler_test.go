package miner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTicks(t *testing.T) {
	log, hook := test.NewNullLogger()
	var calls atomic.Int32
	s := NewScheduler(func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("boom")
		}
		return nil
	}, 5*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	var failed bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to mine scheduled block: boom" {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestSchedulerPause(t *testing.T) {
	log, _ := test.NewNullLogger()
	var calls atomic.Int32
	s := NewScheduler(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 0, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())

	s.SetPeriod(2 * time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)

	s.SetPeriod(0)
	time.Sleep(10 * time.Millisecond)
	paused := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, calls.Load())
}
