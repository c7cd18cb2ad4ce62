package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingCloser struct {
	calls atomic.Int32
	err   error
}

func (c *countingCloser) CloseExpiredForms(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSchedulerRunsImmediatelyAndOnTick(t *testing.T) {
	closer := &countingCloser{}
	s := NewScheduler(closer, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return closer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := closer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, closer.calls.Load(), "no runs after stop")
}

func TestSchedulerSurvivesErrors(t *testing.T) {
	closer := &countingCloser{err: errors.New("db down")}
	s := NewScheduler(closer, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return closer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}
