package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func fastOptions() Options {
	return Options{Workers: 1, QueueSize: 4, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestDoRetriesServerErrors(t *testing.T) {
	d := NewDispatcher(fastOptions())
	defer d.Close()

	calls := 0
	err := d.Do(context.Background(), "test", func() error {
		calls++
		if calls == 1 {
			return &tele.Error{Code: 502, Description: "Bad Gateway"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Zero(t, d.ErrorCount())
}

func TestDoStopsOnClientErrors(t *testing.T) {
	d := NewDispatcher(fastOptions())
	defer d.Close()

	calls := 0
	forbidden := &tele.Error{Code: 403, Description: "Forbidden"}
	err := d.Do(context.Background(), "test", func() error {
		calls++
		return forbidden
	})
	assert.ErrorIs(t, err, forbidden)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	d := NewDispatcher(fastOptions())
	defer d.Close()

	calls := 0
	err := d.Do(context.Background(), "test", func() error {
		calls++
		return &tele.Error{Code: 500, Description: "Internal"}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoNilFunc(t *testing.T) {
	d := NewDispatcher(fastOptions())
	defer d.Close()
	assert.Error(t, d.Do(context.Background(), "test", nil))
}

func TestEnqueueRunsAndCloseDrains(t *testing.T) {
	d := NewDispatcher(fastOptions())

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "test", func() error {
			ran.Add(1)
			return nil
		}))
	}
	d.Close()
	assert.Equal(t, int32(3), ran.Load())

	err := d.Enqueue(context.Background(), "test", func() error { return nil })
	assert.True(t, errors.Is(err, ErrQueueClosed))
	d.Close()
}

func TestEnqueueQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1, RetryBackoff: time.Millisecond})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "overflow", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
}
