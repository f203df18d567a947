package tracker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderSchedulerArmAndFire(t *testing.T) {
	s := NewReminderScheduler()

	var fired atomic.Int32
	s.Arm("UCaaa", "vid-1", time.Now().Add(20*time.Millisecond), func() {
		fired.Add(1)
	})
	require.True(t, s.Pending("UCaaa", "vid-1"))

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, s.Pending("UCaaa", "vid-1"))
}

func TestReminderSchedulerPastDueFiresImmediately(t *testing.T) {
	s := NewReminderScheduler()

	var fired atomic.Int32
	s.Arm("UCaaa", "vid-1", time.Now().Add(-time.Hour), func() {
		fired.Add(1)
	})

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReminderSchedulerRearmReplaces(t *testing.T) {
	s := NewReminderScheduler()

	var first, second atomic.Int32
	s.Arm("UCaaa", "vid-1", time.Now().Add(30*time.Millisecond), func() {
		first.Add(1)
	})
	s.Arm("UCaaa", "vid-1", time.Now().Add(60*time.Millisecond), func() {
		second.Add(1)
	})

	require.Eventually(t, func() bool {
		return second.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestReminderSchedulerCancel(t *testing.T) {
	s := NewReminderScheduler()

	var fired atomic.Int32
	s.Arm("UCaaa", "vid-1", time.Now().Add(30*time.Millisecond), func() {
		fired.Add(1)
	})
	s.Cancel("UCaaa", "vid-1")
	assert.False(t, s.Pending("UCaaa", "vid-1"))

	// Cancelling a job that does not exist is a no-op.
	s.Cancel("UCaaa", "vid-unknown")

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestReminderSchedulerCancelChannel(t *testing.T) {
	s := NewReminderScheduler()

	var fired atomic.Int32
	fire := func() { fired.Add(1) }
	s.Arm("UCaaa", "vid-1", time.Now().Add(30*time.Millisecond), fire)
	s.Arm("UCaaa", "vid-2", time.Now().Add(30*time.Millisecond), fire)
	s.Arm("UCbbb", "vid-3", time.Now().Add(30*time.Millisecond), fire)

	s.CancelChannel("UCaaa")

	assert.False(t, s.Pending("UCaaa", "vid-1"))
	assert.False(t, s.Pending("UCaaa", "vid-2"))
	assert.True(t, s.Pending("UCbbb", "vid-3"))

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}
