package tracker

import (
	"sync"
	"time"
)

type reminderKey struct {
	channelID string
	videoID   string
}

// ReminderScheduler manages one-shot reminder timers keyed by
// (channel, video). Arming an existing key replaces its job atomically;
// cancelling a missing job is a no-op.
type ReminderScheduler struct {
	mu   sync.Mutex
	jobs map[reminderKey]*time.Timer
}

// NewReminderScheduler creates an empty scheduler.
func NewReminderScheduler() *ReminderScheduler {
	return &ReminderScheduler{jobs: make(map[reminderKey]*time.Timer)}
}

// Arm schedules fire to run at firesAt, cancelling any pending job for the
// same key first so the key never has two live jobs.
func (s *ReminderScheduler) Arm(channelID, videoID string, firesAt time.Time, fire func()) {
	key := reminderKey{channelID: channelID, videoID: videoID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.jobs[key]; ok {
		timer.Stop()
	}

	delay := time.Until(firesAt)
	if delay < 0 {
		delay = 0
	}

	s.jobs[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, key)
		s.mu.Unlock()
		fire()
	})
}

// Cancel stops the job for one key if it exists.
func (s *ReminderScheduler) Cancel(channelID, videoID string) {
	key := reminderKey{channelID: channelID, videoID: videoID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.jobs[key]; ok {
		timer.Stop()
		delete(s.jobs, key)
	}
}

// CancelChannel stops every job belonging to a channel.
func (s *ReminderScheduler) CancelChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.jobs {
		if key.channelID == channelID {
			timer.Stop()
			delete(s.jobs, key)
		}
	}
}

// Pending reports whether a job is armed for the key. Used by tests.
func (s *ReminderScheduler) Pending(channelID, videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[reminderKey{channelID: channelID, videoID: videoID}]
	return ok
}
