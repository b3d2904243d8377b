// Package scheduler implements the update engine's single time-ordered
// job queue: one sorted list, no background timers, the caller sleeps
// until the deadline WaitUntil reports itself. Grounded on
// original_source/update/scheduler.c.
package scheduler

import (
	"sort"
	"time"
)

// Job is anything the engine wants to run at a future deadline. The
// scheduler never frees a job; its caller owns its lifetime.
type Job any

type entry struct {
	deadline time.Time
	job      Job
}

// Scheduler is a single queue ordered by absolute deadline.
type Scheduler struct {
	entries []entry
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule inserts job so that the queue stays ordered by deadline.
// Ties are broken arbitrarily (a newly scheduled job is placed ahead of
// any already-queued job with the exact same deadline), matching
// scheduler.c's insertion order.
func (s *Scheduler) Schedule(job Job, deadline time.Time) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].deadline.Before(deadline)
	})

	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry{deadline: deadline, job: job}
}

// NextDue removes and returns the head job if its deadline has passed,
// at the given instant. It returns ok=false if the queue is empty or
// the head job isn't due yet.
func (s *Scheduler) NextDue(now time.Time) (job Job, ok bool) {
	if len(s.entries) == 0 || s.entries[0].deadline.After(now) {
		return nil, false
	}

	job = s.entries[0].job
	s.entries = s.entries[1:]
	return job, true
}

// WaitUntil returns the head job's deadline, the instant the caller
// should sleep until, or ok=false if the queue is empty. It never
// blocks, so callers can combine this sleep with other suspension
// points (e.g. a transport receive).
func (s *Scheduler) WaitUntil(now time.Time) (time.Time, bool) {
	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	return s.entries[0].deadline, true
}

// HaveSchedule reports whether any job is queued.
func (s *Scheduler) HaveSchedule() bool {
	return len(s.entries) > 0
}

// Len reports the number of queued jobs.
func (s *Scheduler) Len() int {
	return len(s.entries)
}
