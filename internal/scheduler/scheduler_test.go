package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOrdersByDeadline(t *testing.T) {
	s := New()
	now := time.Now()

	s.Schedule("b", now.Add(2*time.Second))
	s.Schedule("a", now.Add(1*time.Second))
	s.Schedule("c", now.Add(3*time.Second))

	require.Equal(t, 3, s.Len())

	job, ok := s.NextDue(now.Add(3 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "a", job)

	job, ok = s.NextDue(now.Add(3 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "b", job)

	job, ok = s.NextDue(now.Add(3 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "c", job)
}

func TestScheduleTiesInsertBeforeExistingEntries(t *testing.T) {
	s := New()
	deadline := time.Now()

	s.Schedule("first", deadline)
	s.Schedule("second", deadline)

	job, ok := s.NextDue(deadline)
	require.True(t, ok)
	assert.Equal(t, "second", job, "a new job with an equal deadline is inserted ahead of the existing one")
}

func TestNextDueFalseWhenNotYetDue(t *testing.T) {
	s := New()
	now := time.Now()
	s.Schedule("job", now.Add(time.Minute))

	_, ok := s.NextDue(now)
	assert.False(t, ok)
}

func TestNextDueFalseWhenEmpty(t *testing.T) {
	s := New()
	_, ok := s.NextDue(time.Now())
	assert.False(t, ok)
}

func TestWaitUntilReportsHeadDeadline(t *testing.T) {
	s := New()
	_, ok := s.WaitUntil(time.Now())
	assert.False(t, ok)

	deadline := time.Now().Add(5 * time.Second)
	s.Schedule("job", deadline)

	got, ok := s.WaitUntil(time.Now())
	require.True(t, ok)
	assert.Equal(t, deadline, got)
}

func TestHaveSchedule(t *testing.T) {
	s := New()
	assert.False(t, s.HaveSchedule())
	s.Schedule("job", time.Now())
	assert.True(t, s.HaveSchedule())
}
