package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-schedule/internal/scheduler"
)

// mockJobs is a hand-written scheduler.Jobs that counts calls.
type mockJobs struct {
	mu         sync.Mutex
	recomputes int
	cutoffs    []int
	archiveErr error
}

func (m *mockJobs) RecomputeStatuses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputes++
	return 1
}

func (m *mockJobs) ArchiveAuto(_ context.Context, cutoffDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoffDays)
	return 2, m.archiveErr
}

func (m *mockJobs) recomputeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputes
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := scheduler.New(&mockJobs{}, scheduler.Config{StatusSchedule: "every day"}, nil)
	assert.Error(t, err)

	_, err = scheduler.New(&mockJobs{}, scheduler.Config{ArchiveSchedule: "0 61 * * * *"}, nil)
	assert.Error(t, err)
}

func TestScheduler_RunArchiveJob(t *testing.T) {
	jobs := &mockJobs{}
	s, err := scheduler.New(jobs, scheduler.Config{ArchiveSchedule: "0 30 0 * * *", ArchiveCutoffDays: 5}, nil)
	require.NoError(t, err)

	s.RunArchiveJob()
	jobs.archiveErr = errors.New("store unavailable")
	s.RunArchiveJob()

	assert.Equal(t, []int{5, 5}, jobs.cutoffs)
}

func TestScheduler_StartRunsStatusJob(t *testing.T) {
	jobs := &mockJobs{}
	s, err := scheduler.New(jobs, scheduler.Config{StatusSchedule: "* * * * * *"}, nil)
	require.NoError(t, err)

	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	assert.Eventually(t, func() bool { return jobs.recomputeCount() > 0 }, 3*time.Second, 50*time.Millisecond)
}

// loaderFunc adapts a function to scheduler.Loader.
type loaderFunc func(ctx context.Context) error

func (f loaderFunc) Load(ctx context.Context) error { return f(ctx) }

func TestScheduler_RunDirectoryJob(t *testing.T) {
	var calls int
	dir := loaderFunc(func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if calls == 2 {
			return errors.New("drivers unavailable")
		}
		return nil
	})
	s, err := scheduler.New(&mockJobs{}, scheduler.Config{Directory: dir, DirectorySchedule: "0 */5 * * * *"}, nil)
	require.NoError(t, err)

	s.RunDirectoryJob()
	s.RunDirectoryJob()

	assert.Equal(t, 2, calls)
}

func TestNew_RejectsBadDirectorySchedule(t *testing.T) {
	dir := loaderFunc(func(context.Context) error { return nil })

	_, err := scheduler.New(&mockJobs{}, scheduler.Config{Directory: dir, DirectorySchedule: "often"}, nil)
	assert.Error(t, err)

	// Without a directory the schedule is ignored.
	_, err = scheduler.New(&mockJobs{}, scheduler.Config{DirectorySchedule: "often"}, nil)
	assert.NoError(t, err)
}
