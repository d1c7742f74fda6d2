package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// recordingUpdater is a hand-written Updater that keeps every patch it gets.
type recordingUpdater struct {
	patches []domain.TripPatch
	err     error
	gone    bool
}

func (r *recordingUpdater) Update(_ context.Context, _ uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error) {
	if r.err != nil {
		return domain.Trip{}, true, r.err
	}
	if r.gone {
		return domain.Trip{}, false, nil
	}
	r.patches = append(r.patches, p)
	return domain.Trip{}, true, nil
}

func day(s string) *time.Time { return domain.DatePtr(domain.MustParseDate(s)) }

func newTestGesture(t *testing.T, u Updater, mode Mode, end *time.Time) *Gesture {
	t.Helper()
	g, err := NewGesture(u, domain.Trip{ID: uuid.New(), StartDate: day("10.09.2025"), EndDate: end}, mode, 120)
	require.NoError(t, err)
	// A long interval makes every Move after the first one throttled.
	g.throttle = &rate.Sometimes{Interval: time.Hour}
	return g
}

func TestNewGesture_RequiresDates(t *testing.T) {
	_, err := NewGesture(&recordingUpdater{}, domain.Trip{ID: uuid.New()}, ModeMove, 120)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGesture_Move_SkipsZeroDelta(t *testing.T) {
	u := &recordingUpdater{}
	g := newTestGesture(t, u, ModeMove, day("12.09.2025"))

	sent, err := g.Move(context.Background(), 40)

	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, u.patches)
}

func TestGesture_Move_ThrottlesAndEndFlushes(t *testing.T) {
	u := &recordingUpdater{}
	g := newTestGesture(t, u, ModeMove, day("12.09.2025"))
	ctx := context.Background()

	sent, err := g.Move(ctx, 120)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = g.Move(ctx, 250)
	require.NoError(t, err)
	assert.False(t, sent, "second move inside the frame is dropped")

	sent, err = g.End(ctx, 250)
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, u.patches, 2)
	assert.Equal(t, day("11.09.2025"), u.patches[0].StartDate)
	assert.Equal(t, day("13.09.2025"), u.patches[0].EndDate)
	assert.Equal(t, day("12.09.2025"), u.patches[1].StartDate)
	assert.Equal(t, day("14.09.2025"), u.patches[1].EndDate)
}

func TestGesture_End_NoFlushWhenInPlace(t *testing.T) {
	u := &recordingUpdater{}
	g := newTestGesture(t, u, ModeMove, nil)
	ctx := context.Background()

	_, err := g.Move(ctx, -120)
	require.NoError(t, err)
	sent, err := g.End(ctx, -130)

	require.NoError(t, err)
	assert.False(t, sent)
	require.Len(t, u.patches, 1)
	assert.Equal(t, day("09.09.2025"), u.patches[0].StartDate)
	assert.Nil(t, u.patches[0].EndDate)

	_, err = g.Move(ctx, 0)
	assert.ErrorIs(t, err, ErrGestureEnded)
	_, err = g.End(ctx, 0)
	assert.ErrorIs(t, err, ErrGestureEnded)
}

func TestGesture_BackToStartIsApplied(t *testing.T) {
	u := &recordingUpdater{}
	g := newTestGesture(t, u, ModeMove, nil)
	ctx := context.Background()

	_, err := g.Move(ctx, 240)
	require.NoError(t, err)
	sent, err := g.End(ctx, 0)

	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, u.patches, 2)
	assert.Equal(t, day("10.09.2025"), u.patches[1].StartDate)
}

func TestGesture_ResizeRight_PatchesEndOnly(t *testing.T) {
	u := &recordingUpdater{}
	g := newTestGesture(t, u, ModeResizeRight, day("12.09.2025"))

	_, err := g.End(context.Background(), 240)

	require.NoError(t, err)
	require.Len(t, u.patches, 1)
	assert.Nil(t, u.patches[0].StartDate)
	assert.Equal(t, day("14.09.2025"), u.patches[0].EndDate)
}

func TestGesture_ResizeLeft_EndFollowsStart(t *testing.T) {
	u := &recordingUpdater{}
	g := newTestGesture(t, u, ModeResizeLeft, day("12.09.2025"))

	_, err := g.End(context.Background(), 480)

	require.NoError(t, err)
	require.Len(t, u.patches, 1)
	assert.Equal(t, day("14.09.2025"), u.patches[0].StartDate)
	assert.Equal(t, day("14.09.2025"), u.patches[0].EndDate)
}

func TestGesture_UpdateErrorKeepsPosition(t *testing.T) {
	u := &recordingUpdater{err: domain.ErrNotFound}
	g := newTestGesture(t, u, ModeMove, nil)

	_, err := g.End(context.Background(), 120)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 0, g.applied)
}

func TestGesture_TripGoneEndsWithNotFound(t *testing.T) {
	u := &recordingUpdater{gone: true}
	g := newTestGesture(t, u, ModeMove, nil)

	_, err := g.End(context.Background(), 120)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 0, g.applied)
	assert.Empty(t, u.patches)
}
