package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/daterange"
)

var calNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func mustRange(t *testing.T, inDay, outDay int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, time.July, inDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, outDay, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return dr
}

func TestClaimAndOverlap(t *testing.T) {
	cal := New("prop-1")
	require.NoError(t, cal.Claim(mustRange(t, 10, 13), "res-1", calNow))

	err := cal.Claim(mustRange(t, 12, 15), "res-2", calNow)
	assert.ErrorIs(t, err, ErrOverlappingRange)
	assert.Len(t, cal.Blocks, 1, "failed claim leaves no block behind")

	holder, clash := cal.ConflictingReservation(mustRange(t, 12, 15))
	assert.True(t, clash)
	assert.Equal(t, "res-1", holder)

	// Back-to-back stays share a boundary day without clashing.
	require.NoError(t, cal.Claim(mustRange(t, 13, 16), "res-3", calNow))
	assert.Len(t, cal.Blocks, 2)
}

func TestClaimRecordsEvents(t *testing.T) {
	cal := New("prop-1")
	require.NoError(t, cal.Claim(mustRange(t, 10, 13), "res-1", calNow))
	_ = cal.Claim(mustRange(t, 11, 12), "res-2", calNow)

	events := cal.PendingEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "calendar.blocked", events[0].EventName())
	assert.Equal(t, "calendar.double_booking_prevented", events[1].EventName())
}

func TestRelease(t *testing.T) {
	cal := New("prop-1")
	require.NoError(t, cal.Claim(mustRange(t, 10, 13), "res-1", calNow))
	require.NoError(t, cal.Release("res-1", calNow))
	assert.Empty(t, cal.Blocks)

	assert.ErrorIs(t, cal.Release("res-1", calNow), ErrBlockNotFound)

	// Released dates are claimable again.
	require.NoError(t, cal.Claim(mustRange(t, 10, 13), "res-2", calNow))
}
