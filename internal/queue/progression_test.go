package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servedBooking(sess *Session, token int, status BookingStatus, started, ended bool) Booking {
	b := bookingFor(sess, token, status)
	ts := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)
	if started {
		b.ActualStartTime = &ts
	}
	if ended {
		end := ts.Add(12 * time.Minute)
		b.ActualEndTime = &end
	}
	return b
}

func TestDeriveCurrentToken(t *testing.T) {
	sess := testSession()

	active := []Booking{
		servedBooking(sess, 1, StatusCompleted, true, true),
		servedBooking(sess, 2, StatusNoShow, false, false),
		servedBooking(sess, 3, StatusInProgress, true, false),
		servedBooking(sess, 4, StatusConfirmed, false, false),
	}

	// explicit pointer wins over everything
	state := &QueueState{CurrentToken: 7}
	assert.Equal(t, 7, DeriveCurrentToken(state, active))

	// started-but-unfinished booking comes next
	assert.Equal(t, 3, DeriveCurrentToken(nil, active))

	// then the highest processed token
	processed := []Booking{
		servedBooking(sess, 1, StatusCompleted, true, true),
		servedBooking(sess, 4, StatusNoShow, false, false),
		servedBooking(sess, 2, StatusCompleted, true, true),
		servedBooking(sess, 6, StatusConfirmed, false, false),
	}
	assert.Equal(t, 4, DeriveCurrentToken(nil, processed))

	// queue not started yet
	waiting := []Booking{servedBooking(sess, 1, StatusConfirmed, false, false)}
	assert.Equal(t, 0, DeriveCurrentToken(nil, waiting))
	assert.Equal(t, 0, DeriveCurrentToken(nil, nil))
}

func queueSnapshot(sess *Session) QueueSnapshot {
	return QueueSnapshot{
		Session: sess,
		Date:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildLiveStatusCounters(t *testing.T) {
	sess := testSession()
	snap := queueSnapshot(sess)

	missed := servedBooking(sess, 5, StatusConfirmed, false, false)
	missed.MissedAppointment = true

	snap.Active = []Booking{
		servedBooking(sess, 1, StatusCompleted, true, true),
		servedBooking(sess, 2, StatusCompleted, true, true),
		servedBooking(sess, 3, StatusNoShow, false, false),
		servedBooking(sess, 4, StatusConfirmed, false, false),
		missed,
	}

	at := func(min int) time.Time {
		return time.Date(2026, 9, 1, 9, min, 0, 0, time.UTC)
	}
	snap.Calls = []TokenCallRecord{
		{TokenNumber: 1, CalledAt: at(0)},
		{TokenNumber: 2, CalledAt: at(10)},
		{TokenNumber: 3, CalledAt: at(20)},
		{TokenNumber: 3, CalledAt: at(25), IsRecall: true},
	}

	st, err := BuildLiveStatus(snap, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, st.CompletedToday)
	assert.Equal(t, 2, st.NoShowToday) // status no_show plus the missed flag
	assert.Equal(t, 4, st.ProcessedToday)
	assert.Equal(t, 4, st.TotalTokensCalled)
	assert.Equal(t, 3, st.UniqueTokensCalled)
	assert.GreaterOrEqual(t, st.TotalTokensCalled, st.UniqueTokensCalled)
}

func TestBuildLiveStatusTarget(t *testing.T) {
	sess := testSession()
	snap := queueSnapshot(sess)
	snap.State = &QueueState{CurrentToken: 3}

	var active []Booking
	for i := 1; i <= 10; i++ {
		b := bookingFor(sess, i, StatusConfirmed)
		b.AppointmentDate = snap.Date
		active = append(active, b)
	}
	snap.Active = active

	target := active[6] // token 7
	st, err := BuildLiveStatus(snap, &target)
	require.NoError(t, err)

	assert.Equal(t, 3, st.CurrentToken)
	assert.Equal(t, 4, st.TokensAhead)
	assert.Equal(t, 40, st.EstimatedWaitMinutes) // session pace, 10 min/patient
	assert.Equal(t, 60, st.ProgressPercent)      // (10-4)/10

	// observed rolling average overrides the static pace
	snap.AvgWaitMinutes = 7.5
	st, err = BuildLiveStatus(snap, &target)
	require.NoError(t, err)
	assert.Equal(t, 30, st.EstimatedWaitMinutes)

	// a target at or behind the pointer never reports negative wait
	behind := active[1] // token 2
	st, err = BuildLiveStatus(snap, &behind)
	require.NoError(t, err)
	assert.Equal(t, 0, st.TokensAhead)
	assert.Equal(t, 0, st.EstimatedWaitMinutes)
	assert.Equal(t, 100, st.ProgressPercent)
}

func TestBuildLiveStatusSessionMismatch(t *testing.T) {
	sess := testSession()
	snap := queueSnapshot(sess)

	other := bookingFor(testSession(), 1, StatusConfirmed)
	other.AppointmentDate = snap.Date
	_, err := BuildLiveStatus(snap, &other)
	assert.ErrorIs(t, err, ErrSessionMismatch)

	wrongDay := bookingFor(sess, 1, StatusConfirmed)
	wrongDay.AppointmentDate = snap.Date.AddDate(0, 0, 1)
	_, err = BuildLiveStatus(snap, &wrongDay)
	assert.ErrorIs(t, err, ErrSessionMismatch)
}

func TestBuildLiveStatusRecall(t *testing.T) {
	sess := testSession()
	snap := queueSnapshot(sess)
	snap.State = &QueueState{CurrentToken: 4}

	reason := "patient not at counter"
	first := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)
	snap.Calls = []TokenCallRecord{
		{TokenNumber: 3, CalledAt: first.Add(-10 * time.Minute)},
		{TokenNumber: 4, CalledAt: first},
		{TokenNumber: 4, CalledAt: second, IsRecall: true, RecallReason: &reason},
	}

	st, err := BuildLiveStatus(snap, nil)
	require.NoError(t, err)
	assert.True(t, st.CurrentTokenRecalled)
	require.NotNil(t, st.RecallReason)
	assert.Equal(t, reason, *st.RecallReason)
	require.NotNil(t, st.LastCalledAt)
	assert.True(t, st.LastCalledAt.Equal(second))

	// the most recent row decides: a fresh first call clears the flag
	snap.State = &QueueState{CurrentToken: 5}
	snap.Calls = append(snap.Calls, TokenCallRecord{TokenNumber: 5, CalledAt: second.Add(time.Minute)})
	st, err = BuildLiveStatus(snap, nil)
	require.NoError(t, err)
	assert.False(t, st.CurrentTokenRecalled)
	assert.Nil(t, st.RecallReason)
}
