package queue

import (
	"errors"
	"math"
	"time"
)

var ErrSessionMismatch = errors.New("booking does not belong to the queried session and date")

// QueueSnapshot is the read-only input for a queue-status computation:
// the explicit state pointer (if any), the day's non-cancelled bookings
// and the full call history for (session, date).
type QueueSnapshot struct {
	Session *Session
	Date    time.Time
	State   *QueueState       // nil when no call has written a pointer yet
	Active  []Booking         // non-cancelled bookings for (session, date)
	Calls   []TokenCallRecord // ascending by CalledAt

	// AvgWaitMinutes is the observed rolling average for the session-day,
	// 0 when no observation is available. It overrides the session's
	// static pacing in wait estimates but is never written by this engine.
	AvgWaitMinutes float64
}

// LiveStatus is the full queue picture for a session-day, optionally
// anchored to one target booking.
type LiveStatus struct {
	CurrentToken         int
	TokensAhead          int
	EstimatedWaitMinutes int
	ProgressPercent      int

	TotalTokensCalled  int
	UniqueTokensCalled int
	CompletedToday     int
	NoShowToday        int
	ProcessedToday     int

	CurrentTokenRecalled bool
	RecallReason         *string
	LastCalledAt         *time.Time
}

// DeriveCurrentToken is the single authoritative derivation of the
// serving pointer, used by every read path. Precedence: the explicit
// pointer written by call actions; else the booking started but not
// finished; else the highest processed token; else 0.
func DeriveCurrentToken(state *QueueState, active []Booking) int {
	if state != nil && state.CurrentToken > 0 {
		return state.CurrentToken
	}
	for _, b := range active {
		if b.ActualStartTime != nil && b.ActualEndTime == nil {
			return b.TokenNumber
		}
	}
	highest := 0
	for _, b := range active {
		if (b.Status == StatusCompleted || b.Status == StatusNoShow) && b.TokenNumber > highest {
			highest = b.TokenNumber
		}
	}
	return highest
}

// BuildLiveStatus computes the live queue status. target may be nil for a
// session-wide view; when set it must belong to the snapshot's session
// and date.
func BuildLiveStatus(snap QueueSnapshot, target *Booking) (*LiveStatus, error) {
	if target != nil {
		if target.SessionID != snap.Session.ID || !DateOf(target.AppointmentDate).Equal(DateOf(snap.Date)) {
			return nil, ErrSessionMismatch
		}
	}

	st := &LiveStatus{
		CurrentToken: DeriveCurrentToken(snap.State, snap.Active),
	}

	for _, b := range snap.Active {
		if b.Status == StatusCompleted {
			st.CompletedToday++
		}
		if b.Status == StatusNoShow || b.MissedAppointment {
			st.NoShowToday++
		}
	}
	st.ProcessedToday = st.CompletedToday + st.NoShowToday

	seen := make(map[int]bool, len(snap.Calls))
	for _, c := range snap.Calls {
		st.TotalTokensCalled++
		seen[c.TokenNumber] = true
	}
	st.UniqueTokensCalled = len(seen)

	if target != nil {
		if target.TokenNumber > st.CurrentToken {
			st.TokensAhead = target.TokenNumber - st.CurrentToken
		}
		avg := snap.AvgWaitMinutes
		if avg <= 0 {
			avg = float64(snap.Session.AvgMinutesPerPatient)
		}
		st.EstimatedWaitMinutes = int(math.Round(float64(st.TokensAhead) * avg))

		if total := len(snap.Active); total > 0 {
			st.ProgressPercent = int(math.Round(float64(total-st.TokensAhead) / float64(total) * 100))
		}
	}

	if st.CurrentToken > 0 {
		// Most recent call row for the current token decides the recall flag.
		for i := len(snap.Calls) - 1; i >= 0; i-- {
			c := snap.Calls[i]
			if c.TokenNumber != st.CurrentToken {
				continue
			}
			calledAt := c.CalledAt
			st.LastCalledAt = &calledAt
			if c.IsRecall {
				st.CurrentTokenRecalled = true
				st.RecallReason = c.RecallReason
			}
			break
		}
	}

	return st, nil
}
