package queue

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionInactive  = errors.New("session is not active")
	ErrPastDate         = errors.New("appointment date is in the past")
	ErrBadTokenNumber   = errors.New("token number must be a positive integer")
	ErrDuplicateBooking = errors.New("user already has a booking with this doctor on this date")
	ErrTokenConflict    = errors.New("token is already booked")
	ErrTokenLocked      = errors.New("token is locked by another user")
)

// TokenSnapshot is everything the allocator needs to decide on a request:
// the session template plus the booked and locked tokens for the day.
// The allocator is a pure function over it; persistence happens elsewhere
// and the storage-level unique constraint remains the final authority.
type TokenSnapshot struct {
	Session     *Session
	Date        time.Time
	Booked      []Booking   // non-cancelled bookings for (session, date)
	Locks       []TokenLock // lock rows for (session, date), any status
	UserBooking *Booking    // requesting user's non-cancelled booking with this doctor on this date, if any
	Now         time.Time
}

// Allocation is the allocator's decision. Overflow marks a token beyond
// the session's nominal capacity; it is a flag, not an error.
type Allocation struct {
	TokenNumber   int
	EstimatedTime string
	Overflow      bool
}

// Allocate validates and assigns a token for a booking request.
// requested <= 0 selects next-available mode.
func Allocate(snap TokenSnapshot, userID uuid.UUID, requested int) (*Allocation, error) {
	if snap.Session == nil || !snap.Session.IsActive {
		return nil, ErrSessionInactive
	}
	if DateOf(snap.Date).Before(DateOf(snap.Now)) {
		return nil, ErrPastDate
	}
	if snap.UserBooking != nil && snap.UserBooking.Status != StatusCancelled {
		return nil, ErrDuplicateBooking
	}

	token := requested
	if token <= 0 {
		token = NextAvailableToken(snap)
	} else {
		for _, b := range snap.Booked {
			if b.Status != StatusCancelled && b.TokenNumber == token {
				return nil, ErrTokenConflict
			}
		}
		for i := range snap.Locks {
			l := &snap.Locks[i]
			if l.TokenNumber == token && l.BlocksAt(snap.Now) && l.LockedBy != userID {
				return nil, ErrTokenLocked
			}
		}
	}

	est, err := EstimatedServiceTime(snap.Session.StartTime, token, snap.Session.AvgMinutesPerPatient)
	if err != nil {
		return nil, err
	}

	return &Allocation{
		TokenNumber:   token,
		EstimatedTime: est,
		Overflow:      token > snap.Session.MaxTokens,
	}, nil
}

// NextAvailableToken scans booked and actively-locked token numbers in
// ascending order and returns the lowest unused integer >= 1. When every
// token in 1..MaxTokens is taken it returns max(taken)+1, the first
// overflow token.
func NextAvailableToken(snap TokenSnapshot) int {
	taken := takenTokens(snap)
	if len(taken) == 0 {
		return 1
	}

	sorted := make([]int, 0, len(taken))
	for t := range taken {
		sorted = append(sorted, t)
	}
	sort.Ints(sorted)

	next := 1
	for _, t := range sorted {
		if t > next {
			break
		}
		if t == next {
			next++
		}
	}
	if next <= snap.Session.MaxTokens {
		return next
	}
	return sorted[len(sorted)-1] + 1
}

// FreeTokens lists the unused token numbers in 1..MaxTokens plus the next
// overflow token when the nominal range is exhausted.
func FreeTokens(snap TokenSnapshot) (free []int, nextOverflow int) {
	taken := takenTokens(snap)
	highest := 0
	for t := range taken {
		if t > highest {
			highest = t
		}
	}
	for t := 1; t <= snap.Session.MaxTokens; t++ {
		if !taken[t] {
			free = append(free, t)
		}
	}
	if len(free) == 0 {
		nextOverflow = highest + 1
	}
	return free, nextOverflow
}

func takenTokens(snap TokenSnapshot) map[int]bool {
	taken := make(map[int]bool, len(snap.Booked)+len(snap.Locks))
	for _, b := range snap.Booked {
		if b.Status != StatusCancelled {
			taken[b.TokenNumber] = true
		}
	}
	for i := range snap.Locks {
		if snap.Locks[i].BlocksAt(snap.Now) {
			taken[snap.Locks[i].TokenNumber] = true
		}
	}
	return taken
}
