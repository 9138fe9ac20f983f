package queue

import (
	"errors"
	"time"
)

var (
	ErrNotOnBreak       = errors.New("doctor is not on break")
	ErrBreakDuration    = errors.New("timed break requires a positive duration")
	ErrUnknownBreakType = errors.New("break type must be timed or indefinite")
)

// BreakStatus is the non-mutating view of a doctor's availability.
// Expiry is reported, never applied here; only the sweep or an explicit
// end-break call changes state.
type BreakStatus struct {
	Status           AvailabilityStatus
	BreakType        *BreakType
	BreakStartTime   *time.Time
	BreakEndTime     *time.Time
	BreakReason      *string
	RemainingSeconds int64
	BreakExpired     bool
}

// StartBreak transitions the record onto a break. Allowed from any state;
// starting a new break while one is running replaces it.
func StartBreak(d *DoctorAvailability, breakType BreakType, duration time.Duration, reason string, now time.Time) error {
	switch breakType {
	case BreakTimed:
		if duration <= 0 {
			return ErrBreakDuration
		}
	case BreakIndefinite:
	default:
		return ErrUnknownBreakType
	}

	d.Status = DoctorOnBreak
	bt := breakType
	d.BreakType = &bt
	start := now
	d.BreakStartTime = &start
	d.BreakEndTime = nil
	if breakType == BreakTimed {
		end := now.Add(duration)
		d.BreakEndTime = &end
	}
	d.BreakReason = nil
	if reason != "" {
		r := reason
		d.BreakReason = &r
	}
	d.UpdatedAt = now
	return nil
}

// EndBreak returns the doctor to available, clearing every break field.
// Valid only while on break.
func EndBreak(d *DoctorAvailability, now time.Time) error {
	if d.Status != DoctorOnBreak {
		return ErrNotOnBreak
	}
	clearBreak(d, now)
	return nil
}

// BreakExpired reports whether a timed break has run past its end.
func BreakExpired(d *DoctorAvailability, now time.Time) bool {
	return d.Status == DoctorOnBreak &&
		d.BreakType != nil && *d.BreakType == BreakTimed &&
		d.BreakEndTime != nil && d.BreakEndTime.Before(now)
}

// CurrentBreakStatus derives the status view without touching the record.
func CurrentBreakStatus(d *DoctorAvailability, now time.Time) BreakStatus {
	st := BreakStatus{
		Status:         d.Status,
		BreakType:      d.BreakType,
		BreakStartTime: d.BreakStartTime,
		BreakEndTime:   d.BreakEndTime,
		BreakReason:    d.BreakReason,
	}
	if d.Status == DoctorOnBreak && d.BreakEndTime != nil {
		remaining := d.BreakEndTime.Sub(now).Milliseconds() / 1000
		if remaining > 0 {
			st.RemainingSeconds = remaining
		}
		st.BreakExpired = BreakExpired(d, now)
	}
	return st
}

func clearBreak(d *DoctorAvailability, now time.Time) {
	d.Status = DoctorAvailable
	d.BreakType = nil
	d.BreakStartTime = nil
	d.BreakEndTime = nil
	d.BreakReason = nil
	d.UpdatedAt = now
}
