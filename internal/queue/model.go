package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusNoShow     BookingStatus = "no_show"
	StatusCancelled  BookingStatus = "cancelled"
)

// Terminal reports whether no further queue transitions apply.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNoShow || s == StatusCancelled
}

type LockStatus string

const (
	LockActive   LockStatus = "active"
	LockExpired  LockStatus = "expired"
	LockReleased LockStatus = "released"
)

type AvailabilityStatus string

const (
	DoctorAvailable AvailabilityStatus = "available"
	DoctorOnBreak   AvailabilityStatus = "on_break"
	DoctorOffline   AvailabilityStatus = "offline"
)

type BreakType string

const (
	BreakTimed      BreakType = "timed"
	BreakIndefinite BreakType = "indefinite"
)

// Session is a doctor's recurring weekly time block at a hospital.
// It is read-only during the day; scheduling staff create and deactivate it.
type Session struct {
	ID                   uuid.UUID
	DoctorID             uuid.UUID
	HospitalID           uuid.UUID
	DayOfWeek            int    // 0 = Sunday
	StartTime            string // "HH:MM", 24-hour
	EndTime              string
	MaxTokens            int
	AvgMinutesPerPatient int
	IsActive             bool
	RecallEnabled        bool
	RecallCheckInterval  int // minutes, 0 when unset
	RoomNumber           *string
	Floor                *string
	BuildingLocation     *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

var (
	errSessionDay      = errors.New("day_of_week must be 0..6")
	errSessionCapacity = errors.New("max_tokens must be positive")
	errSessionPace     = errors.New("avg_minutes_per_patient must be positive")
	errSessionWindow   = errors.New("end_time must be after start_time")
)

// Validate checks the template fields a session must carry before any
// token can be allocated against it.
func (s *Session) Validate() error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return errSessionDay
	}
	if s.MaxTokens <= 0 {
		return errSessionCapacity
	}
	if s.AvgMinutesPerPatient <= 0 {
		return errSessionPace
	}
	start, err := parseClock(s.StartTime)
	if err != nil {
		return err
	}
	end, err := parseClock(s.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return errSessionWindow
	}
	return nil
}

// Booking is one patient's token for a session-day. At most one
// non-cancelled booking may hold a token number per (session, date),
// enforced by a partial unique index.
type Booking struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	DoctorID          uuid.UUID
	SessionID         uuid.UUID
	AppointmentDate   time.Time // calendar date, midnight UTC
	TokenNumber       int
	EstimatedTime     string // "HH:MM"
	Status            BookingStatus
	ActualStartTime   *time.Time
	ActualEndTime     *time.Time
	IsRecalled        bool
	RecallCount       int
	MissedAppointment bool
	ConsultationFee   *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TokenLock is a short-lived checkout reservation of a token number.
// Expiry is lazy: a lock past ExpiresAt is treated as absent by every
// read path regardless of its stored status.
type TokenLock struct {
	ID              uuid.UUID
	SessionID       uuid.UUID
	AppointmentDate time.Time
	TokenNumber     int
	LockedBy        uuid.UUID
	Status          LockStatus
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// BlocksAt reports whether the lock still reserves its token at now.
func (l *TokenLock) BlocksAt(now time.Time) bool {
	return l.Status == LockActive && l.ExpiresAt.After(now)
}

// TokenCallRecord is one append-only row of call history, written every
// time the queue advances to a token, first call or recall.
type TokenCallRecord struct {
	ID              int64
	SessionID       uuid.UUID
	AppointmentDate time.Time
	TokenNumber     int
	CalledAt        time.Time
	IsRecall        bool
	RecallReason    *string
}

// BookingChange is an append-only audit row written on every successful
// modification of a pending or confirmed booking.
type BookingChange struct {
	ID            int64
	BookingID     uuid.UUID
	PreviousDate  time.Time
	NewDate       time.Time
	PreviousToken int
	NewToken      int
	PreviousTime  string
	NewTime       string
	Reason        *string
	ChangedBy     uuid.UUID
	CreatedAt     time.Time
}

// DoctorAvailability is the doctor's live status record. Break fields are
// set together when a break starts and cleared together when it ends.
type DoctorAvailability struct {
	DoctorID       uuid.UUID
	Status         AvailabilityStatus
	BreakType      *BreakType
	BreakStartTime *time.Time
	BreakEndTime   *time.Time
	BreakReason    *string
	UpdatedAt      time.Time
}

// QueueState is the explicit per-session-day pointer written by call
// actions. Read paths fall back to derivation only when no row exists.
type QueueState struct {
	SessionID       uuid.UUID
	AppointmentDate time.Time
	CurrentToken    int
	UpdatedAt       time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
