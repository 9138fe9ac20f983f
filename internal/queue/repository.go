package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrDoctorNotFound     = errors.New("doctor availability record not found")
	ErrLockNotFound       = errors.New("token lock not found")
	ErrQueueStateNotFound = errors.New("no queue state for session-day")
)

// Repository contains all DB interactions needed by the service.
// Every method that enumerates locks filters by active status and unexpired
// expires_at; a lock past expiry is invisible to the engine.
type Repository interface {
	GetSessionByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// Bookings
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListActiveBookings(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]Booking, error)
	GetUserBookingForDoctorDay(ctx context.Context, userID, doctorID uuid.UUID, date time.Time) (*Booking, error)
	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error)
	StartServing(ctx context.Context, id uuid.UUID, at time.Time) (*Booking, error)
	FinishServing(ctx context.Context, id uuid.UUID, to BookingStatus, at time.Time) (*Booking, error)
	MarkRecalled(ctx context.Context, id uuid.UUID) (*Booking, error)
	RescheduleBooking(ctx context.Context, id uuid.UUID, date time.Time, token int, estimated string) (*Booking, error)
	InsertBookingChange(ctx context.Context, ch BookingChange) error

	// Token locks
	GetLockByID(ctx context.Context, id uuid.UUID) (*TokenLock, error)
	GetActiveLock(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, now time.Time) (*TokenLock, error)
	ListLocks(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]TokenLock, error)
	CreateLock(ctx context.Context, l *TokenLock) (*TokenLock, error)
	RefreshLock(ctx context.Context, id uuid.UUID, expiresAt time.Time) (*TokenLock, error)
	SetLockStatus(ctx context.Context, id uuid.UUID, status LockStatus) (*TokenLock, error)
	ExpireStaleLocks(ctx context.Context, now time.Time) (int, error)

	// Call history and queue state
	InsertCallRecord(ctx context.Context, rec TokenCallRecord) error
	ListCallRecords(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]TokenCallRecord, error)
	GetQueueState(ctx context.Context, sessionID uuid.UUID, date time.Time) (*QueueState, error)
	SetCurrentToken(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, at time.Time) error

	// Doctor availability
	GetDoctorAvailability(ctx context.Context, doctorID uuid.UUID) (*DoctorAvailability, error)
	SaveDoctorAvailability(ctx context.Context, d *DoctorAvailability) error
	FindExpiredTimedBreaks(ctx context.Context, now time.Time) ([]DoctorAvailability, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
