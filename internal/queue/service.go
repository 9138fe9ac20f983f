package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/carequeue/token-queue-service/internal/config"
	redisclient "github.com/carequeue/token-queue-service/internal/redis"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingConfirmed   = "BOOKING_CONFIRMED"
	EventBookingCancelled   = "BOOKING_CANCELLED"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"
	EventPaymentSucceeded   = "PAYMENT_SUCCEEDED"
	EventTokenCalled        = "TOKEN_CALLED"
	EventBreakAutoEnded     = "BREAK_AUTO_ENDED"
)

var (
	ErrQueueBusy            = errors.New("queue is busy for this session-day, please retry")
	ErrNotLockOwner         = errors.New("lock is held by another user")
	ErrInvalidTransition    = errors.New("invalid booking status transition")
	ErrBookingNotModifiable = errors.New("only pending or confirmed bookings can be modified")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	stats  redisclient.WaitStats // optional, nil when redis stats are disabled
	cfg    config.Config
}

func NewService(repo Repository, locker redisclient.Locker, stats redisclient.WaitStats, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		stats:  stats,
		cfg:    cfg,
	}
}

// BookingResult pairs a committed booking with its overflow flag. Overflow
// is informational; the booking is valid.
type BookingResult struct {
	Booking  *Booking
	Overflow bool
}

// BookingRequest carries everything needed to commit a booking.
// TokenNumber <= 0 selects next-available mode. EstimatedTime, when set,
// overrides the linear schedule.
type BookingRequest struct {
	SessionID       uuid.UUID
	Date            time.Time
	TokenNumber     int
	UserID          uuid.UUID
	EstimatedTime   *string
	ConsultationFee *float64
}

// AllocateToken runs the allocation decision without committing anything.
// The snapshot is fetched immediately prior, so a small TOCTOU window is
// accepted; the unique constraint at commit time is the real boundary.
func (s *Service) AllocateToken(ctx context.Context, sessionID uuid.UUID, date time.Time, requested int, userID uuid.UUID) (*Allocation, error) {
	snap, err := s.snapshot(ctx, sessionID, date, userID)
	if err != nil {
		return nil, err
	}
	return Allocate(*snap, userID, requested)
}

// AvailableTokens lists free token numbers for a session-day, honoring
// active unexpired locks.
func (s *Service) AvailableTokens(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]int, int, error) {
	snap, err := s.snapshot(ctx, sessionID, date, uuid.Nil)
	if err != nil {
		return nil, 0, err
	}
	free, overflow := FreeTokens(*snap)
	return free, overflow, nil
}

// CreateBooking commits a pending booking for the allocated token. The
// whole critical section runs under the session-day mutex; the partial
// unique index on (session, date, token) is the final conflict authority.
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	var result *BookingResult

	err := s.locker.WithQueueLock(ctx, req.SessionID, req.Date, func(lockCtx context.Context) error {
		snap, err := s.snapshot(lockCtx, req.SessionID, req.Date, req.UserID)
		if err != nil {
			return err
		}

		alloc, err := Allocate(*snap, req.UserID, req.TokenNumber)
		if err != nil {
			return err
		}

		estimated := alloc.EstimatedTime
		if req.EstimatedTime != nil {
			estimated = *req.EstimatedTime
		}

		booking := &Booking{
			ID:              uuid.New(),
			UserID:          req.UserID,
			DoctorID:        snap.Session.DoctorID,
			SessionID:       req.SessionID,
			AppointmentDate: DateOf(req.Date),
			TokenNumber:     alloc.TokenNumber,
			EstimatedTime:   estimated,
			Status:          StatusPending,
			ConsultationFee: req.ConsultationFee,
		}

		created, err := s.repo.CreateBooking(lockCtx, booking)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		// The user's own checkout lock on this token is superseded by the
		// committed booking.
		if held, err := s.repo.GetActiveLock(lockCtx, req.SessionID, DateOf(req.Date), alloc.TokenNumber, time.Now()); err == nil && held.LockedBy == req.UserID {
			if _, err := s.repo.SetLockStatus(lockCtx, held.ID, LockReleased); err != nil {
				log.Printf("release superseded lock %s: %v", held.ID, err)
			}
		}

		s.logEvent(lockCtx, created.ID, EventBookingCreated, map[string]any{
			"session_id": req.SessionID.String(),
			"date":       DateOf(req.Date).Format("2006-01-02"),
			"token":      alloc.TokenNumber,
			"overflow":   alloc.Overflow,
		})

		result = &BookingResult{Booking: created, Overflow: alloc.Overflow}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrQueueContended) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	return result, nil
}

// GetBooking retrieves a booking by id.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ConfirmBooking moves a pending booking to confirmed after payment
// success.
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status != StatusPending {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, b.ID, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventPaymentSucceeded, map[string]any{})
	s.logEvent(ctx, updated.ID, EventBookingConfirmed, map[string]any{
		"token": updated.TokenNumber,
	})

	return updated, nil
}

// CancelBooking cancels a non-terminal booking, freeing its token for
// re-allocation (the unique index ignores cancelled rows).
func (s *Service) CancelBooking(ctx context.Context, id, actor uuid.UUID, reason string) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, b.ID, b.Status, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	s.auditChange(ctx, b, updated, reason, actor)
	s.logEvent(ctx, updated.ID, EventBookingCancelled, map[string]any{
		"token":  updated.TokenNumber,
		"reason": reason,
	})

	return updated, nil
}

// RescheduleBooking moves a pending or confirmed booking to a new date
// and/or token, re-running the conflict checks for the target day and
// recording an audit row with the previous values.
func (s *Service) RescheduleBooking(ctx context.Context, id uuid.UUID, newDate time.Time, newToken int, reason string, actor uuid.UUID) (*BookingResult, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", ErrBookingNotModifiable, b.Status)
	}

	var result *BookingResult

	err = s.locker.WithQueueLock(ctx, b.SessionID, newDate, func(lockCtx context.Context) error {
		snap, err := s.snapshot(lockCtx, b.SessionID, newDate, b.UserID)
		if err != nil {
			return err
		}

		// The booking being moved must not conflict with itself.
		snap.Booked = withoutBooking(snap.Booked, b.ID)
		if snap.UserBooking != nil && snap.UserBooking.ID == b.ID {
			snap.UserBooking = nil
		}

		alloc, err := Allocate(*snap, b.UserID, newToken)
		if err != nil {
			return err
		}

		updated, err := s.repo.RescheduleBooking(lockCtx, b.ID, DateOf(newDate), alloc.TokenNumber, alloc.EstimatedTime)
		if err != nil {
			return fmt.Errorf("reschedule booking: %w", err)
		}

		s.auditChange(lockCtx, b, updated, reason, actor)
		s.logEvent(lockCtx, updated.ID, EventBookingRescheduled, map[string]any{
			"previous_date":  DateOf(b.AppointmentDate).Format("2006-01-02"),
			"new_date":       DateOf(updated.AppointmentDate).Format("2006-01-02"),
			"previous_token": b.TokenNumber,
			"new_token":      updated.TokenNumber,
		})

		result = &BookingResult{Booking: updated, Overflow: alloc.Overflow}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrQueueContended) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	return result, nil
}

// AcquireTokenLock reserves a token for a user's checkout window.
// Re-acquire by the owner refreshes the expiry instead of failing.
func (s *Service) AcquireTokenLock(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, userID uuid.UUID, ttl time.Duration) (*TokenLock, error) {
	if token <= 0 {
		return nil, ErrBadTokenNumber
	}
	if ttl <= 0 {
		ttl = s.cfg.TokenLockTTL
	}

	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsActive {
		return nil, ErrSessionInactive
	}
	now := time.Now()
	if DateOf(date).Before(DateOf(now)) {
		return nil, ErrPastDate
	}

	var lock *TokenLock

	err = s.locker.WithQueueLock(ctx, sessionID, date, func(lockCtx context.Context) error {
		existing, err := s.repo.GetActiveLock(lockCtx, sessionID, DateOf(date), token, now)
		if err != nil && !errors.Is(err, ErrLockNotFound) {
			return fmt.Errorf("check existing lock: %w", err)
		}
		if existing != nil {
			if existing.LockedBy != userID {
				return ErrTokenLocked
			}
			refreshed, err := s.repo.RefreshLock(lockCtx, existing.ID, now.Add(ttl))
			if err != nil {
				return fmt.Errorf("refresh lock: %w", err)
			}
			lock = refreshed
			return nil
		}

		booked, err := s.repo.ListActiveBookings(lockCtx, sessionID, DateOf(date))
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		for _, b := range booked {
			if b.TokenNumber == token {
				return ErrTokenConflict
			}
		}

		created, err := s.repo.CreateLock(lockCtx, &TokenLock{
			ID:              uuid.New(),
			SessionID:       sessionID,
			AppointmentDate: DateOf(date),
			TokenNumber:     token,
			LockedBy:        userID,
			Status:          LockActive,
			ExpiresAt:       now.Add(ttl),
		})
		if err != nil {
			return fmt.Errorf("create lock: %w", err)
		}
		lock = created
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrQueueContended) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	return lock, nil
}

// ReleaseTokenLock releases a lock; only its owner may do so.
func (s *Service) ReleaseTokenLock(ctx context.Context, lockID, userID uuid.UUID) error {
	lock, err := s.repo.GetLockByID(ctx, lockID)
	if err != nil {
		return fmt.Errorf("load lock: %w", err)
	}
	if lock.LockedBy != userID {
		return ErrNotLockOwner
	}
	if lock.Status != LockActive {
		return nil // already released or expired, idempotent
	}
	if _, err := s.repo.SetLockStatus(ctx, lockID, LockReleased); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// CallToken advances the queue to a token, appending call history and
// moving the authoritative pointer. Recalls flag the booking and keep a
// distinct history row.
func (s *Service) CallToken(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, isRecall bool, recallReason string) (*QueueState, error) {
	if token <= 0 {
		return nil, ErrBadTokenNumber
	}
	if _, err := s.repo.GetSessionByID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var state *QueueState

	err := s.locker.WithQueueLock(ctx, sessionID, date, func(lockCtx context.Context) error {
		now := time.Now()

		rec := TokenCallRecord{
			SessionID:       sessionID,
			AppointmentDate: DateOf(date),
			TokenNumber:     token,
			CalledAt:        now,
			IsRecall:        isRecall,
		}
		if isRecall && recallReason != "" {
			rec.RecallReason = &recallReason
		}
		if err := s.repo.InsertCallRecord(lockCtx, rec); err != nil {
			return fmt.Errorf("append call history: %w", err)
		}

		if err := s.repo.SetCurrentToken(lockCtx, sessionID, DateOf(date), token, now); err != nil {
			return fmt.Errorf("set current token: %w", err)
		}

		if isRecall {
			if b := findByToken(lockCtx, s.repo, sessionID, DateOf(date), token); b != nil {
				if _, err := s.repo.MarkRecalled(lockCtx, b.ID); err != nil {
					log.Printf("mark booking %s recalled: %v", b.ID, err)
				}
			}
		}

		s.logEvent(lockCtx, uuid.Nil, EventTokenCalled, map[string]any{
			"session_id": sessionID.String(),
			"date":       DateOf(date).Format("2006-01-02"),
			"token":      token,
			"is_recall":  isRecall,
		})

		state = &QueueState{
			SessionID:       sessionID,
			AppointmentDate: DateOf(date),
			CurrentToken:    token,
			UpdatedAt:       now,
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrQueueContended) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	return state, nil
}

// LiveQueueStatus computes the live queue view, optionally anchored to a
// target booking for tokensAhead/wait/progress.
func (s *Service) LiveQueueStatus(ctx context.Context, sessionID uuid.UUID, date time.Time, bookingID *uuid.UUID) (*LiveStatus, error) {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	day := DateOf(date)

	state, err := s.repo.GetQueueState(ctx, sessionID, day)
	if err != nil && !errors.Is(err, ErrQueueStateNotFound) {
		return nil, fmt.Errorf("load queue state: %w", err)
	}

	active, err := s.repo.ListActiveBookings(ctx, sessionID, day)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	calls, err := s.repo.ListCallRecords(ctx, sessionID, day)
	if err != nil {
		return nil, fmt.Errorf("list call history: %w", err)
	}

	snap := QueueSnapshot{
		Session: session,
		Date:    day,
		State:   state,
		Active:  active,
		Calls:   calls,
	}

	if s.stats != nil {
		if avg, ok, err := s.stats.AverageWaitMinutes(ctx, sessionID, day); err != nil {
			log.Printf("read wait stat for session %s: %v", sessionID, err)
		} else if ok {
			snap.AvgWaitMinutes = avg
		}
	}

	var target *Booking
	if bookingID != nil {
		target, err = s.repo.GetBookingByID(ctx, *bookingID)
		if err != nil {
			return nil, fmt.Errorf("load booking: %w", err)
		}
	}

	return BuildLiveStatus(snap, target)
}

// StartServingBooking marks a waiting booking as in progress, stamping the
// actual start time the wait estimators read.
func (s *Service) StartServingBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}
	updated, err := s.repo.StartServing(ctx, b.ID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("start serving: %w", err)
	}
	return updated, nil
}

// CompleteBooking finishes an in-progress consultation.
func (s *Service) CompleteBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}
	updated, err := s.repo.FinishServing(ctx, b.ID, StatusCompleted, time.Now())
	if err != nil {
		return nil, fmt.Errorf("complete booking: %w", err)
	}
	return updated, nil
}

// MarkNoShow records that the patient never turned up.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}
	updated, err := s.repo.FinishServing(ctx, b.ID, StatusNoShow, time.Now())
	if err != nil {
		return nil, fmt.Errorf("mark no-show: %w", err)
	}
	return updated, nil
}

// StartDoctorBreak puts a doctor on a timed or indefinite break. A missing
// availability record means the doctor was implicitly available.
func (s *Service) StartDoctorBreak(ctx context.Context, doctorID uuid.UUID, breakType BreakType, durationMinutes int, reason string) (*BreakStatus, error) {
	d, err := s.repo.GetDoctorAvailability(ctx, doctorID)
	if err != nil {
		if !errors.Is(err, ErrDoctorNotFound) {
			return nil, fmt.Errorf("load availability: %w", err)
		}
		d = &DoctorAvailability{DoctorID: doctorID, Status: DoctorAvailable}
	}

	now := time.Now()
	if err := StartBreak(d, breakType, time.Duration(durationMinutes)*time.Minute, reason, now); err != nil {
		return nil, err
	}
	if err := s.repo.SaveDoctorAvailability(ctx, d); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}

	st := CurrentBreakStatus(d, now)
	return &st, nil
}

// EndDoctorBreak ends an active break explicitly.
func (s *Service) EndDoctorBreak(ctx context.Context, doctorID uuid.UUID) (*BreakStatus, error) {
	d, err := s.repo.GetDoctorAvailability(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, ErrNotOnBreak
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}

	now := time.Now()
	if err := EndBreak(d, now); err != nil {
		return nil, err
	}
	if err := s.repo.SaveDoctorAvailability(ctx, d); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}

	st := CurrentBreakStatus(d, now)
	return &st, nil
}

// DoctorBreakStatus reads the availability view without mutating state.
func (s *Service) DoctorBreakStatus(ctx context.Context, doctorID uuid.UUID) (*BreakStatus, error) {
	d, err := s.repo.GetDoctorAvailability(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			st := BreakStatus{Status: DoctorAvailable}
			return &st, nil
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}

	st := CurrentBreakStatus(d, time.Now())
	return &st, nil
}

// SweepExpiredBreaks is intended to be called periodically by the worker
// or the cron endpoint. Idempotent; safe to race with manual end-break.
func (s *Service) SweepExpiredBreaks(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := s.repo.FindExpiredTimedBreaks(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired breaks: %w", err)
	}

	cleared := 0
	for i := range expired {
		d := expired[i]
		clearBreak(&d, now)
		if err := s.repo.SaveDoctorAvailability(ctx, &d); err != nil {
			log.Printf("failed to auto-end break for doctor %s: %v", d.DoctorID, err)
			continue
		}
		cleared++
		s.logEvent(ctx, uuid.Nil, EventBreakAutoEnded, map[string]any{
			"doctor_id": d.DoctorID.String(),
		})
	}

	return cleared, nil
}

// SweepExpiredLocks flips stale active locks to expired. Hygiene only:
// every read path already ignores locks past their expiry.
func (s *Service) SweepExpiredLocks(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireStaleLocks(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("expire stale locks: %w", err)
	}
	return n, nil
}

func (s *Service) snapshot(ctx context.Context, sessionID uuid.UUID, date time.Time, userID uuid.UUID) (*TokenSnapshot, error) {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	day := DateOf(date)

	booked, err := s.repo.ListActiveBookings(ctx, sessionID, day)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	locks, err := s.repo.ListLocks(ctx, sessionID, day)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}

	snap := &TokenSnapshot{
		Session: session,
		Date:    day,
		Booked:  booked,
		Locks:   locks,
		Now:     time.Now(),
	}

	if userID != uuid.Nil {
		existing, err := s.repo.GetUserBookingForDoctorDay(ctx, userID, session.DoctorID, day)
		if err != nil && !errors.Is(err, ErrBookingNotFound) {
			return nil, fmt.Errorf("check user booking: %w", err)
		}
		snap.UserBooking = existing
	}

	return snap, nil
}

func (s *Service) auditChange(ctx context.Context, previous, updated *Booking, reason string, actor uuid.UUID) {
	ch := BookingChange{
		BookingID:     previous.ID,
		PreviousDate:  DateOf(previous.AppointmentDate),
		NewDate:       DateOf(updated.AppointmentDate),
		PreviousToken: previous.TokenNumber,
		NewToken:      updated.TokenNumber,
		PreviousTime:  previous.EstimatedTime,
		NewTime:       updated.EstimatedTime,
		ChangedBy:     actor,
		CreatedAt:     time.Now(),
	}
	if reason != "" {
		r := reason
		ch.Reason = &r
	}
	if err := s.repo.InsertBookingChange(ctx, ch); err != nil {
		log.Printf("failed to insert booking change for %s: %v", previous.ID, err)
	}
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if bookingID != uuid.Nil {
		id := bookingID
		ev.BookingID = &id
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s: %v", eventType, err)
	}
}

func findByToken(ctx context.Context, repo Repository, sessionID uuid.UUID, date time.Time, token int) *Booking {
	booked, err := repo.ListActiveBookings(ctx, sessionID, date)
	if err != nil {
		log.Printf("list bookings for call on session %s: %v", sessionID, err)
		return nil
	}
	for i := range booked {
		if booked[i].TokenNumber == token {
			return &booked[i]
		}
	}
	return nil
}

func withoutBooking(bookings []Booking, id uuid.UUID) []Booking {
	out := bookings[:0]
	for _, b := range bookings {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
