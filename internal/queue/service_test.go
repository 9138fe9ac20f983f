package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carequeue/token-queue-service/internal/config"
)

// memLocker serializes critical sections per session-day in process, the
// way the redis mutex does across processes. It blocks instead of failing
// fast so concurrency tests are deterministic.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *memLocker) WithQueueLock(ctx context.Context, sessionID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := sessionID.String() + ":" + date.UTC().Format("2006-01-02")
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type fixedStats struct {
	avg float64
}

func (f fixedStats) AverageWaitMinutes(ctx context.Context, sessionID uuid.UUID, date time.Time) (float64, bool, error) {
	return f.avg, f.avg > 0, nil
}

func (f fixedStats) SetAverageWait(ctx context.Context, sessionID uuid.UUID, date time.Time, minutes float64, ttl time.Duration) error {
	return nil
}

// memRepo is an in-memory Repository that enforces the same uniqueness
// rules the partial indexes do, so conflict paths behave like production.
type memRepo struct {
	mu         sync.Mutex
	sessions   map[uuid.UUID]*Session
	bookings   map[uuid.UUID]*Booking
	locks      map[uuid.UUID]*TokenLock
	calls      []TokenCallRecord
	states     map[string]*QueueState
	avail      map[uuid.UUID]*DoctorAvailability
	events     []EventLog
	changes    []BookingChange
	failEvents bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions: make(map[uuid.UUID]*Session),
		bookings: make(map[uuid.UUID]*Booking),
		locks:    make(map[uuid.UUID]*TokenLock),
		states:   make(map[string]*QueueState),
		avail:    make(map[uuid.UUID]*DoctorAvailability),
	}
}

func dayKey(sessionID uuid.UUID, date time.Time) string {
	return sessionID.String() + ":" + DateOf(date).Format("2006-01-02")
}

func (r *memRepo) GetSessionByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) ListActiveBookings(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.SessionID == sessionID && DateOf(b.AppointmentDate).Equal(DateOf(date)) && b.Status != StatusCancelled {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memRepo) GetUserBookingForDoctorDay(ctx context.Context, userID, doctorID uuid.UUID, date time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.UserID == userID && b.DoctorID == doctorID &&
			DateOf(b.AppointmentDate).Equal(DateOf(date)) && b.Status != StatusCancelled {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *memRepo) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bookings {
		if existing.Status == StatusCancelled {
			continue
		}
		if existing.SessionID == b.SessionID &&
			DateOf(existing.AppointmentDate).Equal(DateOf(b.AppointmentDate)) &&
			existing.TokenNumber == b.TokenNumber {
			return nil, ErrTokenConflict
		}
		if existing.UserID == b.UserID && existing.DoctorID == b.DoctorID &&
			DateOf(existing.AppointmentDate).Equal(DateOf(b.AppointmentDate)) {
			return nil, ErrDuplicateBooking
		}
	}
	cp := *b
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.bookings[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (r *memRepo) StartServing(ctx context.Context, id uuid.UUID, at time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.Status = StatusInProgress
	start := at
	b.ActualStartTime = &start
	b.UpdatedAt = at
	cp := *b
	return &cp, nil
}

func (r *memRepo) FinishServing(ctx context.Context, id uuid.UUID, to BookingStatus, at time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	if to == StatusCompleted {
		end := at
		b.ActualEndTime = &end
	}
	if to == StatusNoShow {
		b.MissedAppointment = true
	}
	b.UpdatedAt = at
	cp := *b
	return &cp, nil
}

func (r *memRepo) MarkRecalled(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.IsRecalled = true
	b.RecallCount++
	cp := *b
	return &cp, nil
}

func (r *memRepo) RescheduleBooking(ctx context.Context, id uuid.UUID, date time.Time, token int, estimated string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	for _, existing := range r.bookings {
		if existing.ID == id || existing.Status == StatusCancelled {
			continue
		}
		if existing.SessionID == b.SessionID &&
			DateOf(existing.AppointmentDate).Equal(DateOf(date)) &&
			existing.TokenNumber == token {
			return nil, ErrTokenConflict
		}
	}
	b.AppointmentDate = DateOf(date)
	b.TokenNumber = token
	b.EstimatedTime = estimated
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (r *memRepo) InsertBookingChange(ctx context.Context, ch BookingChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch.ID = int64(len(r.changes) + 1)
	r.changes = append(r.changes, ch)
	return nil
}

func (r *memRepo) GetLockByID(ctx context.Context, id uuid.UUID) (*TokenLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		return nil, ErrLockNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memRepo) GetActiveLock(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, now time.Time) (*TokenLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.locks {
		if l.SessionID == sessionID && DateOf(l.AppointmentDate).Equal(DateOf(date)) &&
			l.TokenNumber == token && l.BlocksAt(now) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLockNotFound
}

func (r *memRepo) ListLocks(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]TokenLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TokenLock
	for _, l := range r.locks {
		if l.SessionID == sessionID && DateOf(l.AppointmentDate).Equal(DateOf(date)) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memRepo) CreateLock(ctx context.Context, l *TokenLock) (*TokenLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	cp.CreatedAt = time.Now()
	r.locks[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) RefreshLock(ctx context.Context, id uuid.UUID, expiresAt time.Time) (*TokenLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		return nil, ErrLockNotFound
	}
	l.ExpiresAt = expiresAt
	cp := *l
	return &cp, nil
}

func (r *memRepo) SetLockStatus(ctx context.Context, id uuid.UUID, status LockStatus) (*TokenLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		return nil, ErrLockNotFound
	}
	l.Status = status
	cp := *l
	return &cp, nil
}

func (r *memRepo) ExpireStaleLocks(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.locks {
		if l.Status == LockActive && !l.ExpiresAt.After(now) {
			l.Status = LockExpired
			n++
		}
	}
	return n, nil
}

func (r *memRepo) InsertCallRecord(ctx context.Context, rec TokenCallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = int64(len(r.calls) + 1)
	r.calls = append(r.calls, rec)
	return nil
}

func (r *memRepo) ListCallRecords(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]TokenCallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TokenCallRecord
	for _, c := range r.calls {
		if c.SessionID == sessionID && DateOf(c.AppointmentDate).Equal(DateOf(date)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) GetQueueState(ctx context.Context, sessionID uuid.UUID, date time.Time) (*QueueState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[dayKey(sessionID, date)]
	if !ok {
		return nil, ErrQueueStateNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *memRepo) SetCurrentToken(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[dayKey(sessionID, date)] = &QueueState{
		SessionID:       sessionID,
		AppointmentDate: DateOf(date),
		CurrentToken:    token,
		UpdatedAt:       at,
	}
	return nil
}

func (r *memRepo) GetDoctorAvailability(ctx context.Context, doctorID uuid.UUID) (*DoctorAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.avail[doctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) SaveDoctorAvailability(ctx context.Context, d *DoctorAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.avail[cp.DoctorID] = &cp
	return nil
}

func (r *memRepo) FindExpiredTimedBreaks(ctx context.Context, now time.Time) ([]DoctorAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DoctorAvailability
	for _, d := range r.avail {
		if BreakExpired(d, now) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEvents {
		return errors.New("event store unavailable")
	}
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *memRepo, *Session, time.Time) {
	t.Helper()
	repo := newMemRepo()
	sess := testSession()
	repo.sessions[sess.ID] = sess

	svc := NewService(repo, &memLocker{}, nil, config.Config{
		TokenLockTTL:  5 * time.Minute,
		QueueMutexTTL: 5 * time.Second,
	})

	date := DateOf(time.Now().UTC().AddDate(0, 0, 1))
	return svc, repo, sess, date
}

func TestCreateBookingAssignsNextToken(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateBooking(ctx, BookingRequest{
		SessionID: sess.ID,
		Date:      date,
		UserID:    uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booking.TokenNumber)
	assert.Equal(t, "09:00", res.Booking.EstimatedTime)
	assert.Equal(t, StatusPending, res.Booking.Status)
	assert.Equal(t, sess.DoctorID, res.Booking.DoctorID)
	assert.False(t, res.Overflow)

	assert.Contains(t, repo.eventTypes(), EventBookingCreated)

	// next caller fills the gap after 1, 2, 4
	for _, token := range []int{2, 4} {
		_, err := svc.CreateBooking(ctx, BookingRequest{
			SessionID: sess.ID, Date: date, UserID: uuid.New(), TokenNumber: token,
		})
		require.NoError(t, err)
	}
	res, err = svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Booking.TokenNumber)
}

func TestCreateBookingConcurrentSameToken(t *testing.T) {
	svc, _, sess, date := newTestService(t)
	ctx := context.Background()

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBooking(ctx, BookingRequest{
				SessionID:   sess.ID,
				Date:        date,
				TokenNumber: 3,
				UserID:      uuid.New(),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTokenConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)
}

func TestCreateBookingReleasesOwnCheckoutLock(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	lock, err := svc.AcquireTokenLock(ctx, sess.ID, date, 5, userID, 0)
	require.NoError(t, err)

	res, err := svc.CreateBooking(ctx, BookingRequest{
		SessionID:   sess.ID,
		Date:        date,
		TokenNumber: 5,
		UserID:      userID,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Booking.TokenNumber)

	released, err := repo.GetLockByID(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, LockReleased, released.Status)
}

func TestCreateBookingEventLogFailureIsSwallowed(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	repo.failEvents = true

	res, err := svc.CreateBooking(context.Background(), BookingRequest{
		SessionID: sess.ID,
		Date:      date,
		UserID:    uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booking.TokenNumber)
}

func TestCreateBookingDuplicateUser(t *testing.T) {
	svc, _, sess, date := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, UserID: userID})
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, UserID: userID, TokenNumber: 9})
	assert.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestAcquireTokenLock(t *testing.T) {
	svc, _, sess, date := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.AcquireTokenLock(ctx, sess.ID, date, 0, owner, 0)
	assert.ErrorIs(t, err, ErrBadTokenNumber)

	_, err = svc.AcquireTokenLock(ctx, sess.ID, time.Now().UTC().AddDate(0, 0, -1), 3, owner, 0)
	assert.ErrorIs(t, err, ErrPastDate)

	lock, err := svc.AcquireTokenLock(ctx, sess.ID, date, 3, owner, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, LockActive, lock.Status)

	// owner re-acquire refreshes the same lock instead of failing
	refreshed, err := svc.AcquireTokenLock(ctx, sess.ID, date, 3, owner, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, lock.ID, refreshed.ID)
	assert.True(t, refreshed.ExpiresAt.After(lock.ExpiresAt))

	// another user is blocked while the lock lives
	_, err = svc.AcquireTokenLock(ctx, sess.ID, date, 3, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrTokenLocked)

	// a booked token cannot be locked
	_, err = svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: 7, UserID: uuid.New()})
	require.NoError(t, err)
	_, err = svc.AcquireTokenLock(ctx, sess.ID, date, 7, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrTokenConflict)
}

func TestReleaseTokenLock(t *testing.T) {
	svc, _, sess, date := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	lock, err := svc.AcquireTokenLock(ctx, sess.ID, date, 3, owner, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ReleaseTokenLock(ctx, lock.ID, uuid.New()), ErrNotLockOwner)

	require.NoError(t, svc.ReleaseTokenLock(ctx, lock.ID, owner))
	// releasing again is a no-op
	require.NoError(t, svc.ReleaseTokenLock(ctx, lock.ID, owner))

	// the token frees up immediately
	_, err = svc.AcquireTokenLock(ctx, sess.ID, date, 3, uuid.New(), 0)
	assert.NoError(t, err)
}

func TestConfirmAndCancelFlow(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: 2, UserID: uuid.New()})
	require.NoError(t, err)
	id := res.Booking.ID

	confirmed, err := svc.ConfirmBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = svc.ConfirmBooking(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := svc.CancelBooking(ctx, id, res.Booking.UserID, "cannot make it")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.CancelBooking(ctx, id, res.Booking.UserID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, repo.changes, 1)
	require.NotNil(t, repo.changes[0].Reason)
	assert.Equal(t, "cannot make it", *repo.changes[0].Reason)

	// the cancelled row no longer holds token 2
	rebooked, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: 2, UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, rebooked.Booking.TokenNumber)
}

func TestServeCompleteAndNoShow(t *testing.T) {
	svc, _, sess, date := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, UserID: uuid.New()})
	require.NoError(t, err)
	id := res.Booking.ID

	_, err = svc.CompleteBooking(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition) // cannot complete before serving

	serving, err := svc.StartServingBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, serving.Status)
	require.NotNil(t, serving.ActualStartTime)

	done, err := svc.CompleteBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.ActualEndTime)

	_, err = svc.MarkNoShow(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	other, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, UserID: uuid.New()})
	require.NoError(t, err)
	noShow, err := svc.MarkNoShow(ctx, other.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, noShow.Status)
	assert.True(t, noShow.MissedAppointment)
}

func TestCallTokenAndLiveStatus(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	ctx := context.Background()

	var bookings []*Booking
	for i := 0; i < 5; i++ {
		res, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, UserID: uuid.New()})
		require.NoError(t, err)
		bookings = append(bookings, res.Booking)
	}

	_, err := svc.CallToken(ctx, sess.ID, date, 0, false, "")
	assert.ErrorIs(t, err, ErrBadTokenNumber)

	_, err = svc.CallToken(ctx, sess.ID, date, 1, false, "")
	require.NoError(t, err)
	state, err := svc.CallToken(ctx, sess.ID, date, 2, false, "")
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentToken)

	_, err = svc.CallToken(ctx, sess.ID, date, 2, true, "patient stepped out")
	require.NoError(t, err)

	st, err := svc.LiveQueueStatus(ctx, sess.ID, date, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentToken)
	assert.Equal(t, 3, st.TotalTokensCalled)
	assert.Equal(t, 2, st.UniqueTokensCalled)
	assert.True(t, st.CurrentTokenRecalled)
	require.NotNil(t, st.RecallReason)
	assert.Equal(t, "patient stepped out", *st.RecallReason)

	recalled, err := repo.GetBookingByID(ctx, bookings[1].ID)
	require.NoError(t, err)
	assert.True(t, recalled.IsRecalled)
	assert.Equal(t, 1, recalled.RecallCount)

	// anchored view for the token-4 holder
	target := bookings[3].ID
	st, err = svc.LiveQueueStatus(ctx, sess.ID, date, &target)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TokensAhead)
	assert.Equal(t, 20, st.EstimatedWaitMinutes) // static pace, 10 min/patient
}

func TestLiveStatusUsesObservedWait(t *testing.T) {
	repo := newMemRepo()
	sess := testSession()
	repo.sessions[sess.ID] = sess
	svc := NewService(repo, &memLocker{}, fixedStats{avg: 4}, config.Config{TokenLockTTL: 5 * time.Minute})

	ctx := context.Background()
	date := DateOf(time.Now().UTC().AddDate(0, 0, 1))

	res, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: 6, UserID: uuid.New()})
	require.NoError(t, err)
	_, err = svc.CallToken(ctx, sess.ID, date, 1, false, "")
	require.NoError(t, err)

	target := res.Booking.ID
	st, err := svc.LiveQueueStatus(ctx, sess.ID, date, &target)
	require.NoError(t, err)
	assert.Equal(t, 5, st.TokensAhead)
	assert.Equal(t, 20, st.EstimatedWaitMinutes) // 5 tokens at the observed 4 min
}

func TestRescheduleBooking(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: 2, UserID: uuid.New()})
	require.NoError(t, err)
	id := res.Booking.ID

	taken, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: 3, UserID: uuid.New()})
	require.NoError(t, err)

	// cannot land on another booking's token
	_, err = svc.RescheduleBooking(ctx, id, date, taken.Booking.TokenNumber, "", res.Booking.UserID)
	assert.ErrorIs(t, err, ErrTokenConflict)

	// keeping the same slot does not conflict with itself
	same, err := svc.RescheduleBooking(ctx, id, date, 2, "", res.Booking.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, same.Booking.TokenNumber)

	newDate := date.AddDate(0, 0, 7)
	moved, err := svc.RescheduleBooking(ctx, id, newDate, 5, "doctor requested", res.Booking.UserID)
	require.NoError(t, err)
	assert.Equal(t, 5, moved.Booking.TokenNumber)
	assert.True(t, DateOf(moved.Booking.AppointmentDate).Equal(DateOf(newDate)))
	assert.Equal(t, "09:40", moved.Booking.EstimatedTime)

	require.Len(t, repo.changes, 2)
	last := repo.changes[1]
	assert.Equal(t, 2, last.PreviousToken)
	assert.Equal(t, 5, last.NewToken)

	// terminal bookings cannot move
	_, err = svc.CancelBooking(ctx, id, res.Booking.UserID, "")
	require.NoError(t, err)
	_, err = svc.RescheduleBooking(ctx, id, newDate, 6, "", res.Booking.UserID)
	assert.ErrorIs(t, err, ErrBookingNotModifiable)
}

func TestSweepExpiredLocks(t *testing.T) {
	svc, repo, sess, date := newTestService(t)
	ctx := context.Background()

	stale := &TokenLock{
		ID:              uuid.New(),
		SessionID:       sess.ID,
		AppointmentDate: date,
		TokenNumber:     9,
		LockedBy:        uuid.New(),
		Status:          LockActive,
		ExpiresAt:       time.Now().Add(-time.Minute),
	}
	_, err := repo.CreateLock(ctx, stale)
	require.NoError(t, err)

	live, err := svc.AcquireTokenLock(ctx, sess.ID, date, 10, uuid.New(), time.Hour)
	require.NoError(t, err)

	n, err := svc.SweepExpiredLocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	flipped, err := repo.GetLockByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, LockExpired, flipped.Status)

	untouched, err := repo.GetLockByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, LockActive, untouched.Status)
}

func TestDoctorBreakLifecycle(t *testing.T) {
	svc, repo, sess, _ := newTestService(t)
	ctx := context.Background()

	// no record yet means implicitly available
	st, err := svc.DoctorBreakStatus(ctx, sess.DoctorID)
	require.NoError(t, err)
	assert.Equal(t, DoctorAvailable, st.Status)

	_, err = svc.EndDoctorBreak(ctx, sess.DoctorID)
	assert.ErrorIs(t, err, ErrNotOnBreak)

	st, err = svc.StartDoctorBreak(ctx, sess.DoctorID, BreakTimed, 30, "lunch")
	require.NoError(t, err)
	assert.Equal(t, DoctorOnBreak, st.Status)
	assert.Greater(t, st.RemainingSeconds, int64(0))

	st, err = svc.EndDoctorBreak(ctx, sess.DoctorID)
	require.NoError(t, err)
	assert.Equal(t, DoctorAvailable, st.Status)

	// force an already-expired timed break, then sweep it
	past := time.Now().Add(-time.Hour)
	end := past.Add(10 * time.Minute)
	bt := BreakTimed
	require.NoError(t, repo.SaveDoctorAvailability(ctx, &DoctorAvailability{
		DoctorID:       sess.DoctorID,
		Status:         DoctorOnBreak,
		BreakType:      &bt,
		BreakStartTime: &past,
		BreakEndTime:   &end,
	}))

	cleared, err := svc.SweepExpiredBreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Contains(t, repo.eventTypes(), EventBreakAutoEnded)

	st, err = svc.DoctorBreakStatus(ctx, sess.DoctorID)
	require.NoError(t, err)
	assert.Equal(t, DoctorAvailable, st.Status)

	// sweeping again finds nothing
	cleared, err = svc.SweepExpiredBreaks(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func TestAvailableTokens(t *testing.T) {
	svc, _, sess, date := newTestService(t)
	ctx := context.Background()

	for _, token := range []int{1, 3} {
		_, err := svc.CreateBooking(ctx, BookingRequest{SessionID: sess.ID, Date: date, TokenNumber: token, UserID: uuid.New()})
		require.NoError(t, err)
	}

	free, overflow, err := svc.AvailableTokens(ctx, sess.ID, date)
	require.NoError(t, err)
	assert.Zero(t, overflow)
	assert.NotContains(t, free, 1)
	assert.NotContains(t, free, 3)
	assert.Contains(t, free, 2)
	assert.Len(t, free, sess.MaxTokens-2)
}

func TestSessionNotFound(t *testing.T) {
	svc, _, _, date := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, BookingRequest{SessionID: uuid.New(), Date: date, UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.LiveQueueStatus(ctx, uuid.New(), date, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

var _ Repository = (*memRepo)(nil)
