package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const bookingColumns = `id, user_id, doctor_id, session_id, appointment_date, token_number,
	estimated_time, status, actual_start_time, actual_end_time,
	is_recalled, recall_count, missed_appointment, consultation_fee,
	created_at, updated_at`

// Helpers

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.HospitalID,
		&s.DayOfWeek,
		&s.StartTime,
		&s.EndTime,
		&s.MaxTokens,
		&s.AvgMinutesPerPatient,
		&s.IsActive,
		&s.RecallEnabled,
		&s.RecallCheckInterval,
		&s.RoomNumber,
		&s.Floor,
		&s.BuildingLocation,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.DoctorID,
		&b.SessionID,
		&b.AppointmentDate,
		&b.TokenNumber,
		&b.EstimatedTime,
		&b.Status,
		&b.ActualStartTime,
		&b.ActualEndTime,
		&b.IsRecalled,
		&b.RecallCount,
		&b.MissedAppointment,
		&b.ConsultationFee,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanLock(row pgx.Row) (*TokenLock, error) {
	var l TokenLock
	err := row.Scan(
		&l.ID,
		&l.SessionID,
		&l.AppointmentDate,
		&l.TokenNumber,
		&l.LockedBy,
		&l.Status,
		&l.ExpiresAt,
		&l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLockNotFound
		}
		return nil, err
	}
	return &l, nil
}

func scanAvailability(row pgx.Row) (*DoctorAvailability, error) {
	var d DoctorAvailability
	err := row.Scan(
		&d.DoctorID,
		&d.Status,
		&d.BreakType,
		&d.BreakStartTime,
		&d.BreakEndTime,
		&d.BreakReason,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

// mapUniqueViolation turns the storage-level constraint violation into the
// domain conflict sentinel. The pre-checks in the allocator fail fast; this
// is the authoritative signal.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "bookings_token_per_session_day":
			return ErrTokenConflict
		case "bookings_user_per_doctor_day":
			return ErrDuplicateBooking
		}
	}
	return err
}

// Sessions

func (r *PgRepository) GetSessionByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, hospital_id, day_of_week, start_time, end_time,
		       max_tokens, avg_minutes_per_patient, is_active,
		       recall_enabled, recall_check_interval,
		       room_number, floor, building_location, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id)
	return scanSession(row)
}

// Bookings

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListActiveBookings(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE session_id = $1
		  AND appointment_date = $2
		  AND status <> 'cancelled'
		ORDER BY token_number
	`, sessionID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetUserBookingForDoctorDay(ctx context.Context, userID, doctorID uuid.UUID, date time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		  AND doctor_id = $2
		  AND appointment_date = $3
		  AND status <> 'cancelled'
	`, userID, doctorID, date)
	return scanBooking(row)
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, doctor_id, session_id, appointment_date,
		                      token_number, estimated_time, status, consultation_fee,
		                      created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+bookingColumns+`
	`, b.ID, b.UserID, b.DoctorID, b.SessionID, b.AppointmentDate,
		b.TokenNumber, b.EstimatedTime, b.Status, b.ConsultationFee)

	created, err := scanBooking(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return created, nil
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns+`
	`, id, to, from)
	return scanBooking(row)
}

func (r *PgRepository) StartServing(ctx context.Context, id uuid.UUID, at time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'in_progress',
		    actual_start_time = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns+`
	`, id, at)
	return scanBooking(row)
}

func (r *PgRepository) FinishServing(ctx context.Context, id uuid.UUID, to BookingStatus, at time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    actual_end_time = CASE WHEN $2 = 'completed' THEN $3 ELSE actual_end_time END,
		    missed_appointment = (missed_appointment OR $2 = 'no_show'),
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('completed', 'no_show', 'cancelled')
		RETURNING `+bookingColumns+`
	`, id, to, at)
	return scanBooking(row)
}

func (r *PgRepository) MarkRecalled(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET is_recalled = TRUE,
		    recall_count = recall_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) RescheduleBooking(ctx context.Context, id uuid.UUID, date time.Time, token int, estimated string) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET appointment_date = $2,
		    token_number = $3,
		    estimated_time = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns+`
	`, id, date, token, estimated)

	updated, err := scanBooking(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return updated, nil
}

func (r *PgRepository) InsertBookingChange(ctx context.Context, ch BookingChange) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_changes (booking_id, previous_date, new_date,
		                             previous_token, new_token, previous_time, new_time,
		                             reason, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
	`, ch.BookingID, ch.PreviousDate, ch.NewDate, ch.PreviousToken, ch.NewToken,
		ch.PreviousTime, ch.NewTime, ch.Reason, ch.ChangedBy, nullableTime(ch.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking change: %w", err)
	}
	return nil
}

// Token locks

const lockColumns = `id, session_id, appointment_date, token_number, locked_by, status, expires_at, created_at`

func (r *PgRepository) GetLockByID(ctx context.Context, id uuid.UUID) (*TokenLock, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+lockColumns+`
		FROM token_locks
		WHERE id = $1
	`, id)
	return scanLock(row)
}

func (r *PgRepository) GetActiveLock(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, now time.Time) (*TokenLock, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+lockColumns+`
		FROM token_locks
		WHERE session_id = $1
		  AND appointment_date = $2
		  AND token_number = $3
		  AND status = 'active'
		  AND expires_at > $4
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID, date, token, now)
	return scanLock(row)
}

func (r *PgRepository) ListLocks(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]TokenLock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+lockColumns+`
		FROM token_locks
		WHERE session_id = $1
		  AND appointment_date = $2
	`, sessionID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TokenLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateLock(ctx context.Context, l *TokenLock) (*TokenLock, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO token_locks (id, session_id, appointment_date, token_number,
		                         locked_by, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+lockColumns+`
	`, l.ID, l.SessionID, l.AppointmentDate, l.TokenNumber, l.LockedBy, l.Status, l.ExpiresAt)
	return scanLock(row)
}

func (r *PgRepository) RefreshLock(ctx context.Context, id uuid.UUID, expiresAt time.Time) (*TokenLock, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE token_locks
		SET expires_at = $2,
		    status = 'active'
		WHERE id = $1
		RETURNING `+lockColumns+`
	`, id, expiresAt)
	return scanLock(row)
}

func (r *PgRepository) SetLockStatus(ctx context.Context, id uuid.UUID, status LockStatus) (*TokenLock, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE token_locks
		SET status = $2
		WHERE id = $1
		RETURNING `+lockColumns+`
	`, id, status)
	return scanLock(row)
}

func (r *PgRepository) ExpireStaleLocks(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE token_locks
		SET status = 'expired'
		WHERE status = 'active'
		  AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Call history and queue state

func (r *PgRepository) InsertCallRecord(ctx context.Context, rec TokenCallRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO token_call_history (session_id, appointment_date, token_number,
		                                called_at, is_recall, recall_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.SessionID, rec.AppointmentDate, rec.TokenNumber, rec.CalledAt, rec.IsRecall, rec.RecallReason)
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

func (r *PgRepository) ListCallRecords(ctx context.Context, sessionID uuid.UUID, date time.Time) ([]TokenCallRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, appointment_date, token_number, called_at, is_recall, recall_reason
		FROM token_call_history
		WHERE session_id = $1
		  AND appointment_date = $2
		ORDER BY called_at, id
	`, sessionID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TokenCallRecord
	for rows.Next() {
		var rec TokenCallRecord
		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.AppointmentDate,
			&rec.TokenNumber,
			&rec.CalledAt,
			&rec.IsRecall,
			&rec.RecallReason,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetQueueState(ctx context.Context, sessionID uuid.UUID, date time.Time) (*QueueState, error) {
	var st QueueState
	err := r.pool.QueryRow(ctx, `
		SELECT session_id, appointment_date, current_token, updated_at
		FROM queue_state
		WHERE session_id = $1
		  AND appointment_date = $2
	`, sessionID, date).Scan(&st.SessionID, &st.AppointmentDate, &st.CurrentToken, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueStateNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (r *PgRepository) SetCurrentToken(ctx context.Context, sessionID uuid.UUID, date time.Time, token int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queue_state (session_id, appointment_date, current_token, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, appointment_date)
		DO UPDATE SET current_token = EXCLUDED.current_token,
		              updated_at = EXCLUDED.updated_at
	`, sessionID, date, token, at)
	if err != nil {
		return fmt.Errorf("set current token: %w", err)
	}
	return nil
}

// Doctor availability

func (r *PgRepository) GetDoctorAvailability(ctx context.Context, doctorID uuid.UUID) (*DoctorAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT doctor_id, status, break_type, break_start_time, break_end_time, break_reason, updated_at
		FROM doctor_availability
		WHERE doctor_id = $1
	`, doctorID)
	return scanAvailability(row)
}

func (r *PgRepository) SaveDoctorAvailability(ctx context.Context, d *DoctorAvailability) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor_availability (doctor_id, status, break_type,
		                                 break_start_time, break_end_time, break_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (doctor_id)
		DO UPDATE SET status = EXCLUDED.status,
		              break_type = EXCLUDED.break_type,
		              break_start_time = EXCLUDED.break_start_time,
		              break_end_time = EXCLUDED.break_end_time,
		              break_reason = EXCLUDED.break_reason,
		              updated_at = EXCLUDED.updated_at
	`, d.DoctorID, d.Status, d.BreakType, d.BreakStartTime, d.BreakEndTime, d.BreakReason, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save doctor availability: %w", err)
	}
	return nil
}

func (r *PgRepository) FindExpiredTimedBreaks(ctx context.Context, now time.Time) ([]DoctorAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doctor_id, status, break_type, break_start_time, break_end_time, break_reason, updated_at
		FROM doctor_availability
		WHERE status = 'on_break'
		  AND break_type = 'timed'
		  AND break_end_time < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DoctorAvailability
	for rows.Next() {
		d, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
