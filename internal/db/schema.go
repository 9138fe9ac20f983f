package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the engine's tables and the uniqueness indexes the
// booking commit path relies on. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		createSessionsTable,
		createBookingsTable,
		createTokenLocksTable,
		createTokenCallHistoryTable,
		createBookingChangesTable,
		createDoctorAvailabilityTable,
		createQueueStateTable,
		createEventLogsTable,
		createBookingIndexes,
		createLockIndexes,
		createCallHistoryIndexes,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id UUID PRIMARY KEY,
	doctor_id UUID NOT NULL,
	hospital_id UUID NOT NULL,
	day_of_week INT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	max_tokens INT NOT NULL CHECK (max_tokens > 0),
	avg_minutes_per_patient INT NOT NULL CHECK (avg_minutes_per_patient > 0),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	recall_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	recall_check_interval INT NOT NULL DEFAULT 0,
	room_number TEXT,
	floor TEXT,
	building_location TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	doctor_id UUID NOT NULL,
	session_id UUID NOT NULL REFERENCES sessions(id),
	appointment_date DATE NOT NULL,
	token_number INT NOT NULL CHECK (token_number > 0),
	estimated_time TEXT NOT NULL,
	status TEXT NOT NULL,
	actual_start_time TIMESTAMPTZ,
	actual_end_time TIMESTAMPTZ,
	is_recalled BOOLEAN NOT NULL DEFAULT FALSE,
	recall_count INT NOT NULL DEFAULT 0,
	missed_appointment BOOLEAN NOT NULL DEFAULT FALSE,
	consultation_fee DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Partial unique indexes are the authoritative conflict signal: one
// non-cancelled booking per token per session-day, and one non-cancelled
// booking per user per doctor-day.
const createBookingIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS bookings_token_per_session_day
	ON bookings (session_id, appointment_date, token_number)
	WHERE status <> 'cancelled';
CREATE UNIQUE INDEX IF NOT EXISTS bookings_user_per_doctor_day
	ON bookings (user_id, doctor_id, appointment_date)
	WHERE status <> 'cancelled';
CREATE INDEX IF NOT EXISTS bookings_session_day
	ON bookings (session_id, appointment_date);`

const createTokenLocksTable = `
CREATE TABLE IF NOT EXISTS token_locks (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id),
	appointment_date DATE NOT NULL,
	token_number INT NOT NULL CHECK (token_number > 0),
	locked_by UUID NOT NULL,
	status TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createLockIndexes = `
CREATE INDEX IF NOT EXISTS token_locks_session_day
	ON token_locks (session_id, appointment_date);
CREATE INDEX IF NOT EXISTS token_locks_expiry
	ON token_locks (status, expires_at);`

const createTokenCallHistoryTable = `
CREATE TABLE IF NOT EXISTS token_call_history (
	id BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id),
	appointment_date DATE NOT NULL,
	token_number INT NOT NULL,
	called_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_recall BOOLEAN NOT NULL DEFAULT FALSE,
	recall_reason TEXT
);`

const createCallHistoryIndexes = `
CREATE INDEX IF NOT EXISTS token_call_history_session_day
	ON token_call_history (session_id, appointment_date, called_at);`

const createBookingChangesTable = `
CREATE TABLE IF NOT EXISTS booking_changes (
	id BIGSERIAL PRIMARY KEY,
	booking_id UUID NOT NULL REFERENCES bookings(id),
	previous_date DATE NOT NULL,
	new_date DATE NOT NULL,
	previous_token INT NOT NULL,
	new_token INT NOT NULL,
	previous_time TEXT NOT NULL,
	new_time TEXT NOT NULL,
	reason TEXT,
	changed_by UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createDoctorAvailabilityTable = `
CREATE TABLE IF NOT EXISTS doctor_availability (
	doctor_id UUID PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'available',
	break_type TEXT,
	break_start_time TIMESTAMPTZ,
	break_end_time TIMESTAMPTZ,
	break_reason TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createQueueStateTable = `
CREATE TABLE IF NOT EXISTS queue_state (
	session_id UUID NOT NULL REFERENCES sessions(id),
	appointment_date DATE NOT NULL,
	current_token INT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, appointment_date)
);`

const createEventLogsTable = `
CREATE TABLE IF NOT EXISTS event_logs (
	id BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	booking_id UUID,
	payload JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
