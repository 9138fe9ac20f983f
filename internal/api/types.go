package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carequeue/token-queue-service/internal/queue"
)

type AllocateTokenRequest struct {
	SessionID   string `json:"session_id"`
	Date        string `json:"date"` // YYYY-MM-DD
	TokenNumber int    `json:"token_number,omitempty"`
	Mode        string `json:"mode,omitempty"` // "next_available" when no token given
	UserID      string `json:"user_id"`
}

type AllocationResponse struct {
	TokenNumber   int    `json:"token_number"`
	EstimatedTime string `json:"estimated_time"`
	Overflow      bool   `json:"overflow"`
}

type CreateBookingRequest struct {
	SessionID     string   `json:"session_id"`
	Date          string   `json:"date"`
	TokenNumber   int      `json:"token_number,omitempty"`
	UserID        string   `json:"user_id"`
	EstimatedTime *string  `json:"estimated_time,omitempty"`
	Fee           *float64 `json:"consultation_fee,omitempty"`
}

type BookingResponse struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	SessionID       uuid.UUID  `json:"session_id"`
	Date            string     `json:"date"`
	TokenNumber     int        `json:"token_number"`
	EstimatedTime   string     `json:"estimated_time"`
	Status          string     `json:"status"`
	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`
	IsRecalled      bool       `json:"is_recalled"`
	RecallCount     int        `json:"recall_count"`
	Overflow        *bool      `json:"overflow,omitempty"`
}

func toBookingResponse(b *queue.Booking, overflow *bool) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		DoctorID:        b.DoctorID,
		SessionID:       b.SessionID,
		Date:            b.AppointmentDate.Format("2006-01-02"),
		TokenNumber:     b.TokenNumber,
		EstimatedTime:   b.EstimatedTime,
		Status:          string(b.Status),
		ActualStartTime: b.ActualStartTime,
		ActualEndTime:   b.ActualEndTime,
		IsRecalled:      b.IsRecalled,
		RecallCount:     b.RecallCount,
		Overflow:        overflow,
	}
}

type RescheduleBookingRequest struct {
	Date        string `json:"date"`
	TokenNumber int    `json:"token_number,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ActorID     string `json:"actor_id"`
}

type CancelBookingRequest struct {
	Reason  string `json:"reason,omitempty"`
	ActorID string `json:"actor_id"`
}

type AcquireLockRequest struct {
	SessionID   string `json:"session_id"`
	Date        string `json:"date"`
	TokenNumber int    `json:"token_number"`
	UserID      string `json:"user_id"`
	TTLSeconds  int    `json:"ttl_seconds,omitempty"`
}

type LockResponse struct {
	LockID      uuid.UUID `json:"lock_id"`
	TokenNumber int       `json:"token_number"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AvailableTokensResponse struct {
	FreeTokens        []int `json:"free_tokens"`
	NextOverflowToken int   `json:"next_overflow_token,omitempty"`
}

type CallTokenRequest struct {
	SessionID    string `json:"session_id"`
	Date         string `json:"date"`
	TokenNumber  int    `json:"token_number"`
	IsRecall     bool   `json:"is_recall,omitempty"`
	RecallReason string `json:"recall_reason,omitempty"`
}

type CallTokenResponse struct {
	CurrentToken int       `json:"current_token"`
	CalledAt     time.Time `json:"called_at"`
	IsRecall     bool      `json:"is_recall"`
}

type QueueStatusResponse struct {
	CurrentToken         int        `json:"current_token"`
	TokensAhead          int        `json:"tokens_ahead"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	Progress             int        `json:"progress"`
	TotalTokensCalled    int        `json:"total_tokens_called"`
	UniqueTokensCalled   int        `json:"unique_tokens_called"`
	CompletedToday       int        `json:"completed_today"`
	NoShowToday          int        `json:"no_show_today"`
	ProcessedToday       int        `json:"processed_today"`
	IsCurrentRecalled    bool       `json:"is_current_token_recalled"`
	RecallReason         *string    `json:"recall_reason,omitempty"`
	LastCalledAt         *time.Time `json:"last_called_at,omitempty"`
}

type StartBreakRequest struct {
	BreakType       string `json:"break_type"` // timed | indefinite
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type BreakStatusResponse struct {
	Status           string     `json:"status"`
	BreakType        *string    `json:"break_type,omitempty"`
	BreakStartTime   *time.Time `json:"break_start_time,omitempty"`
	BreakEndTime     *time.Time `json:"break_end_time,omitempty"`
	BreakReason      *string    `json:"break_reason,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	BreakExpired     bool       `json:"break_expired"`
}

func toBreakStatusResponse(st *queue.BreakStatus) BreakStatusResponse {
	resp := BreakStatusResponse{
		Status:           string(st.Status),
		BreakStartTime:   st.BreakStartTime,
		BreakEndTime:     st.BreakEndTime,
		BreakReason:      st.BreakReason,
		RemainingSeconds: st.RemainingSeconds,
		BreakExpired:     st.BreakExpired,
	}
	if st.BreakType != nil {
		bt := string(*st.BreakType)
		resp.BreakType = &bt
	}
	return resp
}

type SweepResponse struct {
	Affected int `json:"affected"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
