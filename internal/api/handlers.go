package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carequeue/token-queue-service/internal/queue"
)

func allocateTokenHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AllocateTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sessionID, date, ok := parseSessionDate(w, req.SessionID, req.Date)
		if !ok {
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}
		if req.TokenNumber < 0 {
			writeError(w, http.StatusBadRequest, "invalid_token_number", "token_number must be a positive integer")
			return
		}

		alloc, err := svc.AllocateToken(r.Context(), sessionID, date, req.TokenNumber, userID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AllocationResponse{
			TokenNumber:   alloc.TokenNumber,
			EstimatedTime: alloc.EstimatedTime,
			Overflow:      alloc.Overflow,
		})
	}
}

func availableTokensHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, date, ok := parseSessionDate(w, r.URL.Query().Get("sessionId"), r.URL.Query().Get("date"))
		if !ok {
			return
		}

		free, overflow, err := svc.AvailableTokens(r.Context(), sessionID, date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailableTokensResponse{
			FreeTokens:        free,
			NextOverflowToken: overflow,
		})
	}
}

func acquireLockHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AcquireLockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sessionID, date, ok := parseSessionDate(w, req.SessionID, req.Date)
		if !ok {
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		lock, err := svc.AcquireTokenLock(r.Context(), sessionID, date, req.TokenNumber, userID,
			time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, LockResponse{
			LockID:      lock.ID,
			TokenNumber: lock.TokenNumber,
			ExpiresAt:   lock.ExpiresAt,
		})
	}
}

func releaseLockHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lockID, err := uuid.Parse(chi.URLParam(r, "lockID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_lock_id", "lockID must be a valid UUID")
			return
		}
		userID, err := uuid.Parse(r.URL.Query().Get("userId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userId query param must be a valid UUID")
			return
		}

		if err := svc.ReleaseTokenLock(r.Context(), lockID, userID); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func createBookingHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sessionID, date, ok := parseSessionDate(w, req.SessionID, req.Date)
		if !ok {
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		result, err := svc.CreateBooking(r.Context(), queue.BookingRequest{
			SessionID:       sessionID,
			Date:            date,
			TokenNumber:     req.TokenNumber,
			UserID:          userID,
			EstimatedTime:   req.EstimatedTime,
			ConsultationFee: req.Fee,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(result.Booking, &result.Overflow))
	}
}

func getBookingHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}
		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b, nil))
	}
}

func confirmBookingHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}
		b, err := svc.ConfirmBooking(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b, nil))
	}
}

func cancelBookingHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}

		var req CancelBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		actor, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}

		b, err := svc.CancelBooking(r.Context(), id, actor, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b, nil))
	}
}

func rescheduleBookingHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}

		var req RescheduleBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		actor, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}

		result, err := svc.RescheduleBooking(r.Context(), id, date, req.TokenNumber, req.Reason, actor)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(result.Booking, &result.Overflow))
	}
}

func serveBookingHandler(svc *queue.Service) http.HandlerFunc {
	return bookingTransitionHandler(svc.StartServingBooking)
}

func completeBookingHandler(svc *queue.Service) http.HandlerFunc {
	return bookingTransitionHandler(svc.CompleteBooking)
}

func noShowBookingHandler(svc *queue.Service) http.HandlerFunc {
	return bookingTransitionHandler(svc.MarkNoShow)
}

func bookingTransitionHandler(transition func(ctx context.Context, id uuid.UUID) (*queue.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}
		b, err := transition(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b, nil))
	}
}

func callTokenHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CallTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sessionID, date, ok := parseSessionDate(w, req.SessionID, req.Date)
		if !ok {
			return
		}

		state, err := svc.CallToken(r.Context(), sessionID, date, req.TokenNumber, req.IsRecall, req.RecallReason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CallTokenResponse{
			CurrentToken: state.CurrentToken,
			CalledAt:     state.UpdatedAt,
			IsRecall:     req.IsRecall,
		})
	}
}

func queueStatusHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, date, ok := parseSessionDate(w, r.URL.Query().Get("sessionId"), r.URL.Query().Get("date"))
		if !ok {
			return
		}

		var target *uuid.UUID
		if raw := r.URL.Query().Get("bookingId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingId must be a valid UUID")
				return
			}
			target = &id
		}

		st, err := svc.LiveQueueStatus(r.Context(), sessionID, date, target)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, QueueStatusResponse{
			CurrentToken:         st.CurrentToken,
			TokensAhead:          st.TokensAhead,
			EstimatedWaitMinutes: st.EstimatedWaitMinutes,
			Progress:             st.ProgressPercent,
			TotalTokensCalled:    st.TotalTokensCalled,
			UniqueTokensCalled:   st.UniqueTokensCalled,
			CompletedToday:       st.CompletedToday,
			NoShowToday:          st.NoShowToday,
			ProcessedToday:       st.ProcessedToday,
			IsCurrentRecalled:    st.CurrentTokenRecalled,
			RecallReason:         st.RecallReason,
			LastCalledAt:         st.LastCalledAt,
		})
	}
}

func startBreakHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		var req StartBreakRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		st, err := svc.StartDoctorBreak(r.Context(), doctorID, queue.BreakType(req.BreakType), req.DurationMinutes, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBreakStatusResponse(st))
	}
}

func endBreakHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}
		st, err := svc.EndDoctorBreak(r.Context(), doctorID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBreakStatusResponse(st))
	}
}

func breakStatusHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}
		st, err := svc.DoctorBreakStatus(r.Context(), doctorID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBreakStatusResponse(st))
	}
}

func autoEndBreaksHandler(svc *queue.Service) http.HandlerFunc {
	return sweepHandler(svc.SweepExpiredBreaks)
}

func expireTokenLocksHandler(svc *queue.Service) http.HandlerFunc {
	return sweepHandler(svc.SweepExpiredLocks)
}

func sweepHandler(sweep func(ctx context.Context) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := sweep(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SweepResponse{Affected: n})
	}
}

// Shared parsing and error mapping

func parseSessionDate(w http.ResponseWriter, rawSession, rawDate string) (uuid.UUID, time.Time, bool) {
	sessionID, err := uuid.Parse(rawSession)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a valid UUID")
		return uuid.Nil, time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return uuid.Nil, time.Time{}, false
	}
	return sessionID, date, true
}

func bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func doctorIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, queue.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, queue.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, queue.ErrLockNotFound):
		writeError(w, http.StatusNotFound, "lock_not_found", err.Error())
	case errors.Is(err, queue.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, queue.ErrBadTokenNumber):
		writeError(w, http.StatusBadRequest, "invalid_token_number", err.Error())
	case errors.Is(err, queue.ErrBreakDuration), errors.Is(err, queue.ErrUnknownBreakType):
		writeError(w, http.StatusBadRequest, "invalid_break_request", err.Error())
	case errors.Is(err, queue.ErrSessionInactive):
		writeError(w, http.StatusConflict, "session_inactive", err.Error())
	case errors.Is(err, queue.ErrDuplicateBooking):
		writeError(w, http.StatusConflict, "duplicate_booking", err.Error())
	case errors.Is(err, queue.ErrTokenConflict):
		writeError(w, http.StatusConflict, "token_conflict", err.Error())
	case errors.Is(err, queue.ErrTokenLocked):
		writeError(w, http.StatusConflict, "token_locked", err.Error())
	case errors.Is(err, queue.ErrQueueBusy):
		writeError(w, http.StatusConflict, "queue_busy", "queue is busy for this session-day, please retry shortly")
	case errors.Is(err, queue.ErrNotLockOwner):
		writeError(w, http.StatusForbidden, "not_lock_owner", err.Error())
	case errors.Is(err, queue.ErrInvalidTransition), errors.Is(err, queue.ErrBookingNotModifiable):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, queue.ErrNotOnBreak):
		writeError(w, http.StatusConflict, "not_on_break", err.Error())
	case errors.Is(err, queue.ErrSessionMismatch):
		writeError(w, http.StatusConflict, "session_mismatch", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
