package queue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errBadClock = errors.New("clock value must be HH:MM")

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, errBadClock
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errBadClock
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errBadClock
	}
	return h*60 + m, nil
}

// renderClock converts minutes since midnight back to zero-padded "HH:MM",
// wrapping past midnight.
func renderClock(minutes int) string {
	minutes %= 24 * 60
	if minutes < 0 {
		minutes += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// EstimatedServiceTime computes the linear schedule slot for a token:
// sessionStart + (token-1) * avgMinutes. Token 1 is the session start.
func EstimatedServiceTime(startTime string, token, avgMinutes int) (string, error) {
	start, err := parseClock(startTime)
	if err != nil {
		return "", err
	}
	return renderClock(start + (token-1)*avgMinutes), nil
}

// DateOf truncates a timestamp to its calendar date at midnight UTC.
// All appointment dates in the engine are normalized through it.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
