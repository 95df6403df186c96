package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot represents one room reservation on the shared per-room time grid.
// Start and End are facility-local times of day in 24-hour HH:MM form; the
// interval is half-open, so a slot ending at 10:00 does not collide with one
// starting at 10:00.
type Slot struct {
	BookingID string
	RoomID    string
	Date      time.Time
	Start     string
	End       string
	Cancelled bool
}

// Conflict details an overlapping reservation that callers can surface.
type Conflict struct {
	WithBookingID string
	RoomID        string
	Date          time.Time
	Start         string
	End           string
}

// ErrInvalidClock indicates a time-of-day value is not a valid HH:MM clock.
var ErrInvalidClock = errors.New("scheduler: invalid clock value")

// NormalizeClock canonicalizes a time-of-day string to zero-padded 24-hour
// HH:MM so that lexicographic comparison orders clocks correctly.
func NormalizeClock(value string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// DetectConflicts identifies existing slots that collide with the candidate.
// A collision requires the same room, the same calendar date, a non-cancelled
// existing slot and intersecting half-open [start, end) intervals. Clock
// values are normalized before comparison; slots carrying malformed clocks
// are ignored rather than reported.
func DetectConflicts(existing []Slot, candidate Slot) []Conflict {
	candStart, err := NormalizeClock(candidate.Start)
	if err != nil {
		return nil
	}
	candEnd, err := NormalizeClock(candidate.End)
	if err != nil {
		return nil
	}

	conflicts := make([]Conflict, 0)
	for _, slot := range existing {
		if slot.Cancelled {
			continue
		}
		if slot.RoomID != candidate.RoomID {
			continue
		}
		if !sameDate(slot.Date, candidate.Date) {
			continue
		}
		if slot.BookingID != "" && slot.BookingID == candidate.BookingID {
			continue
		}

		start, err := NormalizeClock(slot.Start)
		if err != nil {
			continue
		}
		end, err := NormalizeClock(slot.End)
		if err != nil {
			continue
		}

		if candStart < end && start < candEnd {
			conflicts = append(conflicts, Conflict{
				WithBookingID: slot.BookingID,
				RoomID:        slot.RoomID,
				Date:          slot.Date,
				Start:         start,
				End:           end,
			})
		}
	}

	if len(conflicts) == 0 {
		return nil
	}
	return conflicts
}

// IsAvailable reports whether the candidate slot is free on the room's grid.
func IsAvailable(existing []Slot, candidate Slot) bool {
	return len(DetectConflicts(existing, candidate)) == 0
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
