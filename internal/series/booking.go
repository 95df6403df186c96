package series

import (
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/scheduler"
)

// Status tracks a booking through its approval lifecycle.
type Status string

const (
	// StatusPending marks a booking awaiting an administrator decision.
	StatusPending Status = "pending"
	// StatusConfirmed marks an approved booking.
	StatusConfirmed Status = "confirmed"
	// StatusCancelled marks a rejected or cancelled booking. Cancelled is
	// terminal; no transition leaves it.
	StatusCancelled Status = "cancelled"
)

// Template carries the request fields shared by every occurrence of a series.
// Start and End are facility-local times of day in HH:MM form and apply
// unchanged to each generated date.
type Template struct {
	RequesterID   string
	Title         string
	Description   string
	AttendeeCount int
	Private       bool
	Items         []string
	AdminNotes    string
	Start         string
	End           string
}

// Booking is one concrete occurrence of a series in one room. Date, room and
// time fields are fixed at creation; edits that change occurrence identity
// replace the booking instead of patching it.
type Booking struct {
	ID            string
	RoomID        string
	Date          time.Time
	Start         string
	End           string
	Status        Status
	GroupID       string
	ParentID      *string
	RequesterID   string
	Title         string
	Description   string
	AttendeeCount int
	Private       bool
	Items         []string
	AdminNotes    string
}

// Slot projects the booking onto the conflict checker's room grid view.
func (b Booking) Slot() scheduler.Slot {
	return scheduler.Slot{
		BookingID: b.ID,
		RoomID:    b.RoomID,
		Date:      b.Date,
		Start:     b.Start,
		End:       b.End,
		Cancelled: b.Status == StatusCancelled,
	}
}

// IsAnchor reports whether the booking is its room's series anchor.
func (b Booking) IsAnchor() bool {
	return b.ParentID == nil
}
