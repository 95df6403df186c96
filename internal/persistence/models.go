package persistence

import "time"

// User represents an account in the room reservation domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room represents a bookable room catalog entry.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Booking represents one occurrence of a reservation series as stored.
// Date is a calendar date at facility-local midnight; StartTime and EndTime
// are normalized HH:MM clocks. GroupID links every member generated from one
// request (across rooms); ParentID is nil on each room's anchor occurrence.
type Booking struct {
	ID            string
	RoomID        string
	Date          time.Time
	StartTime     string
	EndTime       string
	Status        string
	GroupID       string
	ParentID      *string
	RequesterID   string
	Title         string
	Description   string
	AttendeeCount int
	Private       bool
	Items         []string
	AdminNotes    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
