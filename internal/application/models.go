package application

import (
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/series"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// RecurrenceInput captures the caller supplied repetition rule for a
// reservation request. Dates are facility-local calendar days.
type RecurrenceInput struct {
	// Pattern is one of "once", "daily", "weekly", "monthly".
	Pattern   string
	StartDate time.Time
	EndDate   time.Time
	// Weekdays optionally restricts a weekly pattern to a set of weekdays.
	Weekdays []time.Weekday
	// WeekOfMonth (1-5, 5 meaning last) with MonthlyWeekday selects the
	// nth-weekday monthly variant instead of same-day-of-month.
	WeekOfMonth    int
	MonthlyWeekday *time.Weekday
}

// BookingInput captures caller provided reservation fields shared by every
// occurrence of the series.
type BookingInput struct {
	Title         string
	Description   string
	StartTime     string
	EndTime       string
	AttendeeCount int
	Private       bool
	Items         []string
	RoomIDs       []string
	Recurrence    RecurrenceInput
}

// Booking is the application level view of one reservation occurrence.
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

// CreateBookingSeriesParams wraps the data required to create a reservation series.
type CreateBookingSeriesParams struct {
	Principal Principal
	Input     BookingInput
}

// BookingFailure reports one occurrence that could not be created.
type BookingFailure struct {
	RoomID        string
	Date          time.Time
	Reason        string
	ConflictsWith string
}

// CreateBookingSeriesResult reports the outcome of a series creation request.
// Created and Failures together cover every requested occurrence.
type CreateBookingSeriesResult struct {
	GroupID   string
	Requested int
	Created   []Booking
	Failures  []BookingFailure
}

// ListBookingsParams wraps the data required to list reservations.
type ListBookingsParams struct {
	Principal        Principal
	RoomIDs          []string
	GroupID          string
	RequesterID      string
	DateFrom         *time.Time
	DateTo           *time.Time
	IncludeCancelled bool
}

// DecideBookingParams wraps a status decision against one occurrence or a
// whole reservation group.
type DecideBookingParams struct {
	Principal Principal
	BookingID string
	// Action is one of "approve", "reject", "cancel", "delete".
	Action string
	// Scope is "single" (default) or "group".
	Scope string
	// RoomID optionally confines a group decision to one room's series.
	RoomID string
}

// DecisionOutcome reports the effect of a decision on one group member.
type DecisionOutcome struct {
	BookingID string
	RoomID    string
	Date      time.Time
	From      string
	To        string
	Changed   bool
	Reason    string
}

// DecideBookingResult reports per-member outcomes in ascending date order.
type DecideBookingResult struct {
	GroupID  string
	Outcomes []DecisionOutcome
}

// AvailabilityParams wraps an availability probe for a single slot.
type AvailabilityParams struct {
	Principal Principal
	RoomID    string
	Date      time.Time
	StartTime string
	EndTime   string
}

// AvailabilityResult reports whether a slot is free and what it collides with.
type AvailabilityResult struct {
	Available     bool
	ConflictsWith []string
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name       string
	Location   string
	Capacity   int
	Facilities *string
}

// Room represents a catalog entry for a bookable room.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
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

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}

func bookingFromSeries(b series.Booking, createdAt time.Time) Booking {
	return Booking{
		ID:            b.ID,
		RoomID:        b.RoomID,
		Date:          b.Date,
		StartTime:     b.Start,
		EndTime:       b.End,
		Status:        string(b.Status),
		GroupID:       b.GroupID,
		ParentID:      b.ParentID,
		RequesterID:   b.RequesterID,
		Title:         b.Title,
		Description:   b.Description,
		AttendeeCount: b.AttendeeCount,
		Private:       b.Private,
		Items:         b.Items,
		AdminNotes:    b.AdminNotes,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}
