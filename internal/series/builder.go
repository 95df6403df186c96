package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/recurrence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/scheduler"
)

// ErrInvalidTemplate indicates the booking template cannot produce a valid
// series. Like an invalid rule, it aborts the request before anything is
// created.
var ErrInvalidTemplate = errors.New("series: invalid template")

// FailureReason classifies why one occurrence could not be created.
type FailureReason string

const (
	// FailureSlotConflict marks an occurrence that collided with an existing
	// or earlier-accepted booking.
	FailureSlotConflict FailureReason = "slot_conflict"
	// FailureStorageRejected marks an occurrence the persistence layer
	// refused, typically because a concurrent request won the slot.
	FailureStorageRejected FailureReason = "storage_rejected"
)

// Failure records one occurrence that could not be created.
type Failure struct {
	RoomID        string
	Date          time.Time
	Reason        FailureReason
	ConflictsWith string
}

// BuildResult reports the outcome of one series build. Every requested
// (room, date) pair lands in exactly one of Created or Failures; nothing is
// silently dropped.
type BuildResult struct {
	GroupID   string
	Created   []Booking
	Failures  []Failure
	Requested int
}

// Empty reports whether the rule selected no dates at all. Callers surface
// this distinctly from a series that failed on conflicts.
func (r BuildResult) Empty() bool {
	return r.Requested == 0
}

// Builder expands a recurrence rule into linked bookings while vetting each
// occurrence against the room grid. It is a pure computation over the
// snapshot of existing slots supplied by the caller; persistence races are
// the storage layer's concern.
type Builder struct {
	engine     *recurrence.Engine
	limits     recurrence.Cap
	newID      func() string
	newGroupID func() string
}

// NewBuilder wires the builder's dependencies. A nil engine defaults to the
// process-local calendar; nil generators yield empty identifiers and are only
// acceptable in tests that overwrite them.
func NewBuilder(engine *recurrence.Engine, limits recurrence.Cap, newID, newGroupID func() string) *Builder {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if limits.MaxOccurrences <= 0 && limits.MaxMonths <= 0 {
		limits = recurrence.DefaultCap
	}
	if newID == nil {
		newID = func() string { return "" }
	}
	if newGroupID == nil {
		newGroupID = func() string { return "" }
	}
	return &Builder{engine: engine, limits: limits, newID: newID, newGroupID: newGroupID}
}

// Build expands the rule once and walks every room's dates in order, checking
// each candidate against the existing slots unioned with occurrences already
// accepted earlier in this same call, so within-series self-conflicts are
// caught. One group id is generated per call and shared across rooms; the
// first created booking of each room becomes that room's anchor (nil
// ParentID) and later occurrences point at it.
//
// Partial success is the contract: free slots are created, collisions are
// reported, and the caller decides whether a partial series is acceptable.
func (b *Builder) Build(template Template, rule recurrence.Rule, roomIDs []string, existing []scheduler.Slot) (BuildResult, error) {
	normalized, err := normalizeTemplate(template)
	if err != nil {
		return BuildResult{}, err
	}

	rooms := uniqueRooms(roomIDs)
	if len(rooms) == 0 {
		return BuildResult{}, fmt.Errorf("%w: at least one room is required", ErrInvalidTemplate)
	}

	dates, err := b.engine.Generate(rule, b.limits)
	if err != nil {
		return BuildResult{}, err
	}

	result := BuildResult{
		GroupID:   b.newGroupID(),
		Created:   make([]Booking, 0, len(rooms)*len(dates)),
		Failures:  make([]Failure, 0),
		Requested: len(rooms) * len(dates),
	}

	known := make([]scheduler.Slot, len(existing))
	copy(known, existing)

	for _, roomID := range rooms {
		var anchorID *string
		for _, date := range dates {
			candidate := scheduler.Slot{
				RoomID: roomID,
				Date:   date,
				Start:  normalized.Start,
				End:    normalized.End,
			}

			conflicts := scheduler.DetectConflicts(known, candidate)
			if len(conflicts) > 0 {
				result.Failures = append(result.Failures, Failure{
					RoomID:        roomID,
					Date:          date,
					Reason:        FailureSlotConflict,
					ConflictsWith: conflicts[0].WithBookingID,
				})
				continue
			}

			booking := Booking{
				ID:            b.newID(),
				RoomID:        roomID,
				Date:          date,
				Start:         normalized.Start,
				End:           normalized.End,
				Status:        StatusPending,
				GroupID:       result.GroupID,
				ParentID:      anchorID,
				RequesterID:   normalized.RequesterID,
				Title:         normalized.Title,
				Description:   normalized.Description,
				AttendeeCount: normalized.AttendeeCount,
				Private:       normalized.Private,
				Items:         append([]string(nil), normalized.Items...),
				AdminNotes:    normalized.AdminNotes,
			}
			if anchorID == nil {
				id := booking.ID
				anchorID = &id
			}

			result.Created = append(result.Created, booking)
			known = append(known, booking.Slot())
		}
	}

	return result, nil
}

func normalizeTemplate(template Template) (Template, error) {
	if template.RequesterID == "" {
		return Template{}, fmt.Errorf("%w: requester is required", ErrInvalidTemplate)
	}
	if template.Title == "" {
		return Template{}, fmt.Errorf("%w: title is required", ErrInvalidTemplate)
	}
	if template.AttendeeCount < 0 {
		return Template{}, fmt.Errorf("%w: attendee count must not be negative", ErrInvalidTemplate)
	}

	start, err := scheduler.NormalizeClock(template.Start)
	if err != nil {
		return Template{}, fmt.Errorf("%w: start time: %v", ErrInvalidTemplate, err)
	}
	end, err := scheduler.NormalizeClock(template.End)
	if err != nil {
		return Template{}, fmt.Errorf("%w: end time: %v", ErrInvalidTemplate, err)
	}
	if start >= end {
		return Template{}, fmt.Errorf("%w: start time must be before end time", ErrInvalidTemplate)
	}

	template.Start = start
	template.End = end
	return template, nil
}

func uniqueRooms(roomIDs []string) []string {
	seen := make(map[string]struct{}, len(roomIDs))
	rooms := make([]string, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if roomID == "" {
			continue
		}
		if _, ok := seen[roomID]; ok {
			continue
		}
		seen[roomID] = struct{}{}
		rooms = append(rooms, roomID)
	}
	return rooms
}
