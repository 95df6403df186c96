package series

import (
	"errors"
	"fmt"
	"sort"
)

// Action identifies a lifecycle decision applied to bookings.
type Action string

const (
	// ActionApprove confirms a pending booking.
	ActionApprove Action = "approve"
	// ActionReject cancels a pending booking before confirmation.
	ActionReject Action = "reject"
	// ActionCancel cancels a pending or confirmed booking.
	ActionCancel Action = "cancel"
	// ActionDelete removes a booking record in any state. The policy selects
	// and orders the affected members; the caller performs the removal.
	ActionDelete Action = "delete"
)

// Scope selects whether a mutation touches one booking or its whole series.
type Scope string

const (
	// ScopeSingle applies the action to exactly one booking.
	ScopeSingle Scope = "single"
	// ScopeGroup applies the action to every member sharing the group id.
	ScopeGroup Scope = "group"
)

// MutationRequest describes one decision. Scope is an explicit variant rather
// than a boolean flag: single-scope requests name a booking, group-scope
// requests name a group. RoomID optionally confines a group mutation to one
// room's members; multi-room series share a group id, and whether a decision
// crosses rooms is the caller's choice.
type MutationRequest struct {
	Action    Action
	Scope     Scope
	BookingID string
	GroupID   string
	RoomID    string
}

// MemberOutcome reports the effect of a mutation on one series member.
type MemberOutcome struct {
	BookingID string
	RoomID    string
	Date      string
	From      Status
	To        Status
	Changed   bool
	Reason    string
}

// Report collects per-member outcomes of one mutation request.
type Report struct {
	Outcomes []MemberOutcome
}

// ChangedCount returns the number of members the action modified.
func (r Report) ChangedCount() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Changed {
			count++
		}
	}
	return count
}

// SkippedCount returns the number of members left untouched.
func (r Report) SkippedCount() int {
	return len(r.Outcomes) - r.ChangedCount()
}

var (
	// ErrInvalidTransition indicates the booking's current status does not
	// permit the requested action.
	ErrInvalidTransition = errors.New("series: invalid status transition")
	// ErrInvalidMutation indicates the mutation request itself is malformed.
	ErrInvalidMutation = errors.New("series: invalid mutation request")
)

// Transition computes the status an action moves a booking into. Cancelled is
// terminal: nothing transitions out of it, including re-approval.
func Transition(current Status, action Action) (Status, error) {
	switch action {
	case ActionApprove:
		if current == StatusPending {
			return StatusConfirmed, nil
		}
	case ActionReject:
		if current == StatusPending {
			return StatusCancelled, nil
		}
	case ActionCancel:
		if current == StatusPending || current == StatusConfirmed {
			return StatusCancelled, nil
		}
	default:
		return current, fmt.Errorf("%w: unknown action %q", ErrInvalidMutation, action)
	}
	return current, fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, action, current)
}

// Apply evaluates the request against the supplied members and reports, per
// member, whether the action takes effect. Group mutations are best effort: a
// member already in a terminal state is skipped with a reason and never
// aborts the rest. Members are processed in ascending date order (ties broken
// by id) so results are deterministic for a fixed member list. Apply mutates
// nothing; the caller persists the reported transitions.
func Apply(members []Booking, req MutationRequest) (Report, error) {
	if err := validateRequest(req); err != nil {
		return Report{}, err
	}

	selected := selectMembers(members, req)
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Date.Equal(selected[j].Date) {
			return selected[i].ID < selected[j].ID
		}
		return selected[i].Date.Before(selected[j].Date)
	})

	report := Report{Outcomes: make([]MemberOutcome, 0, len(selected))}
	for _, member := range selected {
		outcome := MemberOutcome{
			BookingID: member.ID,
			RoomID:    member.RoomID,
			Date:      member.Date.Format("2006-01-02"),
			From:      member.Status,
			To:        member.Status,
		}

		if req.Action == ActionDelete {
			outcome.Changed = true
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		next, err := Transition(member.Status, req.Action)
		if err != nil {
			outcome.Reason = fmt.Sprintf("not %s: booking is %s", actionResult(req.Action), member.Status)
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		outcome.To = next
		outcome.Changed = true
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report, nil
}

func validateRequest(req MutationRequest) error {
	switch req.Action {
	case ActionApprove, ActionReject, ActionCancel, ActionDelete:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMutation, req.Action)
	}

	switch req.Scope {
	case ScopeSingle:
		if req.BookingID == "" {
			return fmt.Errorf("%w: single scope requires a booking id", ErrInvalidMutation)
		}
	case ScopeGroup:
		if req.GroupID == "" {
			return fmt.Errorf("%w: group scope requires a group id", ErrInvalidMutation)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidMutation, req.Scope)
	}

	return nil
}

func selectMembers(members []Booking, req MutationRequest) []Booking {
	selected := make([]Booking, 0, len(members))
	for _, member := range members {
		switch req.Scope {
		case ScopeSingle:
			if member.ID != req.BookingID {
				continue
			}
		case ScopeGroup:
			if member.GroupID != req.GroupID {
				continue
			}
			if req.RoomID != "" && member.RoomID != req.RoomID {
				continue
			}
		}
		selected = append(selected, member)
	}
	return selected
}

func actionResult(action Action) string {
	switch action {
	case ActionApprove:
		return "approved"
	case ActionReject:
		return "rejected"
	case ActionCancel:
		return "cancelled"
	default:
		return string(action)
	}
}
