package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/recurrence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/scheduler"
	"github.com/Lorra-V/RoomReserve-sub002/internal/series"
)

// BookingRepositoryFilter narrows booking queries. Zero-valued fields are ignored.
type BookingRepositoryFilter struct {
	RoomIDs          []string
	GroupID          string
	RequesterID      string
	DateFrom         *time.Time
	DateTo           *time.Time
	IncludeCancelled bool
}

// BookingRepository captures the persistence operations needed by the booking service.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingRepositoryFilter) ([]Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	DeleteBooking(ctx context.Context, id string) error
}

// RoomCatalog exposes room existence checks to the booking service.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

const (
	// FailureReasonConflict marks an occurrence rejected by the in-process
	// conflict check.
	FailureReasonConflict = string(series.FailureSlotConflict)
	// FailureReasonStorageRejected marks an occurrence that passed the
	// in-process check but lost the race at the storage layer.
	FailureReasonStorageRejected = string(series.FailureStorageRejected)
)

// maskedTitle replaces the title of private bookings when viewed by users
// other than the requester or an administrator.
const maskedTitle = "非公開"

// BookingService orchestrates series creation, listing, availability probes
// and status decisions for reservations.
type BookingService struct {
	bookings     BookingRepository
	rooms        RoomCatalog
	builder      *series.Builder
	engine       *recurrence.Engine
	limits       recurrence.Cap
	now          func() time.Time
	logger       *slog.Logger
	availability *availabilityCache
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(bookings BookingRepository, rooms RoomCatalog, engine *recurrence.Engine, limits recurrence.Cap, idGenerator, groupIDGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, engine, limits, idGenerator, groupIDGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomCatalog, engine *recurrence.Engine, limits recurrence.Cap, idGenerator, groupIDGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if limits.MaxOccurrences <= 0 || limits.MaxMonths <= 0 {
		limits = recurrence.DefaultCap
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:     bookings,
		rooms:        rooms,
		builder:      series.NewBuilder(engine, limits, idGenerator, groupIDGenerator),
		engine:       engine,
		limits:       limits,
		now:          now,
		logger:       defaultLogger(logger),
		availability: newAvailabilityCache(30*time.Second, 256, now),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateSeries expands the recurrence rule, checks every occurrence against
// existing reservations and persists the survivors as one booking group.
// Colliding occurrences are reported, never silently dropped.
func (s *BookingService) CreateSeries(ctx context.Context, params CreateBookingSeriesParams) (result CreateBookingSeriesResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSeries",
		"principal_id", params.Principal.UserID,
		"room_count", len(params.Input.RoomIDs),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"group_id", result.GroupID,
			"created", len(result.Created),
			"failed", len(result.Failures),
		).InfoContext(ctx, "booking series created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	rule, vErr := buildRecurrenceRule(params.Input.Recurrence)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.verifyRooms(ctx, params.Input.RoomIDs); err != nil {
		return
	}

	existing, err := s.snapshotSlots(ctx, params.Input.RoomIDs, rule)
	if err != nil {
		return
	}

	template := series.Template{
		RequesterID:   params.Principal.UserID,
		Title:         strings.TrimSpace(params.Input.Title),
		Description:   strings.TrimSpace(params.Input.Description),
		AttendeeCount: params.Input.AttendeeCount,
		Private:       params.Input.Private,
		Items:         params.Input.Items,
		Start:         params.Input.StartTime,
		End:           params.Input.EndTime,
	}

	built, err := s.builder.Build(template, rule, params.Input.RoomIDs, existing)
	if err != nil {
		err = mapBuildError(err)
		return
	}

	result = CreateBookingSeriesResult{
		GroupID:   built.GroupID,
		Requested: built.Requested,
	}
	for _, failure := range built.Failures {
		result.Failures = append(result.Failures, BookingFailure{
			RoomID:        failure.RoomID,
			Date:          failure.Date,
			Reason:        string(failure.Reason),
			ConflictsWith: failure.ConflictsWith,
		})
	}

	// Persist in occurrence order. The storage layer is the authority on
	// slot uniqueness: a rejected occurrence becomes an ordinary failure,
	// and if a room's anchor is rejected the next surviving sibling is
	// promoted to anchor.
	now := s.now()
	anchorByRoom := make(map[string]string)
	for _, member := range built.Created {
		booking := bookingFromSeries(member, now)
		if anchorID, ok := anchorByRoom[booking.RoomID]; ok {
			booking.ParentID = &anchorID
		} else {
			booking.ParentID = nil
		}

		persisted, createErr := s.bookings.CreateBooking(ctx, booking)
		if createErr != nil {
			if errors.Is(createErr, persistence.ErrDuplicate) {
				result.Failures = append(result.Failures, BookingFailure{
					RoomID: booking.RoomID,
					Date:   booking.Date,
					Reason: FailureReasonStorageRejected,
				})
				continue
			}
			err = createErr
			return
		}

		if _, ok := anchorByRoom[persisted.RoomID]; !ok {
			anchorByRoom[persisted.RoomID] = persisted.ID
		}
		result.Created = append(result.Created, persisted)
	}

	sort.Slice(result.Failures, func(i, j int) bool {
		if result.Failures[i].Date.Equal(result.Failures[j].Date) {
			return result.Failures[i].RoomID < result.Failures[j].RoomID
		}
		return result.Failures[i].Date.Before(result.Failures[j].Date)
	})

	s.availability.Invalidate()
	return
}

// ListBookings returns reservations visible to the principal. Private entries
// belonging to other users have their details masked; admin notes are only
// visible to administrators.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	raw, err := s.bookings.ListBookings(ctx, BookingRepositoryFilter{
		RoomIDs:          params.RoomIDs,
		GroupID:          params.GroupID,
		RequesterID:      params.RequesterID,
		DateFrom:         params.DateFrom,
		DateTo:           params.DateTo,
		IncludeCancelled: params.IncludeCancelled,
	})
	if err != nil {
		return
	}

	bookings = make([]Booking, len(raw))
	for i, booking := range raw {
		bookings[i] = maskBooking(booking, params.Principal)
	}
	return
}

// GetBooking returns a single reservation, applying the same visibility
// masking as ListBookings.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, id string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}
	if principal.UserID == "" {
		return Booking{}, ErrUnauthorized
	}

	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return maskBooking(booking, principal), nil
}

// CheckAvailability reports whether a single slot is free in a room.
func (s *BookingService) CheckAvailability(ctx context.Context, params AvailabilityParams) (result AvailabilityResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}
	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	start, clockErr := scheduler.NormalizeClock(params.StartTime)
	if clockErr != nil {
		vErr.add("start_time", "start time must be HH:MM")
	}
	end, clockErr := scheduler.NormalizeClock(params.EndTime)
	if clockErr != nil {
		vErr.add("end_time", "end time must be HH:MM")
	}
	if !vErr.HasErrors() && start >= end {
		vErr.add("end_time", "end time must be after start time")
	}
	if params.RoomID == "" {
		vErr.add("room_id", "room is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	params.StartTime = start
	params.EndTime = end
	key := buildAvailabilityCacheKey(params)
	if cached, ok := s.availability.Get(key); ok {
		return cached, nil
	}

	if err = s.verifyRooms(ctx, []string{params.RoomID}); err != nil {
		return
	}

	date := params.Date
	existing, err := s.bookings.ListBookings(ctx, BookingRepositoryFilter{
		RoomIDs:  []string{params.RoomID},
		DateFrom: &date,
		DateTo:   &date,
	})
	if err != nil {
		return
	}

	slots := make([]scheduler.Slot, 0, len(existing))
	for _, booking := range existing {
		slots = append(slots, bookingSlot(booking))
	}

	conflicts := scheduler.DetectConflicts(slots, scheduler.Slot{
		RoomID: params.RoomID,
		Date:   params.Date,
		Start:  start,
		End:    end,
	})

	result = AvailabilityResult{Available: len(conflicts) == 0}
	for _, conflict := range conflicts {
		result.ConflictsWith = append(result.ConflictsWith, conflict.WithBookingID)
	}

	s.availability.Store(key, result)
	return
}

// Decide applies a status decision to one occurrence or to every member of a
// booking group in ascending date order. Members the decision does not fit
// are skipped and reported; the rest still change.
func (s *BookingService) Decide(ctx context.Context, params DecideBookingParams) (result DecideBookingResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Decide",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
		"action", params.Action,
		"scope", params.Scope,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to apply booking decision", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("group_id", result.GroupID, "outcomes", len(result.Outcomes)).InfoContext(ctx, "booking decision applied")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	target, err := s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	if err = authorizeDecision(params.Principal, target, params.Action); err != nil {
		return
	}

	scope := params.Scope
	if scope == "" {
		scope = string(series.ScopeSingle)
	}

	members := []Booking{target}
	if scope == string(series.ScopeGroup) {
		members, err = s.bookings.ListBookings(ctx, BookingRepositoryFilter{
			GroupID:          target.GroupID,
			IncludeCancelled: true,
		})
		if err != nil {
			return
		}
	}

	seriesMembers := make([]series.Booking, len(members))
	memberByID := make(map[string]Booking, len(members))
	for i, member := range members {
		seriesMembers[i] = seriesFromBooking(member)
		memberByID[member.ID] = member
	}

	report, err := series.Apply(seriesMembers, series.MutationRequest{
		Action:    series.Action(params.Action),
		Scope:     series.Scope(scope),
		BookingID: params.BookingID,
		GroupID:   target.GroupID,
		RoomID:    params.RoomID,
	})
	if err != nil {
		if errors.Is(err, series.ErrInvalidMutation) {
			vErr := &ValidationError{}
			vErr.add("action", "unknown action or scope")
			err = vErr
		}
		return
	}

	now := s.now()
	result = DecideBookingResult{GroupID: target.GroupID}
	for _, outcome := range report.Outcomes {
		member := memberByID[outcome.BookingID]
		converted := DecisionOutcome{
			BookingID: outcome.BookingID,
			RoomID:    outcome.RoomID,
			Date:      member.Date,
			From:      string(outcome.From),
			To:        string(outcome.To),
			Changed:   outcome.Changed,
			Reason:    outcome.Reason,
		}

		if outcome.Changed {
			var storeErr error
			if params.Action == string(series.ActionDelete) {
				storeErr = s.bookings.DeleteBooking(ctx, outcome.BookingID)
			} else {
				storeErr = s.bookings.UpdateBookingStatus(ctx, outcome.BookingID, string(outcome.To), now)
			}
			if storeErr != nil {
				converted.Changed = false
				converted.Reason = "storage error: " + storeErr.Error()
				logger.ErrorContext(ctx, "failed to persist decision for member",
					"member_id", outcome.BookingID, "error", storeErr)
			}
		}

		result.Outcomes = append(result.Outcomes, converted)
	}

	// A single-occurrence decision that did not fit the current status is an
	// error to the caller, not a silent no-op.
	if scope == string(series.ScopeSingle) && len(result.Outcomes) == 1 && !result.Outcomes[0].Changed {
		err = fmt.Errorf("%w: %s", ErrInvalidStatusChange, result.Outcomes[0].Reason)
		return
	}

	s.availability.Invalidate()
	return
}

func (s *BookingService) verifyRooms(ctx context.Context, roomIDs []string) error {
	if s.rooms == nil {
		return nil
	}
	for _, roomID := range roomIDs {
		if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
				vErr := &ValidationError{}
				vErr.add("room_ids", "unknown room: "+roomID)
				return vErr
			}
			return err
		}
	}
	return nil
}

// snapshotSlots loads the active bookings the new series has to be checked
// against: everything in the requested rooms between the anchor and the
// effective horizon.
func (s *BookingService) snapshotSlots(ctx context.Context, roomIDs []string, rule recurrence.Rule) ([]scheduler.Slot, error) {
	from := rule.AnchorDate
	to := rule.AnchorDate
	if !rule.EndDate.IsZero() {
		to = rule.EndDate
	}
	if horizon := rule.AnchorDate.AddDate(0, s.limits.MaxMonths, 0); to.After(horizon) {
		to = horizon
	}

	existing, err := s.bookings.ListBookings(ctx, BookingRepositoryFilter{
		RoomIDs:  roomIDs,
		DateFrom: &from,
		DateTo:   &to,
	})
	if err != nil {
		return nil, err
	}

	slots := make([]scheduler.Slot, 0, len(existing))
	for _, booking := range existing {
		slots = append(slots, bookingSlot(booking))
	}
	return slots, nil
}

func authorizeDecision(principal Principal, target Booking, action string) error {
	switch action {
	case string(series.ActionApprove), string(series.ActionReject), string(series.ActionDelete):
		if !principal.IsAdmin {
			return ErrUnauthorized
		}
	case string(series.ActionCancel):
		if !principal.IsAdmin && principal.UserID != target.RequesterID {
			return ErrUnauthorized
		}
	default:
		vErr := &ValidationError{}
		vErr.add("action", "unknown action: "+action)
		return vErr
	}
	return nil
}

func buildRecurrenceRule(input RecurrenceInput) (recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}

	rule := recurrence.Rule{
		AnchorDate:     input.StartDate,
		EndDate:        input.EndDate,
		Weekdays:       input.Weekdays,
		WeekOfMonth:    input.WeekOfMonth,
		MonthlyWeekday: input.MonthlyWeekday,
	}

	switch input.Pattern {
	case "", "once":
		rule.Pattern = recurrence.PatternOnce
	case "daily":
		rule.Pattern = recurrence.PatternDaily
	case "weekly":
		rule.Pattern = recurrence.PatternWeekly
	case "monthly":
		rule.Pattern = recurrence.PatternMonthly
	default:
		vErr.add("recurrence.pattern", "unknown pattern: "+input.Pattern)
	}

	return rule, vErr
}

func mapBuildError(err error) error {
	if err == nil {
		return nil
	}
	vErr := &ValidationError{}
	switch {
	case errors.Is(err, recurrence.ErrInvalidRule):
		vErr.add("recurrence", err.Error())
		return vErr
	case errors.Is(err, series.ErrInvalidTemplate):
		vErr.add("booking", err.Error())
		return vErr
	}
	return err
}

func maskBooking(booking Booking, principal Principal) Booking {
	if !principal.IsAdmin {
		booking.AdminNotes = ""
	}
	if booking.Private && !principal.IsAdmin && principal.UserID != booking.RequesterID {
		booking.Title = maskedTitle
		booking.Description = ""
		booking.Items = nil
		booking.AttendeeCount = 0
	}
	return booking
}

func bookingSlot(booking Booking) scheduler.Slot {
	return scheduler.Slot{
		BookingID: booking.ID,
		RoomID:    booking.RoomID,
		Date:      booking.Date,
		Start:     booking.StartTime,
		End:       booking.EndTime,
		Cancelled: booking.Status == string(series.StatusCancelled),
	}
}

func seriesFromBooking(booking Booking) series.Booking {
	return series.Booking{
		ID:            booking.ID,
		RoomID:        booking.RoomID,
		Date:          booking.Date,
		Start:         booking.StartTime,
		End:           booking.EndTime,
		Status:        series.Status(booking.Status),
		GroupID:       booking.GroupID,
		ParentID:      booking.ParentID,
		RequesterID:   booking.RequesterID,
		Title:         booking.Title,
		Description:   booking.Description,
		AttendeeCount: booking.AttendeeCount,
		Private:       booking.Private,
		Items:         booking.Items,
		AdminNotes:    booking.AdminNotes,
	}
}
