package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/application"
)

const dateLayout = "2006-01-02"

type bookingService interface {
	CreateSeries(ctx context.Context, params application.CreateBookingSeriesParams) (application.CreateBookingSeriesResult, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, id string) (application.Booking, error)
	CheckAvailability(ctx context.Context, params application.AvailabilityParams) (application.AvailabilityResult, error)
	Decide(ctx context.Context, params application.DecideBookingParams) (application.DecideBookingResult, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "malformed booking payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	result, err := h.service.CreateSeries(r.Context(), application.CreateBookingSeriesParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking series creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Failures) > 0 {
		status = http.StatusMultiStatus
	}

	logger.With(
		"group_id", result.GroupID,
		"requested", result.Requested,
		"created", len(result.Created),
		"failed", len(result.Failures),
	).InfoContext(r.Context(), "booking series created")

	h.responder.writeJSON(r.Context(), w, status, createBookingResponse{
		GroupID:   result.GroupID,
		Requested: result.Requested,
		Created:   toBookingDTOs(result.Created),
		Failures:  toFailureDTOs(result.Failures),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	params, err := listParamsFromQuery(principal, r.URL.Query())
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "malformed list query", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	bookings, err := h.service.ListBookings(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).InfoContext(r.Context(), "bookings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "missing booking id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking fetched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.log(r.Context(), "Decide", "error_kind", "bad_request").ErrorContext(r.Context(), "missing booking id for decision")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Decide", "principal_id", principal.UserID, "booking_id", bookingID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode decision request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Decide",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
		"action", req.Action,
		"scope", req.Scope,
	)

	result, err := h.service.Decide(r.Context(), application.DecideBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Action:    strings.TrimSpace(req.Action),
		Scope:     strings.TrimSpace(req.Scope),
		RoomID:    strings.TrimSpace(req.RoomID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking decision failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("group_id", result.GroupID, "outcomes", len(result.Outcomes)).InfoContext(r.Context(), "booking decision applied")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, decisionResponse{
		GroupID:  result.GroupID,
		Outcomes: toOutcomeDTOs(result.Outcomes),
	})
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	query := r.URL.Query()
	date, err := time.Parse(dateLayout, query.Get("date"))
	if err != nil {
		h.log(r.Context(), "CheckAvailability", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "malformed availability date", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("日付は %s 形式で指定してください", dateLayout))
		return
	}

	logger := h.log(r.Context(), "CheckAvailability", "principal_id", principal.UserID, "room_id", query.Get("room_id"))

	result, err := h.service.CheckAvailability(r.Context(), application.AvailabilityParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(query.Get("room_id")),
		Date:      date,
		StartTime: strings.TrimSpace(query.Get("start_time")),
		EndTime:   strings.TrimSpace(query.Get("end_time")),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "availability probe failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("available", result.Available).InfoContext(r.Context(), "availability probed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available:     result.Available,
		ConflictsWith: result.ConflictsWith,
	})
}

type recurrenceRequest struct {
	Pattern        string   `json:"pattern"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date,omitempty"`
	Weekdays       []string `json:"weekdays,omitempty"`
	WeekOfMonth    int      `json:"week_of_month,omitempty"`
	MonthlyWeekday string   `json:"monthly_weekday,omitempty"`
}

type createBookingRequest struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	AttendeeCount int               `json:"attendee_count"`
	Private       bool              `json:"private"`
	Items         []string          `json:"items,omitempty"`
	RoomIDs       []string          `json:"room_ids"`
	Recurrence    recurrenceRequest `json:"recurrence"`
}

func (r createBookingRequest) toInput() (application.BookingInput, error) {
	recurrence, err := r.Recurrence.toInput()
	if err != nil {
		return application.BookingInput{}, err
	}

	roomIDs := make([]string, 0, len(r.RoomIDs))
	for _, id := range r.RoomIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			roomIDs = append(roomIDs, trimmed)
		}
	}

	return application.BookingInput{
		Title:         strings.TrimSpace(r.Title),
		Description:   strings.TrimSpace(r.Description),
		StartTime:     strings.TrimSpace(r.StartTime),
		EndTime:       strings.TrimSpace(r.EndTime),
		AttendeeCount: r.AttendeeCount,
		Private:       r.Private,
		Items:         r.Items,
		RoomIDs:       roomIDs,
		Recurrence:    recurrence,
	}, nil
}

func (r recurrenceRequest) toInput() (application.RecurrenceInput, error) {
	input := application.RecurrenceInput{
		Pattern:     strings.ToLower(strings.TrimSpace(r.Pattern)),
		WeekOfMonth: r.WeekOfMonth,
	}

	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return application.RecurrenceInput{}, fmt.Errorf("開始日は %s 形式で指定してください", dateLayout)
	}
	input.StartDate = start

	if strings.TrimSpace(r.EndDate) != "" {
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return application.RecurrenceInput{}, fmt.Errorf("終了日は %s 形式で指定してください", dateLayout)
		}
		input.EndDate = end
	}

	for _, name := range r.Weekdays {
		weekday, err := parseWeekday(name)
		if err != nil {
			return application.RecurrenceInput{}, err
		}
		input.Weekdays = append(input.Weekdays, weekday)
	}

	if strings.TrimSpace(r.MonthlyWeekday) != "" {
		weekday, err := parseWeekday(r.MonthlyWeekday)
		if err != nil {
			return application.RecurrenceInput{}, err
		}
		input.MonthlyWeekday = &weekday
	}

	return input, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("不明な曜日です: %s", name)
	}
}

func listParamsFromQuery(principal application.Principal, query url.Values) (application.ListBookingsParams, error) {
	params := application.ListBookingsParams{
		Principal:        principal,
		RoomIDs:          query["room_id"],
		GroupID:          strings.TrimSpace(query.Get("group_id")),
		RequesterID:      strings.TrimSpace(query.Get("requester_id")),
		IncludeCancelled: query.Get("include_cancelled") == "true",
	}

	if raw := strings.TrimSpace(query.Get("date_from")); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return application.ListBookingsParams{}, fmt.Errorf("date_from は %s 形式で指定してください", dateLayout)
		}
		params.DateFrom = &from
	}
	if raw := strings.TrimSpace(query.Get("date_to")); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return application.ListBookingsParams{}, fmt.Errorf("date_to は %s 形式で指定してください", dateLayout)
		}
		params.DateTo = &to
	}

	return params, nil
}

type createBookingResponse struct {
	GroupID   string       `json:"group_id"`
	Requested int          `json:"requested"`
	Created   []bookingDTO `json:"created"`
	Failures  []failureDTO `json:"failures,omitempty"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type decisionRequest struct {
	Action string `json:"action"`
	Scope  string `json:"scope,omitempty"`
	RoomID string `json:"room_id,omitempty"`
}

type decisionResponse struct {
	GroupID  string       `json:"group_id"`
	Outcomes []outcomeDTO `json:"outcomes"`
}

type availabilityResponse struct {
	Available     bool     `json:"available"`
	ConflictsWith []string `json:"conflicts_with,omitempty"`
}

type bookingDTO struct {
	ID            string   `json:"id"`
	RoomID        string   `json:"room_id"`
	Date          string   `json:"date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Status        string   `json:"status"`
	GroupID       string   `json:"group_id"`
	ParentID      *string  `json:"parent_id,omitempty"`
	RequesterID   string   `json:"requester_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	AttendeeCount int      `json:"attendee_count"`
	Private       bool     `json:"private"`
	Items         []string `json:"items,omitempty"`
	AdminNotes    string   `json:"admin_notes,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

type failureDTO struct {
	RoomID        string `json:"room_id"`
	Date          string `json:"date"`
	Reason        string `json:"reason"`
	ConflictsWith string `json:"conflicts_with,omitempty"`
}

type outcomeDTO struct {
	BookingID string `json:"booking_id"`
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	From      string `json:"from"`
	To        string `json:"to"`
	Changed   bool   `json:"changed"`
	Reason    string `json:"reason,omitempty"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:            booking.ID,
		RoomID:        booking.RoomID,
		Date:          booking.Date.Format(dateLayout),
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
		Status:        booking.Status,
		GroupID:       booking.GroupID,
		ParentID:      booking.ParentID,
		RequesterID:   booking.RequesterID,
		Title:         booking.Title,
		Description:   booking.Description,
		AttendeeCount: booking.AttendeeCount,
		Private:       booking.Private,
		Items:         booking.Items,
		AdminNotes:    booking.AdminNotes,
		CreatedAt:     booking.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     booking.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	if len(bookings) == 0 {
		return nil
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

func toFailureDTOs(failures []application.BookingFailure) []failureDTO {
	if len(failures) == 0 {
		return nil
	}
	out := make([]failureDTO, 0, len(failures))
	for _, failure := range failures {
		out = append(out, failureDTO{
			RoomID:        failure.RoomID,
			Date:          failure.Date.Format(dateLayout),
			Reason:        failure.Reason,
			ConflictsWith: failure.ConflictsWith,
		})
	}
	return out
}

func toOutcomeDTOs(outcomes []application.DecisionOutcome) []outcomeDTO {
	if len(outcomes) == 0 {
		return nil
	}
	out := make([]outcomeDTO, 0, len(outcomes))
	for _, outcome := range outcomes {
		out = append(out, outcomeDTO{
			BookingID: outcome.BookingID,
			RoomID:    outcome.RoomID,
			Date:      outcome.Date.Format(dateLayout),
			From:      outcome.From,
			To:        outcome.To,
			Changed:   outcome.Changed,
			Reason:    outcome.Reason,
		})
	}
	return out
}
