package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/application"
)

type fakeBookingService struct {
	createSeries      func(ctx context.Context, params application.CreateBookingSeriesParams) (application.CreateBookingSeriesResult, error)
	listBookings      func(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	getBooking        func(ctx context.Context, principal application.Principal, id string) (application.Booking, error)
	checkAvailability func(ctx context.Context, params application.AvailabilityParams) (application.AvailabilityResult, error)
	decide            func(ctx context.Context, params application.DecideBookingParams) (application.DecideBookingResult, error)
}

func (f *fakeBookingService) CreateSeries(ctx context.Context, params application.CreateBookingSeriesParams) (application.CreateBookingSeriesResult, error) {
	return f.createSeries(ctx, params)
}

func (f *fakeBookingService) ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error) {
	return f.listBookings(ctx, params)
}

func (f *fakeBookingService) GetBooking(ctx context.Context, principal application.Principal, id string) (application.Booking, error) {
	return f.getBooking(ctx, principal, id)
}

func (f *fakeBookingService) CheckAvailability(ctx context.Context, params application.AvailabilityParams) (application.AvailabilityResult, error) {
	return f.checkAvailability(ctx, params)
}

func (f *fakeBookingService) Decide(ctx context.Context, params application.DecideBookingParams) (application.DecideBookingResult, error) {
	return f.decide(ctx, params)
}

type fakeAuthService struct {
	authenticate   func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	refreshSession func(ctx context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error)
	revokeSession  func(ctx context.Context, token string) error
}

func (f *fakeAuthService) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	return f.authenticate(ctx, params)
}

func (f *fakeAuthService) RefreshSession(ctx context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
	return f.refreshSession(ctx, params)
}

func (f *fakeAuthService) RevokeSession(ctx context.Context, token string) error {
	return f.revokeSession(ctx, token)
}

type fakeRoomService struct {
	createRoom func(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	getRoom    func(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
	updateRoom func(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	deleteRoom func(ctx context.Context, principal application.Principal, roomID string) error
	listRooms  func(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

func (f *fakeRoomService) CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error) {
	return f.createRoom(ctx, params)
}

func (f *fakeRoomService) GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error) {
	return f.getRoom(ctx, principal, roomID)
}

func (f *fakeRoomService) UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error) {
	return f.updateRoom(ctx, params)
}

func (f *fakeRoomService) DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error {
	return f.deleteRoom(ctx, principal, roomID)
}

func (f *fakeRoomService) ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error) {
	return f.listRooms(ctx, principal)
}

// withPrincipal simulates the session middleware for router level tests.
func withPrincipal(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func TestBookingHandler_CreateSeries(t *testing.T) {
	t.Parallel()

	var captured application.CreateBookingSeriesParams
	service := &fakeBookingService{
		createSeries: func(_ context.Context, params application.CreateBookingSeriesParams) (application.CreateBookingSeriesResult, error) {
			captured = params
			return application.CreateBookingSeriesResult{
				GroupID:   "grp-1",
				Requested: 2,
				Created: []application.Booking{
					{ID: "bk-1", RoomID: "room-a", Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), StartTime: "10:00", EndTime: "11:00", Status: "pending", GroupID: "grp-1"},
					{ID: "bk-2", RoomID: "room-a", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), StartTime: "10:00", EndTime: "11:00", Status: "pending", GroupID: "grp-1"},
				},
			}, nil
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	body := `{
		"title": "定例ミーティング",
		"start_time": "10:00",
		"end_time": "11:00",
		"attendee_count": 4,
		"room_ids": ["room-a"],
		"recurrence": {
			"pattern": "weekly",
			"start_date": "2025-03-03",
			"end_date": "2025-03-11",
			"weekdays": ["monday"]
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", recorder.Code, http.StatusCreated, recorder.Body.String())
	}

	if captured.Principal.UserID != "user-1" {
		t.Errorf("principal = %+v", captured.Principal)
	}
	if captured.Input.Recurrence.Pattern != "weekly" {
		t.Errorf("pattern = %s", captured.Input.Recurrence.Pattern)
	}
	if len(captured.Input.Recurrence.Weekdays) != 1 || captured.Input.Recurrence.Weekdays[0] != time.Monday {
		t.Errorf("weekdays = %v", captured.Input.Recurrence.Weekdays)
	}
	if !captured.Input.Recurrence.StartDate.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start date = %s", captured.Input.Recurrence.StartDate)
	}

	var resp createBookingResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.GroupID != "grp-1" || resp.Requested != 2 || len(resp.Created) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Created[0].Date != "2025-03-03" {
		t.Errorf("created[0].date = %s", resp.Created[0].Date)
	}
}

func TestBookingHandler_CreateSeries_PartialFailure(t *testing.T) {
	t.Parallel()

	service := &fakeBookingService{
		createSeries: func(_ context.Context, _ application.CreateBookingSeriesParams) (application.CreateBookingSeriesResult, error) {
			return application.CreateBookingSeriesResult{
				GroupID:   "grp-1",
				Requested: 2,
				Created: []application.Booking{
					{ID: "bk-1", RoomID: "room-a", Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Status: "pending"},
				},
				Failures: []application.BookingFailure{
					{RoomID: "room-a", Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Reason: "slot_conflict", ConflictsWith: "bk-other"},
				},
			}, nil
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	body := `{"title":"t","start_time":"10:00","end_time":"11:00","room_ids":["room-a"],"recurrence":{"pattern":"daily","start_date":"2025-03-03","end_date":"2025-03-05"}}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusMultiStatus)
	}

	var resp createBookingResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Reason != "slot_conflict" {
		t.Errorf("failures = %+v", resp.Failures)
	}
}

func TestBookingHandler_CreateSeries_MalformedDate(t *testing.T) {
	t.Parallel()

	service := &fakeBookingService{
		createSeries: func(_ context.Context, _ application.CreateBookingSeriesParams) (application.CreateBookingSeriesResult, error) {
			t.Fatal("service should not be called for malformed payloads")
			return application.CreateBookingSeriesResult{}, nil
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	body := `{"title":"t","room_ids":["room-a"],"recurrence":{"pattern":"once","start_date":"03/03/2025"}}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestBookingHandler_Decide(t *testing.T) {
	t.Parallel()

	var captured application.DecideBookingParams
	service := &fakeBookingService{
		decide: func(_ context.Context, params application.DecideBookingParams) (application.DecideBookingResult, error) {
			captured = params
			return application.DecideBookingResult{
				GroupID: "grp-1",
				Outcomes: []application.DecisionOutcome{
					{BookingID: "bk-1", RoomID: "room-a", Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), From: "pending", To: "confirmed", Changed: true},
				},
			}, nil
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", IsAdmin: true})},
	})

	body := `{"action":"approve","scope":"group"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings/bk-1/decision", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", recorder.Code, http.StatusOK, recorder.Body.String())
	}
	if captured.BookingID != "bk-1" || captured.Action != "approve" || captured.Scope != "group" {
		t.Errorf("params = %+v", captured)
	}

	var resp decisionResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Outcomes) != 1 || !resp.Outcomes[0].Changed {
		t.Errorf("outcomes = %+v", resp.Outcomes)
	}
}

func TestBookingHandler_Decide_InvalidStatusChange(t *testing.T) {
	t.Parallel()

	service := &fakeBookingService{
		decide: func(_ context.Context, _ application.DecideBookingParams) (application.DecideBookingResult, error) {
			return application.DecideBookingResult{}, application.ErrInvalidStatusChange
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", IsAdmin: true})},
	})

	req := httptest.NewRequest(http.MethodPost, "/bookings/bk-1/decision", strings.NewReader(`{"action":"approve"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusConflict)
	}

	var resp errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ErrorCode != "BOOKING_INVALID_STATUS_CHANGE" {
		t.Errorf("error_code = %s", resp.ErrorCode)
	}
}

func TestBookingHandler_Get_NotFound(t *testing.T) {
	t.Parallel()

	service := &fakeBookingService{
		getBooking: func(_ context.Context, _ application.Principal, _ string) (application.Booking, error) {
			return application.Booking{}, application.ErrNotFound
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	req := httptest.NewRequest(http.MethodGet, "/bookings/missing", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestBookingHandler_List_QueryFilters(t *testing.T) {
	t.Parallel()

	var captured application.ListBookingsParams
	service := &fakeBookingService{
		listBookings: func(_ context.Context, params application.ListBookingsParams) ([]application.Booking, error) {
			captured = params
			return nil, nil
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	req := httptest.NewRequest(http.MethodGet, "/bookings?room_id=room-a&room_id=room-b&group_id=grp-1&date_from=2025-03-01&date_to=2025-03-31&include_cancelled=true", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if len(captured.RoomIDs) != 2 || captured.GroupID != "grp-1" || !captured.IncludeCancelled {
		t.Errorf("params = %+v", captured)
	}
	if captured.DateFrom == nil || !captured.DateFrom.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date_from = %v", captured.DateFrom)
	}
}

func TestBookingHandler_CheckAvailability(t *testing.T) {
	t.Parallel()

	var captured application.AvailabilityParams
	service := &fakeBookingService{
		checkAvailability: func(_ context.Context, params application.AvailabilityParams) (application.AvailabilityResult, error) {
			captured = params
			return application.AvailabilityResult{Available: false, ConflictsWith: []string{"bk-9"}}, nil
		},
	}

	router := NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	req := httptest.NewRequest(http.MethodGet, "/availability?room_id=room-a&date=2025-03-03&start_time=10:00&end_time=11:00", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if captured.RoomID != "room-a" || captured.StartTime != "10:00" || captured.EndTime != "11:00" {
		t.Errorf("params = %+v", captured)
	}

	var resp availabilityResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Available || len(resp.ConflictsWith) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	expiresAt := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	service := &fakeAuthService{
		authenticate: func(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
			if params.Email != "a@example.com" {
				t.Errorf("email = %s", params.Email)
			}
			return application.AuthenticateResult{
				User:    application.User{ID: "user-1"},
				Session: application.Session{Token: "tok-1", ExpiresAt: expiresAt},
			}, nil
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"A@Example.com","password":"secret-pass"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusCreated)
	}
	if recorder.Header().Get("X-Session-Token") != "tok-1" {
		t.Errorf("X-Session-Token = %s", recorder.Header().Get("X-Session-Token"))
	}

	var sawCookie bool
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == "session_token" && cookie.Value == "tok-1" {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Error("expected session_token cookie to be set")
	}
}

func TestAuthHandler_CreateSession_InvalidCredentials(t *testing.T) {
	t.Parallel()

	service := &fakeAuthService{
		authenticate: func(_ context.Context, _ application.AuthenticateParams) (application.AuthenticateResult, error) {
			return application.AuthenticateResult{}, application.ErrInvalidCredentials
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"a@example.com","password":"wrong"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusUnauthorized)
	}

	var resp errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
		t.Errorf("error_code = %s", resp.ErrorCode)
	}
}

func TestAuthHandler_RefreshSession(t *testing.T) {
	t.Parallel()

	service := &fakeAuthService{
		refreshSession: func(_ context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
			if params.Token != "old-token" {
				t.Errorf("token = %s", params.Token)
			}
			return application.RefreshSessionResult{
				Session: application.Session{Token: "new-token", ExpiresAt: time.Date(2025, 2, 1, 11, 0, 0, 0, time.UTC)},
			}, nil
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

	req := httptest.NewRequest(http.MethodPost, "/sessions/refresh", nil)
	req.Header.Set("Authorization", "Bearer old-token")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if recorder.Header().Get("X-Session-Token") != "new-token" {
		t.Errorf("X-Session-Token = %s", recorder.Header().Get("X-Session-Token"))
	}
}

func TestRoomHandler_Create_TranslatesValidationErrors(t *testing.T) {
	t.Parallel()

	service := &fakeRoomService{
		createRoom: func(_ context.Context, _ application.CreateRoomParams) (application.Room, error) {
			return application.Room{}, &application.ValidationError{FieldErrors: map[string]string{
				"name":     "name is required",
				"capacity": "capacity must be positive",
			}}
		},
	}

	router := NewRouter(RouterConfig{
		Rooms:      NewRoomHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", IsAdmin: true})},
	})

	req := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{"name":"","capacity":0}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusUnprocessableEntity)
	}

	var resp errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Errors["name"] != "会議室名は必須です。" {
		t.Errorf("errors[name] = %s", resp.Errors["name"])
	}
	if resp.Errors["capacity"] != "収容人数は正の整数で指定してください。" {
		t.Errorf("errors[capacity] = %s", resp.Errors["capacity"])
	}
}

func TestRoomHandler_Get(t *testing.T) {
	t.Parallel()

	service := &fakeRoomService{
		getRoom: func(_ context.Context, _ application.Principal, roomID string) (application.Room, error) {
			if roomID != "room-7" {
				return application.Room{}, application.ErrNotFound
			}
			return application.Room{ID: "room-7", Name: "第7会議室", Capacity: 12}, nil
		},
	}

	router := NewRouter(RouterConfig{
		Rooms:      NewRoomHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "user-1"})},
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-7", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	var resp struct {
		Room roomDTO `json:"room"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Room.ID != "room-7" || resp.Room.Capacity != 12 {
		t.Errorf("room = %+v", resp.Room)
	}

	missing := httptest.NewRequest(http.MethodGet, "/rooms/room-9", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, missing)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	service := &fakeBookingService{}
	router := NewRouter(RouterConfig{Bookings: NewBookingHandler(service, nil)})

	req := httptest.NewRequest(http.MethodPatch, "/bookings", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusMethodNotAllowed)
	}
	if allow := recorder.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Errorf("Allow = %s", allow)
	}
}
