package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/recurrence"
)

var testNow = time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)

func newTestBookingService(repo *memBookingRepo, rooms *memRoomRepo) *BookingService {
	return NewBookingService(
		repo,
		rooms,
		recurrence.NewEngine(time.UTC),
		recurrence.Cap{MaxOccurrences: 50, MaxMonths: 6},
		sequenceGenerator("booking"),
		sequenceGenerator("group"),
		fixedClock(testNow),
	)
}

func dailyInput(anchor time.Time, days int, rooms ...string) BookingInput {
	return BookingInput{
		Title:     "Weekly sync",
		StartTime: "10:00",
		EndTime:   "11:00",
		RoomIDs:   rooms,
		Recurrence: RecurrenceInput{
			Pattern:   "daily",
			StartDate: anchor,
			EndDate:   anchor.AddDate(0, 0, days),
		},
	}
}

func onceInput(date time.Time, rooms ...string) BookingInput {
	return BookingInput{
		Title:     "Weekly sync",
		StartTime: "10:00",
		EndTime:   "11:00",
		RoomIDs:   rooms,
		Recurrence: RecurrenceInput{
			Pattern:   "once",
			StartDate: date,
		},
	}
}

func TestBookingService_CreateSeries(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	result, err := service.CreateSeries(context.Background(), CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     dailyInput(anchor, 2, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	if result.Requested != 3 || len(result.Created) != 3 || len(result.Failures) != 0 {
		t.Fatalf("requested/created/failed = %d/%d/%d, want 3/3/0",
			result.Requested, len(result.Created), len(result.Failures))
	}
	if result.GroupID == "" {
		t.Error("result should carry a group id")
	}
	for i, booking := range result.Created {
		if booking.Status != "pending" {
			t.Errorf("booking %s status = %s, want pending", booking.ID, booking.Status)
		}
		if booking.RequesterID != "user-1" {
			t.Errorf("booking %s requester = %s", booking.ID, booking.RequesterID)
		}
		if i == 0 && booking.ParentID != nil {
			t.Error("first booking should be the anchor")
		}
		if i > 0 && (booking.ParentID == nil || *booking.ParentID != result.Created[0].ID) {
			t.Errorf("booking %s should point at the anchor", booking.ID)
		}
	}
}

func TestBookingService_CreateSeries_PartialConflict(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	// Occupy the middle day before the series request arrives.
	blocker := Booking{
		ID: "blocker", RoomID: "room-a", Date: anchor.AddDate(0, 0, 1),
		StartTime: "10:30", EndTime: "11:30", Status: "confirmed",
		GroupID: "other-group", RequesterID: "user-2",
	}
	if _, err := repo.CreateBooking(ctx, blocker); err != nil {
		t.Fatalf("failed to seed blocker: %v", err)
	}

	result, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     dailyInput(anchor, 2, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	if len(result.Created) != 2 || len(result.Failures) != 1 {
		t.Fatalf("created/failed = %d/%d, want 2/1", len(result.Created), len(result.Failures))
	}
	failure := result.Failures[0]
	if failure.Reason != FailureReasonConflict || failure.ConflictsWith != "blocker" {
		t.Errorf("failure = %+v", failure)
	}
}

func TestBookingService_CreateSeries_AnchorPromotionOnStorageReject(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	// The first occurrence passes the in-process check but loses the race
	// at the storage layer; the second occurrence must become the anchor.
	repo.rejectNext["room-a|2025-03-03|10:00|11:00"] = true

	result, err := service.CreateSeries(context.Background(), CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     dailyInput(anchor, 2, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	if len(result.Created) != 2 || len(result.Failures) != 1 {
		t.Fatalf("created/failed = %d/%d, want 2/1", len(result.Created), len(result.Failures))
	}
	if result.Failures[0].Reason != FailureReasonStorageRejected {
		t.Errorf("failure reason = %s, want %s", result.Failures[0].Reason, FailureReasonStorageRejected)
	}
	if result.Created[0].ParentID != nil {
		t.Error("surviving first occurrence should be promoted to anchor")
	}
	if result.Created[1].ParentID == nil || *result.Created[1].ParentID != result.Created[0].ID {
		t.Error("second occurrence should point at the promoted anchor")
	}
}

func TestBookingService_CreateSeries_Validation(t *testing.T) {
	t.Parallel()

	service := newTestBookingService(newMemBookingRepo(), newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		edit  func(*BookingInput)
		field string
	}{
		{name: "unknown pattern", edit: func(in *BookingInput) { in.Recurrence.Pattern = "fortnightly" }, field: "recurrence.pattern"},
		{name: "unknown room", edit: func(in *BookingInput) { in.RoomIDs = []string{"room-x"} }, field: "room_ids"},
		{name: "missing end date", edit: func(in *BookingInput) { in.Recurrence.EndDate = time.Time{} }, field: "recurrence"},
		{name: "inverted clocks", edit: func(in *BookingInput) { in.StartTime, in.EndTime = "11:00", "10:00" }, field: "booking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			input := dailyInput(anchor, 2, "room-a")
			tt.edit(&input)

			_, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
				Principal: Principal{UserID: "user-1"},
				Input:     input,
			})

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Errorf("expected field %q in %v", tt.field, vErr.FieldErrors)
			}
		})
	}
}

func TestBookingService_Decide_GroupCancel(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	created, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     dailyInput(anchor, 2, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	result, err := service.Decide(ctx, DecideBookingParams{
		Principal: Principal{UserID: "user-1"},
		BookingID: created.Created[0].ID,
		Action:    "cancel",
		Scope:     "group",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(result.Outcomes))
	}
	for i, outcome := range result.Outcomes {
		if !outcome.Changed || outcome.To != "cancelled" {
			t.Errorf("outcome[%d] = %+v", i, outcome)
		}
		if i > 0 && outcome.Date.Before(result.Outcomes[i-1].Date) {
			t.Error("outcomes must be in ascending date order")
		}
	}

	stored, err := repo.GetBooking(ctx, created.Created[1].ID)
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if stored.Status != "cancelled" {
		t.Errorf("stored status = %s, want cancelled", stored.Status)
	}
}

func TestBookingService_Decide_ApproveRequiresAdmin(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	created, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     onceInput(anchor, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}
	target := created.Created[0].ID

	_, err = service.Decide(ctx, DecideBookingParams{
		Principal: Principal{UserID: "user-1"},
		BookingID: target,
		Action:    "approve",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("requester approve error = %v, want ErrUnauthorized", err)
	}

	result, err := service.Decide(ctx, DecideBookingParams{
		Principal: Principal{UserID: "admin-1", IsAdmin: true},
		BookingID: target,
		Action:    "approve",
	})
	if err != nil {
		t.Fatalf("admin approve failed: %v", err)
	}
	if !result.Outcomes[0].Changed || result.Outcomes[0].To != "confirmed" {
		t.Errorf("outcome = %+v", result.Outcomes[0])
	}
}

func TestBookingService_Decide_SingleInvalidTransition(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	created, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     onceInput(anchor, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}
	target := created.Created[0].ID

	if _, err := service.Decide(ctx, DecideBookingParams{Principal: admin, BookingID: target, Action: "cancel"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Cancelled is terminal.
	_, err = service.Decide(ctx, DecideBookingParams{Principal: admin, BookingID: target, Action: "approve"})
	if !errors.Is(err, ErrInvalidStatusChange) {
		t.Fatalf("approve after cancel error = %v, want ErrInvalidStatusChange", err)
	}
}

func TestBookingService_Decide_GroupSkipsUnfitMembers(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	created, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     dailyInput(anchor, 2, "room-a"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	// Cancel one member, then approve the group: the cancelled member is
	// skipped and reported, the rest move to confirmed.
	if _, err := service.Decide(ctx, DecideBookingParams{
		Principal: admin, BookingID: created.Created[1].ID, Action: "cancel",
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	result, err := service.Decide(ctx, DecideBookingParams{
		Principal: admin, BookingID: created.Created[0].ID, Action: "approve", Scope: "group",
	})
	if err != nil {
		t.Fatalf("group approve failed: %v", err)
	}

	changed, skipped := 0, 0
	for _, outcome := range result.Outcomes {
		if outcome.Changed {
			changed++
		} else {
			skipped++
			if outcome.Reason == "" {
				t.Error("skipped outcome should carry a reason")
			}
		}
	}
	if changed != 2 || skipped != 1 {
		t.Fatalf("changed/skipped = %d/%d, want 2/1", changed, skipped)
	}
}

func TestBookingService_ListBookings_MasksPrivateEntries(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	input := onceInput(anchor, "room-a")
	input.Private = true
	input.Description = "Budget review"
	if _, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     input,
	}); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	tests := []struct {
		name      string
		principal Principal
		wantTitle string
	}{
		{name: "other user sees mask", principal: Principal{UserID: "user-2"}, wantTitle: "非公開"},
		{name: "requester sees details", principal: Principal{UserID: "user-1"}, wantTitle: "Weekly sync"},
		{name: "admin sees details", principal: Principal{UserID: "admin-1", IsAdmin: true}, wantTitle: "Weekly sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bookings, err := service.ListBookings(ctx, ListBookingsParams{Principal: tt.principal})
			if err != nil {
				t.Fatalf("ListBookings failed: %v", err)
			}
			if len(bookings) != 1 {
				t.Fatalf("bookings = %d, want 1", len(bookings))
			}
			if bookings[0].Title != tt.wantTitle {
				t.Errorf("title = %s, want %s", bookings[0].Title, tt.wantTitle)
			}
			if tt.wantTitle == "非公開" && bookings[0].Description != "" {
				t.Error("masked booking should not expose its description")
			}
		})
	}
}

func TestBookingService_CheckAvailability(t *testing.T) {
	t.Parallel()

	repo := newMemBookingRepo()
	service := newTestBookingService(repo, newMemRoomRepo("room-a"))
	ctx := context.Background()
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	if _, err := service.CreateSeries(ctx, CreateBookingSeriesParams{
		Principal: Principal{UserID: "user-1"},
		Input:     onceInput(anchor, "room-a"),
	}); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	principal := Principal{UserID: "user-2"}

	busy, err := service.CheckAvailability(ctx, AvailabilityParams{
		Principal: principal, RoomID: "room-a", Date: anchor,
		StartTime: "10:30", EndTime: "11:30",
	})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if busy.Available || len(busy.ConflictsWith) != 1 {
		t.Errorf("overlapping probe = %+v, want conflict", busy)
	}

	free, err := service.CheckAvailability(ctx, AvailabilityParams{
		Principal: principal, RoomID: "room-a", Date: anchor,
		StartTime: "11:00", EndTime: "12:00",
	})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !free.Available {
		t.Errorf("touching boundary probe = %+v, want available", free)
	}
}
