package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/testfixtures"
)

func seedUser(t *testing.T, harness *testfixtures.SQLiteHarness, opts ...testfixtures.UserOption) persistence.User {
	t.Helper()
	user := testfixtures.NewUserFixture(opts...).Persistence()
	if err := harness.Users.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user %s: %v", user.ID, err)
	}
	return user
}

func seedRoom(t *testing.T, harness *testfixtures.SQLiteHarness, opts ...testfixtures.RoomOption) persistence.Room {
	t.Helper()
	room := testfixtures.NewRoomFixture(opts...).Persistence()
	if err := harness.Rooms.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("failed to seed room %s: %v", room.ID, err)
	}
	return room
}

func TestBookingRepositorySlotUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := seedUser(t, harness)
	room := seedRoom(t, harness)

	date := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	first := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-first"),
		testfixtures.WithBookingRoom(room.ID),
		testfixtures.WithBookingRequester(user.ID),
		testfixtures.WithBookingDate(date),
		testfixtures.WithBookingSlot("10:00", "11:00"),
	).Persistence()
	if err := harness.Bookings.CreateBooking(ctx, first); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	rival := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-rival"),
		testfixtures.WithBookingRoom(room.ID),
		testfixtures.WithBookingRequester(user.ID),
		testfixtures.WithBookingDate(date),
		testfixtures.WithBookingSlot("10:00", "11:00"),
	).Persistence()
	if err := harness.Bookings.CreateBooking(ctx, rival); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected persistence.ErrDuplicate for taken slot, got %v", err)
	}

	// Cancelling the holder frees the slot for rebooking.
	if err := harness.Bookings.UpdateBookingStatus(ctx, first.ID, "cancelled", time.Now().UTC()); err != nil {
		t.Fatalf("UpdateBookingStatus failed: %v", err)
	}
	if err := harness.Bookings.CreateBooking(ctx, rival); err != nil {
		t.Fatalf("expected slot to be free after cancellation, got %v", err)
	}
}

func TestBookingRepositoryFiltering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := seedUser(t, harness)
	other := seedUser(t, harness)
	roomA := seedRoom(t, harness)
	roomB := seedRoom(t, harness)

	base := time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)
	bookings := []persistence.Booking{
		testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("bk-a1"),
			testfixtures.WithBookingRoom(roomA.ID),
			testfixtures.WithBookingRequester(user.ID),
			testfixtures.WithBookingGroup("grp-weekly"),
			testfixtures.WithBookingDate(base),
			testfixtures.WithBookingSlot("09:00", "10:00"),
		).Persistence(),
		testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("bk-a2"),
			testfixtures.WithBookingRoom(roomA.ID),
			testfixtures.WithBookingRequester(user.ID),
			testfixtures.WithBookingGroup("grp-weekly"),
			testfixtures.WithBookingDate(base.AddDate(0, 0, 7)),
			testfixtures.WithBookingSlot("09:00", "10:00"),
			testfixtures.WithBookingStatus("cancelled"),
		).Persistence(),
		testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("bk-b1"),
			testfixtures.WithBookingRoom(roomB.ID),
			testfixtures.WithBookingRequester(other.ID),
			testfixtures.WithBookingGroup("grp-other"),
			testfixtures.WithBookingDate(base.AddDate(0, 0, 1)),
			testfixtures.WithBookingSlot("13:00", "14:00"),
		).Persistence(),
	}
	for _, booking := range bookings {
		if err := harness.Bookings.CreateBooking(ctx, booking); err != nil {
			t.Fatalf("CreateBooking(%s) failed: %v", booking.ID, err)
		}
	}

	t.Run("cancelled members are hidden unless requested", func(t *testing.T) {
		listed, err := harness.Bookings.ListBookings(ctx, persistence.BookingFilter{GroupID: "grp-weekly"})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(listed) != 1 || listed[0].ID != "bk-a1" {
			t.Fatalf("expected only the active member, got %#v", listed)
		}

		all, err := harness.Bookings.ListBookings(ctx, persistence.BookingFilter{GroupID: "grp-weekly", IncludeCancelled: true})
		if err != nil {
			t.Fatalf("ListBookings with cancelled failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected both members, got %#v", all)
		}
	})

	t.Run("filters by room and date window", func(t *testing.T) {
		from := base
		to := base.AddDate(0, 0, 2)
		listed, err := harness.Bookings.ListBookings(ctx, persistence.BookingFilter{
			RoomIDs:  []string{roomB.ID},
			DateFrom: &from,
			DateTo:   &to,
		})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(listed) != 1 || listed[0].ID != "bk-b1" {
			t.Fatalf("unexpected result: %#v", listed)
		}
	})

	t.Run("orders by date then start time", func(t *testing.T) {
		listed, err := harness.Bookings.ListBookings(ctx, persistence.BookingFilter{IncludeCancelled: true})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		ids := make([]string, 0, len(listed))
		for _, booking := range listed {
			ids = append(ids, booking.ID)
		}
		expected := []string{"bk-a1", "bk-b1", "bk-a2"}
		if !slices.Equal(ids, expected) {
			t.Fatalf("unexpected order: got %v want %v", ids, expected)
		}
	})
}

func TestBookingRepositoryAnchorCleanupOnDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := seedUser(t, harness)
	room := seedRoom(t, harness)

	anchor := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-anchor"),
		testfixtures.WithBookingRoom(room.ID),
		testfixtures.WithBookingRequester(user.ID),
		testfixtures.WithBookingGroup("grp-1"),
		testfixtures.WithBookingDate(time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)),
		testfixtures.WithBookingSlot("09:00", "10:00"),
	).Persistence()
	child := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-child"),
		testfixtures.WithBookingRoom(room.ID),
		testfixtures.WithBookingRequester(user.ID),
		testfixtures.WithBookingGroup("grp-1"),
		testfixtures.WithBookingParent("bk-anchor"),
		testfixtures.WithBookingDate(time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC)),
		testfixtures.WithBookingSlot("09:00", "10:00"),
	).Persistence()

	if err := harness.Bookings.CreateBooking(ctx, anchor); err != nil {
		t.Fatalf("CreateBooking anchor failed: %v", err)
	}
	if err := harness.Bookings.CreateBooking(ctx, child); err != nil {
		t.Fatalf("CreateBooking child failed: %v", err)
	}

	if err := harness.Bookings.DeleteBooking(ctx, anchor.ID); err != nil {
		t.Fatalf("DeleteBooking failed: %v", err)
	}

	remaining, err := harness.Bookings.GetBooking(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetBooking after anchor delete failed: %v", err)
	}
	if remaining.ParentID != nil {
		t.Fatalf("expected anchor reference cleared, got %#v", remaining.ParentID)
	}
}

func TestSessionRepositoryLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := seedUser(t, harness)
	base := testfixtures.ReferenceTime()

	session := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-live"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionToken("tok-live"),
		testfixtures.WithSessionExpiresAt(base.Add(24*time.Hour)),
	).Persistence()

	created, err := harness.Sessions.CreateSession(ctx, session)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Token != session.Token {
		t.Fatalf("unexpected created session: %#v", created)
	}

	duplicate := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-dup"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionToken("tok-live"),
	).Persistence()
	if _, err := harness.Sessions.CreateSession(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected persistence.ErrDuplicate for reused token, got %v", err)
	}

	orphan := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-orphan"),
		testfixtures.WithSessionUserID("no-such-user"),
		testfixtures.WithSessionToken("tok-orphan"),
	).Persistence()
	if _, err := harness.Sessions.CreateSession(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected persistence.ErrForeignKeyViolation, got %v", err)
	}

	revokedAt := base.Add(time.Hour)
	revoked, err := harness.Sessions.RevokeSession(ctx, session.Token, revokedAt)
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(revokedAt) {
		t.Fatalf("expected revocation timestamp %v, got %#v", revokedAt, revoked.RevokedAt)
	}

	if err := harness.Sessions.DeleteExpiredSessions(ctx, base.Add(48*time.Hour)); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, session.Token); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after pruning, got %v", err)
	}
}

func TestUserRepositoryUniqueEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	first := seedUser(t, harness, testfixtures.WithUserEmail("taken@example.com"))

	conflicting := testfixtures.NewUserFixture(
		testfixtures.WithUserEmail("taken@example.com"),
	).Persistence()
	if err := harness.Users.CreateUser(ctx, conflicting); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected persistence.ErrDuplicate, got %v", err)
	}

	fetched, err := harness.Users.GetUserByEmail(ctx, "taken@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if fetched.ID != first.ID {
		t.Fatalf("expected %s, got %#v", first.ID, fetched)
	}
}
