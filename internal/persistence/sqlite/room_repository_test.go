package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
)

func TestRoomRepository_CRUD(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	repo := NewRoomRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	facilities := "projector,whiteboard"
	room := persistence.Room{
		ID:         "room-1",
		Name:       "第1会議室",
		Location:   "3F",
		Capacity:   10,
		Facilities: &facilities,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := repo.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	got, err := repo.GetRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if got.Name != room.Name || got.Location != "3F" || got.Capacity != 10 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Facilities == nil || *got.Facilities != facilities {
		t.Errorf("facilities = %v", got.Facilities)
	}

	got.Capacity = 12
	got.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateRoom(ctx, got); err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}

	rooms, err := repo.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Capacity != 12 {
		t.Errorf("rooms = %+v", rooms)
	}

	if err := repo.DeleteRoom(ctx, "room-1"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}
	if _, err := repo.GetRoom(ctx, "room-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("GetRoom after delete = %v, want ErrNotFound", err)
	}
}

func TestRoomRepository_DuplicateName(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	repo := NewRoomRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	first := persistence.Room{ID: "room-1", Name: "会議室A", Capacity: 4, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateRoom(ctx, first); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	second := persistence.Room{ID: "room-2", Name: "会議室A", Capacity: 6, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateRoom(ctx, second); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("duplicate name error = %v, want ErrDuplicate", err)
	}
}

func TestRoomRepository_InvalidCapacity(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	repo := NewRoomRepository(pool)

	room := persistence.Room{ID: "room-1", Name: "会議室A", Capacity: 0}
	if err := repo.CreateRoom(context.Background(), room); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("invalid capacity error = %v, want ErrConstraintViolation", err)
	}
}

func TestRoomRepository_DeleteRoomWithBookings(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	seedUser(t, pool, "user-1")
	seedRoom(t, pool, "room-1")
	ctx := context.Background()

	if err := NewBookingRepository(pool).CreateBooking(ctx, testBooking("b-1")); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	err := NewRoomRepository(pool).DeleteRoom(ctx, "room-1")
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("DeleteRoom error = %v, want ErrForeignKeyViolation", err)
	}
}
