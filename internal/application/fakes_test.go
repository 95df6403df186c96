package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
)

// memBookingRepo is an in-memory BookingRepository that enforces the same
// active-slot uniqueness rule as the SQLite schema.
type memBookingRepo struct {
	bookings   map[string]Booking
	rejectNext map[string]bool
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{
		bookings:   make(map[string]Booking),
		rejectNext: make(map[string]bool),
	}
}

func (r *memBookingRepo) slotKey(b Booking) string {
	return fmt.Sprintf("%s|%s|%s|%s", b.RoomID, b.Date.Format("2006-01-02"), b.StartTime, b.EndTime)
}

func (r *memBookingRepo) CreateBooking(_ context.Context, booking Booking) (Booking, error) {
	key := r.slotKey(booking)
	if r.rejectNext[key] {
		delete(r.rejectNext, key)
		return Booking{}, persistence.ErrDuplicate
	}
	for _, existing := range r.bookings {
		if existing.Status != "cancelled" && r.slotKey(existing) == key {
			return Booking{}, persistence.ErrDuplicate
		}
	}
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *memBookingRepo) GetBooking(_ context.Context, id string) (Booking, error) {
	booking, ok := r.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (r *memBookingRepo) ListBookings(_ context.Context, filter BookingRepositoryFilter) ([]Booking, error) {
	var out []Booking
	for _, booking := range r.bookings {
		if filter.GroupID != "" && booking.GroupID != filter.GroupID {
			continue
		}
		if filter.RequesterID != "" && booking.RequesterID != filter.RequesterID {
			continue
		}
		if len(filter.RoomIDs) > 0 {
			found := false
			for _, roomID := range filter.RoomIDs {
				if booking.RoomID == roomID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.DateFrom != nil && booking.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && booking.Date.After(*filter.DateTo) {
			continue
		}
		if !filter.IncludeCancelled && booking.Status == "cancelled" {
			continue
		}
		out = append(out, booking)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (r *memBookingRepo) UpdateBookingStatus(_ context.Context, id, status string, updatedAt time.Time) error {
	booking, ok := r.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = updatedAt
	r.bookings[id] = booking
	return nil
}

func (r *memBookingRepo) DeleteBooking(_ context.Context, id string) error {
	if _, ok := r.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

type memRoomRepo struct {
	rooms map[string]Room
}

func newMemRoomRepo(ids ...string) *memRoomRepo {
	repo := &memRoomRepo{rooms: make(map[string]Room)}
	for _, id := range ids {
		repo.rooms[id] = Room{ID: id, Name: "Room " + id, Capacity: 8}
	}
	return repo
}

func (r *memRoomRepo) CreateRoom(_ context.Context, room Room) (Room, error) {
	for _, existing := range r.rooms {
		if existing.Name == room.Name {
			return Room{}, persistence.ErrDuplicate
		}
	}
	r.rooms[room.ID] = room
	return room, nil
}

func (r *memRoomRepo) GetRoom(_ context.Context, id string) (Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *memRoomRepo) UpdateRoom(_ context.Context, room Room) (Room, error) {
	if _, ok := r.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	r.rooms[room.ID] = room
	return room, nil
}

func (r *memRoomRepo) DeleteRoom(_ context.Context, id string) error {
	if _, ok := r.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rooms, id)
	return nil
}

func (r *memRoomRepo) ListRooms(_ context.Context) ([]Room, error) {
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out, nil
}

type memUserRepo struct {
	users  map[string]User
	hashes map[string]string
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]User), hashes: make(map[string]string)}
}

func (r *memUserRepo) CreateUser(_ context.Context, user User, passwordHash string) (User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return user, nil
}

func (r *memUserRepo) GetUser(_ context.Context, id string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) UpdateUser(_ context.Context, user User) (User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return User{}, persistence.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) DeleteUser(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) ListUsers(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	return out, nil
}

func (r *memUserRepo) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	for id, user := range r.users {
		if user.Email == email {
			return UserCredentials{User: user, PasswordHash: r.hashes[id], Disabled: user.Disabled}, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

type memSessionRepo struct {
	sessions map[string]Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]Session)}
}

func (r *memSessionRepo) CreateSession(_ context.Context, session Session) (Session, error) {
	r.sessions[session.Token] = session
	return session, nil
}

func (r *memSessionRepo) GetSession(_ context.Context, token string) (Session, error) {
	session, ok := r.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *memSessionRepo) UpdateSession(_ context.Context, session Session) (Session, error) {
	for token, existing := range r.sessions {
		if existing.ID == session.ID {
			delete(r.sessions, token)
			r.sessions[session.Token] = session
			return session, nil
		}
	}
	return Session{}, persistence.ErrNotFound
}

func (r *memSessionRepo) RevokeSession(_ context.Context, token string, revokedAt time.Time) (Session, error) {
	session, ok := r.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	stamp := revokedAt
	session.RevokedAt = &stamp
	r.sessions[token] = session
	return session, nil
}

func (r *memSessionRepo) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	for token, session := range r.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(r.sessions, token)
		}
	}
	return nil
}

func sequenceGenerator(prefix string) func() string {
	counter := 0
	return func() string {
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
