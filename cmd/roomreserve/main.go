package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Lorra-V/RoomReserve-sub002/internal/application"
	"github.com/Lorra-V/RoomReserve-sub002/internal/config"
	httptransport "github.com/Lorra-V/RoomReserve-sub002/internal/http"
	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence/sqlite"
	"github.com/Lorra-V/RoomReserve-sub002/internal/recurrence"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	pool, err := sqlite.NewConnectionPool(sqlite.DefaultConfig(cfg.SQLiteDSN))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer pool.Close()

	if err := sqlite.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate storage: %w", err)
	}

	users := sqlite.NewUserRepository(pool)
	rooms := sqlite.NewRoomRepository(pool)
	bookings := sqlite.NewBookingRepository(pool)
	sessions := sqlite.NewSessionRepository(pool)

	idGenerator := uuid.NewString
	groupIDGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	hashPassword := func(password string) (string, error) {
		return application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	}

	engine := recurrence.NewEngine(cfg.Location())
	limits := recurrence.Cap{MaxOccurrences: cfg.MaxOccurrences, MaxMonths: cfg.MaxMonths}

	roomAdapter := &roomRepositoryAdapter{rooms: rooms}

	userService := application.NewUserServiceWithLogger(
		&userRepositoryAdapter{users: users},
		hashPassword,
		idGenerator,
		now,
		logger,
	)
	roomService := application.NewRoomServiceWithLogger(roomAdapter, idGenerator, now, logger)
	bookingService := application.NewBookingServiceWithLogger(
		&bookingRepositoryAdapter{bookings: bookings},
		roomAdapter,
		engine,
		limits,
		idGenerator,
		groupIDGenerator,
		now,
		logger,
	)
	authService := application.NewAuthServiceWithLogger(
		&credentialStoreAdapter{users: users},
		&sessionRepositoryAdapter{sessions: sessions},
		application.VerifyPassword,
		idGenerator,
		tokenGenerator,
		now,
		cfg.SessionTTL,
		logger,
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(authService, logger),
		Users:    httptransport.NewUserHandler(userService, logger),
		Rooms:    httptransport.NewRoomHandler(roomService, logger),
		Bookings: httptransport.NewBookingHandler(bookingService, logger),
	})

	guarded := httptransport.RequireSession(authService, logger)(router)
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r.Method, r.URL.Path) {
			router.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
	handler := httptransport.RequestLogger(logger)(root)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SessionCleanupSpec, func() {
		if err := authService.PurgeExpiredSessions(context.Background()); err != nil {
			logger.Error("session cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.HTTPPort, "timezone", cfg.Timezone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// isPublicRoute reports whether a request may proceed without a valid
// session. Login issues the first token, and refresh validates its own
// token so that an almost-expired session can still be rotated.
func isPublicRoute(method, path string) bool {
	if method != http.MethodPost {
		return false
	}
	path = strings.TrimSuffix(path, "/")
	return path == "/sessions" || path == "/sessions/refresh"
}

func randomHex(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

type userRepositoryAdapter struct {
	users persistence.UserRepository
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	record := toPersistenceUser(user)
	record.PasswordHash = passwordHash
	if err := a.users.CreateUser(ctx, record); err != nil {
		return application.User{}, err
	}
	return user, nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	record, err := a.users.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(record), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.users.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	record := toPersistenceUser(user)
	record.PasswordHash = current.PasswordHash
	record.CreatedAt = current.CreatedAt
	if err := a.users.UpdateUser(ctx, record); err != nil {
		return application.User{}, err
	}
	return toApplicationUser(record), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.users.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	records, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]application.User, 0, len(records))
	for _, record := range records {
		result = append(result, toApplicationUser(record))
	}
	return result, nil
}

type credentialStoreAdapter struct {
	users persistence.UserRepository
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	record, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(record),
		PasswordHash: record.PasswordHash,
		Disabled:     record.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	record, err := a.users.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(record), nil
}

type roomRepositoryAdapter struct {
	rooms persistence.RoomRepository
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.rooms.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return room, nil
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	record, err := a.rooms.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(record), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.rooms.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return room, nil
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.rooms.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	records, err := a.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]application.Room, 0, len(records))
	for _, record := range records {
		result = append(result, toApplicationRoom(record))
	}
	return result, nil
}

type bookingRepositoryAdapter struct {
	bookings persistence.BookingRepository
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.bookings.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return booking, nil
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	record, err := a.bookings.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(record), nil
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingRepositoryFilter) ([]application.Booking, error) {
	records, err := a.bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomIDs:          filter.RoomIDs,
		GroupID:          filter.GroupID,
		RequesterID:      filter.RequesterID,
		DateFrom:         filter.DateFrom,
		DateTo:           filter.DateTo,
		IncludeCancelled: filter.IncludeCancelled,
	})
	if err != nil {
		return nil, err
	}
	result := make([]application.Booking, 0, len(records))
	for _, record := range records {
		result = append(result, toApplicationBooking(record))
	}
	return result, nil
}

func (a *bookingRepositoryAdapter) UpdateBookingStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	return a.bookings.UpdateBookingStatus(ctx, id, status, updatedAt)
}

func (a *bookingRepositoryAdapter) DeleteBooking(ctx context.Context, id string) error {
	return a.bookings.DeleteBooking(ctx, id)
}

type sessionRepositoryAdapter struct {
	sessions persistence.SessionRepository
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	record, err := a.sessions.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(record), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	record, err := a.sessions.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(record), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	record, err := a.sessions.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(record), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	record, err := a.sessions.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(record), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.sessions.DeleteExpiredSessions(ctx, reference)
}

func toApplicationUser(record persistence.User) application.User {
	return application.User{
		ID:          record.ID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		IsAdmin:     record.IsAdmin,
		Disabled:    record.Disabled,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		Disabled:    user.Disabled,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toApplicationRoom(record persistence.Room) application.Room {
	return application.Room{
		ID:         record.ID,
		Name:       record.Name,
		Location:   record.Location,
		Capacity:   record.Capacity,
		Facilities: cloneString(record.Facilities),
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:         room.ID,
		Name:       room.Name,
		Location:   room.Location,
		Capacity:   room.Capacity,
		Facilities: cloneString(room.Facilities),
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}
}

func toApplicationBooking(record persistence.Booking) application.Booking {
	return application.Booking{
		ID:            record.ID,
		RoomID:        record.RoomID,
		Date:          record.Date,
		StartTime:     record.StartTime,
		EndTime:       record.EndTime,
		Status:        record.Status,
		GroupID:       record.GroupID,
		ParentID:      cloneString(record.ParentID),
		RequesterID:   record.RequesterID,
		Title:         record.Title,
		Description:   record.Description,
		AttendeeCount: record.AttendeeCount,
		Private:       record.Private,
		Items:         cloneStrings(record.Items),
		AdminNotes:    record.AdminNotes,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:            booking.ID,
		RoomID:        booking.RoomID,
		Date:          booking.Date,
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
		Status:        booking.Status,
		GroupID:       booking.GroupID,
		ParentID:      cloneString(booking.ParentID),
		RequesterID:   booking.RequesterID,
		Title:         booking.Title,
		Description:   booking.Description,
		AttendeeCount: booking.AttendeeCount,
		Private:       booking.Private,
		Items:         cloneStrings(booking.Items),
		AdminNotes:    booking.AdminNotes,
		CreatedAt:     booking.CreatedAt,
		UpdatedAt:     booking.UpdatedAt,
	}
}

func toApplicationSession(record persistence.Session) application.Session {
	return application.Session{
		ID:          record.ID,
		UserID:      record.UserID,
		Token:       record.Token,
		Fingerprint: record.Fingerprint,
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		RevokedAt:   cloneTime(record.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
