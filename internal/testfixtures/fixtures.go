package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/application"
	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/recurrence"
	"github.com/Lorra-V/RoomReserve-sub002/internal/scheduler"
	"github.com/Lorra-V/RoomReserve-sub002/internal/series"
)

var (
	userCounter       uint64
	roomCounter       uint64
	bookingCounter    uint64
	sessionCounter    uint64
	recurrenceCounter uint64
)

var referenceTime = time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		IsAdmin:      false,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithUserDisabled marks the generated account as disabled.
func WithUserDisabled(disabled bool) UserOption {
	return func(f *UserFixture) {
		f.Disabled = disabled
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		Disabled:    f.Disabled,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Password:    "fixture-password",
		IsAdmin:     f.IsAdmin,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic meeting room record.
type RoomFixture struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Main Office",
		Capacity:  int(4 + idx%4),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomLocation overrides the generated location.
func WithRoomLocation(location string) RoomOption {
	return func(f *RoomFixture) {
		f.Location = location
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomFacilities sets the facilities description on the fixture.
func WithRoomFacilities(facility string) RoomOption {
	return func(fx *RoomFixture) {
		value := facility
		fx.Facilities = &value
	}
}

// WithoutRoomFacilities clears any facilities on the fixture.
func WithoutRoomFacilities() RoomOption {
	return func(f *RoomFixture) {
		f.Facilities = nil
	}
}

// WithRoomTimestamps sets both created and updated timestamps.
func WithRoomTimestamps(created, updated time.Time) RoomOption {
	return func(f *RoomFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic reservation occurrence.
type BookingFixture struct {
	ID            string
	RoomID        string
	Date          time.Time
	StartTime     string
	EndTime       string
	Status        string
	GroupID       string
	ParentID      *string
	RequesterID   string
	Title         string
	Description   string
	AttendeeCount int
	Private       bool
	Items         []string
	AdminNotes    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a deterministic booking fixture with optional overrides.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	id := fmt.Sprintf("booking-%03d", idx)
	date := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(idx)-1)
	fixture := BookingFixture{
		ID:            id,
		RoomID:        fmt.Sprintf("room-%03d", idx),
		Date:          date,
		StartTime:     "10:00",
		EndTime:       "11:00",
		Status:        string(series.StatusPending),
		GroupID:       fmt.Sprintf("group-%03d", idx),
		RequesterID:   fmt.Sprintf("user-%03d", idx),
		Title:         fmt.Sprintf("Booking %03d", idx),
		AttendeeCount: 4,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingRoom sets the room ID.
func WithBookingRoom(roomID string) BookingOption {
	return func(f *BookingFixture) {
		f.RoomID = roomID
	}
}

// WithBookingDate sets the calendar date of the occurrence.
func WithBookingDate(date time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Date = date
	}
}

// WithBookingSlot sets the start and end clocks.
func WithBookingSlot(start, end string) BookingOption {
	return func(f *BookingFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithBookingStatus sets the status of the occurrence.
func WithBookingStatus(status string) BookingOption {
	return func(f *BookingFixture) {
		f.Status = status
	}
}

// WithBookingGroup sets the series group ID.
func WithBookingGroup(groupID string) BookingOption {
	return func(f *BookingFixture) {
		f.GroupID = groupID
	}
}

// WithBookingParent links the occurrence to its room anchor.
func WithBookingParent(parentID string) BookingOption {
	return func(f *BookingFixture) {
		id := parentID
		f.ParentID = &id
	}
}

// WithBookingRequester sets the requesting user ID.
func WithBookingRequester(userID string) BookingOption {
	return func(f *BookingFixture) {
		f.RequesterID = userID
	}
}

// WithBookingTitle overrides the generated title.
func WithBookingTitle(title string) BookingOption {
	return func(f *BookingFixture) {
		f.Title = title
	}
}

// WithBookingPrivate marks the booking as private.
func WithBookingPrivate(private bool) BookingOption {
	return func(f *BookingFixture) {
		f.Private = private
	}
}

// WithBookingItems sets the requested equipment items.
func WithBookingItems(items ...string) BookingOption {
	return func(f *BookingFixture) {
		f.Items = append([]string(nil), items...)
	}
}

// WithBookingTimestamps sets both created and updated timestamps.
func WithBookingTimestamps(created, updated time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:            f.ID,
		RoomID:        f.RoomID,
		Date:          f.Date,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		Status:        f.Status,
		GroupID:       f.GroupID,
		ParentID:      copyStringPtr(f.ParentID),
		RequesterID:   f.RequesterID,
		Title:         f.Title,
		Description:   f.Description,
		AttendeeCount: f.AttendeeCount,
		Private:       f.Private,
		Items:         append([]string(nil), f.Items...),
		AdminNotes:    f.AdminNotes,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:            f.ID,
		RoomID:        f.RoomID,
		Date:          f.Date,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		Status:        f.Status,
		GroupID:       f.GroupID,
		ParentID:      copyStringPtr(f.ParentID),
		RequesterID:   f.RequesterID,
		Title:         f.Title,
		Description:   f.Description,
		AttendeeCount: f.AttendeeCount,
		Private:       f.Private,
		Items:         append([]string(nil), f.Items...),
		AdminNotes:    f.AdminNotes,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Series returns the fixture as a series.Booking value.
func (f BookingFixture) Series() series.Booking {
	return series.Booking{
		ID:            f.ID,
		RoomID:        f.RoomID,
		Date:          f.Date,
		Start:         f.StartTime,
		End:           f.EndTime,
		Status:        series.Status(f.Status),
		GroupID:       f.GroupID,
		ParentID:      copyStringPtr(f.ParentID),
		RequesterID:   f.RequesterID,
		Title:         f.Title,
		Description:   f.Description,
		AttendeeCount: f.AttendeeCount,
		Private:       f.Private,
		Items:         append([]string(nil), f.Items...),
		AdminNotes:    f.AdminNotes,
	}
}

// Slot returns the fixture as a scheduler.Slot value.
func (f BookingFixture) Slot() scheduler.Slot {
	return scheduler.Slot{
		BookingID: f.ID,
		RoomID:    f.RoomID,
		Date:      f.Date,
		Start:     f.StartTime,
		End:       f.EndTime,
		Cancelled: f.Status == string(series.StatusCancelled),
	}
}

// --------------------------- Recurrence fixtures -------------------------

// RecurrenceFixture represents a deterministic recurrence rule.
type RecurrenceFixture struct {
	Pattern        recurrence.Pattern
	AnchorDate     time.Time
	EndDate        time.Time
	Weekdays       []time.Weekday
	WeekOfMonth    int
	MonthlyWeekday *time.Weekday
}

// RecurrenceOption configures the generated recurrence fixture.
type RecurrenceOption func(*RecurrenceFixture)

// NewRecurrenceFixture returns a deterministic weekly recurrence fixture with
// optional overrides.
func NewRecurrenceFixture(opts ...RecurrenceOption) RecurrenceFixture {
	idx := atomic.AddUint64(&recurrenceCounter, 1)
	anchor := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(idx)-1)
	fixture := RecurrenceFixture{
		Pattern:    recurrence.PatternWeekly,
		AnchorDate: anchor,
		EndDate:    anchor.AddDate(0, 1, 0),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRecurrencePattern sets the repetition pattern.
func WithRecurrencePattern(pattern recurrence.Pattern) RecurrenceOption {
	return func(f *RecurrenceFixture) {
		f.Pattern = pattern
	}
}

// WithRecurrenceRange sets the anchor and inclusive end dates.
func WithRecurrenceRange(anchor, end time.Time) RecurrenceOption {
	return func(f *RecurrenceFixture) {
		f.AnchorDate = anchor
		f.EndDate = end
	}
}

// WithRecurrenceWeekdays sets the weekday restriction for weekly rules.
func WithRecurrenceWeekdays(days ...time.Weekday) RecurrenceOption {
	return func(f *RecurrenceFixture) {
		f.Weekdays = append([]time.Weekday(nil), days...)
	}
}

// WithRecurrenceMonthlyWeekday selects the nth-weekday monthly variant.
func WithRecurrenceMonthlyWeekday(week int, weekday time.Weekday) RecurrenceOption {
	return func(f *RecurrenceFixture) {
		f.WeekOfMonth = week
		day := weekday
		f.MonthlyWeekday = &day
	}
}

// Rule returns the fixture as a recurrence.Rule value.
func (f RecurrenceFixture) Rule() recurrence.Rule {
	var monthlyWeekday *time.Weekday
	if f.MonthlyWeekday != nil {
		day := *f.MonthlyWeekday
		monthlyWeekday = &day
	}
	return recurrence.Rule{
		Pattern:        f.Pattern,
		AnchorDate:     f.AnchorDate,
		EndDate:        f.EndDate,
		Weekdays:       append([]time.Weekday(nil), f.Weekdays...),
		WeekOfMonth:    f.WeekOfMonth,
		MonthlyWeekday: monthlyWeekday,
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	id := fmt.Sprintf("session-%03d", idx)
	userID := fmt.Sprintf("user-%03d", idx)
	created := referenceTime
	fixture := SessionFixture{
		ID:          id,
		UserID:      userID,
		Token:       fmt.Sprintf("token-%03d", idx),
		Fingerprint: fmt.Sprintf("fingerprint-%03d", idx),
		ExpiresAt:   created.Add(24 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	var revoked *time.Time
	if f.RevokedAt != nil {
		t := *f.RevokedAt
		revoked = &t
	}
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   revoked,
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	var revoked *time.Time
	if f.RevokedAt != nil {
		t := *f.RevokedAt
		revoked = &t
	}
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   revoked,
	}
}

// helper to deep copy optional strings.
func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
