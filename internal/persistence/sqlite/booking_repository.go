package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
)

const dateLayout = "2006-01-02"

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const bookingColumns = `id, room_id, date, start_time, end_time, status, group_id, parent_id,
	requester_id, title, description, attendee_count, private, items, admin_notes,
	created_at, updated_at`

// CreateBooking inserts one occurrence. A write that lands on an already
// taken non-cancelled slot fails the partial unique index and surfaces as
// persistence.ErrDuplicate.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.RoomID == "" || booking.GroupID == "" || booking.RequesterID == "" {
		return persistence.ErrConstraintViolation
	}

	items, err := json.Marshal(booking.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	if booking.Items == nil {
		items = []byte("[]")
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			booking.ID,
			booking.RoomID,
			booking.Date.Format(dateLayout),
			booking.StartTime,
			booking.EndTime,
			booking.Status,
			booking.GroupID,
			booking.ParentID,
			booking.RequesterID,
			booking.Title,
			booking.Description,
			booking.AttendeeCount,
			booking.Private,
			string(items),
			booking.AdminNotes,
			booking.CreatedAt.UTC().Format(time.RFC3339),
			booking.UpdatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	row := r.helper.QueryRow(ctx, query, id)

	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching the filter, ordered by date then
// start time then ID so group mutations can walk members in occurrence order.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var conditions []string
	var args []interface{}

	if len(filter.RoomIDs) > 0 {
		placeholders := strings.Repeat("?, ", len(filter.RoomIDs))
		conditions = append(conditions, fmt.Sprintf("room_id IN (%s)", placeholders[:len(placeholders)-2]))
		for _, roomID := range filter.RoomIDs {
			args = append(args, roomID)
		}
	}
	if filter.GroupID != "" {
		conditions = append(conditions, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.DateFrom.Format(dateLayout))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.DateTo.Format(dateLayout))
	}
	if !filter.IncludeCancelled {
		conditions = append(conditions, "status != 'cancelled'")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return bookings, nil
}

// UpdateBookingStatus moves a booking to a new status. Status validity is the
// caller's concern; the repository only guards the allowed value set via the
// CHECK constraint.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, updatedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// DeleteBooking removes a booking. Children that referenced it as their
// anchor are re-pointed at nothing so the group stays loadable.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx,
			`UPDATE bookings SET parent_id = NULL WHERE parent_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, `DELETE FROM bookings WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	var dateStr, createdAtStr, updatedAtStr, itemsStr string
	var parentID sql.NullString

	err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&dateStr,
		&booking.StartTime,
		&booking.EndTime,
		&booking.Status,
		&booking.GroupID,
		&parentID,
		&booking.RequesterID,
		&booking.Title,
		&booking.Description,
		&booking.AttendeeCount,
		&booking.Private,
		&itemsStr,
		&booking.AdminNotes,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Booking{}, err
	}

	if parentID.Valid {
		booking.ParentID = &parentID.String
	}
	if booking.Date, err = time.Parse(dateLayout, dateStr); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse date: %w", err)
	}
	if itemsStr != "" {
		if err := json.Unmarshal([]byte(itemsStr), &booking.Items); err != nil {
			return persistence.Booking{}, fmt.Errorf("failed to decode items: %w", err)
		}
	}
	if booking.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if booking.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return booking, nil
}
