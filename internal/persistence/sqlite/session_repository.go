package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lorra-V/RoomReserve-sub002/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, user_id, token, fingerprint, expires_at, created_at, updated_at, revoked_at`

// CreateSession inserts a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var revokedAt interface{}
	if session.RevokedAt != nil {
		revokedAt = session.RevokedAt.UTC().Format(time.RFC3339)
	}

	_, err := r.helper.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.Fingerprint,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339),
		revokedAt,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	return session, nil
}

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token = ?`
	session, err := scanSession(r.helper.QueryRow(ctx, query, token))
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// UpdateSession persists changes to an existing session (sliding expiry).
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var revokedAt interface{}
	if session.RevokedAt != nil {
		revokedAt = session.RevokedAt.UTC().Format(time.RFC3339)
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE sessions SET expires_at = ?, updated_at = ?, revoked_at = ? WHERE id = ?`,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339),
		revokedAt,
		session.ID,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}

	return session, nil
}

// RevokeSession marks a session revoked by token.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	session, err := r.GetSession(ctx, token)
	if err != nil {
		return persistence.Session{}, err
	}

	stamp := revokedAt.UTC()
	session.RevokedAt = &stamp
	session.UpdatedAt = stamp
	return r.UpdateSession(ctx, session)
}

// DeleteExpiredSessions removes sessions whose expiry is at or before the
// reference time. Run periodically by the server's cleanup job.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`,
		reference.UTC().Format(time.RFC3339))
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var expiresAtStr, createdAtStr, updatedAtStr string
	var revokedAtStr sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Fingerprint,
		&expiresAtStr,
		&createdAtStr,
		&updatedAtStr,
		&revokedAtStr,
	)
	if err != nil {
		return persistence.Session{}, err
	}

	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if revokedAtStr.Valid {
		revoked, err := time.Parse(time.RFC3339, revokedAtStr.String)
		if err != nil {
			return persistence.Session{}, fmt.Errorf("failed to parse revoked_at: %w", err)
		}
		session.RevokedAt = &revoked
	}

	return session, nil
}
