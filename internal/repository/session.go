package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, device, browser, ip_address, user_agent, is_active, last_active, expires_at, created_at`

// SessionRepository handles database operations for login sessions.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *domain.UserSession) error {
	query := `INSERT INTO user_sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, s.Device, s.Browser, s.IPAddress, s.UserAgent, s.IsActive, s.LastActive, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID returns a session owned by the given user.
func (r *SessionRepository) FindByID(ctx context.Context, id, userID string) (*domain.UserSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1 AND user_id = $2`
	var s domain.UserSession
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&s.ID, &s.UserID, &s.Device, &s.Browser, &s.IPAddress, &s.UserAgent, &s.IsActive, &s.LastActive, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

// ListActive returns the user's active, unexpired sessions, newest activity first.
func (r *SessionRepository) ListActive(ctx context.Context, userID string) ([]*domain.UserSession, error) {
	query := `
		SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY last_active DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.UserSession
	for rows.Next() {
		var s domain.UserSession
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Device, &s.Browser, &s.IPAddress, &s.UserAgent, &s.IsActive, &s.LastActive, &s.ExpiresAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// Touch records activity on an active session. It reports false when the
// session is missing, inactive or expired.
func (r *SessionRepository) Touch(ctx context.Context, id, userID string) (bool, error) {
	query := `
		UPDATE user_sessions SET last_active = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE AND expires_at > NOW()
	`
	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Deactivate ends one session.
func (r *SessionRepository) Deactivate(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE user_sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active = TRUE`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeactivateOthers ends every session of the user except keepID.
func (r *SessionRepository) DeactivateOthers(ctx context.Context, userID, keepID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND id <> $2 AND is_active = TRUE`, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireStale deactivates sessions whose expiry has passed.
func (r *SessionRepository) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE user_sessions SET is_active = FALSE WHERE is_active = TRUE AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
