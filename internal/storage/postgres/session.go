package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mefissto/appshell/auth-service/internal/models"
	"github.com/mefissto/appshell/auth-service/internal/storage"
)

// SaveSession вставляет новую строку сессии.
func (s *Storage) SaveSession(ctx context.Context, session *models.Session) error {
	const op = "storage.postgres.SaveSession"

	query := `
        INSERT INTO sessions(id, user_id, refresh_token_hash, expires_at,
                             revoked_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := s.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		session.ExpiresAt,
		session.RevokedAt,
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SessionByID находит сессию по её id.
func (s *Storage) SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const op = "storage.postgres.SessionByID"

	query := `
        SELECT id, user_id, refresh_token_hash, expires_at,
               revoked_at, created_at, updated_at
        FROM sessions
        WHERE id = $1
    `

	var session models.Session
	err := s.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &session, nil
}

// RotateSessionRefresh перезаписывает хэш и срок refresh-токена на месте,
// при условии что сохранённый хэш не изменился с момента чтения (optimistic
// concurrency: из двух конкурентных ротаций одного токена выигрывает одна).
func (s *Storage) RotateSessionRefresh(ctx context.Context, id uuid.UUID, prevHash, newHash string, expiresAt time.Time) error {
	const op = "storage.postgres.RotateSessionRefresh"

	const upd = `
		UPDATE sessions
		SET refresh_token_hash = $3,
		    expires_at = $4,
		    updated_at = now()
		WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL
	`

	cmdTag, err := s.db.Exec(ctx, upd, id, prevHash, newHash, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Строка не обновилась: различаем «сессия исчезла» и «хэш уже сменили».
	const sel = `
		SELECT 1
		FROM sessions
		WHERE id = $1
	`

	var one int
	if err := s.db.QueryRow(ctx, sel, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrStaleRotation)
}

// RevokeSession выставляет revoked_at, если он ещё не выставлен.
// Повторный отзыв уже отозванной сессии — no-op, не ошибка.
func (s *Storage) RevokeSession(ctx context.Context, id uuid.UUID, now time.Time) error {
	const op = "storage.postgres.RevokeSession"

	query := `
        UPDATE sessions
        SET revoked_at = COALESCE(revoked_at, $2),
            updated_at = now()
        WHERE id = $1
    `

	cmdTag, err := s.db.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteExpiredSessions удаляет все просроченные сессии.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredSessions"

	query := `
        DELETE FROM sessions
        WHERE expires_at <= $1
    `

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
