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

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(id, name, email, password_hash, email_verified,
		                  verification_token_hash, verification_expires_at,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.EmailVerified,
		user.VerificationTokenHash,
		user.VerificationExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
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

// UserByEmail находит пользователя по email (включая хэш пароля).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `
		SELECT id, name, email, password_hash, email_verified,
		       verification_token_hash, verification_expires_at,
		       created_at, updated_at
		FROM users
		WHERE email = $1
	`

	return s.scanUser(ctx, op, query, email)
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT id, name, email, password_hash, email_verified,
		       verification_token_hash, verification_expires_at,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return s.scanUser(ctx, op, query, id)
}

// ConfirmEmail помечает e-mail подтверждённым и чистит verification-поля
// одним обновлением.
func (s *Storage) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ConfirmEmail"

	query := `
		UPDATE users
		SET email_verified = TRUE,
		    verification_token_hash = '',
		    verification_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// UpdateVerificationToken заменяет хэш токена подтверждения и его срок.
func (s *Storage) UpdateVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	const op = "storage.postgres.UpdateVerificationToken"

	query := `
		UPDATE users
		SET verification_token_hash = $2,
		    verification_expires_at = $3,
		    updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) scanUser(ctx context.Context, op, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.VerificationTokenHash,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}
