package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mefissto/appshell/auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/сессия).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/id).
	ErrAlreadyExists = errors.New("already exists")
	// ErrStaleRotation — условное обновление сессии не применилось:
	// сохранённый хэш успел измениться между чтением и записью
	// (конкурентная ротация того же refresh-токена).
	ErrStaleRotation = errors.New("stale rotation")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email. Хэш пароля включён
	// в выборку: это единственная точка, где он нужен.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// ConfirmEmail помечает e-mail подтверждённым и одним обновлением
	// очищает токен подтверждения и его срок.
	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	// UpdateVerificationToken заменяет хэш токена подтверждения и его срок
	// (повторная отправка письма).
	UpdateVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
}

// SessionStorage выполняет операции над сессиями.
type SessionStorage interface {
	// SaveSession вставляет новую строку сессии (без refresh-материала).
	SaveSession(ctx context.Context, session *models.Session) error
	// SessionByID находит сессию по id; промах — ErrNotFound, не паника.
	SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// RotateSessionRefresh перезаписывает хэш refresh-токена и срок сессии
	// при условии, что сохранённый хэш всё ещё равен prevHash (пустая
	// строка — «хэш ещё не выставлялся»). Возвращает ErrStaleRotation,
	// если строку успела перезаписать конкурентная ротация, и ErrNotFound,
	// если строка исчезла.
	RotateSessionRefresh(ctx context.Context, id uuid.UUID, prevHash, newHash string, expiresAt time.Time) error
	// RevokeSession выставляет revoked_at; повторный отзыв не ошибка
	// (идемпотентность logout).
	RevokeSession(ctx context.Context, id uuid.UUID, now time.Time) error
	// DeleteExpiredSessions удаляет просроченные сессии (фоновая очистка).
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
