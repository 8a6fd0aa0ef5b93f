package models

import (
	"time"

	"github.com/google/uuid"
)

// Session — серверная запись логин-сессии, якорь действия refresh-токена.
//
// Жизненный цикл:
//   - создаётся пустой при входе (RefreshTokenHash == "", до выпуска токенов);
//   - заполняется хэшем и сроком сразу после генерации пары;
//   - при каждой ротации хэш и срок перезаписываются на месте (та же строка);
//   - при logout выставляется RevokedAt — терминальное состояние;
//   - физически строки удаляет только фоновая очистка, не auth-флоу.
type Session struct {
	ID uuid.UUID
	// UserID — владелец сессии; у пользователя может быть много сессий
	// (по одной на устройство/вход).
	UserID uuid.UUID
	// RefreshTokenHash — bcrypt-хэш текущего действующего refresh-токена;
	// пустая строка до первого выпуска.
	RefreshTokenHash string
	// ExpiresAt — абсолютный срок действия текущего refresh-токена.
	ExpiresAt time.Time
	// RevokedAt — nil, пока сессия активна; выставляется один раз при logout.
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Revoked сообщает, была ли сессия отозвана.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// ExpiredAt сообщает, истекла ли сессия на момент now (now >= ExpiresAt).
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
