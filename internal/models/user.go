package models

import (
	"time"

	"github.com/google/uuid"
)

// User — модель пользователя в системе.
//
// PasswordHash хранит bcrypt-хэш пароля; сырой пароль нигде не сохраняется.
// VerificationTokenHash/VerificationExpiresAt — хэш одноразового токена
// подтверждения e-mail и срок его действия; после подтверждения оба поля
// обнуляются одним обновлением.
type User struct {
	ID                    uuid.UUID
	Name                  string
	Email                 string
	PasswordHash          string
	EmailVerified         bool
	VerificationTokenHash string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
