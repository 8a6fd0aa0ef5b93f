// hasher — провайдер необратимого хэширования секретов и генерации
// случайных токенов.
//
// Один и тот же провайдер используется для паролей и для refresh-токенов
// at rest. bcrypt ограничен 72 байтами входа, а refresh-токен (JWT) заметно
// длиннее, поэтому перед bcrypt любой payload сводится к sha256-дайджесту
// в base64. Стоимость bcrypt конфигурируется снаружи.
package hasher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher хэширует и проверяет секреты с настраиваемой стоимостью bcrypt.
type Hasher struct {
	cost int
}

// New создаёт Hasher; cost <= 0 означает bcrypt.DefaultCost.
func New(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	return &Hasher{cost: cost}
}

// Hash возвращает bcrypt-хэш от sha256-дайджеста payload.
// Сырой payload в ошибках и логах не появляется.
func (h *Hasher) Hash(payload string) (string, error) {
	const op = "hasher.Hash"

	bytes, err := bcrypt.GenerateFromPassword(digest(payload), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Compare сверяет payload с ранее сохранённым хэшем.
// Несовпадение — это (false, nil); ошибка возвращается только при
// инфраструктурном сбое (например, повреждённый хэш в хранилище).
func (h *Hasher) Compare(payload, hashed string) (bool, error) {
	const op = "hasher.Compare"

	err := bcrypt.CompareHashAndPassword([]byte(hashed), digest(payload))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("%s: %w", op, err)
}

// RandomHex возвращает криптографически стойкую hex-строку из byteSize
// случайных байт; byteSize <= 0 трактуется как 32.
// Используется для токенов подтверждения e-mail.
func (h *Hasher) RandomHex(byteSize int) (string, error) {
	const op = "hasher.RandomHex"

	if byteSize <= 0 {
		byteSize = 32
	}

	b := make([]byte, byteSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(b), nil
}

// digest сводит payload произвольной длины к фиксированному входу bcrypt.
func digest(payload string) []byte {
	sum := sha256.Sum256([]byte(payload))
	return []byte(base64.RawURLEncoding.EncodeToString(sum[:]))
}
