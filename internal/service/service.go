// service содержит бизнес-логику auth-сервиса: регистрацию с подтверждением
// e-mail, вход по паролю, ротацию refresh-токенов, отзыв сессий и проверку
// access-токенов. С хранилищем, почтой и кэшем сервис работает только через
// интерфейсы (storage.Storage, mailer.Mailer, cache.SessionCache).
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования из разных горутин при условии, что
//     переданные зависимости потокобезопасны.
//   - Состояние сессии читается из хранилища заново на каждый вызов;
//     гонка двух конкурентных ротаций одного токена разрешается условным
//     обновлением на уровне хранилища (см. RotateSessionRefresh).
//   - Ошибки возвращаются и далее маппятся транспортом на HTTP-статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"github.com/mefissto/appshell/auth-service/internal/cache"
	"github.com/mefissto/appshell/auth-service/internal/config"
	"github.com/mefissto/appshell/auth-service/internal/hasher"
	"github.com/mefissto/appshell/auth-service/internal/mailer"
	"github.com/mefissto/appshell/auth-service/internal/storage"
	"github.com/mefissto/appshell/auth-service/internal/tokens"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь
	// не найден. Какая именно из причин — наружу не сообщается.
	// Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — предъявленный токен некорректен по формату/подписи
	// или не содержит claim сессии. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия access-токена истёк.
	// Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidSession — единый ответ на все четыре причины отказа
	// refresh-токена: сессия не найдена / отозвана / истекла / хэш не
	// совпал. Различать их наружу нельзя (oracle leak); причина пишется
	// только в лог. Транспорт: HTTP 401.
	ErrInvalidSession = errors.New("invalid session")

	// ErrEmailTaken — e-mail уже занят другим пользователем.
	// Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат.
	// Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности.
	// Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrEmptyName — имя пользователя пустое. Транспорт: HTTP 400.
	ErrEmptyName = errors.New("name is empty")

	// ErrInvalidVerification — токен подтверждения e-mail неверен, истёк
	// или пользователь не найден; одна ошибка на все причины.
	// Транспорт: HTTP 400 (валидационный класс, отличен от 401).
	ErrInvalidVerification = errors.New("invalid verification token")

	// ErrExpirationUnavailable — не удалось получить срок истечения только
	// что выпущенного токена; TTL refresh-хэша зависит от него, поэтому
	// условие фатально для выпуска/ротации. Транспорт: HTTP 500.
	ErrExpirationUnavailable = errors.New("failed to get token expiration timestamps")
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage      storage.Storage
	tokens       *tokens.Provider
	hasher       *hasher.Hasher
	mailer       mailer.Mailer
	verification config.VerificationConfig
	scache       cache.SessionCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(st storage.Storage, tp *tokens.Provider, h *hasher.Hasher, m mailer.Mailer, verification config.VerificationConfig) *Service {
	return &Service{
		storage:      st,
		tokens:       tp,
		hasher:       h,
		mailer:       m,
		verification: verification,
	}
}

// SetSessionCache устанавливает кэш сессий (опционально).
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.scache = c
}
