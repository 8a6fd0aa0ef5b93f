package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/mefissto/appshell/auth-service/internal/mailer"
	"github.com/mefissto/appshell/auth-service/internal/models"
	logctx "github.com/mefissto/appshell/auth-service/internal/pkg/log"
	"github.com/mefissto/appshell/auth-service/internal/pkg/redact"
	"github.com/mefissto/appshell/auth-service/internal/storage"
)

// SignUp регистрирует нового пользователя и отправляет письмо
// с подтверждением e-mail. Вход при регистрации не выполняется:
// пара токенов выдаётся только через SignIn.
//
// Порядок фиксированный: сначала создаётся строка пользователя, затем
// уходит письмо. Сбой отправки возвращается наружу (не глотается), а
// «застрявший» неподтверждённый аккаунт восстанавливается через
// ResendVerification.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (uuid.UUID, error) {
	const op = "service.auth.SignUp"

	lg := logctx.From(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmptyName)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Одноразовый токен подтверждения: сырой — в письмо, хэш — в БД.
	rawToken, err := s.hasher.RandomHex(32)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	tokenHash, err := s.hasher.Hash(rawToken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	verifyExp := now.Add(s.verification.TokenTTL)

	user := &models.User{
		ID:                    uuid.New(),
		Name:                  name,
		Email:                 normEmail,
		PasswordHash:          passwordHash,
		EmailVerified:         false,
		VerificationTokenHash: tokenHash,
		VerificationExpiresAt: &verifyExp,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	link := mailer.VerificationLink(s.verification.BaseURL, normEmail, rawToken)
	if err := s.mailer.SendVerificationEmail(ctx, normEmail, name, link); err != nil {
		// Аккаунт уже создан; сбой доставки отдаём наружу, чтобы клиент
		// знал о проблеме и мог запросить повторную отправку.
		lg.Error("verification_email_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
			slog.String("err", err.Error()),
		)
		return user.ID, fmt.Errorf("%s: %w", op, err)
	}

	return user.ID, nil
}

// SignIn выполняет вход по email+пароль: проверяет учётные данные, создаёт
// новую строку сессии (по одной на каждое устройство/вход) и выпускает
// привязанную к ней пару токенов.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.SignIn"

	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Сессия создаётся до выпуска токенов: её id входит в claims.
	// Срок здесь предварительный — перезаписывается decoded exp
	// refresh-токена сразу после генерации пары.
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueSessionTokens(ctx, user, session.ID, "")
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user.ID, nil
}

// ValidateCredentials проверяет пару email+пароль и возвращает пользователя.
// Обе причины отказа (нет пользователя / неверный пароль) логируются одним
// и тем же предупреждением и наружу неразличимы.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	const op = "service.auth.ValidateCredentials"

	lg := logctx.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("credentials_rejected",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		lg.Warn("credentials_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return user, nil
}

// VerifyEmail подтверждает e-mail по сырому токену из письма.
// Все причины отказа (нет пользователя / токен не совпал / токен истёк)
// сводятся к одной ошибке валидации. Успех очищает verification-поля
// одним обновлением: токен одноразовый.
func (s *Service) VerifyEmail(ctx context.Context, email, rawToken string) error {
	const op = "service.auth.VerifyEmail"

	lg := logctx.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	if rawToken == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("verification_rejected",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if user.VerificationTokenHash == "" || user.VerificationExpiresAt == nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	if !time.Now().UTC().Before(*user.VerificationExpiresAt) {
		lg.Warn("verification_expired",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	ok, err := s.hasher.Compare(rawToken, user.VerificationTokenHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		lg.Warn("verification_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	if err := s.storage.ConfirmEmail(ctx, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResendVerification выпускает новый токен подтверждения и отправляет письмо
// заново. Для неизвестного или уже подтверждённого адреса возвращается та же
// ошибка валидации — перечисление адресов через этот эндпойнт невозможно.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	const op = "service.auth.ResendVerification"

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if user.EmailVerified {
		return fmt.Errorf("%s: %w", op, ErrInvalidVerification)
	}

	rawToken, err := s.hasher.RandomHex(32)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tokenHash, err := s.hasher.Hash(rawToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := time.Now().UTC().Add(s.verification.TokenTTL)
	if err := s.storage.UpdateVerificationToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	link := mailer.VerificationLink(s.verification.BaseURL, normEmail, rawToken)
	if err := s.mailer.SendVerificationEmail(ctx, normEmail, user.Name, link); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная,
// цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
