package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mefissto/appshell/auth-service/internal/cache"
	"github.com/mefissto/appshell/auth-service/internal/models"
	logctx "github.com/mefissto/appshell/auth-service/internal/pkg/log"
	"github.com/mefissto/appshell/auth-service/internal/storage"
	"github.com/mefissto/appshell/auth-service/internal/tokens"
)

// RefreshTokens обновляет пару токенов по refresh-токену (ротация).
// Старый токен становится непригодным в момент, когда его хэш в строке
// сессии перезаписан новым; повторная ротация тем же токеном всегда
// проигрывает сравнение хэшей или условное обновление.
func (s *Service) RefreshTokens(ctx context.Context, presented string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.token.RefreshTokens"

	// Граница доверия: нечитаемый токен — жёсткий отказ, не nil.
	sessionID, err := s.tokens.SessionID(presented)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	session, user, err := s.validateRefreshSession(ctx, sessionID, presented)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueSessionTokens(ctx, user, session.ID, session.RefreshTokenHash)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user.ID, nil
}

// Logout отзывает сессию предъявленного refresh-токена.
// Повторный logout той же сессии — не ошибка (идемпотентность).
func (s *Service) Logout(ctx context.Context, presented string) error {
	const op = "service.token.Logout"

	lg := logctx.From(ctx)

	sessionID, err := s.tokens.SessionID(presented)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if err := s.storage.RevokeSession(ctx, sessionID, time.Now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidSession)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if s.scache != nil {
		if err := s.scache.MarkRevoked(ctx, sessionID); err != nil {
			// Кэш best-effort: источник истины уже обновлён.
			lg.Warn("session_cache_revoke_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}

// ValidateAccessToken проверяет access-токен и возвращает идентичность
// субъекта. Stateless: состояние сессии не проверяется.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*tokens.Identity, error) {
	const op = "service.token.ValidateAccessToken"

	id, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return id, nil
}

// validateRefreshSession проверяет предъявленный refresh-токен против
// состояния сессии и возвращает сессию и её владельца.
//
// Все четыре причины отказа — сессии нет, отозвана, истекла, хэш не
// совпал — наружу выглядят одинаково (ErrInvalidSession); различия
// остаются только в логах.
func (s *Service) validateRefreshSession(ctx context.Context, sessionID uuid.UUID, presented string) (*models.Session, *models.User, error) {
	const op = "service.token.validateRefreshSession"

	lg := logctx.From(ctx)
	now := time.Now().UTC()

	// Fast path: отозванную/истёкшую сессию можно отклонить по кэшу,
	// не трогая БД. Ошибки кэша не фатальны.
	if s.scache != nil {
		if entry, ok, err := s.scache.Get(ctx, sessionID); err != nil {
			lg.Warn("session_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok {
			if entry.Revoked {
				lg.Warn("refresh_rejected_cached_revoked", slog.String("op", op))
				return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
			}
			if !now.Before(entry.ExpiresAt) {
				lg.Warn("refresh_rejected_cached_expired", slog.String("op", op))
				return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
			}
		}
	}

	session, err := s.storage.SessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_rejected_no_session", slog.String("op", op))
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if session.Revoked() {
		lg.Warn("refresh_rejected_revoked",
			slog.String("op", op),
			slog.String("user_id", session.UserID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}

	if session.ExpiredAt(now) {
		lg.Warn("refresh_rejected_expired",
			slog.String("op", op),
			slog.String("user_id", session.UserID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}

	// Пустой хэш — сессия ещё не получила refresh-материала;
	// предъявлять к ней нечего.
	if session.RefreshTokenHash == "" {
		lg.Warn("refresh_rejected_no_material", slog.String("op", op))
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}

	ok, err := s.hasher.Compare(presented, session.RefreshTokenHash)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		lg.Warn("refresh_rejected_hash_mismatch",
			slog.String("op", op),
			slog.String("user_id", session.UserID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}

	user, err := s.storage.UserByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return session, user, nil
}

// issueSessionTokens выпускает пару токенов, привязанную к сессии, и
// перезаписывает refresh-материал сессии на месте.
//
// prevHash — хэш, прочитанный при валидации ("" при первом выпуске после
// входа): условное обновление по нему гарантирует, что из двух
// конкурентных ротаций одного токена выигрывает ровно одна.
func (s *Service) issueSessionTokens(ctx context.Context, user *models.User, sessionID uuid.UUID, prevHash string) (*models.TokenPair, error) {
	const op = "service.token.issueSessionTokens"

	lg := logctx.From(ctx)
	now := time.Now().UTC()

	access, refresh, err := s.tokens.NewPair(user.ID, user.Email, sessionID, now)
	if err != nil {
		lg.Error("token_pair_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Сроки берём из самих токенов: срок сессии обязан равняться decoded
	// exp refresh-токена. Недоступность срока фатальна.
	accessExp, okA := s.tokens.ExpiresAt(access)
	refreshExp, okR := s.tokens.ExpiresAt(refresh)
	if !okA || !okR {
		lg.Error("token_expiration_unavailable", slog.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, ErrExpirationUnavailable)
	}

	refreshHash, err := s.hasher.Hash(refresh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.RotateSessionRefresh(ctx, sessionID, prevHash, refreshHash, refreshExp); err != nil {
		if errors.Is(err, storage.ErrStaleRotation) {
			// Конкурентная ротация успела раньше; предъявленный токен
			// уже недействителен.
			lg.Warn("rotation_lost_race", slog.String("op", op))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.scache != nil {
		entry := &cache.SessionEntry{UserID: user.ID, Revoked: false, ExpiresAt: refreshExp}
		if err := s.scache.Set(ctx, sessionID, entry, time.Until(refreshExp)); err != nil {
			lg.Warn("session_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
