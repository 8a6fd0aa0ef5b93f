package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mefissto/appshell/auth-service/internal/cache"
	"github.com/mefissto/appshell/auth-service/internal/models"
	"github.com/mefissto/appshell/auth-service/internal/storage"
	"github.com/mefissto/appshell/auth-service/mocks"
)

// refreshFixture чеканит refresh-токен и возвращает его вместе с живой
// строкой сессии, хранящей его хэш, — то состояние, в котором сессия
// находится после успешного входа.
func refreshFixture(t *testing.T, env *testEnv, user *models.User) (string, *models.Session) {
	t.Helper()

	sessionID := uuid.New()
	now := time.Now().UTC()

	_, refresh, err := env.tokens.NewPair(user.ID, user.Email, sessionID, now)
	require.NoError(t, err)

	hash, err := env.hasher.Hash(refresh)
	require.NoError(t, err)

	exp, ok := env.tokens.ExpiresAt(refresh)
	require.True(t, ok)

	return refresh, &models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: hash,
		ExpiresAt:        exp,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestRefreshTokens_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}
	presented, session := refreshFixture(t, env, user)
	prevHash := session.RefreshTokenHash

	var storedHash string

	env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)
	env.storage.EXPECT().UserByID(ctx, user.ID).Return(user, nil)
	env.storage.EXPECT().
		RotateSessionRefresh(ctx, session.ID, prevHash, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _, newHash string, _ time.Time) error {
			storedHash = newHash
			return nil
		})

	pair, userID, err := env.svc.RefreshTokens(ctx, presented)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)

	// Новая пара привязана к той же сессии.
	sid, err := env.tokens.SessionID(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, session.ID, sid)

	identity, err := env.tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.ID, identity.SessionID)

	// Хэш в хранилище перезаписан: старый токен проигрывает сравнение,
	// новый — совпадает.
	require.NotEqual(t, prevHash, storedHash)

	ok, err := env.hasher.Compare(pair.RefreshToken, storedHash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.hasher.Compare(presented, storedHash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefreshTokens_MalformedToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.svc.RefreshTokens(ctx, "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Токен, подписанный access-секретом, не проходит как refresh.
func TestRefreshTokens_AccessTokenRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	access, _, err := env.tokens.NewPair(uuid.New(), "ann@example.com", uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	_, _, err = env.svc.RefreshTokens(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Четыре причины отказа сессии наружу выглядят одинаково.
func TestRefreshTokens_UniformSessionRejection(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}

	t.Run("session not found", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		env.storage.EXPECT().
			SessionByID(ctx, session.ID).
			Return(nil, storage.ErrNotFound)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("session revoked", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		revokedAt := time.Now().UTC().Add(-time.Minute)
		session.RevokedAt = &revokedAt

		env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("session expired", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		session.ExpiresAt = time.Now().UTC().Add(-time.Second)

		env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("hash mismatch after rotation", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		// Кто-то уже ротировал сессию: хранится хэш другого токена.
		otherHash, err := env.hasher.Hash("another refresh token")
		require.NoError(t, err)
		session.RefreshTokenHash = otherHash

		env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)

		_, _, err = env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("no refresh material", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		session.RefreshTokenHash = ""

		env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})
}

// Проигравшая конкурентная ротация получает тот же ErrInvalidSession.
func TestRefreshTokens_LostRace(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}
	presented, session := refreshFixture(t, env, user)

	env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)
	env.storage.EXPECT().UserByID(ctx, user.ID).Return(user, nil)
	env.storage.EXPECT().
		RotateSessionRefresh(ctx, session.ID, session.RefreshTokenHash, gomock.Any(), gomock.Any()).
		Return(storage.ErrStaleRotation)

	_, _, err := env.svc.RefreshTokens(ctx, presented)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		env.storage.EXPECT().
			RevokeSession(ctx, session.ID, gomock.Any()).
			Return(nil)

		require.NoError(t, env.svc.Logout(ctx, presented))
	})

	t.Run("unknown session", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		env.storage.EXPECT().
			RevokeSession(ctx, session.ID, gomock.Any()).
			Return(storage.ErrNotFound)

		err := env.svc.Logout(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("malformed token", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.svc.Logout(context.Background(), "garbage")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

// После logout refresh-токен отклоняется: сессия отозвана.
func TestLogoutThenRefresh(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}
	presented, session := refreshFixture(t, env, user)

	env.storage.EXPECT().
		RevokeSession(ctx, session.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, now time.Time) error {
			session.RevokedAt = &now
			return nil
		})
	env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)

	require.NoError(t, env.svc.Logout(ctx, presented))

	_, _, err := env.svc.RefreshTokens(ctx, presented)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestValidateAccessToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}

	t.Run("valid", func(t *testing.T) {
		sessionID := uuid.New()
		access, _, err := env.tokens.NewPair(user.ID, user.Email, sessionID, time.Now().UTC())
		require.NoError(t, err)

		identity, err := env.svc.ValidateAccessToken(ctx, access)
		require.NoError(t, err)
		require.Equal(t, user.ID, identity.UserID)
		require.Equal(t, user.Email, identity.Email)
		require.Equal(t, sessionID, identity.SessionID)
	})

	t.Run("expired", func(t *testing.T) {
		// Чеканим в прошлом: exp давно позади даже с leeway.
		access, _, err := env.tokens.NewPair(user.ID, user.Email, uuid.New(),
			time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)

		_, err = env.svc.ValidateAccessToken(ctx, access)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := env.svc.ValidateAccessToken(ctx, "garbage")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		_, refresh, err := env.tokens.NewPair(user.ID, user.Email, uuid.New(), time.Now().UTC())
		require.NoError(t, err)

		_, err = env.svc.ValidateAccessToken(ctx, refresh)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

// Кэш сессий: отозванное/истёкшее состояние отклоняется без похода в БД,
// ошибки кэша не фатальны, успешная ротация обновляет запись.
func TestRefreshTokens_SessionCache(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New(), Email: "ann@example.com"}

	newEnvWithCache := func(t *testing.T) (*testEnv, *mocks.MockSessionCache) {
		t.Helper()

		env := newTestEnv(t)

		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		sc := mocks.NewMockSessionCache(ctrl)
		env.svc.SetSessionCache(sc)

		return env, sc
	}

	t.Run("cached revoked rejected without db", func(t *testing.T) {
		env, sc := newEnvWithCache(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		sc.EXPECT().
			Get(ctx, session.ID).
			Return(&cache.SessionEntry{UserID: user.ID, Revoked: true, ExpiresAt: session.ExpiresAt}, true, nil)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("cached expired rejected without db", func(t *testing.T) {
		env, sc := newEnvWithCache(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		sc.EXPECT().
			Get(ctx, session.ID).
			Return(&cache.SessionEntry{UserID: user.ID, ExpiresAt: time.Now().UTC().Add(-time.Minute)}, true, nil)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("cache error falls through to db", func(t *testing.T) {
		env, sc := newEnvWithCache(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		sc.EXPECT().
			Get(ctx, session.ID).
			Return(nil, false, errors.New("redis: connection refused"))
		env.storage.EXPECT().SessionByID(ctx, session.ID).Return(session, nil)
		env.storage.EXPECT().UserByID(ctx, user.ID).Return(user, nil)
		env.storage.EXPECT().
			RotateSessionRefresh(ctx, session.ID, session.RefreshTokenHash, gomock.Any(), gomock.Any()).
			Return(nil)
		sc.EXPECT().
			Set(ctx, session.ID, gomock.Any(), gomock.Any()).
			Return(nil)

		_, _, err := env.svc.RefreshTokens(ctx, presented)
		require.NoError(t, err)
	})

	t.Run("logout marks cache revoked", func(t *testing.T) {
		env, sc := newEnvWithCache(t)
		ctx := context.Background()
		presented, session := refreshFixture(t, env, user)

		env.storage.EXPECT().RevokeSession(ctx, session.ID, gomock.Any()).Return(nil)
		sc.EXPECT().MarkRevoked(ctx, session.ID).Return(nil)

		require.NoError(t, env.svc.Logout(ctx, presented))
	})
}
