// tokens — провайдер подписанных access/refresh-токенов (JWT, HS256).
//
// Оба токена несут claims субъекта и сессии (uid/email/sid + iss/aud/iat/exp),
// но подписываются разными секретами и живут разное время: access — минуты,
// без обращения к хранилищу при проверке; refresh — дни, и действителен
// только пока его хэш совпадает с сохранённым в строке сессии.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mefissto/appshell/auth-service/internal/config"
)

var (
	// ErrInvalidToken — токен некорректен по формату/подписи/claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
)

// Identity — проверенные данные субъекта из access-токена.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	SessionID uuid.UUID
}

type sessionClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Provider выпускает и проверяет пары токенов.
type Provider struct {
	cfg config.TokensConfig
}

// New создаёт новый Provider.
func New(cfg config.TokensConfig) *Provider {
	return &Provider{cfg: cfg}
}

// RefreshTTL возвращает сконфигурированный TTL refresh-токена.
func (p *Provider) RefreshTTL() time.Duration {
	return p.cfg.RefreshTokenTTL
}

// NewPair чеканит access- и refresh-токены c claims, привязанными
// к пользователю и сессии. Токены независимы: разные секреты и TTL.
func (p *Provider) NewPair(userID uuid.UUID, email string, sessionID uuid.UUID, now time.Time) (string, string, error) {
	const op = "tokens.NewPair"

	access, err := p.sign(userID, email, sessionID, now, p.cfg.AccessTokenTTL, p.cfg.AccessSecret)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := p.sign(userID, email, sessionID, now, p.cfg.RefreshTokenTTL, p.cfg.RefreshSecret)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return access, refresh, nil
}

// ExpiresAt декодирует токен без проверки подписи и возвращает момент
// истечения. Второе значение false, если токен не декодируется или claim
// exp отсутствует — вызывающая сторона обязана считать это фатальным для
// флоу, которым нужен срок (выпуск/ротация).
func (p *Provider) ExpiresAt(token string) (time.Time, bool) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time.UTC(), true
}

// SessionID проверяет подпись refresh-токена и извлекает идентификатор
// сессии. В отличие от ExpiresAt это граница доверия: любая проблема
// декодирования или отсутствие claim — жёсткая ошибка, не nil.
// Истёкший, но корректно подписанный токен здесь допускается: решение
// о сроке принимает проверка состояния сессии.
func (p *Provider) SessionID(token string) (uuid.UUID, error) {
	const op = "tokens.SessionID"

	claims, err := p.parse(token, p.cfg.RefreshSecret, jwt.WithoutClaimsValidation())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.SessionID == "" {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return sid, nil
}

// VerifyAccess валидирует access-токен (подпись, срок, iss/aud) и
// возвращает идентичность субъекта. Stateless: хранилище не трогается.
func (p *Provider) VerifyAccess(token string) (*Identity, error) {
	const op = "tokens.VerifyAccess"

	claims, err := p.parse(token, p.cfg.AccessSecret,
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(p.cfg.Audience...),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &Identity{UserID: uid, Email: claims.Email, SessionID: sid}, nil
}

func (p *Provider) sign(userID uuid.UUID, email string, sessionID uuid.UUID, now time.Time, ttl time.Duration, secret string) (string, error) {
	claims := sessionClaims{
		UserID:    userID.String(),
		Email:     email,
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    p.cfg.Issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings(p.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (p *Provider) parse(tokenStr, secret string, opts ...jwt.ParserOption) (*sessionClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}

			return []byte(secret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
