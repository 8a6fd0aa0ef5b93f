package middleware

import (
	"context"
	"net/http"

	apierrors "github.com/mefissto/appshell/auth-service/internal/errors"
	"github.com/mefissto/appshell/auth-service/internal/service"
	"github.com/mefissto/appshell/auth-service/internal/tokens"
)

// AccessValidator — контракт проверки access-токена (реализуется service.Service).
type AccessValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (*tokens.Identity, error)
}

// AuthCookie — guard для защищённых маршрутов: достаёт access-токен из
// cookie, проверяет его и кладёт идентичность в контекст по ключу
// CtxIdentity. Отсутствующая cookie и непрошедший проверку токен наружу
// неразличимы: оба дают 401 стандартного формата.
func AuthCookie(v AccessValidator, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			identity, err := v.ValidateAccessToken(r.Context(), c.Value)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), CtxIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom возвращает идентичность, положенную AuthCookie, либо nil.
func IdentityFrom(ctx context.Context) *tokens.Identity {
	identity, _ := ctx.Value(CtxIdentity).(*tokens.Identity)
	return identity
}
