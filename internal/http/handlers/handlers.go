// handlers — REST-обработчики auth-сервиса.
//
// Токены ходят только в HttpOnly cookie: тело ответа никогда не содержит
// access/refresh-токенов. Формат ошибок един и задаётся пакетом errors.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/mefissto/appshell/auth-service/internal/config"
	"github.com/mefissto/appshell/auth-service/internal/models"
	"github.com/mefissto/appshell/auth-service/internal/tokens"
)

// AuthService — контракт бизнес-логики, нужный HTTP-слою
// (реализуется service.Service).
type AuthService interface {
	SignUp(ctx context.Context, name, email, password string) (uuid.UUID, error)
	SignIn(ctx context.Context, email, password string) (*models.TokenPair, uuid.UUID, error)
	RefreshTokens(ctx context.Context, presented string) (*models.TokenPair, uuid.UUID, error)
	Logout(ctx context.Context, presented string) error
	VerifyEmail(ctx context.Context, email, rawToken string) error
	ResendVerification(ctx context.Context, email string) error
	ValidateAccessToken(ctx context.Context, accessToken string) (*tokens.Identity, error)
}

// Handlers агрегирует зависимости HTTP-слоя.
type Handlers struct {
	svc     AuthService
	cookies config.CookieConfig
}

func New(svc AuthService, cookies config.CookieConfig) *Handlers {
	return &Handlers{svc: svc, cookies: cookies}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

