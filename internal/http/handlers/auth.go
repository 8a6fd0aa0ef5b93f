package handlers

import (
	"net/http"

	apierrors "github.com/mefissto/appshell/auth-service/internal/errors"
	"github.com/mefissto/appshell/auth-service/internal/http/middleware"
	"github.com/mefissto/appshell/auth-service/internal/service"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpResponse struct {
	UserID string `json:"user_id"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	UserID           string `json:"user_id"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// SignUp регистрирует пользователя и инициирует подтверждение e-mail.
// Токены не выдаются: вход — отдельная операция.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	id, err := h.svc.SignUp(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, signUpResponse{UserID: id.String()})
}

// SignIn аутентифицирует по email+паролю и ставит пару токенов
// в HttpOnly cookie. Самих токенов в теле ответа нет.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, userID, err := h.svc.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	setAuthCookies(w, h.cookies, pair)
	writeJSON(w, http.StatusOK, signInResponse{
		UserID:           userID.String(),
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	})
}

// Refresh ротирует пару токенов по refresh-cookie. Отказ валидации
// сессии стирает cookie: повторные запросы с тем же токеном бессмысленны.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := refreshFromCookie(r, h.cookies)
	if presented == "" {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	pair, userID, err := h.svc.RefreshTokens(r.Context(), presented)
	if err != nil {
		clearAuthCookies(w, h.cookies)
		apierrors.WriteError(w, r, err)
		return
	}

	setAuthCookies(w, h.cookies, pair)
	writeJSON(w, http.StatusOK, signInResponse{
		UserID:           userID.String(),
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	})
}

// Logout отзывает сессию предъявленной refresh-cookie и стирает обе cookie.
// Без cookie операция no-op: клиент уже разлогинен.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	presented := refreshFromCookie(r, h.cookies)
	if presented == "" {
		clearAuthCookies(w, h.cookies)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.svc.Logout(r.Context(), presented); err != nil {
		clearAuthCookies(w, h.cookies)
		apierrors.WriteError(w, r, err)
		return
	}

	clearAuthCookies(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail подтверждает адрес по ссылке из письма
// (GET /auth/verify-email?email=...&token=...).
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if email == "" || token == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.VerifyEmail(r.Context(), email, token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "verified"})
}

// ResendVerification выпускает и отправляет новый токен подтверждения.
func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.ResendVerification(r.Context(), in.Email); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

// Me возвращает идентичность субъекта access-cookie (защищённый маршрут).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	if identity == nil {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:    identity.UserID.String(),
		Email:     identity.Email,
		SessionID: identity.SessionID.String(),
	})
}
