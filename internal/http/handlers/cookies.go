package handlers

import (
	"net/http"

	"github.com/mefissto/appshell/auth-service/internal/config"
	"github.com/mefissto/appshell/auth-service/internal/models"
)

// setAuthCookies выставляет пару токенов в HttpOnly cookie.
// Срок жизни каждой cookie совпадает с exp соответствующего токена:
// браузер сам удаляет протухший access, а сервер при проверке полагается
// только на claims и состояние сессии, не на наличие cookie.
func setAuthCookies(w http.ResponseWriter, cfg config.CookieConfig, pair *models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.AccessName,
		Value:    pair.AccessToken,
		Domain:   cfg.Domain,
		Path:     cfg.Path,
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.RefreshName,
		Value:    pair.RefreshToken,
		Domain:   cfg.Domain,
		Path:     cfg.Path,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies стирает обе cookie (MaxAge<0 — немедленное удаление).
func clearAuthCookies(w http.ResponseWriter, cfg config.CookieConfig) {
	for _, name := range []string{cfg.AccessName, cfg.RefreshName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Domain:   cfg.Domain,
			Path:     cfg.Path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// refreshFromCookie возвращает значение refresh-cookie ("" — нет cookie).
func refreshFromCookie(r *http.Request, cfg config.CookieConfig) string {
	c, err := r.Cookie(cfg.RefreshName)
	if err != nil {
		return ""
	}

	return c.Value
}
