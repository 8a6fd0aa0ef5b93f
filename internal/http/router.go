package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mefissto/appshell/auth-service/internal/config"
	"github.com/mefissto/appshell/auth-service/internal/http/handlers"
	"github.com/mefissto/appshell/auth-service/internal/http/middleware"
	"github.com/mefissto/appshell/auth-service/internal/service"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	Cookies  config.CookieConfig
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(),            // счётчики и латентность для /metrics
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Зависимости хендлеров.
	h := handlers.New(svc, opts.Cookies)
	guard := middleware.AuthCookie(svc, opts.Cookies.AccessName)

	// Регистрация маршрутов.
	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, guard)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, guard)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, guard middleware.Middleware) {
	// Публичные маршруты.
	r.Post("/auth/register", h.SignUp)
	r.Post("/auth/login", h.SignIn)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/verify-email", h.VerifyEmail)
	r.Post("/auth/resend-verification", h.ResendVerification)

	// Защищённые маршруты: access-cookie обязательна.
	r.Group(func(pr chi.Router) {
		pr.Use(guard)
		pr.Get("/auth/me", h.Me)
	})
}
