// errors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход он принимает ошибку бизнес-логики (сентинели пакета service),
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Все причины отказа аутентификации (неверные учётные данные, битый или
// истёкший токен, невалидная сессия) схлопываются в один 401/unauthenticated:
// различать их наружу нельзя, причина остаётся в логах.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mefissto/appshell/auth-service/internal/service"
)

// Нестандартный код, часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrBadRequest — транспортная ошибка парсинга запроса (битое тело,
// отсутствующие параметры). Живёт на HTTP-слое: до бизнес-логики такие
// запросы не доходят.
var ErrBadRequest = errors.New("bad request")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку бизнес-логики в HTTP-статус и унифицированный
// ответ для фронта.
//
// Поведение:
//   - err == nil — программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - известный сентинель service — маппится по таблице ниже;
//   - прочее (ошибки БД, кэша и т.п.) — 500/internal без утечки деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, response("internal", "internal error")
	}

	switch {
	// Один 401 на весь класс отказов аутентификации.
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized, response("unauthenticated", "unauthenticated")

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response("already_exists", "email already taken")

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrInvalidVerification):
		return http.StatusBadRequest, response("invalid_argument", "invalid argument")

	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, response("canceled", "canceled")

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response("deadline_exceeded", "deadline exceeded")

	default:
		return http.StatusInternalServerError, response("internal", "internal error")
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func response(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
