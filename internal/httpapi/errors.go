package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor сопоставляет ошибку домена HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrInvalidRepeatType),
		errors.Is(err, common.ErrEmptyTitle),
		errors.Is(err, common.ErrTitleTooLong):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrWrongPassword):
		return http.StatusForbidden
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrTaskAlreadyCompleted),
		errors.Is(err, common.ErrTaskNotCompleted),
		errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrStoreUnavailable),
		errors.Is(err, common.ErrWriteFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает статусом по виду ошибки. Текст внутренних ошибок наружу не отдаётся.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("status", status).Error("Ошибка обработки запроса")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Ошибка записи ответа")
	}
}
