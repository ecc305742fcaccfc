package httperrors

import (
	"context"
	"errors"
	"net/http"

	"github.com/sir_venger/resumable/internal/models"
)

// Write отвечает клиенту кодом, соответствующим ошибке ядра.
func Write(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrIncomplete):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StatusCode переводит статус протокола в HTTP-код.
func StatusCode(s models.Status) int {
	switch s {
	case models.StatusFound, models.StatusPartlyDone, models.StatusDone:
		return http.StatusOK
	case models.StatusNotFound:
		return http.StatusNoContent
	case models.StatusFileTooBig:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}
