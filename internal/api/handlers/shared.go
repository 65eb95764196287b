package handlers

import (
	"errors"
	"net/http"

	"github.com/ndewijer/fci-sync/internal/api/response"
	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/validation"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data any) {
	response.RespondJSON(w, status, data)
}

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr), errors.Is(err, apperrors.ErrInvalidClassID):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrFundClassNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrSyncInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
