// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/fci-sync/internal/api/response"
	"github.com/ndewijer/fci-sync/internal/validation"
)

// ValidateClassIDMiddleware validates that the classId URL parameter is a
// numeric upstream class ID. Returns 400 Bad Request otherwise.
//
// Example usage in router:
//
//	r.Route("/{classId}", func(r chi.Router) {
//	    r.Use(middleware.ValidateClassIDMiddleware)
//	    r.Get("/", handler.FundClass)
//	})
func ValidateClassIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		classID := chi.URLParam(r, "classId")

		if classID == "" {
			response.RespondError(w, http.StatusBadRequest, "class ID is required", "")
			return
		}

		if err := validation.ValidateClassID(classID); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid class ID", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
