// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for request level failures.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("malformed request")
)

// RespondError maps request errors to HTTP responses using RFC7807. Anything unknown is a 500
// whose detail is withheld.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
