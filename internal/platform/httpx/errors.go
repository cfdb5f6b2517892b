// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Packages wrap them so RespondError
// can pick a status without importing the domain.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("precondition not met")
	ErrLocked        = errors.New("resource locked")
	ErrTooLarge      = errors.New("payload too large")
)

type errorMapping struct {
	target error
	status int
	title  string
}

var errorMappings = []errorMapping{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrDuplicate, http.StatusConflict, "Conflict"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrUnprocessable, http.StatusUnprocessableEntity, "Unprocessable"},
	{ErrLocked, http.StatusLocked, "Locked"},
	{ErrTooLarge, http.StatusRequestEntityTooLarge, "Payload Too Large"},
}

// RespondError writes err as an RFC 7807 problem. Unmapped errors become a
// 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			Problem(w, m.status, m.title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
