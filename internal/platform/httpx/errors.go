package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by handlers.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrBadGateway = errors.New("upstream service failed")
)

// RespondError maps errors to problem responses. Unknown errors become 500
// without leaking their text.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, r, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrBadGateway):
		Problem(w, r, http.StatusBadGateway, "Bad Gateway", err.Error())
	default:
		Problem(w, r, http.StatusInternalServerError, "Internal Error", "")
	}
}
