// Package httpx holds the request and response plumbing shared by every
// handler: JSON rendering, body decoding with validation, and the mapping
// from domain errors to HTTP status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"storefront-system/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: msg})
}

// Decode unmarshals the request body into dst and runs struct validation.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// DomainError renders a domain error with the matching status code. Unknown
// errors become a generic 500 so internals never leak to callers.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrTenantNotFound),
		errors.Is(err, domain.ErrCartNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCartEmpty):
		Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStoreClosed),
		errors.Is(err, domain.ErrComandaClosed):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrBadCredential):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		Error(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
