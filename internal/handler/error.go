// Package handler holds the shared HTTP plumbing for the callback surface:
// domain error to HTTP status translation and JSON error bodies.
package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dukerupert/skuld/internal/domain"
)

// ErrorCodeToHTTPStatus maps a domain error code to an HTTP status code.
// Unknown codes map to 500.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EINTERNAL:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrorResponse writes err as a JSON error body with the mapped status code.
// Internal errors are logged and replaced with a generic message so
// infrastructure details never reach the gateway.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	if code == domain.EINTERNAL {
		log.Printf("[http] internal error on %s %s: %v", r.Method, r.URL.Path, err)
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = domain.ErrorMessage(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ErrorCodeToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(body)
}
