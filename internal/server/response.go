package server

import (
	"encoding/json"
	"net/http"

	"bentoauthz/internal/apierr"
)

// APIError is the {error:{code,message}} error response envelope.
type APIError struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess wraps v in {result: v}, the shape every successful handler
// response uses.
func WriteSuccess(w http.ResponseWriter, status int, result interface{}) {
	WriteJSON(w, status, map[string]interface{}{"result": result})
}

// WriteError renders err as the error envelope. Non-*apierr.Error values
// are treated as Internal. Cause detail is only included when debug is
// true — it never leaks to the client otherwise.
func WriteError(w http.ResponseWriter, err error, debug bool) {
	kind := apierr.Internal
	message := "internal error"

	var apiErr *apierr.Error
	if as, ok := err.(*apierr.Error); ok {
		apiErr = as
		kind = apiErr.Kind
		message = apiErr.Message
	}

	if debug && apiErr != nil && apiErr.Cause != nil {
		message = apiErr.Error()
	} else if kind == apierr.Internal && !debug {
		message = "internal error"
	}

	WriteJSON(w, apierr.HTTPStatus(kind), APIError{Error: ErrorBody{
		Code:    string(kind),
		Message: message,
	}})
}
