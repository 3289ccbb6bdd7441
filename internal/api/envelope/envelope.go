// internal/api/envelope/envelope.go
package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is an API error carrying its HTTP status and optional per-field
// validation failures.
type Error struct {
	Status  int
	Message string
	Fails   map[string][]string
}

func (e *Error) Error() string { return e.Message }

func BadRequest(msg string) *Error   { return &Error{Status: http.StatusBadRequest, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Status: http.StatusUnauthorized, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Status: http.StatusConflict, Message: msg} }

func NotFound(msg string, fails map[string][]string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg, Fails: fails}
}

func Unprocessable(msg string, fails map[string][]string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: msg, Fails: fails}
}

// Fails collects validation messages per field, preserving insertion order
// within a field.
type Fails map[string][]string

func (f Fails) Add(field, msg string) { f[field] = append(f[field], msg) }

func (f Fails) Empty() bool { return len(f) == 0 }

// OK writes {"success":true, "message":..., <data>}.
func OK(w http.ResponseWriter, status int, message string, data map[string]any) {
	body := make(map[string]any, len(data)+2)
	for k, v := range data {
		body[k] = v
	}
	body["success"] = true
	if message != "" {
		body["message"] = message
	}
	write(w, status, body)
}

// Fail writes {"success":false, "message":..., "fails":...}. Errors that are
// not *Error become a generic 500 so internals never reach the client.
func Fail(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
	body := map[string]any{"success": false, "message": e.Message}
	if len(e.Fails) > 0 {
		body["fails"] = e.Fails
	}
	write(w, e.Status, body)
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
