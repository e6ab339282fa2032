// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON envelope responses:
// {"status": "success"|"error", "message", "code", ...extra fields}.

package http

import (
	"encoding/json"
	"net/http"

	"presupuestos/internal/notify"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// JSONResponseBuilder provides a fluent API for building envelope responses.
type JSONResponseBuilder struct {
	fields     map[string]any
	statusCode int
	headers    map[string]string
}

// NewJSONResponse creates a new success response with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		fields:     map[string]any{"status": StatusSuccess},
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Field sets a top-level field of the envelope.
func (b *JSONResponseBuilder) Field(name string, value any) *JSONResponseBuilder {
	b.fields[name] = value
	return b
}

// Message sets the human readable message.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Field("message", msg)
}

// Code sets the machine readable error code.
func (b *JSONResponseBuilder) Code(code string) *JSONResponseBuilder {
	if code != "" {
		b.fields["code"] = code
	}
	return b
}

// Redirect tells the client which screen to show next.
func (b *JSONResponseBuilder) Redirect(route string) *JSONResponseBuilder {
	if route != "" {
		b.fields["redirect"] = route
	}
	return b
}

// Notifications attaches the dialogs the request produced. A nil list is
// rendered as an empty array.
func (b *JSONResponseBuilder) Notifications(ns []notify.Notification) *JSONResponseBuilder {
	if ns == nil {
		ns = []notify.Notification{}
	}
	return b.Field("notifications", ns)
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.fields)
	if err != nil {
		http.Error(w, `{"status":"error","message":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorResponse creates a standard error envelope.
func ErrorResponse(statusCode int, message, code string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Field("status", StatusError).
		Message(message).
		Code(code)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, "bad_request")
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message, "unauthenticated")
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message, "internal")
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message, "not_found")
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed", "method_not_allowed").
		Header("Allow", allowedMethods)
}

// ValidationError creates a 422 response listing the failed rules per field.
func ValidationError(fields map[string][]string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, "Datos no validos", "validation").
		Field("fields", fields)
}
