package http

import (
	"errors"
	"net/http"
	"strings"

	"presupuestos/internal/auth"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// authStatus maps a session failure to the HTTP status it is answered with.
func authStatus(err error) int {
	switch auth.CodeOf(err) {
	case auth.CodeWrongPassword, auth.CodeUserNotFound:
		return http.StatusUnauthorized
	case auth.CodeInvalidEmail, auth.CodeWeakPassword:
		return http.StatusBadRequest
	case auth.CodeEmailAlreadyInUse:
		return http.StatusConflict
	case auth.CodeUserDisabled:
		return http.StatusForbidden
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case auth.CodeNetworkRequestFailed:
		return http.StatusBadGateway
	}
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
