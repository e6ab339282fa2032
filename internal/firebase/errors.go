package firebase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"presupuestos/internal/auth"
)

// CodeInternalError is used for provider replies with no auth/* equivalent.
const CodeInternalError = "auth/internal-error"

var providerCodes = map[string]string{
	"EMAIL_EXISTS":                auth.CodeEmailAlreadyInUse,
	"WEAK_PASSWORD":               auth.CodeWeakPassword,
	"INVALID_EMAIL":               auth.CodeInvalidEmail,
	"MISSING_EMAIL":               auth.CodeInvalidEmail,
	"EMAIL_NOT_FOUND":             auth.CodeUserNotFound,
	"USER_NOT_FOUND":              auth.CodeUserNotFound,
	"INVALID_PASSWORD":            auth.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   auth.CodeWrongPassword,
	"USER_DISABLED":               auth.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": auth.CodeTooManyRequests,
}

// mapError turns an Identity Toolkit failure into an *auth.Error. Replies
// look like "WEAK_PASSWORD : Password should be at least 6 characters".
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return auth.NetworkError(err)
	}

	reason, detail, _ := strings.Cut(gerr.Message, ":")
	reason = strings.TrimSpace(reason)
	detail = strings.TrimSpace(detail)

	if code, ok := providerCodes[reason]; ok {
		return &auth.Error{Code: code, Message: detail, Err: err}
	}
	if gerr.Code == http.StatusTooManyRequests {
		return &auth.Error{Code: auth.CodeTooManyRequests, Message: gerr.Message, Err: err}
	}
	return &auth.Error{Code: CodeInternalError, Message: gerr.Message, Err: err}
}
