package auth

import (
	"errors"
	"fmt"
)

// Provider error codes understood by ClassifyError.
const (
	CodeWrongPassword        = "auth/wrong-password"
	CodeUserNotFound         = "auth/user-not-found"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeUserDisabled         = "auth/user-disabled"
)

// Error is a provider failure carrying one of the auth/* codes.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on the code, so errors.Is(err, ErrWrongPassword) works for any
// *Error with that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds an *Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NetworkError wraps a transport failure as auth/network-request-failed.
func NetworkError(err error) *Error {
	return &Error{
		Code:    CodeNetworkRequestFailed,
		Message: "A network error has occurred.",
		Err:     err,
	}
}

var (
	ErrWrongPassword        = NewError(CodeWrongPassword, "")
	ErrUserNotFound         = NewError(CodeUserNotFound, "")
	ErrInvalidEmail         = NewError(CodeInvalidEmail, "")
	ErrNetworkRequestFailed = NewError(CodeNetworkRequestFailed, "")
	ErrTooManyRequests      = NewError(CodeTooManyRequests, "")
	ErrEmailAlreadyInUse    = NewError(CodeEmailAlreadyInUse, "")
	ErrWeakPassword         = NewError(CodeWeakPassword, "")
	ErrUserDisabled         = NewError(CodeUserDisabled, "")
)

// ErrNotAuthenticated is returned by operations that need a signed-in session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Alert is the user-facing title/message pair for an error.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

var alerts = map[string]Alert{
	CodeWrongPassword: {
		Title:   "¡Error en la contraseña!",
		Message: "La contraseña introducida es invalida. Asegurate de escribirla correctamente.",
	},
	CodeUserNotFound: {
		Title:   "¡Error de autenticacion!",
		Message: "El correo introducido no esta registrado.",
	},
	CodeInvalidEmail: {
		Title:   "¡Error de correo!",
		Message: "El correo introducido es invalido.",
	},
	CodeNetworkRequestFailed: {
		Title:   "¡Error de red!",
		Message: "No se ha podido conectar al servidor. Compruebe su conexion.",
	},
	CodeTooManyRequests: {
		Title:   "¡Error en el servidor!",
		Message: "Se han hecho demasiadas peticiones al servidor, por favor espere unos minutos.",
	},
	CodeEmailAlreadyInUse: {
		Title:   "¡Correo existente!",
		Message: "El correo introducido ya existe, pruebe a iniciar sesion, o compruebe que no se ha equivocado.",
	},
	CodeWeakPassword: {
		Title:   "¡Contraseña debil!",
		Message: "La contraseña debe tener 6 caracteres o mas.",
	},
	CodeUserDisabled: {
		Title:   "¡Cuenta deshabilitada!",
		Message: "Porfavor contacta con el administrador para informarse, y hacer las preguntas necesarias.",
	},
}

// ClassifyError maps an error to its alert. Known auth/* codes get the fixed
// pair; other *Error values fall back to (code, message); anything else to
// ("error", err.Error()).
func ClassifyError(err error) Alert {
	if err == nil {
		return Alert{}
	}
	var aerr *Error
	if errors.As(err, &aerr) {
		if a, ok := alerts[aerr.Code]; ok {
			return a
		}
		return Alert{Title: aerr.Code, Message: aerr.Message}
	}
	return Alert{Title: "error", Message: err.Error()}
}

// CodeOf returns the auth/* code of err, or "".
func CodeOf(err error) string {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ""
}

// MirrorError reports a failed profile mirror write after a successful
// provider call.
type MirrorError struct {
	UID string
	Err error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror profile %s: %v", e.UID, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }
