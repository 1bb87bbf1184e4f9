package perrors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

type ErrCode struct {
	Code   string `json:"code"`
	Status int    `json:"status"`
}

var (
	ErrCodeValidation   ErrCode = ErrCode{"validation_error", http.StatusBadRequest}
	ErrCodeAuth                 = ErrCode{"auth_error", http.StatusUnauthorized}
	ErrCodeNetwork              = ErrCode{"network_error", http.StatusServiceUnavailable}
	ErrCodeInvalidRequest       = ErrCode{"invalid_request", http.StatusBadRequest}
	ErrCodeUnauthorized         = ErrCode{"unauthorized", http.StatusUnauthorized}
	ErrCodeForbidden            = ErrCode{"forbidden", http.StatusForbidden}
	ErrCodeNotFound             = ErrCode{"not_found", http.StatusNotFound}
	ErrCodeConflict             = ErrCode{"conflict", http.StatusConflict}
	ErrCodeServer               = ErrCode{"server_error", http.StatusInternalServerError}
)

type Err struct {
	Message    string                   `json:"-"`
	Err        string                   `json:"error"`
	Code       ErrCode                  `json:"-"`
	Stacktrace []string                 `json:"-"`
	Args       []map[string]interface{} `json:"args"`
	cause      error
}

func (e Err) Error() string {
	if e.Message == "" {
		return e.Err
	}
	if e.Err == "" || e.Err == e.Message {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Err)
}

func (e Err) Unwrap() error {
	return e.cause
}

func (e Err) HttpStatus() int {
	return e.Code.Status
}

// Fields returns the first args map, which validation errors use for
// per-field messages.
func (e Err) Fields() map[string]interface{} {
	if len(e.Args) == 0 {
		return nil
	}
	return e.Args[0]
}

func (e Err) Print(ctx context.Context) {
	args := []any{slog.String("code", e.Code.Code), slog.Any("error", e.Err)}
	if len(e.Args) > 0 {
		for k, v := range e.Args[0] {
			args = append(args, slog.Any(k, v))
		}
	}
	args = append(args, slog.Any("stacktrace", e.Stacktrace))
	slog.ErrorContext(ctx, e.Message, args...)
}

func New(code ErrCode, msg string, err error, args ...map[string]interface{}) error {
	pc := make([]uintptr, 20)
	count := runtime.Callers(2, pc)
	frames := runtime.CallersFrames(pc[:count])

	var stacktrace []string
	for frame, hasMore := frames.Next(); hasMore; frame, hasMore = frames.Next() {
		stacktrace = append(stacktrace, fmt.Sprintf("%s:%d", frame.File, frame.Line))
	}

	errString := ""
	if err != nil {
		errString = err.Error()
	}

	return Err{
		Code:       code,
		Message:    msg,
		Err:        errString,
		Stacktrace: stacktrace,
		Args:       args,
		cause:      err,
	}
}

// CodeOf reports the code carried by err, or ErrCodeServer when err was not
// produced by this package.
func CodeOf(err error) ErrCode {
	var perr Err
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ErrCodeServer
}

func HasCode(err error, code ErrCode) bool {
	var perr Err
	return errors.As(err, &perr) && perr.Code.Code == code.Code
}

// FromStatus maps a backend HTTP status onto an error code.
func FromStatus(status int) ErrCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	default:
		return ErrCodeServer
	}
}

func NewErrValidation(msg string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return New(ErrCodeValidation, msg, nil)
	}
	return New(ErrCodeValidation, msg, nil, fields)
}

func NewErrAuth(msg string, err error) error {
	return New(ErrCodeAuth, msg, err)
}

func NewErrNetwork(msg string, err error) error {
	return New(ErrCodeNetwork, msg, err)
}

func NewErrUnauthorized(msg string) error {
	return New(ErrCodeUnauthorized, msg, nil)
}

func NewErrForbidden(msg string) error {
	return New(ErrCodeForbidden, msg, nil)
}

func NewErrInvalidRequest(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeInvalidRequest, msg, err, args...)
}
