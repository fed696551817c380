// Package apperr defines the error codes shared by every layer of the API and
// the constructors that attach them.
package apperr

import (
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// Error codes. The code determines the HTTP status a client sees.
const (
	CodeValidation         = "VALIDATION"
	CodeDuplicate          = "DUPLICATE"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeInvalidOrExpired   = "INVALID_OR_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUpstream           = "UPSTREAM"
	CodeInternal           = "INTERNAL"
)

// InternalMessage is what clients see for any uncoded failure.
const InternalMessage = "Internal server error"

var statusByCode = map[string]int{
	CodeValidation:         http.StatusBadRequest,
	CodeDuplicate:          http.StatusConflict,
	CodeInvalidCredentials: http.StatusUnauthorized,
	CodeUnauthenticated:    http.StatusUnauthorized,
	CodeTokenRevoked:       http.StatusForbidden,
	CodeInvalidOrExpired:   http.StatusForbidden,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeRateLimited:        http.StatusTooManyRequests,
}

func coded(code, msg string) error {
	return oops.Code(code).Public(msg).Errorf("%s", msg)
}

// Validation reports input that is out of bounds or malformed.
func Validation(msg string) error { return coded(CodeValidation, msg) }

// Duplicate reports a uniqueness collision.
func Duplicate(msg string) error { return coded(CodeDuplicate, msg) }

// InvalidCredentials is returned for both unknown users and wrong passwords.
func InvalidCredentials() error { return coded(CodeInvalidCredentials, "Invalid credentials") }

// Unauthenticated reports a missing bearer token.
func Unauthenticated(msg string) error { return coded(CodeUnauthenticated, msg) }

// TokenRevoked reports a token found in the revocation store.
func TokenRevoked() error {
	return coded(CodeTokenRevoked, "Token is invalid or has been logged out.")
}

// InvalidOrExpired reports a token that failed verification.
func InvalidOrExpired() error { return coded(CodeInvalidOrExpired, "Invalid or expired token") }

// Forbidden reports an authenticated caller acting on someone else's resource.
func Forbidden(msg string) error { return coded(CodeForbidden, msg) }

// NotFound reports a missing resource.
func NotFound(msg string) error { return coded(CodeNotFound, msg) }

// Upstream wraps a collaborator failure the client may be told about in
// general terms. It answers 500.
func Upstream(msg string, err error) error {
	return oops.Code(CodeUpstream).Public(msg).Wrap(err)
}

// Code returns the error code carried by err, or CodeInternal.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok && code != "" {
			return code
		}
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	if status, ok := statusByCode[Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-facing message for err. Uncoded and
// internal errors never leak their details.
func PublicMessage(err error) string {
	code := Code(err)
	if _, known := statusByCode[code]; !known && code != CodeUpstream {
		return InternalMessage
	}
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Public() != "" {
		return oopsErr.Public()
	}
	return InternalMessage
}

// Log logs err with its code and context attributes when it is an oops error.
func Log(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, "error", err)
}
