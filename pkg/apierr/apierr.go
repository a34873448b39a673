// Package apierr maps the error taxonomy spec.md §7 defines onto the
// structured JSON envelope and HTTP status codes both HTTP surfaces
// (daemonapi, sidecarapi) share.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Category is one bucket of spec.md §7's error taxonomy. Each maps to a
// fixed HTTP status.
type Category int

const (
	// CategoryInternal covers unclassified subsystem failures.
	CategoryInternal Category = iota
	CategoryBadRequest
	CategoryUnauthorized
	CategoryNotFound
	CategoryTimeout
	CategoryUnavailable
)

func (c Category) status() int {
	switch c {
	case CategoryBadRequest:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a categorized error that carries its own HTTP status and an
// optional details payload, so handlers can build one and hand it to
// Respond without re-deriving a status code at the call site.
type Error struct {
	Category Category
	Message  string
	Details  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error in the given category.
func New(category Category, message string) *Error {
	return &Error{Category: category, Message: message}
}

// Wrap builds an Error in the given category around cause, using cause's
// message as the response's details field.
func Wrap(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause, Details: cause.Error()}
}

// Sentinel errors for the taxonomy entries that are not already covered
// by a more specific subsystem error type (e.g. providers.ErrUpstreamUnavailable).
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrClassifierDown    = errors.New("classifier unavailable")
	ErrInferenceTimeout  = errors.New("inference timeout")
	ErrSubsystemNotReady = errors.New("subsystem not initialized")
)

// envelope is the structured JSON body every error response shares.
type envelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Respond writes err to c as the structured JSON envelope spec.md §7
// mandates, choosing an HTTP status from err's category when err is an
// *Error, or from a best-effort classification of sentinel errors
// otherwise, defaulting to 500.
func Respond(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Category == CategoryInternal {
			slog.Error("internal error", "error", apiErr.Error())
		}
		c.JSON(apiErr.Category.status(), envelope{Error: apiErr.Message, Details: apiErr.Details})
		return
	}

	switch {
	case errors.Is(err, ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, envelope{Error: "invalid token"})
	case errors.Is(err, ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, envelope{Error: "token expired"})
	case errors.Is(err, ErrClassifierDown):
		c.JSON(http.StatusServiceUnavailable, envelope{Error: "classifier unavailable"})
	case errors.Is(err, ErrInferenceTimeout):
		c.JSON(http.StatusGatewayTimeout, envelope{Error: "inference timed out"})
	case errors.Is(err, ErrSubsystemNotReady):
		c.JSON(http.StatusServiceUnavailable, envelope{Error: "subsystem not initialized"})
	default:
		slog.Error("unclassified handler error", "error", err)
		c.JSON(http.StatusInternalServerError, envelope{Error: "internal server error"})
	}
}

// BadRequest writes a 400 with message directly, for malformed-input
// cases that never carry a wrapped error (bad JSON, missing field).
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Error: message})
}

// NotFound writes a 404 with message directly.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, envelope{Error: message})
}
