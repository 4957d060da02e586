// Package errors writes JSON error responses for the HTTP features and maps
// application error kinds to status codes.
package errors

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds every decoded request body.
const MaxBodyBytes = 1 << 20

// body is the error envelope every failure response uses.
type body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Status maps an error kind to its HTTP status.
func Status(k apperr.Kind) int {
	switch k {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidOperation:
		return http.StatusUnprocessableEntity
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorLogger writes error responses and logs the ones clients cannot act on.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: log}
}

// Write sends err as a JSON error. Internal and transient failures are logged
// with the request path; their cause never reaches the client.
func (el *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindInternal:
		el.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	case apperr.KindTransient:
		el.log.Warn("request failed, retryable",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	JSON(w, Status(kind), body{Error: kind.String(), Message: apperr.Message(err)})
}

// LogBadRequest answers 400 with msg. The decode error is logged at debug.
func (el *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if err != nil {
		el.log.Debug("bad request", zap.String("path", r.URL.Path), zap.Error(err))
	}
	JSON(w, http.StatusBadRequest, body{Error: "bad_request", Message: msg})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// NoContent answers 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Decode reads a JSON request body into dst and runs its validate tags.
// Failures come back as InvalidOperation with a client-safe message.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidOperation("request body is required")
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return apperr.InvalidOperation("request body is too large")
		}
		return apperr.Wrap(apperr.KindInvalidOperation, "request body is not valid JSON", err)
	}
	if res := inputval.Validate(dst); res.HasErrors() {
		return apperr.InvalidOperation(res.All())
	}
	return nil
}

// ObjectIDParam reads a chi URL parameter as an ObjectID. A malformed id is
// reported the same way as an id that does not exist.
func ObjectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return primitive.NilObjectID, apperr.Hidden()
	}
	return id, nil
}

// UserID returns the signed-in user's id.
func UserID(r *http.Request) (primitive.ObjectID, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, apperr.Unauthorized("sign in required")
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, apperr.Unauthorized("sign in required")
	}
	return id, nil
}
