package echoapi

import (
	"net/http"
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/notification"
	"github.com/learningcloud/backend/core/progress"
	"github.com/learningcloud/backend/core/quiz"
	"github.com/learningcloud/backend/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// apiError is one row of the error taxonomy: HTTP status, machine-readable
// code and caller-facing message. Every error response is rendered as
// {"error": message, "code": code} plus "details" for validation failures.
type apiError struct {
	status  int
	code    string
	message string
}

// domainErrors maps core sentinel errors (and our own HTTP sentinels) to
// their taxonomy rows.
var domainErrors = map[error]apiError{
	user.ErrNotFound:           {http.StatusNotFound, "not_found", "not found"},
	user.ErrInvalidCredentials: {http.StatusUnauthorized, "invalid_credentials", user.ErrInvalidCredentials.Error()},

	content.ErrNotFound: {http.StatusNotFound, "not_found", "not found"},

	quiz.ErrNotFound:             {http.StatusNotFound, "not_found", "not found"},
	quiz.ErrSessionNotFound:      {http.StatusNotFound, "not_found", "not found"},
	quiz.ErrQuestionNotFound:     {http.StatusNotFound, "not_found", "not found"},
	quiz.ErrAttemptLimitExceeded: {http.StatusBadRequest, "attempt_limit_exceeded", quiz.ErrAttemptLimitExceeded.Error()},
	quiz.ErrActiveAttemptExists:  {http.StatusConflict, "active_attempt_exists", quiz.ErrActiveAttemptExists.Error()},
	quiz.ErrSessionNotActive:     {http.StatusBadRequest, "session_not_active", quiz.ErrSessionNotActive.Error()},
	quiz.ErrSessionExpired:       {http.StatusBadRequest, "session_expired", quiz.ErrSessionExpired.Error()},

	progress.ErrNotFound:     {http.StatusNotFound, "not_found", "not found"},
	notification.ErrNotFound: {http.StatusNotFound, "not_found", "not found"},

	core.ErrRateLimited: {http.StatusTooManyRequests, "rate_limited", core.ErrRateLimited.Error()},

	errUnauthorized:       {http.StatusUnauthorized, "unauthorized", "user not authenticated"},
	errInvalidCredentials: {http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	errAccountDeactivated: {http.StatusForbidden, "account_deactivated", "account deactivated"},
	errRefreshExpired:     {http.StatusForbidden, "refresh_expired", "refresh has expired"},
	errHttpForbidden:      {http.StatusForbidden, "permission_denied", "permission denied"},
	errHttpNotFound:       {http.StatusNotFound, "not_found", "not found"},
}

// codeForStatus derives a generic code for errors outside the taxonomy.
func codeForStatus(status int) string {
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var status int
		var body echo.Map

		cause := errors.Cause(err)
		var aerr apiError
		var known bool
		// Indexing the map with an unhashable error type (e.g. the slice-typed
		// validator.ValidationErrors) would panic; such errors fall through to
		// the type switch below.
		if t := reflect.TypeOf(cause); t != nil && t.Comparable() {
			aerr, known = domainErrors[cause]
		}
		if known {
			status = aerr.status
			body = echo.Map{"error": aerr.message, "code": aerr.code}
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					status = http.StatusUnauthorized
					body = echo.Map{"error": origErr.Message, "code": "unauthorized"}
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				status = origErr.Code
				code := codeForStatus(status)
				if status == http.StatusUnauthorized {
					code = "unauthorized"
				}
				body = echo.Map{"error": origErr.Message, "code": code}
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				status = http.StatusBadRequest
				body = echo.Map{"error": "invalid input", "code": "validation_error", "details": fldErrs}
			case *core.ValidationError:
				status = http.StatusBadRequest
				body = echo.Map{"error": origErr.Error(), "code": "validation_error"}
				if flds := origErr.FieldMap(); flds != nil {
					body["details"] = flds
				}
			default: // any other error is a server error
				status = http.StatusInternalServerError
				msg := http.StatusText(status)
				body = echo.Map{"error": msg, "code": "internal_error"}

				logger.Error(msg, errors.Wrap(err, msg))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			body["error"] = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(status)
			} else {
				err = ctx.JSON(status, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
