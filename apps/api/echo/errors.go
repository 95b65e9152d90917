package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/user"
)

var (
	errUnauthorized            = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed    = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated      = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired          = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errPasswordChangeRequired  = echo.NewHTTPError(http.StatusForbidden, "password change required")
	errWrongCurrentPassword    = echo.NewHTTPError(http.StatusBadRequest, "current password is incorrect")
	errHttpForbidden           = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound            = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpBadRequest          = echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	errCannotDeleteOwnAccount  = echo.NewHTTPError(http.StatusForbidden, "you cannot delete your own account")
	errCannotDisableOwnAccount = echo.NewHTTPError(http.StatusForbidden, "you cannot deactivate your own account")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.NotFoundError:
			code = http.StatusNotFound
			message = origErr.Error()
		case *core.PolicyError:
			code = http.StatusForbidden
			message = origErr.Error()
		case *core.InvalidSubmissionError:
			code = http.StatusUnprocessableEntity
			message = origErr.Error()
		default:
			switch errors.Cause(err) {
			case user.ErrInvalidCredentials:
				code, message = errAuthenticationFailed.Code, errAuthenticationFailed.Message
			case user.ErrAccountDeactivated:
				code, message = errAccountDeactivated.Code, errAccountDeactivated.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
					args = append(args, usr)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
