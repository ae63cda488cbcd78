package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
)

const msgJWTInvalid = "invalid or expired jwt"

var (
	errJWTMissing    = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errHTTPForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	notFoundErrors = []struct {
		err     error
		message string
	}{
		{school.ErrNotFound, "School not found"},
		{school.ErrAddressNotFound, "Address not found"},
		{user.ErrNotFound, "User not found"},
		{location.ErrCityNotFound, "City not found"},
	}
)

// notFoundMessage returns the message of a not found error cause.
func notFoundMessage(cause error) (string, bool) {
	for _, nf := range notFoundErrors {
		if cause == nf.err {
			return nf.message, true
		}
	}
	return "", false
}

// operationError is a server error reported to the client with a fixed message.
type operationError struct {
	message string
	err     error
}

func (e *operationError) Error() string {
	return e.message + ": " + e.err.Error()
}

func (e *operationError) Cause() error  { return e.err }
func (e *operationError) Unwrap() error { return e.err }

// failed reports err as a server error with message, unless err is a client error.
func failed(message string, err error) error {
	if isClientError(err) {
		return err
	}
	return &operationError{message: message, err: err}
}

func isClientError(err error) bool {
	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError, validator.ValidationErrors, *core.ValidationError, *core.ConflictError:
		return true
	default:
		_, ok := notFoundMessage(cause)
		return ok
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if msg, ok := notFoundMessage(cause); ok {
			code = http.StatusNotFound
			message = msg
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
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
					fld := fieldName(vErr)
					if _, ok := fldErrs[fld]; !ok {
						fldErrs[fld] = vErr.Translate(translator)
					}
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						if _, ok := fldErrs[fErr.Field]; !ok {
							fldErrs[fErr.Field] = fErr.Error
						}
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			case *core.ConflictError:
				code = http.StatusConflict
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				var opErr *operationError
				if errors.As(err, &opErr) {
					msg = opErr.message
				}
				message = msg

				var actor core.Actor
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					actor = claims.actor()
				}
				logger.Error(msg, errors.Wrap(err, msg), actor)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
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

// fieldName returns the JSON path of the field, without the top-level struct: "principal.email".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
