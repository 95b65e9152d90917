package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/eligue/academy/core/user"
)

// activeUserMiddleware loads the authenticated user on every request, so deactivation
// and role changes apply to tokens already issued.
func activeUserMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}

// passwordChangedMiddleware blocks users holding a temporary password.
func passwordChangedMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if usr, ok := ctx.Get(contextUserKey).(user.User); ok && usr.MustChangePassword {
			return errPasswordChangeRequired
		}
		return next(ctx)
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if usr, ok := ctx.Get(contextUserKey).(user.User); ok && usr.IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// contentManagerMiddleware lets administrators and trainers through.
func contentManagerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if usr, ok := ctx.Get(contextUserKey).(user.User); ok && usr.CanManageContent() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}
