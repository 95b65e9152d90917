package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	conf        *core.Config
	svc         *user.Service
	catalogSvc  *catalog.Service
	progressSvc *progress.Service
	validate    *validator.Validate
}

func registerUserAPI(v1, authed *echo.Group, deps ServerDeps) {
	api := userApi{
		conf:        deps.Conf,
		svc:         deps.UserSvc,
		catalogSvc:  deps.CatalogSvc,
		progressSvc: deps.ProgressSvc,
		validate:    deps.Validate,
	}

	// un-authed endpoints
	// TODO: rate limit `/login` per client IP
	v1.POST("/users/login", api.login)

	// authed endpoints, available with a temporary password
	me := authed.Group("/users/me")
	me.GET("", api.retrieveMe)
	me.POST("/token-refresh", api.refreshToken)
	me.POST("/password", api.changePassword)
	me.POST("/password-force", api.forcePasswordChange)

	// administration
	ag := authed.Group("/users", passwordChangedMiddleware, adminMiddleware)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.DELETE("", api.destroyMultiple)
	ag.GET("/roles", api.queryRoles)

	dg := ag.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/toggle-active", api.toggleActive)
	dg.PUT("/formations", api.assignFormations)
	dg.GET("/report", api.report)
	dg.DELETE("/progress", api.resetProgress)
}

// objectMiddleware loads the user named in the path as "object".
func (api *userApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := intParam(ctx, "id")
		if err != nil {
			return err
		}
		usr, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding user by ID")
		}
		ctx.Set("object", usr)
		return next(ctx)
	}
}

func ctxObject(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return user.User{}, errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return usr, nil
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials:
			return errAuthenticationFailed
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) retrieveMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}

	ok, err := api.svc.ChangePassword(ctx.Request().Context(), usr.ID, data.CurrentPassword, data.NewPassword)
	if err != nil {
		return errors.Wrap(err, "changing password")
	}
	if !ok {
		return errWrongCurrentPassword
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password changed."})
}

// forcePasswordChange replaces the temporary password given by an administrator.
func (api *userApi) forcePasswordChange(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if !usr.MustChangePassword {
		return errHttpForbidden
	}
	var data user.ForcePasswordChange
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}

	if usr, err = api.svc.ForceChangePassword(ctx.Request().Context(), usr.ID, data.NewPassword); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.AllRoles)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}
	if err := api.catalogSvc.CheckFormationsExist(ctx.Request().Context(), data.AssignedFormationIDs...); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}
	if err = api.catalogSvc.CheckFormationsExist(ctx.Request().Context(), data.AssignedFormationIDs...); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID && data.IsActive != nil && !*data.IsActive {
		return errCannotDisableOwnAccount
	}

	if usr, err = api.svc.Update(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) toggleActive(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errCannotDisableOwnAccount
	}
	if usr, err = api.svc.ToggleActive(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "toggling user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) assignFormations(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	var data AssignFormationsRequest
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = api.catalogSvc.CheckFormationsExist(ctx.Request().Context(), data.FormationIDs...); err != nil {
		return err
	}
	if usr, err = api.svc.AssignFormations(ctx.Request().Context(), usr.ID, data.FormationIDs); err != nil {
		return errors.Wrap(err, "assigning formations")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) report(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	reports, err := api.progressSvc.Report(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *userApi) resetProgress(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	if err = api.progressSvc.Reset(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "resetting progress")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := ctxObject(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errCannotDeleteOwnAccount
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errHttpBadRequest
	}
	if len(query.IDs) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if core.ContainsInt(query.IDs, ctxUsr.ID) {
		return errCannotDeleteOwnAccount
	}

	if err = api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user,omitempty"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	AssignFormationsRequest struct {
		FormationIDs []int `json:"formation_ids"`
	}

	DestroyMultipleRequest struct {
		IDs []int `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
