package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core/catalog"
)

type catalogApi struct {
	svc      *catalog.Service
	validate *validator.Validate
}

// registerCatalogAPI exposes content management to administrators and trainers.
// Responses include the expected answers.
func registerCatalogAPI(authed *echo.Group, deps ServerDeps) {
	api := catalogApi{svc: deps.CatalogSvc, validate: deps.Validate}

	g := authed.Group("/catalog", passwordChangedMiddleware, contentManagerMiddleware)
	g.GET("/formations", api.queryFormations)
	g.POST("/formations", api.createFormation)
	g.GET("/formations/:fid", api.retrieveFormation)
	g.PUT("/formations/:fid", api.updateFormation)
	g.DELETE("/formations/:fid", api.destroyFormation)
	g.POST("/formations/:fid/parts", api.createPart)

	g.PUT("/parts/:pid", api.updatePart)
	g.DELETE("/parts/:pid", api.destroyPart)
	g.POST("/parts/:pid/courses", api.createCourse)

	g.GET("/courses/:cid", api.retrieveCourse)
	g.PUT("/courses/:cid", api.updateCourse)
	g.DELETE("/courses/:cid", api.destroyCourse)

	g.GET("/exams/:eid", api.retrieveExam)
	g.PUT("/exams/:eid", api.updateExam)
}

func (api *catalogApi) queryFormations(ctx echo.Context) error {
	formations, err := api.svc.QueryFormations(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying formations")
	}
	return ctx.JSON(http.StatusOK, formations)
}

func (api *catalogApi) createFormation(ctx echo.Context) error {
	var data catalog.FormationInput
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	f, err := api.svc.CreateFormation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating formation")
	}
	return ctx.JSON(http.StatusCreated, f)
}

// retrieveFormation returns the whole formation tree.
func (api *catalogApi) retrieveFormation(ctx echo.Context) error {
	id, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	fd, err := api.svc.Detail(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "loading formation")
	}
	return ctx.JSON(http.StatusOK, fd)
}

func (api *catalogApi) updateFormation(ctx echo.Context) error {
	id, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	var data catalog.FormationInput
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	f, err := api.svc.UpdateFormation(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating formation")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *catalogApi) destroyFormation(ctx echo.Context) error {
	id, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteFormation(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting formation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) createPart(ctx echo.Context) error {
	fid, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	var data catalog.PartInput
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	pd, err := api.svc.CreatePart(ctx.Request().Context(), fid, data)
	if err != nil {
		return errors.Wrap(err, "creating part")
	}
	return ctx.JSON(http.StatusCreated, pd)
}

func (api *catalogApi) updatePart(ctx echo.Context) error {
	id, err := intParam(ctx, "pid")
	if err != nil {
		return err
	}
	var data catalog.PartInput
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.UpdatePart(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating part")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *catalogApi) destroyPart(ctx echo.Context) error {
	id, err := intParam(ctx, "pid")
	if err != nil {
		return err
	}
	if err = api.svc.DeletePart(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting part")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) createCourse(ctx echo.Context) error {
	pid, err := intParam(ctx, "pid")
	if err != nil {
		return err
	}
	var data catalog.CourseInput
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.CreateCourse(ctx.Request().Context(), pid, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	id, err := intParam(ctx, "cid")
	if err != nil {
		return err
	}
	c, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) updateCourse(ctx echo.Context) error {
	id, err := intParam(ctx, "cid")
	if err != nil {
		return err
	}
	var data catalog.CourseInput
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.UpdateCourse(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	id, err := intParam(ctx, "cid")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) retrieveExam(ctx echo.Context) error {
	id, err := intParam(ctx, "eid")
	if err != nil {
		return err
	}
	e, err := api.svc.GetExam(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *catalogApi) updateExam(ctx echo.Context) error {
	id, err := intParam(ctx, "eid")
	if err != nil {
		return err
	}
	var data catalog.ExamInput
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.UpdateExam(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}
