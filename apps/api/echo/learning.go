package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
)

type learningApi struct {
	usrSvc *user.Service
	svc    *progress.Service
}

func registerLearningAPI(authed *echo.Group, deps ServerDeps) {
	api := learningApi{usrSvc: deps.UserSvc, svc: deps.ProgressSvc}

	fg := authed.Group("/formations", passwordChangedMiddleware)
	fg.GET("", api.dashboard)
	fg.GET("/:fid", api.formation)
	fg.GET("/:fid/courses/:cid", api.course)
	fg.POST("/:fid/courses/:cid/complete", api.completeCourse)
	fg.GET("/:fid/parts/:pid/exam", api.exam)
	fg.POST("/:fid/parts/:pid/exam", api.submitExam)

	mg := authed.Group("/me", passwordChangedMiddleware)
	mg.GET("/profile", api.profile)
	mg.GET("/progress", api.overallProgress)
	mg.GET("/report", api.report)
	mg.GET("/certificates", api.certificates)
	mg.GET("/certificates/:pid", api.certificate)
}

type (
	// AnswersRequest carries quick test or exam answers: question ID => option index.
	AnswersRequest struct {
		Answers catalog.Answers `json:"answers"`
	}

	OverallProgressResponse struct {
		Progress int `json:"progress"`
	}
)

func (api *learningApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	summaries, err := api.svc.Dashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *learningApi) formation(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	fid, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	view, err := api.svc.Formation(ctx.Request().Context(), usr, fid)
	if err != nil {
		return errors.Wrap(err, "building formation view")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *learningApi) course(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	fid, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	cid, err := intParam(ctx, "cid")
	if err != nil {
		return err
	}
	detail, err := api.svc.Course(ctx.Request().Context(), usr, fid, cid)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, detail)
}

// completeCourse accepts an empty body for courses without a quick test.
func (api *learningApi) completeCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	fid, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	cid, err := intParam(ctx, "cid")
	if err != nil {
		return err
	}
	var data AnswersRequest
	if err = bind(ctx, &data); err != nil {
		return err
	}

	fp, err := api.svc.CompleteCourse(ctx.Request().Context(), usr, fid, cid, data.Answers)
	if err != nil {
		return errors.Wrap(err, "completing course")
	}
	return ctx.JSON(http.StatusOK, fp)
}

func (api *learningApi) exam(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	fid, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	pid, err := intParam(ctx, "pid")
	if err != nil {
		return err
	}
	exam, err := api.svc.Exam(ctx.Request().Context(), usr, fid, pid)
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, exam)
}

func (api *learningApi) submitExam(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	fid, err := intParam(ctx, "fid")
	if err != nil {
		return err
	}
	pid, err := intParam(ctx, "pid")
	if err != nil {
		return err
	}
	var data AnswersRequest
	if err = bind(ctx, &data); err != nil {
		return err
	}

	result, err := api.svc.SubmitExam(ctx.Request().Context(), usr, fid, pid, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting exam")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *learningApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	p, err := api.svc.Profile(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *learningApi) overallProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	pct, err := api.svc.OverallProgress(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}
	return ctx.JSON(http.StatusOK, OverallProgressResponse{Progress: pct})
}

func (api *learningApi) report(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	reports, err := api.svc.Report(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *learningApi) certificates(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	certs, err := api.svc.Certificates(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *learningApi) certificate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	pid, err := intParam(ctx, "pid")
	if err != nil {
		return err
	}
	cert, err := api.svc.Certificate(ctx.Request().Context(), usr, pid)
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
