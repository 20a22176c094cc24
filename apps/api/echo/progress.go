package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core/progress"
)

type progressApi struct {
	svc      *progress.Service
	auth     *jwtAuth
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *jwtAuth, opts *Options) {
	api := progressApi{svc: opts.ProgressSvc, auth: auth, validate: opts.Validate}

	pg := g.Group("/progress", jwt, auth.studentMiddleware())
	pg.POST("/lessons/:id/update", api.updateLesson)
	pg.GET("/records", api.queryRecords)
	pg.GET("/streak", api.streak)
	pg.GET("/milestones", api.milestones)
	pg.GET("/subjects", api.subjects)
}

// Handlers

func (api *progressApi) updateLesson(ctx echo.Context) error {
	studentID, err := api.studentID(ctx)
	if err != nil {
		return err
	}
	lessonID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data progress.UpdateLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	rec, err := api.svc.UpdateLessonProgress(ctx.Request().Context(), studentID, lessonID, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) queryRecords(ctx echo.Context) error {
	studentID, err := api.studentID(ctx)
	if err != nil {
		return err
	}

	var filter progress.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)

	records, total, err := api.svc.FilterRecords(ctx.Request().Context(), studentID, filter, page)
	if err != nil {
		return errors.Wrap(err, "querying progress records")
	}
	if records == nil {
		records = []progress.Record{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, records))
}

func (api *progressApi) streak(ctx echo.Context) error {
	studentID, err := api.studentID(ctx)
	if err != nil {
		return err
	}
	streak, err := api.svc.GetStreak(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting streak")
	}
	return ctx.JSON(http.StatusOK, streak)
}

func (api *progressApi) milestones(ctx echo.Context) error {
	studentID, err := api.studentID(ctx)
	if err != nil {
		return err
	}
	milestones, err := api.svc.Milestones(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting milestones")
	}
	if milestones == nil {
		milestones = []progress.Milestone{}
	}
	return ctx.JSON(http.StatusOK, milestones)
}

func (api *progressApi) subjects(ctx echo.Context) error {
	studentID, err := api.studentID(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.SubjectProgress(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting subject progress")
	}
	if summary == nil {
		summary = []progress.SubjectProgress{}
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *progressApi) studentID(ctx echo.Context) (int, error) {
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID(), nil
}
