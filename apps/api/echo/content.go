package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core/content"
)

type contentApi struct {
	svc *content.Service
}

// The subject list is public for browsing; chapters and lessons need a login.
func registerContentAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := contentApi{svc: opts.ContentSvc}

	g.GET("/subjects", api.querySubjects)
	g.GET("/subjects/:id", api.getSubject)
	g.GET("/chapters", api.queryChapters, jwt)
	g.GET("/chapters/:id", api.getChapter, jwt)
	g.GET("/lessons", api.queryLessons, jwt)
	g.GET("/lessons/:id", api.getLesson, jwt)
}

// Handlers

func (api *contentApi) querySubjects(ctx echo.Context) error {
	var filter content.SubjectFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to SubjectFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "id", "name", "grade_level", "display_order")

	subjects, total, err := api.svc.FilterSubjects(ctx.Request().Context(), filter, page, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []content.Subject{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, subjects))
}

func (api *contentApi) getSubject(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	subject, err := api.svc.GetSubject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *contentApi) queryChapters(ctx echo.Context) error {
	var filter content.ChapterFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ChapterFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "id", "title", "display_order")

	chapters, total, err := api.svc.FilterChapters(ctx.Request().Context(), filter, page, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying chapters")
	}
	if chapters == nil {
		chapters = []content.Chapter{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, chapters))
}

func (api *contentApi) getChapter(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	chapter, err := api.svc.GetChapter(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting chapter")
	}
	return ctx.JSON(http.StatusOK, chapter)
}

func (api *contentApi) queryLessons(ctx echo.Context) error {
	var filter content.LessonFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to LessonFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "id", "title", "display_order")

	lessons, total, err := api.svc.FilterLessons(ctx.Request().Context(), filter, page, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []content.Lesson{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, lessons))
}

func (api *contentApi) getLesson(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	lesson, err := api.svc.GetLesson(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, lesson)
}
