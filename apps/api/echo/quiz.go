package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/quiz"
)

type quizApi struct {
	svc      *quiz.Service
	auth     *jwtAuth
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *jwtAuth, opts *Options) {
	api := quizApi{svc: opts.QuizSvc, auth: auth, validate: opts.Validate}

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.query)
	qg.GET("/stats", api.stats, auth.studentMiddleware())
	qg.GET("/attempts", api.queryAttempts, auth.studentMiddleware())
	qg.POST("/attempts/start", api.start, auth.studentMiddleware())
	qg.GET("/:id", api.get)
	qg.GET("/:id/questions", api.questions)
	qg.GET("/:id/analytics", api.analytics, auth.teacherMiddleware())

	sg := g.Group("/sessions", jwt, auth.studentMiddleware())
	sg.GET("/:key", api.getSession)
	sg.POST("/:key/submit-answer", api.submitAnswer)
	sg.POST("/:key/complete", api.complete)
	sg.POST("/:key/abandon", api.abandon)
}

// Handlers

func (api *quizApi) query(ctx echo.Context) error {
	var filter quiz.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "id", "title", "created_at")

	quizzes, total, err := api.svc.Filter(ctx.Request().Context(), filter, page, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, quizzes))
}

func (api *quizApi) get(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	qz, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) questions(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	questions, err := api.svc.Questions(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting quiz questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) start(ctx echo.Context) error {
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return err
	}
	studentID := claims.UserID()

	var data quiz.StartAttempt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartAttempt")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	started, err := api.svc.Start(ctx.Request().Context(), studentID, data)
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, started)
}

func (api *quizApi) queryAttempts(ctx echo.Context) error {
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return err
	}
	studentID := claims.UserID()

	var filter quiz.AttemptFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to AttemptFilter")
	}
	filter.Status = strings.ToUpper(core.CleanString(filter.Status))
	page := bindPagination(ctx)

	attempts, total, err := api.svc.FilterAttempts(ctx.Request().Context(), studentID, filter, page)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, attempts))
}

func (api *quizApi) stats(ctx echo.Context) error {
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.StudentStats(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return errors.Wrap(err, "getting student stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *quizApi) analytics(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	analytics, err := api.svc.Analytics(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting quiz analytics")
	}
	return ctx.JSON(http.StatusOK, analytics)
}

func (api *quizApi) getSession(ctx echo.Context) error {
	studentID, key, err := api.sessionParams(ctx)
	if err != nil {
		return err
	}
	att, err := api.svc.GetSession(ctx.Request().Context(), studentID, key)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *quizApi) submitAnswer(ctx echo.Context) error {
	studentID, key, err := api.sessionParams(ctx)
	if err != nil {
		return err
	}

	var data quiz.SubmitAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAnswer")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.SubmitAnswer(ctx.Request().Context(), studentID, key, data)
	if err != nil {
		return errors.Wrap(err, "submitting answer")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) complete(ctx echo.Context) error {
	studentID, key, err := api.sessionParams(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Complete(ctx.Request().Context(), studentID, key)
	if err != nil {
		return errors.Wrap(err, "completing attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) abandon(ctx echo.Context) error {
	studentID, key, err := api.sessionParams(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Abandon(ctx.Request().Context(), studentID, key); err != nil {
		return errors.Wrap(err, "abandoning attempt")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Attempt abandoned."})
}

func (api *quizApi) sessionParams(ctx echo.Context) (studentID int, key string, err error) {
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return 0, "", err
	}
	studentID = claims.UserID()
	key = core.CleanString(ctx.Param("key"))
	if key == "" {
		return 0, "", errHttpNotFound
	}
	return studentID, key, nil
}
