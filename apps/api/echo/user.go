package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/user"
)

type userApi struct {
	svc        *user.Service
	auth       *jwtAuth
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *jwtAuth, opts *Options) {
	api := userApi{
		svc:        opts.UserSvc,
		auth:       auth,
		validate:   opts.Validate,
		translator: opts.Translator,
	}

	ag := g.Group("/auth")
	if !opts.Conf.RateLimit.Disable {
		ag.Use(rateLimitMiddleware(opts.RateLimiter, opts.Logger, "auth", opts.Conf.RateLimit.AuthPerMinute, time.Minute))
	}

	// un-authed endpoints
	ag.POST("/student-login", api.studentLogin)
	ag.POST("/teacher-login", api.teacherLogin)
	ag.POST("/parent-login", api.parentLogin)
	ag.POST("/register-student", api.registerStudent)
	ag.POST("/register", api.register)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.POST("/logout", api.logout, jwt)

	ug := g.Group("/users", jwt)
	ug.GET("/me", api.me)
	ug.PUT("/me", api.updateMe)
	ug.PUT("/me/password", api.changePassword)
	ug.PUT("/me/pin", api.changePIN)
	ug.GET("", api.query, auth.teacherMiddleware())
}

// Handlers

func (api *userApi) studentLogin(ctx echo.Context) error {
	var data StudentLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.AuthenticateStudent(ctx.Request().Context(), data.StudentID, data.PIN)
	return api.finishLogin(ctx, usr, err, data.StudentID)
}

func (api *userApi) teacherLogin(ctx echo.Context) error {
	var data EmailLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.AuthenticateTeacher(ctx.Request().Context(), data.Email, data.Password)
	return api.finishLogin(ctx, usr, err, data.Email)
}

func (api *userApi) parentLogin(ctx echo.Context) error {
	var data EmailLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.AuthenticateParent(ctx.Request().Context(), data.Email, data.Password)
	return api.finishLogin(ctx, usr, err, data.Email)
}

// finishLogin tracks the attempt and issues a token pair on success.
func (api *userApi) finishLogin(ctx echo.Context, usr user.User, authErr error, username string) error {
	reqCtx := ctx.Request().Context()
	if authErr != nil {
		if errors.Cause(authErr) == user.ErrInvalidCredentials {
			api.svc.TrackLoginAttempt(reqCtx, username, ctx.RealIP(), false, authErr.Error())
			return user.ErrInvalidCredentials
		}
		return errors.Wrap(authErr, "authenticating")
	}
	api.svc.TrackLoginAttempt(reqCtx, username, ctx.RealIP(), true, "")

	claims := api.auth.claimsFor(usr)
	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	refresh, err := api.auth.generateRefreshToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating refresh token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, RefreshToken: refresh, User: usr})
}

func (api *userApi) registerStudent(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.RegisterStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	claims, err := api.auth.refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	refresh, err := api.auth.generateRefreshToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating refresh token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token, RefreshToken: refresh})
}

// logout is stateless; tokens expire on their own. The call is kept so
// clients have a single audit point for session termination.
func (api *userApi) logout(ctx echo.Context) error {
	if claims, err := api.auth.getContextClaims(ctx); err == nil {
		api.svc.TrackLoginAttempt(ctx.Request().Context(), claims.Subject, ctx.RealIP(), true, "logout")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out."})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate, usr); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password changed."})
}

func (api *userApi) changePIN(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ChangePIN
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePIN")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.ChangePIN(ctx.Request().Context(), usr, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "PIN changed."})
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "id", "first_name", "last_name", "created_at", "last_login")

	users, total, err := api.svc.Filter(ctx.Request().Context(), filter, page, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, users))
}

type (
	StudentLoginRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		PIN       string `json:"pin" validate:"required"`
	}

	EmailLoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token        string    `json:"token"`
		RefreshToken string    `json:"refresh_token"`
		User         user.User `json:"user"`
	}

	TokenResponse struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *StudentLoginRequest) Validate(validate *validator.Validate) error {
	lr.StudentID = core.CleanString(lr.StudentID, true /* lower */)
	return validate.Struct(lr)
}

func (lr *EmailLoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
