package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/notification"
	"github.com/learningcloud/backend/core/progress"
	"github.com/learningcloud/backend/core/quiz"
	"github.com/learningcloud/backend/core/user"
)

type (
	Options struct {
		Address        string
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		// Shutdown receives SIGTERM when an unrecoverable error is caught.
		Shutdown chan<- os.Signal

		RateLimiter     core.RateLimiter
		UserSvc         *user.Service
		ContentSvc      *content.Service
		QuizSvc         *quiz.Service
		ProgressSvc     *progress.Service
		NotificationSvc *notification.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
		auth *jwtAuth
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
		auth: newJWTAuth(opts.Conf),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/api/v1")
	if !conf.RateLimit.Disable {
		v1.Use(rateLimitMiddleware(s.opts.RateLimiter, s.opts.Logger, "general", conf.RateLimit.PerHour, time.Hour))
	}
	jwt := middleware.JWTWithConfig(s.auth.middleware)

	registerUserAPI(v1, jwt, s.auth, s.opts)
	registerContentAPI(v1, jwt, s.opts)
	registerQuizAPI(v1, jwt, s.auth, s.opts)
	registerProgressAPI(v1, jwt, s.auth, s.opts)
	registerNotificationAPI(v1, jwt, s.auth, s.opts)
}

// signalShutdown tells the app to initiate a graceful shutdown.
func (s *server) signalShutdown() {
	if s.opts.Shutdown != nil {
		s.opts.Shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to LearningCloud API!")
}
