package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/learningcloud/backend/apps/api/echo"
	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/notification"
	"github.com/learningcloud/backend/core/progress"
	"github.com/learningcloud/backend/core/quiz"
	"github.com/learningcloud/backend/core/user"
	emailsvc "github.com/learningcloud/backend/services/email"
	logsvc "github.com/learningcloud/backend/services/logger"
	ratelimitsvc "github.com/learningcloud/backend/services/ratelimit"
	"github.com/learningcloud/backend/storage/database"
	"github.com/learningcloud/backend/storage/database/sqlxrepos"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.IsProd() {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var limiter core.RateLimiter
	if conf.Redis.Addr != "" {
		limiter = ratelimitsvc.NewRedisLimiter(conf)
	} else {
		limiter = ratelimitsvc.NewMemoryLimiter()
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), logger)
	contentSvc := content.NewService(sqlxrepos.NewContentRepository(db))
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), mailSvc, usrSvc, logger)
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), notifSvc, logger, conf.Location())
	quizSvc := quiz.NewService(sqlxrepos.NewQuizRepository(db), progressSvc, notifSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:         conf.ServerAddress(),
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			Shutdown:        shutdown,
			RateLimiter:     limiter,
			UserSvc:         usrSvc,
			ContentSvc:      contentSvc,
			QuizSvc:         quizSvc,
			ProgressSvc:     progressSvc,
			NotificationSvc: notifSvc,
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API server listening on %s", conf.ServerAddress()))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
