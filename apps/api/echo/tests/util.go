package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/learningcloud/backend/apps/api/echo"
	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/notification"
	"github.com/learningcloud/backend/core/progress"
	"github.com/learningcloud/backend/core/quiz"
	"github.com/learningcloud/backend/core/user"
	emailsvc "github.com/learningcloud/backend/services/email"
	"github.com/learningcloud/backend/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt", Code: "unauthorized"}

type testEnv struct {
	app Server
	db  *inmem.DB

	usrRepo     user.Repository
	usrSvc      *user.Service
	progressSvc *progress.Service
	notifSvc    *notification.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		TestMode: true,
		Env:      "TEST",
		AppName:  "LearningCloud",
		SecretKey: "test-secret",
		Timezone:  "UTC",
	}
	conf.Server.JWTExpirationDelta = 4 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 7 * 24 * time.Hour
	conf.RateLimit.Disable = true

	db, err := inmem.Open()
	if err != nil {
		t.Fatalf("inmem.Open() failed: %v", err)
	}

	logger := nopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrRepo := inmem.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, logger)
	contentSvc := content.NewService(inmem.NewContentRepository(db))
	notifSvc := notification.NewService(inmem.NewNotificationRepository(db), mailSvc, usrSvc, logger)
	progressSvc := progress.NewService(inmem.NewProgressRepository(db), notifSvc, logger, time.UTC)
	quizSvc := quiz.NewService(inmem.NewQuizRepository(db), progressSvc, notifSvc, logger)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	app := NewServer(
		&Options{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			DisableReqLogs:  true,
			UserSvc:         usrSvc,
			ContentSvc:      contentSvc,
			QuizSvc:         quizSvc,
			ProgressSvc:     progressSvc,
			NotificationSvc: notifSvc,
		},
	)
	return &testEnv{app: app, db: db, usrRepo: usrRepo, usrSvc: usrSvc, progressSvc: progressSvc, notifSvc: notifSvc}
}

func (env *testEnv) deactivate(t *testing.T, usr user.User) {
	t.Helper()
	usr.IsActive = false
	if _, err := env.usrRepo.UpdateUser(context.Background(), usr); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// seedStudent registers a student and logs them in, returning the user and token.
func (env *testEnv) seedStudent(t *testing.T, studentID, pin string, grade int) (user.User, string) {
	t.Helper()
	usr, err := env.usrSvc.RegisterStudent(context.Background(), user.NewStudent{
		FirstName: "Test", LastName: "Student", StudentID: studentID, PIN: pin, GradeLevel: grade,
	})
	if err != nil {
		t.Fatalf("RegisterStudent() failed: %v", err)
	}
	return usr, env.login(t, "/api/v1/auth/student-login", StudentLoginRequest{StudentID: studentID, PIN: pin})
}

// seedTeacher registers a teacher and logs them in.
func (env *testEnv) seedTeacher(t *testing.T, email, pwd string) (user.User, string) {
	t.Helper()
	usr, err := env.usrSvc.Register(context.Background(), user.NewUser{
		FirstName: "Test", LastName: "Teacher", Email: email, Role: user.RoleTeacher, Password: pwd,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return usr, env.login(t, "/api/v1/auth/teacher-login", EmailLoginRequest{Email: email, Password: pwd})
}

// seedParent registers a parent and logs them in.
func (env *testEnv) seedParent(t *testing.T, email, pwd string) (user.User, string) {
	t.Helper()
	usr, err := env.usrSvc.Register(context.Background(), user.NewUser{
		FirstName: "Test", LastName: "Parent", Email: email, Role: user.RoleParent, Password: pwd,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return usr, env.login(t, "/api/v1/auth/parent-login", EmailLoginRequest{Email: email, Password: pwd})
}

func (env *testEnv) login(t *testing.T, path string, creds interface{}) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, path, marchallObj(t, creds))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login via %s failed: code %d, body %s", path, rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling LoginResponse: %v", err)
	}
	return resp.Token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshalling response %q: %v", rec.Body.String(), err)
	}
}
