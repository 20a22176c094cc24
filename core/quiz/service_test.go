package quiz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/learningcloud/backend/core"
)

// fakeRepo is an in-memory Repository honoring the same atomicity
// contracts as the real stores.
type fakeRepo struct {
	mu        sync.Mutex
	quizzes   map[int]Quiz
	questions map[int][]Question // by quiz ID
	attempts  map[string]*Attempt
	answers   map[int]map[int]Answer // attempt ID -> question ID
	seq       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		quizzes:   make(map[int]Quiz),
		questions: make(map[int][]Question),
		attempts:  make(map[string]*Attempt),
		answers:   make(map[int]map[int]Answer),
	}
}

func (r *fakeRepo) FilterQuizzes(_ context.Context, _ QueryFilter, _ core.Pagination, _ []core.DBOrdering) ([]Quiz, int, error) {
	return nil, 0, nil
}

func (r *fakeRepo) GetQuizByID(_ context.Context, id int) (Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qz, ok := r.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return qz, nil
}

func (r *fakeRepo) QuizQuestions(_ context.Context, quizID int) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questions[quizID], nil
}

func (r *fakeRepo) CreateAttempt(_ context.Context, att Attempt) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.StudentID == att.StudentID && a.QuizID == att.QuizID && a.IsLive() {
			return Attempt{}, ErrActiveAttemptExists
		}
	}
	r.seq++
	att.ID = r.seq
	r.attempts[att.SessionKey] = &att
	return att, nil
}

func (r *fakeRepo) CountFinishedAttempts(_ context.Context, studentID, quizID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, a := range r.attempts {
		if a.StudentID == studentID && a.QuizID == quizID && !a.IsLive() {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) GetAttemptBySessionKey(_ context.Context, key string) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.attempts[key]
	if !ok {
		return Attempt{}, ErrSessionNotFound
	}
	return *att, nil
}

func (r *fakeRepo) FilterAttempts(_ context.Context, studentID int, _ AttemptFilter, _ core.Pagination) ([]Attempt, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var atts []Attempt
	for _, a := range r.attempts {
		if a.StudentID == studentID {
			atts = append(atts, *a)
		}
	}
	return atts, len(atts), nil
}

func (r *fakeRepo) MarkAttemptInProgress(_ context.Context, attemptID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ID == attemptID && a.Status == StatusStarted {
			a.Status = StatusInProgress
		}
	}
	return nil
}

func (r *fakeRepo) UpsertAnswer(_ context.Context, ans Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.answers[ans.AttemptID] == nil {
		r.answers[ans.AttemptID] = make(map[int]Answer)
	}
	r.answers[ans.AttemptID][ans.QuestionID] = ans
	return nil
}

func (r *fakeRepo) AttemptAnswers(_ context.Context, attemptID int) ([]Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var anss []Answer
	for _, a := range r.answers[attemptID] {
		anss = append(anss, a)
	}
	return anss, nil
}

func (r *fakeRepo) FinishAttempt(_ context.Context, att Attempt) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.attempts[att.SessionKey]
	if !ok || !stored.IsLive() {
		return Attempt{}, ErrSessionNotActive
	}
	*stored = att
	return att, nil
}

func (r *fakeRepo) StudentStats(_ context.Context, _ int) (StudentStats, error) {
	return StudentStats{}, nil
}

func (r *fakeRepo) QuizAnalytics(_ context.Context, _ int) (Analytics, error) {
	return Analytics{}, nil
}

type progressCall struct {
	studentID, lessonID, subjectID int
	score                          float64
	passed                         bool
}

type fakeProgress struct {
	mu    sync.Mutex
	calls []progressCall
}

func (p *fakeProgress) RecordQuizCompletion(_ context.Context, studentID, lessonID, subjectID int, score float64, passed bool, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, progressCall{studentID, lessonID, subjectID, score, passed})
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) NotifyQuizResult(_ context.Context, _ int, _ string, _ float64, _ bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeProgress, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	prog := &fakeProgress{}
	notif := &fakeNotifier{}
	svc := NewService(repo, prog, notif, nopLogger{})

	repo.quizzes[1] = Quiz{
		ID: 1, Title: "Fractions", LessonID: 10, SubjectID: 100, GradeLevel: 2,
		TimeLimit: 10, MaxAttempts: 2, PassingScore: 60, IsActive: true,
	}
	repo.questions[1] = []Question{
		{ID: 1, QuizID: 1, Type: QuestionTrueFalse, CorrectAnswer: "true", Points: 1, IsActive: true},
		{ID: 2, QuizID: 1, Type: QuestionMultipleChoice, CorrectAnswer: "B", Points: 1, IsActive: true},
		{ID: 3, QuizID: 1, Type: QuestionMultipleChoice, CorrectAnswer: "C", Points: 1, IsActive: true},
		{ID: 4, QuizID: 1, Type: QuestionFillInBlank, CorrectAnswer: "half", Points: 1, IsActive: true},
		{ID: 5, QuizID: 1, Type: QuestionTrueFalse, CorrectAnswer: "false", Points: 1, IsActive: true},
	}
	return svc, repo, prog, notif
}

func TestService_Start(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if started.SessionKey == "" {
		t.Error("Start() returned empty session key")
	}
	if started.TotalQuestions != 5 {
		t.Errorf("TotalQuestions = %d, want 5", started.TotalQuestions)
	}

	// a second live start must be rejected
	if _, err = svc.Start(ctx, 7, StartAttempt{QuizID: 1}); err != ErrActiveAttemptExists {
		t.Errorf("Start() error = %v, want ErrActiveAttemptExists", err)
	}

	// another student is unaffected
	if _, err = svc.Start(ctx, 8, StartAttempt{QuizID: 1}); err != nil {
		t.Errorf("Start() for another student error = %v", err)
	}

	// unknown quiz
	if _, err = svc.Start(ctx, 7, StartAttempt{QuizID: 99}); err != ErrNotFound {
		t.Errorf("Start() error = %v, want ErrNotFound", err)
	}
}

func TestService_Start_concurrent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case ErrActiveAttemptExists:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful starts = %d, want exactly 1", ok)
	}
	if dup != n-1 {
		t.Errorf("rejected starts = %d, want %d", dup, n-1)
	}
}

func TestService_Start_attemptLimit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	// exhaust MaxAttempts=2 with an abandon and a completion
	started, _ := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	if err := svc.Abandon(ctx, 7, started.SessionKey); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	started, _ = svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	if _, err := svc.Complete(ctx, 7, started.SessionKey); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if _, err := svc.Start(ctx, 7, StartAttempt{QuizID: 1}); err != ErrAttemptLimitExceeded {
		t.Errorf("Start() error = %v, want ErrAttemptLimitExceeded", err)
	}
}

func TestService_SubmitAnswer(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	started, _ := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	key := started.SessionKey

	res, err := svc.SubmitAnswer(ctx, 7, key, SubmitAnswer{QuestionID: 1, Answer: "true"})
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if !res.IsCorrect {
		t.Error("correct answer graded incorrect")
	}

	// first answer flips the session to IN_PROGRESS
	att, err := svc.GetSession(ctx, 7, key)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if att.Status != StatusInProgress {
		t.Errorf("Status = %s, want %s", att.Status, StatusInProgress)
	}

	// resubmission overwrites; last write wins
	res, err = svc.SubmitAnswer(ctx, 7, key, SubmitAnswer{QuestionID: 1, Answer: "false"})
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if res.IsCorrect {
		t.Error("wrong answer graded correct")
	}
	anss, _ := repo.AttemptAnswers(ctx, att.ID)
	if len(anss) != 1 {
		t.Fatalf("answers = %d, want 1", len(anss))
	}
	if anss[0].AnswerText != "false" || anss[0].IsCorrect {
		t.Errorf("stored answer = %+v, want last write", anss[0])
	}

	// unknown question
	if _, err = svc.SubmitAnswer(ctx, 7, key, SubmitAnswer{QuestionID: 42, Answer: "x"}); err != ErrQuestionNotFound {
		t.Errorf("SubmitAnswer() error = %v, want ErrQuestionNotFound", err)
	}

	// another student cannot write to this session
	if _, err = svc.SubmitAnswer(ctx, 8, key, SubmitAnswer{QuestionID: 1, Answer: "true"}); err != ErrSessionNotFound {
		t.Errorf("SubmitAnswer() error = %v, want ErrSessionNotFound", err)
	}
}

func TestService_Complete(t *testing.T) {
	svc, _, prog, notif := newTestService(t)
	ctx := context.Background()

	started, _ := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	key := started.SessionKey

	// 3 correct, 1 wrong, 1 unanswered -> 3/5 = 60.0, passing at 60
	answers := []SubmitAnswer{
		{QuestionID: 1, Answer: "true"},
		{QuestionID: 2, Answer: "b"},
		{QuestionID: 3, Answer: "c"},
		{QuestionID: 4, Answer: "wrong"},
	}
	for _, ans := range answers {
		if _, err := svc.SubmitAnswer(ctx, 7, key, ans); err != nil {
			t.Fatalf("SubmitAnswer(%d) error = %v", ans.QuestionID, err)
		}
	}

	res, err := svc.Complete(ctx, 7, key)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if res.Score != 60.0 {
		t.Errorf("Score = %v, want 60.0", res.Score)
	}
	if res.CorrectAnswers != 3 || res.TotalQuestions != 5 {
		t.Errorf("CorrectAnswers/TotalQuestions = %d/%d, want 3/5", res.CorrectAnswers, res.TotalQuestions)
	}
	if !res.IsPassed {
		t.Error("IsPassed = false, want true")
	}

	// idempotent: a second complete returns the stored result
	res2, err := svc.Complete(ctx, 7, key)
	if err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	if res2 != res {
		t.Errorf("second Complete() = %+v, want %+v", res2, res)
	}

	// downstream hooks fired exactly once
	if len(prog.calls) != 1 {
		t.Fatalf("progress calls = %d, want 1", len(prog.calls))
	}
	call := prog.calls[0]
	if call.studentID != 7 || call.lessonID != 10 || call.subjectID != 100 || call.score != 60.0 || !call.passed {
		t.Errorf("progress call = %+v", call)
	}
	if notif.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", notif.calls)
	}

	// writes after completion are rejected
	if _, err = svc.SubmitAnswer(ctx, 7, key, SubmitAnswer{QuestionID: 5, Answer: "false"}); err != ErrSessionNotActive {
		t.Errorf("SubmitAnswer() error = %v, want ErrSessionNotActive", err)
	}
}

func TestService_Complete_abandoned(t *testing.T) {
	svc, _, prog, _ := newTestService(t)
	ctx := context.Background()

	started, _ := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	if err := svc.Abandon(ctx, 7, started.SessionKey); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}

	if _, err := svc.Complete(ctx, 7, started.SessionKey); err != ErrSessionNotActive {
		t.Errorf("Complete() error = %v, want ErrSessionNotActive", err)
	}
	if err := svc.Abandon(ctx, 7, started.SessionKey); err != ErrSessionNotActive {
		t.Errorf("second Abandon() error = %v, want ErrSessionNotActive", err)
	}
	if len(prog.calls) != 0 {
		t.Errorf("progress calls = %d, want 0 for abandoned attempt", len(prog.calls))
	}
}

func TestService_sessionExpiry(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	started, _ := svc.Start(ctx, 7, StartAttempt{QuizID: 1})
	key := started.SessionKey
	if _, err := svc.SubmitAnswer(ctx, 7, key, SubmitAnswer{QuestionID: 1, Answer: "true"}); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	// past the 10 min time limit
	svc.now = func() time.Time { return base.Add(11 * time.Minute) }

	if _, err := svc.SubmitAnswer(ctx, 7, key, SubmitAnswer{QuestionID: 2, Answer: "b"}); err != ErrSessionExpired {
		t.Fatalf("SubmitAnswer() error = %v, want ErrSessionExpired", err)
	}

	// the expired session was auto-completed with the recorded answers
	att, err := svc.GetSession(ctx, 7, key)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if att.Status != StatusCompleted {
		t.Errorf("Status = %s, want %s", att.Status, StatusCompleted)
	}
	if att.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", att.CorrectAnswers)
	}
	// time spent capped at the limit
	if want := 10 * 60; att.TimeSpent != want {
		t.Errorf("TimeSpent = %d, want %d", att.TimeSpent, want)
	}
}

func TestService_GetSession_lazyExpiry(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	started, _ := svc.Start(ctx, 7, StartAttempt{QuizID: 1})

	svc.now = func() time.Time { return base.Add(time.Hour) }

	att, err := svc.GetSession(ctx, 7, started.SessionKey)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if att.Status != StatusCompleted {
		t.Errorf("Status = %s, want %s", att.Status, StatusCompleted)
	}
	if att.Score != 0 {
		t.Errorf("Score = %v, want 0 with no answers", att.Score)
	}
}
