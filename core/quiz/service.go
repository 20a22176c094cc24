package quiz

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
)

var (
	ErrNotFound             = errors.New("quiz not found")
	ErrSessionNotFound      = errors.New("active quiz session not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAttemptLimitExceeded = errors.New("maximum number of attempts reached for this quiz")
	ErrActiveAttemptExists  = errors.New("an active quiz session already exists; complete or abandon it first")
	ErrSessionNotActive     = errors.New("quiz session is no longer active")
	ErrSessionExpired       = errors.New("quiz session has expired")
)

type (
	Repository interface {
		FilterQuizzes(ctx context.Context, filter QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]Quiz, int, error)
		GetQuizByID(ctx context.Context, id int) (Quiz, error)
		// QuizQuestions returns the quiz's active questions ordered by order index.
		QuizQuestions(ctx context.Context, quizID int) ([]Question, error)

		// CreateAttempt atomically checks-and-inserts a live attempt; it fails
		// with ErrActiveAttemptExists when the (student, quiz) pair already
		// holds one. Exactly one of two concurrent calls may succeed.
		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		// CountFinishedAttempts counts COMPLETED + ABANDONED attempts of the pair.
		CountFinishedAttempts(ctx context.Context, studentID, quizID int) (int, error)
		GetAttemptBySessionKey(ctx context.Context, key string) (Attempt, error)
		FilterAttempts(ctx context.Context, studentID int, filter AttemptFilter, page core.Pagination) ([]Attempt, int, error)

		// MarkAttemptInProgress flips STARTED to IN_PROGRESS; a no-op otherwise.
		MarkAttemptInProgress(ctx context.Context, attemptID int) error
		// UpsertAnswer records or overwrites the answer for (attempt, question);
		// last write wins.
		UpsertAnswer(ctx context.Context, ans Answer) error
		AttemptAnswers(ctx context.Context, attemptID int) ([]Answer, error)
		// FinishAttempt transitions a live attempt to its terminal state with a
		// compare-and-set on the status column; it fails with
		// ErrSessionNotActive when the attempt is already terminal.
		FinishAttempt(ctx context.Context, att Attempt) (Attempt, error)

		StudentStats(ctx context.Context, studentID int) (StudentStats, error)
		QuizAnalytics(ctx context.Context, quizID int) (Analytics, error)
	}

	// ProgressRecorder receives quiz-completion events downstream.
	ProgressRecorder interface {
		RecordQuizCompletion(ctx context.Context, studentID, lessonID, subjectID int, score float64, passed bool, at time.Time) error
	}

	// Notifier dispatches quiz-result notifications; delivery is best-effort.
	Notifier interface {
		NotifyQuizResult(ctx context.Context, studentID int, quizTitle string, score float64, passed bool)
	}

	Service struct {
		repo     Repository
		progress ProgressRecorder
		notifier Notifier
		log      core.Logger
		now      func() time.Time // mockable clock
	}
)

func NewService(repo Repository, progress ProgressRecorder, notifier Notifier, log core.Logger) *Service {
	return &Service{
		repo:     repo,
		progress: progress,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]Quiz, int, error) {
	return svc.repo.FilterQuizzes(ctx, filter, page, ord)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Quiz, error) {
	qz, err := svc.repo.GetQuizByID(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	if !qz.IsActive {
		return Quiz{}, ErrNotFound
	}
	return qz, nil
}

// Questions returns the quiz's question set without answer keys.
func (svc *Service) Questions(ctx context.Context, quizID int) ([]Question, error) {
	if _, err := svc.GetByID(ctx, quizID); err != nil {
		return nil, err
	}
	return svc.repo.QuizQuestions(ctx, quizID)
}

// Start opens a new attempt for (student, quiz).
//
// It fails with ErrAttemptLimitExceeded when the student already holds
// MaxAttempts finished attempts, and with ErrActiveAttemptExists when an
// unfinished session exists for the pair; the latter is enforced atomically
// at the storage layer so two concurrent starts yield exactly one success.
func (svc *Service) Start(ctx context.Context, studentID int, data StartAttempt) (StartedAttempt, error) {
	qz, err := svc.GetByID(ctx, data.QuizID)
	if err != nil {
		return StartedAttempt{}, err
	}

	finished, err := svc.repo.CountFinishedAttempts(ctx, studentID, qz.ID)
	if err != nil {
		return StartedAttempt{}, pkgerrors.Wrap(err, "counting finished attempts")
	}
	if qz.MaxAttempts > 0 && finished >= qz.MaxAttempts {
		return StartedAttempt{}, ErrAttemptLimitExceeded
	}

	questions, err := svc.repo.QuizQuestions(ctx, qz.ID)
	if err != nil {
		return StartedAttempt{}, pkgerrors.Wrap(err, "loading questions")
	}

	att := Attempt{
		StudentID:      studentID,
		QuizID:         qz.ID,
		SessionKey:     uuid.New().String(),
		Status:         StatusStarted,
		TotalQuestions: len(questions),
		StartedAt:      svc.now(),
	}
	if att, err = svc.repo.CreateAttempt(ctx, att); err != nil {
		return StartedAttempt{}, err
	}

	return StartedAttempt{
		SessionKey:     att.SessionKey,
		TotalQuestions: att.TotalQuestions,
		TimeLimit:      qz.TimeLimit,
		StartedAt:      att.StartedAt,
	}, nil
}

// SubmitAnswer records or overwrites the student's answer for one question
// within a live session; submissions are applied in arrival order and the
// last write wins per question.
//
// An expired session is auto-completed with whatever answers were recorded
// and the submission is rejected with ErrSessionExpired.
func (svc *Service) SubmitAnswer(ctx context.Context, studentID int, sessionKey string, data SubmitAnswer) (SubmitResult, error) {
	att, qz, err := svc.liveAttempt(ctx, studentID, sessionKey)
	if err != nil {
		return SubmitResult{}, err
	}

	question, err := svc.findQuestion(ctx, qz.ID, data.QuestionID)
	if err != nil {
		return SubmitResult{}, err
	}

	now := svc.now()
	isCorrect := gradeAnswer(question, data.Answer)
	ans := Answer{
		AttemptID:  att.ID,
		QuestionID: question.ID,
		AnswerText: data.Answer,
		IsCorrect:  isCorrect,
		TimeSpent:  data.TimeSpent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if isCorrect {
		ans.PointsEarned = float64(question.Points)
	}
	if err = svc.repo.UpsertAnswer(ctx, ans); err != nil {
		return SubmitResult{}, pkgerrors.Wrap(err, "recording answer")
	}

	if att.Status == StatusStarted {
		if err = svc.repo.MarkAttemptInProgress(ctx, att.ID); err != nil {
			return SubmitResult{}, pkgerrors.Wrap(err, "marking attempt in progress")
		}
	}

	res := SubmitResult{IsCorrect: isCorrect}
	if isCorrect {
		res.Explanation = question.Explanation
	}
	return res, nil
}

// Complete finishes a live session: score = correct/total × 100, unanswered
// questions count as incorrect, pass is decided against the quiz's passing
// score. Idempotent: completing an already-completed session returns the
// stored result without recomputation.
func (svc *Service) Complete(ctx context.Context, studentID int, sessionKey string) (Result, error) {
	att, err := svc.repo.GetAttemptBySessionKey(ctx, sessionKey)
	if err != nil {
		return Result{}, err
	}
	if att.StudentID != studentID {
		return Result{}, ErrSessionNotFound
	}
	if att.Status == StatusCompleted {
		return resultOf(att), nil
	}
	if att.Status == StatusAbandoned {
		return Result{}, ErrSessionNotActive
	}

	qz, err := svc.repo.GetQuizByID(ctx, att.QuizID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(err, "loading quiz")
	}
	return svc.complete(ctx, att, qz)
}

// Abandon moves a live session to ABANDONED; no score is computed. The
// attempt still counts toward the quiz's attempt limit.
func (svc *Service) Abandon(ctx context.Context, studentID int, sessionKey string) error {
	att, err := svc.repo.GetAttemptBySessionKey(ctx, sessionKey)
	if err != nil {
		return err
	}
	if att.StudentID != studentID {
		return ErrSessionNotFound
	}
	if !att.IsLive() {
		return ErrSessionNotActive
	}

	now := svc.now()
	att.Status = StatusAbandoned
	att.CompletedAt = now
	att.TimeSpent = int(now.Sub(att.StartedAt).Seconds())
	if _, err = svc.repo.FinishAttempt(ctx, att); err != nil {
		return err
	}
	return nil
}

// GetSession returns the student's attempt for a session key, checking
// expiry lazily: an expired live session is auto-completed first.
func (svc *Service) GetSession(ctx context.Context, studentID int, sessionKey string) (Attempt, error) {
	att, err := svc.repo.GetAttemptBySessionKey(ctx, sessionKey)
	if err != nil {
		return Attempt{}, err
	}
	if att.StudentID != studentID {
		return Attempt{}, ErrSessionNotFound
	}
	if att.IsLive() {
		qz, err := svc.repo.GetQuizByID(ctx, att.QuizID)
		if err != nil {
			return Attempt{}, pkgerrors.Wrap(err, "loading quiz")
		}
		if att.IsExpired(qz.TimeLimit, svc.now()) {
			if _, err = svc.complete(ctx, att, qz); err != nil {
				return Attempt{}, err
			}
			return svc.repo.GetAttemptBySessionKey(ctx, sessionKey)
		}
	}
	return att, nil
}

func (svc *Service) FilterAttempts(ctx context.Context, studentID int, filter AttemptFilter, page core.Pagination) ([]Attempt, int, error) {
	return svc.repo.FilterAttempts(ctx, studentID, filter, page)
}

func (svc *Service) StudentStats(ctx context.Context, studentID int) (StudentStats, error) {
	return svc.repo.StudentStats(ctx, studentID)
}

func (svc *Service) Analytics(ctx context.Context, quizID int) (Analytics, error) {
	if _, err := svc.GetByID(ctx, quizID); err != nil {
		return Analytics{}, err
	}
	return svc.repo.QuizAnalytics(ctx, quizID)
}

// liveAttempt loads the session for writes, enforcing ownership, liveness
// and lazy expiry (auto-completing an expired session).
func (svc *Service) liveAttempt(ctx context.Context, studentID int, sessionKey string) (Attempt, Quiz, error) {
	att, err := svc.repo.GetAttemptBySessionKey(ctx, sessionKey)
	if err != nil {
		return Attempt{}, Quiz{}, err
	}
	if att.StudentID != studentID {
		return Attempt{}, Quiz{}, ErrSessionNotFound
	}
	if !att.IsLive() {
		return Attempt{}, Quiz{}, ErrSessionNotActive
	}

	qz, err := svc.repo.GetQuizByID(ctx, att.QuizID)
	if err != nil {
		return Attempt{}, Quiz{}, pkgerrors.Wrap(err, "loading quiz")
	}
	if att.IsExpired(qz.TimeLimit, svc.now()) {
		if _, err = svc.complete(ctx, att, qz); err != nil {
			return Attempt{}, Quiz{}, err
		}
		return Attempt{}, Quiz{}, ErrSessionExpired
	}
	return att, qz, nil
}

func (svc *Service) findQuestion(ctx context.Context, quizID, questionID int) (Question, error) {
	questions, err := svc.repo.QuizQuestions(ctx, quizID)
	if err != nil {
		return Question{}, pkgerrors.Wrap(err, "loading questions")
	}
	for _, q := range questions {
		if q.ID == questionID {
			return q, nil
		}
	}
	return Question{}, ErrQuestionNotFound
}

// complete scores and finishes a live attempt, then triggers the
// progress-tracker update and notification dispatch.
func (svc *Service) complete(ctx context.Context, att Attempt, qz Quiz) (Result, error) {
	answers, err := svc.repo.AttemptAnswers(ctx, att.ID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(err, "loading answers")
	}

	var correct int
	for _, ans := range answers {
		if ans.IsCorrect {
			correct++
		}
	}

	now := svc.now()
	att.Status = StatusCompleted
	att.CompletedAt = now
	att.CorrectAnswers = correct
	att.TimeSpent = int(now.Sub(att.StartedAt).Seconds())
	if qz.TimeLimit > 0 {
		if limit := qz.TimeLimit * 60; att.TimeSpent > limit {
			att.TimeSpent = limit
		}
	}
	if att.TotalQuestions > 0 {
		att.Score = round2(float64(correct) / float64(att.TotalQuestions) * 100)
	}
	att.IsPassed = att.Score >= float64(qz.PassingScore)

	att, err = svc.repo.FinishAttempt(ctx, att)
	if err != nil {
		if err == ErrSessionNotActive {
			// lost the race; the stored terminal attempt is authoritative
			if stored, gerr := svc.repo.GetAttemptBySessionKey(ctx, att.SessionKey); gerr == nil && stored.Status == StatusCompleted {
				return resultOf(stored), nil
			}
		}
		return Result{}, err
	}

	if svc.progress != nil {
		if perr := svc.progress.RecordQuizCompletion(ctx, att.StudentID, qz.LessonID, qz.SubjectID, att.Score, att.IsPassed, att.CompletedAt); perr != nil {
			svc.log.Error("recording quiz completion in progress tracker", perr)
		}
	}
	if svc.notifier != nil {
		svc.notifier.NotifyQuizResult(ctx, att.StudentID, qz.Title, att.Score, att.IsPassed)
	}
	return resultOf(att), nil
}

func resultOf(att Attempt) Result {
	return Result{
		SessionKey:     att.SessionKey,
		Score:          att.Score,
		CorrectAnswers: att.CorrectAnswers,
		TotalQuestions: att.TotalQuestions,
		IsPassed:       att.IsPassed,
		TimeSpent:      att.TimeSpent,
		CompletedAt:    att.CompletedAt,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
