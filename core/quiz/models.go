package quiz

import (
	"time"

	"github.com/learningcloud/backend/core"
)

// Question types
const (
	QuestionMultipleChoice = "MULTIPLE_CHOICE"
	QuestionTrueFalse      = "TRUE_FALSE"
	QuestionFillInBlank    = "FILL_IN_BLANK"
	QuestionShortAnswer    = "SHORT_ANSWER"
)

// Attempt statuses. STARTED becomes IN_PROGRESS on the first answer;
// COMPLETED and ABANDONED are terminal and immutable.
const (
	StatusStarted    = "STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusAbandoned  = "ABANDONED"
)

type Quiz struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	LessonID     int       `json:"lesson_id,omitempty"` // 0 = not linked to a lesson
	SubjectID    int       `json:"subject_id"`
	GradeLevel   int       `json:"grade_level"`
	TimeLimit    int       `json:"time_limit"` // minutes; 0 = unlimited
	MaxAttempts  int       `json:"max_attempts"`
	PassingScore int       `json:"passing_score"` // percentage
	Instructions string    `json:"instructions,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Question struct {
	ID              int       `json:"id"`
	QuizID          int       `json:"quiz_id"`
	Text            string    `json:"question_text"`
	Type            string    `json:"question_type"`
	Options         []string  `json:"options,omitempty"`
	CorrectAnswer   string    `json:"-"`
	AcceptedAnswers []string  `json:"-"` // FILL_IN_BLANK alternatives
	Explanation     string    `json:"explanation,omitempty"`
	Points          int       `json:"points"`
	OrderIndex      int       `json:"order_index"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

// Attempt is one student's timed pass through a quiz's questions.
// At most one live attempt may exist per (student, quiz) pair; the store
// enforces this with an atomic check-and-insert.
type Attempt struct {
	ID             int       `json:"id"`
	StudentID      int       `json:"student_id"`
	QuizID         int       `json:"quiz_id"`
	SessionKey     string    `json:"session_key"`
	Status         string    `json:"status"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	Score          float64   `json:"score"`
	IsPassed       bool      `json:"is_passed"`
	TimeSpent      int       `json:"time_spent"` // seconds
	StartedAt      time.Time `json:"started_at"` // UTC
	CompletedAt    time.Time `json:"completed_at,omitempty"` // UTC; zero while live
}

// IsLive reports whether the attempt still accepts writes.
func (a Attempt) IsLive() bool {
	return a.Status == StatusStarted || a.Status == StatusInProgress
}

// IsExpired is the lazy session-expiry check: pure in (attempt, limit, now),
// evaluated at each access point instead of by a background sweep.
func (a Attempt) IsExpired(timeLimitMinutes int, now time.Time) bool {
	if timeLimitMinutes <= 0 {
		return false
	}
	return now.Sub(a.StartedAt) > time.Duration(timeLimitMinutes)*time.Minute
}

type Answer struct {
	ID           int       `json:"id"`
	AttemptID    int       `json:"attempt_id"`
	QuestionID   int       `json:"question_id"`
	AnswerText   string    `json:"answer_text"`
	IsCorrect    bool      `json:"is_correct"`
	PointsEarned float64   `json:"points_earned"`
	TimeSpent    int       `json:"time_spent"` // seconds on this question
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Result is the outcome of a completed attempt. Completion is idempotent:
// re-completing returns the stored Result unchanged.
type Result struct {
	SessionKey     string    `json:"session_key"`
	Score          float64   `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	IsPassed       bool      `json:"is_passed"`
	TimeSpent      int       `json:"time_spent"`
	CompletedAt    time.Time `json:"completed_at"` // UTC
}

// StartedAttempt is what a student gets back from starting a quiz.
type StartedAttempt struct {
	SessionKey     string    `json:"session_key"`
	TotalQuestions int       `json:"total_questions"`
	TimeLimit      int       `json:"time_limit"`
	StartedAt      time.Time `json:"started_at"` // UTC
}

// SubmitResult is the immediate feedback for one submitted answer.
type SubmitResult struct {
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation,omitempty"` // only revealed when correct
}

// StudentStats aggregates a student's completed attempts.
type StudentStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	PassedQuizzes     int     `json:"passed_quizzes"`
	FailedQuizzes     int     `json:"failed_quizzes"`
	AverageScore      float64 `json:"average_score"`
	TotalTimeSpent    int     `json:"total_time_spent"` // seconds
}

// Analytics aggregates attempts of one quiz, for teachers.
type Analytics struct {
	QuizID           int     `json:"quiz_id"`
	TotalAttempts    int     `json:"total_attempts"`
	TotalCompletions int     `json:"total_completions"`
	AverageScore     float64 `json:"average_score"`
	PassRate         float64 `json:"pass_rate"`     // percentage
	AverageTime      float64 `json:"average_time"`  // minutes
}

type QueryFilter struct {
	SubjectID  int    `query:"subject"`
	LessonID   int    `query:"lesson"`
	GradeLevel int    `query:"grade_level"`
	Search     string `query:"search"`
}

func (qf *QueryFilter) Clean() { qf.Search = core.CleanString(qf.Search) }

type AttemptFilter struct {
	QuizID    int    `query:"quiz"`
	Status    string `query:"status"`
	Completed *bool  `query:"completed"`
}

type StartAttempt struct {
	QuizID int `json:"quiz" validate:"required,min=1"`
}

type SubmitAnswer struct {
	QuestionID int    `json:"question_id" validate:"required,min=1"`
	Answer     string `json:"answer"`
	TimeSpent  int    `json:"time_spent" validate:"omitempty,min=0"`
}
