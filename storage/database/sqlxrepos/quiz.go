package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/quiz"
)

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sqlx.DB) *quizRepository {
	return &quizRepository{db: db}
}

type quizRow struct {
	ID           int       `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	LessonID     null.Int  `db:"lesson_id"`
	SubjectID    int       `db:"subject_id"`
	GradeLevel   int       `db:"grade_level"`
	TimeLimit    int       `db:"time_limit"`
	MaxAttempts  int       `db:"max_attempts"`
	PassingScore int       `db:"passing_score"`
	Instructions string    `db:"instructions"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		LessonID:     r.LessonID.Int,
		SubjectID:    r.SubjectID,
		GradeLevel:   r.GradeLevel,
		TimeLimit:    r.TimeLimit,
		MaxAttempts:  r.MaxAttempts,
		PassingScore: r.PassingScore,
		Instructions: r.Instructions,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type questionRow struct {
	ID              int            `db:"id"`
	QuizID          int            `db:"quiz_id"`
	Text            string         `db:"question_text"`
	Type            string         `db:"question_type"`
	Options         pq.StringArray `db:"options"`
	CorrectAnswer   string         `db:"correct_answer"`
	AcceptedAnswers pq.StringArray `db:"accepted_answers"`
	Explanation     string         `db:"explanation"`
	Points          int            `db:"points"`
	OrderIndex      int            `db:"order_index"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r questionRow) toQuestion() quiz.Question {
	return quiz.Question{
		ID:              r.ID,
		QuizID:          r.QuizID,
		Text:            r.Text,
		Type:            r.Type,
		Options:         r.Options,
		CorrectAnswer:   r.CorrectAnswer,
		AcceptedAnswers: r.AcceptedAnswers,
		Explanation:     r.Explanation,
		Points:          r.Points,
		OrderIndex:      r.OrderIndex,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
	}
}

type attemptRow struct {
	ID             int       `db:"id"`
	StudentID      int       `db:"student_id"`
	QuizID         int       `db:"quiz_id"`
	SessionKey     string    `db:"session_key"`
	Status         string    `db:"status"`
	TotalQuestions int       `db:"total_questions"`
	CorrectAnswers int       `db:"correct_answers"`
	Score          float64   `db:"score"`
	IsPassed       bool      `db:"is_passed"`
	TimeSpent      int       `db:"time_spent"`
	StartedAt      time.Time `db:"started_at"`
	CompletedAt    null.Time `db:"completed_at"`
}

func (r attemptRow) toAttempt() quiz.Attempt {
	return quiz.Attempt{
		ID:             r.ID,
		StudentID:      r.StudentID,
		QuizID:         r.QuizID,
		SessionKey:     r.SessionKey,
		Status:         r.Status,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		Score:          r.Score,
		IsPassed:       r.IsPassed,
		TimeSpent:      r.TimeSpent,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt.Time,
	}
}

type answerRow struct {
	ID           int       `db:"id"`
	AttemptID    int       `db:"attempt_id"`
	QuestionID   int       `db:"question_id"`
	AnswerText   string    `db:"answer_text"`
	IsCorrect    bool      `db:"is_correct"`
	PointsEarned float64   `db:"points_earned"`
	TimeSpent    int       `db:"time_spent"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r answerRow) toAnswer() quiz.Answer {
	return quiz.Answer(r)
}

func (repo quizRepository) FilterQuizzes(ctx context.Context, filter quiz.QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]quiz.Quiz, int, error) {
	where := []string{"is_active"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.SubjectID > 0 {
		where = append(where, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.LessonID > 0 {
		where = append(where, "lesson_id = "+arg(filter.LessonID))
	}
	if filter.GradeLevel > 0 {
		where = append(where, "grade_level = "+arg(filter.GradeLevel))
	}
	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		where = append(where, "(title ILIKE "+val+" OR description ILIKE "+val+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM quiz WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting quizzes")
	}

	query := "SELECT * FROM quiz WHERE " + cond + orderBy(ord, "created_at DESC") + limitOffset(&args, page)
	var rows []quizRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying quizzes")
	}

	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.toQuiz())
	}
	return quizzes, total, nil
}

func (repo quizRepository) GetQuizByID(ctx context.Context, id int) (quiz.Quiz, error) {
	var row quizRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM quiz WHERE id = $1", id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "finding quiz")
	}
	return row.toQuiz(), nil
}

func (repo quizRepository) QuizQuestions(ctx context.Context, quizID int) ([]quiz.Question, error) {
	var rows []questionRow
	query := "SELECT * FROM question WHERE quiz_id = $1 AND is_active ORDER BY order_index ASC"
	if err := repo.db.SelectContext(ctx, &rows, query, quizID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toQuestion())
	}
	return questions, nil
}

func (repo quizRepository) CreateAttempt(ctx context.Context, att quiz.Attempt) (quiz.Attempt, error) {
	query := `
		INSERT INTO quiz_attempt (student_id, quiz_id, session_key, status, total_questions, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query,
		att.StudentID, att.QuizID, att.SessionKey, att.Status, att.TotalQuestions, att.StartedAt,
	).Scan(&att.ID)
	if err != nil {
		// the partial unique index loses exactly one of two concurrent starts
		if mapped, ok := trapUniqueViolation(err, "quiz_attempt_live_key", quiz.ErrActiveAttemptExists); ok {
			return quiz.Attempt{}, mapped
		}
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return att, nil
}

func (repo quizRepository) CountFinishedAttempts(ctx context.Context, studentID, quizID int) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM quiz_attempt
		WHERE student_id = $1 AND quiz_id = $2 AND status IN ('COMPLETED', 'ABANDONED')`
	if err := repo.db.GetContext(ctx, &count, query, studentID, quizID); err != nil {
		return 0, errors.Wrap(err, "counting finished attempts")
	}
	return count, nil
}

func (repo quizRepository) GetAttemptBySessionKey(ctx context.Context, key string) (quiz.Attempt, error) {
	var row attemptRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM quiz_attempt WHERE session_key = $1", key); err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrSessionNotFound, "finding attempt")
	}
	return row.toAttempt(), nil
}

func (repo quizRepository) FilterAttempts(ctx context.Context, studentID int, filter quiz.AttemptFilter, page core.Pagination) ([]quiz.Attempt, int, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.QuizID > 0 {
		where = append(where, "quiz_id = "+arg(filter.QuizID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Completed != nil {
		op := "="
		if !*filter.Completed {
			op = "<>"
		}
		where = append(where, "status "+op+" 'COMPLETED'")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM quiz_attempt WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting attempts")
	}

	query := "SELECT * FROM quiz_attempt WHERE " + cond + " ORDER BY started_at DESC" + limitOffset(&args, page)
	var rows []attemptRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying attempts")
	}

	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.toAttempt())
	}
	return attempts, total, nil
}

func (repo quizRepository) MarkAttemptInProgress(ctx context.Context, attemptID int) error {
	query := "UPDATE quiz_attempt SET status = 'IN_PROGRESS' WHERE id = $1 AND status = 'STARTED'"
	if _, err := repo.db.ExecContext(ctx, query, attemptID); err != nil {
		return errors.Wrap(err, "marking attempt in progress")
	}
	return nil
}

func (repo quizRepository) UpsertAnswer(ctx context.Context, ans quiz.Answer) error {
	query := `
		INSERT INTO quiz_answer (attempt_id, question_id, answer_text, is_correct, points_earned, time_spent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (attempt_id, question_id) DO UPDATE
		SET answer_text = EXCLUDED.answer_text, is_correct = EXCLUDED.is_correct,
			points_earned = EXCLUDED.points_earned, time_spent = EXCLUDED.time_spent,
			updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.ExecContext(ctx, query,
		ans.AttemptID, ans.QuestionID, ans.AnswerText, ans.IsCorrect, ans.PointsEarned,
		ans.TimeSpent, ans.CreatedAt, ans.UpdatedAt,
	); err != nil {
		return errors.Wrap(err, "upserting answer")
	}
	return nil
}

func (repo quizRepository) AttemptAnswers(ctx context.Context, attemptID int) ([]quiz.Answer, error) {
	var rows []answerRow
	query := "SELECT * FROM quiz_answer WHERE attempt_id = $1 ORDER BY question_id ASC"
	if err := repo.db.SelectContext(ctx, &rows, query, attemptID); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	answers := make([]quiz.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.toAnswer())
	}
	return answers, nil
}

func (repo quizRepository) FinishAttempt(ctx context.Context, att quiz.Attempt) (quiz.Attempt, error) {
	// CAS on the status column; exactly one finisher wins
	query := `
		UPDATE quiz_attempt
		SET status = $1, correct_answers = $2, score = $3, is_passed = $4, time_spent = $5, completed_at = $6
		WHERE id = $7 AND status IN ('STARTED', 'IN_PROGRESS')`
	res, err := repo.db.ExecContext(ctx, query,
		att.Status, att.CorrectAnswers, att.Score, att.IsPassed, att.TimeSpent, att.CompletedAt, att.ID,
	)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "finishing attempt")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "finishing attempt")
	}
	if n == 0 {
		return quiz.Attempt{}, quiz.ErrSessionNotActive
	}
	return att, nil
}

func (repo quizRepository) StudentStats(ctx context.Context, studentID int) (quiz.StudentStats, error) {
	var stats quiz.StudentStats
	query := `
		SELECT COUNT(*) AS total_attempts,
			COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed_attempts,
			COUNT(*) FILTER (WHERE status = 'COMPLETED' AND is_passed) AS passed_quizzes,
			COUNT(*) FILTER (WHERE status = 'COMPLETED' AND NOT is_passed) AS failed_quizzes,
			COALESCE(AVG(score) FILTER (WHERE status = 'COMPLETED'), 0) AS average_score,
			COALESCE(SUM(time_spent), 0) AS total_time_spent
		FROM quiz_attempt WHERE student_id = $1`
	row := repo.db.QueryRowxContext(ctx, query, studentID)
	if err := row.Scan(
		&stats.TotalAttempts, &stats.CompletedAttempts, &stats.PassedQuizzes,
		&stats.FailedQuizzes, &stats.AverageScore, &stats.TotalTimeSpent,
	); err != nil {
		return quiz.StudentStats{}, errors.Wrap(err, "aggregating student stats")
	}
	return stats, nil
}

func (repo quizRepository) QuizAnalytics(ctx context.Context, quizID int) (quiz.Analytics, error) {
	analytics := quiz.Analytics{QuizID: quizID}
	query := `
		SELECT COUNT(*) AS total_attempts,
			COUNT(*) FILTER (WHERE status = 'COMPLETED') AS total_completions,
			COALESCE(AVG(score) FILTER (WHERE status = 'COMPLETED'), 0) AS average_score,
			COALESCE(AVG(CASE WHEN is_passed THEN 100.0 ELSE 0 END) FILTER (WHERE status = 'COMPLETED'), 0) AS pass_rate,
			COALESCE(AVG(time_spent) FILTER (WHERE status = 'COMPLETED'), 0) / 60.0 AS average_time
		FROM quiz_attempt WHERE quiz_id = $1`
	row := repo.db.QueryRowxContext(ctx, query, quizID)
	if err := row.Scan(
		&analytics.TotalAttempts, &analytics.TotalCompletions, &analytics.AverageScore,
		&analytics.PassRate, &analytics.AverageTime,
	); err != nil {
		return quiz.Analytics{}, errors.Wrap(err, "aggregating quiz analytics")
	}
	return analytics, nil
}
