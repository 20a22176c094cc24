package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

type recordRow struct {
	ID           int       `db:"id"`
	StudentID    int       `db:"student_id"`
	LessonID     int       `db:"lesson_id"`
	Status       string    `db:"status"`
	TimeSpent    int       `db:"time_spent"`
	Score        float64   `db:"score"`
	LastPosition int       `db:"last_position"`
	StartedAt    null.Time `db:"started_at"`
	CompletedAt  null.Time `db:"completed_at"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r recordRow) toRecord() progress.Record {
	return progress.Record{
		ID:           r.ID,
		StudentID:    r.StudentID,
		LessonID:     r.LessonID,
		Status:       r.Status,
		TimeSpent:    r.TimeSpent,
		Score:        r.Score,
		LastPosition: r.LastPosition,
		StartedAt:    r.StartedAt.Time,
		CompletedAt:  r.CompletedAt.Time,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type streakRow struct {
	StudentID        int       `db:"student_id"`
	CurrentStreak    int       `db:"current_streak"`
	LongestStreak    int       `db:"longest_streak"`
	LastActivityDate string    `db:"last_activity_date"`
	StreakStartDate  string    `db:"streak_start_date"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r streakRow) toStreak() progress.Streak {
	return progress.Streak(r)
}

type milestoneRow struct {
	ID          int       `db:"id"`
	StudentID   int       `db:"student_id"`
	Code        string    `db:"code"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	AchievedAt  time.Time `db:"achieved_at"`
}

func (r milestoneRow) toMilestone() progress.Milestone {
	return progress.Milestone(r)
}

func (repo progressRepository) GetRecord(ctx context.Context, studentID, lessonID int) (progress.Record, error) {
	var row recordRow
	query := "SELECT * FROM progress_record WHERE student_id = $1 AND lesson_id = $2"
	if err := repo.db.GetContext(ctx, &row, query, studentID, lessonID); err != nil {
		return progress.Record{}, trapNoRowsErr(err, progress.ErrNotFound, "finding progress record")
	}
	return row.toRecord(), nil
}

func (repo progressRepository) UpsertRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	query := `
		INSERT INTO progress_record (student_id, lesson_id, status, time_spent, score, last_position,
			started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, lesson_id) DO UPDATE
		SET status = EXCLUDED.status, time_spent = EXCLUDED.time_spent, score = EXCLUDED.score,
			last_position = EXCLUDED.last_position, started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at, updated_at = EXCLUDED.updated_at
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query,
		rec.StudentID, rec.LessonID, rec.Status, rec.TimeSpent, rec.Score, rec.LastPosition,
		null.NewTime(rec.StartedAt, !rec.StartedAt.IsZero()),
		null.NewTime(rec.CompletedAt, !rec.CompletedAt.IsZero()),
		rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return progress.Record{}, errors.Wrap(err, "upserting progress record")
	}
	return rec, nil
}

func (repo progressRepository) FilterRecords(ctx context.Context, studentID int, filter progress.QueryFilter, page core.Pagination) ([]progress.Record, int, error) {
	where := []string{"pr.student_id = $1"}
	args := []interface{}{studentID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.Status != "" {
		where = append(where, "pr.status = "+arg(strings.ToUpper(filter.Status)))
	}
	if filter.SubjectID > 0 || filter.GradeLevel > 0 {
		join := `pr.lesson_id IN (
			SELECT l.id FROM lesson l
			JOIN chapter c ON c.id = l.chapter_id
			JOIN subject s ON s.id = c.subject_id
			WHERE TRUE`
		if filter.SubjectID > 0 {
			join += " AND s.id = " + arg(filter.SubjectID)
		}
		if filter.GradeLevel > 0 {
			join += " AND s.grade_level = " + arg(filter.GradeLevel)
		}
		where = append(where, join+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM progress_record pr WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting progress records")
	}

	query := "SELECT pr.* FROM progress_record pr WHERE " + cond + " ORDER BY pr.updated_at DESC" + limitOffset(&args, page)
	var rows []recordRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying progress records")
	}

	records := make([]progress.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, total, nil
}

func (repo progressRepository) CountCompletedLessons(ctx context.Context, studentID int) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM progress_record WHERE student_id = $1 AND status = 'COMPLETED'"
	if err := repo.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, errors.Wrap(err, "counting completed lessons")
	}
	return count, nil
}

func (repo progressRepository) CountPassedQuizzes(ctx context.Context, studentID int) (int, error) {
	var count int
	// distinct quizzes; retakes of the same quiz count once
	query := `
		SELECT COUNT(DISTINCT quiz_id) FROM quiz_attempt
		WHERE student_id = $1 AND status = 'COMPLETED' AND is_passed`
	if err := repo.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, errors.Wrap(err, "counting passed quizzes")
	}
	return count, nil
}

func (repo progressRepository) GetStreak(ctx context.Context, studentID int) (progress.Streak, error) {
	var row streakRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM learning_streak WHERE student_id = $1", studentID); err != nil {
		return progress.Streak{}, trapNoRowsErr(err, progress.ErrNotFound, "finding streak")
	}
	return row.toStreak(), nil
}

func (repo progressRepository) SaveStreak(ctx context.Context, s progress.Streak) (progress.Streak, error) {
	query := `
		INSERT INTO learning_streak (student_id, current_streak, longest_streak, last_activity_date, streak_start_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id) DO UPDATE
		SET current_streak = EXCLUDED.current_streak, longest_streak = EXCLUDED.longest_streak,
			last_activity_date = EXCLUDED.last_activity_date, streak_start_date = EXCLUDED.streak_start_date,
			updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.ExecContext(ctx, query,
		s.StudentID, s.CurrentStreak, s.LongestStreak, s.LastActivityDate, s.StreakStartDate, s.UpdatedAt,
	); err != nil {
		return progress.Streak{}, errors.Wrap(err, "saving streak")
	}
	return s, nil
}

func (repo progressRepository) CreateMilestone(ctx context.Context, m progress.Milestone) (progress.Milestone, bool, error) {
	query := `
		INSERT INTO milestone (student_id, code, type, title, description, achieved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, code) DO NOTHING
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query,
		m.StudentID, m.Code, m.Type, m.Title, m.Description, m.AchievedAt,
	).Scan(&m.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return m, false, nil // already achieved
		}
		return progress.Milestone{}, false, errors.Wrap(err, "inserting milestone")
	}
	return m, true, nil
}

func (repo progressRepository) MilestonesByStudent(ctx context.Context, studentID int) ([]progress.Milestone, error) {
	var rows []milestoneRow
	query := "SELECT * FROM milestone WHERE student_id = $1 ORDER BY achieved_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying milestones")
	}
	milestones := make([]progress.Milestone, 0, len(rows))
	for _, row := range rows {
		milestones = append(milestones, row.toMilestone())
	}
	return milestones, nil
}

func (repo progressRepository) SubjectProgress(ctx context.Context, studentID int) ([]progress.SubjectProgress, error) {
	query := `
		SELECT s.id AS subject_id, s.name AS subject_name, s.grade_level,
			COUNT(l.id) AS total_lessons,
			COUNT(pr.id) FILTER (WHERE pr.status = 'COMPLETED') AS completed_lessons,
			COALESCE(SUM(pr.time_spent), 0) AS total_time_spent,
			COALESCE(AVG(pr.score) FILTER (WHERE pr.status = 'COMPLETED' AND pr.score > 0), 0) AS average_score
		FROM subject s
		JOIN chapter c ON c.subject_id = s.id AND c.is_active
		JOIN lesson l ON l.chapter_id = c.id AND l.is_active
		LEFT JOIN progress_record pr ON pr.lesson_id = l.id AND pr.student_id = $1
		WHERE s.is_active
		GROUP BY s.id, s.name, s.grade_level
		ORDER BY s.order_index ASC`
	rows, err := repo.db.QueryxContext(ctx, query, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject progress")
	}
	defer func() { _ = rows.Close() }()

	var result []progress.SubjectProgress
	for rows.Next() {
		var sp progress.SubjectProgress
		if err = rows.Scan(
			&sp.SubjectID, &sp.SubjectName, &sp.GradeLevel, &sp.TotalLessons,
			&sp.CompletedLessons, &sp.TotalTimeSpent, &sp.AverageScore,
		); err != nil {
			return nil, errors.Wrap(err, "scanning subject progress")
		}
		if sp.TotalLessons > 0 {
			sp.CompletionRate = float64(sp.CompletedLessons) / float64(sp.TotalLessons) * 100
		}
		result = append(result, sp)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying subject progress")
	}
	return result, nil
}
