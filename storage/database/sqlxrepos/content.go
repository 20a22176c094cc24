package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
)

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sqlx.DB) *contentRepository {
	return &contentRepository{db: db}
}

type subjectRow struct {
	ID          int       `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	GradeLevel  int       `db:"grade_level"`
	OrderIndex  int       `db:"order_index"`
	ColorCode   string    `db:"color_code"`
	IconURL     string    `db:"icon_url"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r subjectRow) toSubject() content.Subject {
	return content.Subject(r)
}

type chapterRow struct {
	ID                int       `db:"id"`
	SubjectID         int       `db:"subject_id"`
	Title             string    `db:"title"`
	Description       string    `db:"description"`
	OrderIndex        int       `db:"order_index"`
	EstimatedDuration int       `db:"estimated_duration"`
	IsActive          bool      `db:"is_active"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r chapterRow) toChapter() content.Chapter {
	return content.Chapter(r)
}

type lessonRow struct {
	ID          int       `db:"id"`
	ChapterID   int       `db:"chapter_id"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	ContentType string    `db:"content_type"`
	VideoURL    string    `db:"video_url"`
	AudioURL    string    `db:"audio_url"`
	Duration    int       `db:"duration"`
	OrderIndex  int       `db:"order_index"`
	IsPremium   bool      `db:"is_premium"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r lessonRow) toLesson() content.Lesson {
	return content.Lesson{
		ID:          r.ID,
		ChapterID:   r.ChapterID,
		Title:       r.Title,
		Content:     r.Content,
		ContentType: r.ContentType,
		VideoURL:    r.VideoURL,
		AudioURL:    r.AudioURL,
		Duration:    r.Duration,
		OrderIndex:  r.OrderIndex,
		IsPremium:   r.IsPremium,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type lessonMediaRow struct {
	ID         int       `db:"id"`
	LessonID   int       `db:"lesson_id"`
	MediaType  string    `db:"media_type"`
	FileURL    string    `db:"file_url"`
	FileName   string    `db:"file_name"`
	FileSize   int64     `db:"file_size"`
	MimeType   string    `db:"mime_type"`
	OrderIndex int       `db:"order_index"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r lessonMediaRow) toMedia() content.LessonMedia {
	return content.LessonMedia(r)
}

func (repo contentRepository) FilterSubjects(ctx context.Context, filter content.SubjectFilter, page core.Pagination, ord []core.DBOrdering) ([]content.Subject, int, error) {
	where := []string{"is_active"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.GradeLevel > 0 {
		where = append(where, "grade_level = "+arg(filter.GradeLevel))
	}
	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		where = append(where, "(name ILIKE "+val+" OR description ILIKE "+val+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subject WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting subjects")
	}

	query := "SELECT * FROM subject WHERE " + cond + orderBy(ord, "order_index ASC") + limitOffset(&args, page)
	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying subjects")
	}

	subjects := make([]content.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.toSubject())
	}
	return subjects, total, nil
}

func (repo contentRepository) GetSubjectByID(ctx context.Context, id int) (content.Subject, error) {
	var row subjectRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM subject WHERE id = $1 AND is_active", id); err != nil {
		return content.Subject{}, trapNoRowsErr(err, content.ErrNotFound, "finding subject")
	}
	return row.toSubject(), nil
}

func (repo contentRepository) FilterChapters(ctx context.Context, filter content.ChapterFilter, page core.Pagination, ord []core.DBOrdering) ([]content.Chapter, int, error) {
	where := []string{"is_active"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.SubjectID > 0 {
		where = append(where, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		where = append(where, "(title ILIKE "+val+" OR description ILIKE "+val+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM chapter WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting chapters")
	}

	query := "SELECT * FROM chapter WHERE " + cond + orderBy(ord, "order_index ASC") + limitOffset(&args, page)
	var rows []chapterRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying chapters")
	}

	chapters := make([]content.Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, row.toChapter())
	}
	return chapters, total, nil
}

func (repo contentRepository) GetChapterByID(ctx context.Context, id int) (content.Chapter, error) {
	var row chapterRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM chapter WHERE id = $1 AND is_active", id); err != nil {
		return content.Chapter{}, trapNoRowsErr(err, content.ErrNotFound, "finding chapter")
	}
	return row.toChapter(), nil
}

func (repo contentRepository) FilterLessons(ctx context.Context, filter content.LessonFilter, page core.Pagination, ord []core.DBOrdering) ([]content.Lesson, int, error) {
	where := []string{"is_active"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.ChapterID > 0 {
		where = append(where, "chapter_id = "+arg(filter.ChapterID))
	}
	if filter.ContentType != "" {
		where = append(where, "content_type = "+arg(filter.ContentType))
	}
	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		where = append(where, "title ILIKE "+val)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM lesson WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting lessons")
	}

	query := "SELECT * FROM lesson WHERE " + cond + orderBy(ord, "order_index ASC") + limitOffset(&args, page)
	var rows []lessonRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying lessons")
	}

	lessons := make([]content.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons, total, nil
}

func (repo contentRepository) GetLessonByID(ctx context.Context, id int) (content.Lesson, error) {
	var row lessonRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM lesson WHERE id = $1 AND is_active", id); err != nil {
		return content.Lesson{}, trapNoRowsErr(err, content.ErrNotFound, "finding lesson")
	}
	lesson := row.toLesson()

	var mediaRows []lessonMediaRow
	query := "SELECT * FROM lesson_media WHERE lesson_id = $1 ORDER BY order_index ASC"
	if err := repo.db.SelectContext(ctx, &mediaRows, query, id); err != nil {
		return content.Lesson{}, errors.Wrap(err, "querying lesson media")
	}
	for _, mr := range mediaRows {
		lesson.Media = append(lesson.Media, mr.toMedia())
	}
	return lesson, nil
}
