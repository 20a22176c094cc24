package content

import (
	"context"
	"errors"

	"github.com/learningcloud/backend/core"
)

var ErrNotFound = errors.New("content not found")

type (
	Repository interface {
		FilterSubjects(ctx context.Context, filter SubjectFilter, page core.Pagination, ord []core.DBOrdering) ([]Subject, int, error)
		GetSubjectByID(ctx context.Context, id int) (Subject, error)
		FilterChapters(ctx context.Context, filter ChapterFilter, page core.Pagination, ord []core.DBOrdering) ([]Chapter, int, error)
		GetChapterByID(ctx context.Context, id int) (Chapter, error)
		FilterLessons(ctx context.Context, filter LessonFilter, page core.Pagination, ord []core.DBOrdering) ([]Lesson, int, error)
		// GetLessonByID loads the lesson with its media attachments.
		GetLessonByID(ctx context.Context, id int) (Lesson, error)
	}

	// Service exposes the read-mostly catalog hierarchy.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) FilterSubjects(ctx context.Context, filter SubjectFilter, page core.Pagination, ord []core.DBOrdering) ([]Subject, int, error) {
	return svc.repo.FilterSubjects(ctx, filter, page, ord)
}

func (svc *Service) GetSubject(ctx context.Context, id int) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) FilterChapters(ctx context.Context, filter ChapterFilter, page core.Pagination, ord []core.DBOrdering) ([]Chapter, int, error) {
	return svc.repo.FilterChapters(ctx, filter, page, ord)
}

func (svc *Service) GetChapter(ctx context.Context, id int) (Chapter, error) {
	return svc.repo.GetChapterByID(ctx, id)
}

func (svc *Service) FilterLessons(ctx context.Context, filter LessonFilter, page core.Pagination, ord []core.DBOrdering) ([]Lesson, int, error) {
	return svc.repo.FilterLessons(ctx, filter, page, ord)
}

func (svc *Service) GetLesson(ctx context.Context, id int) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}
