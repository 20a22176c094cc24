package inmem

import (
	"context"
	"sort"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
)

type contentRepository struct {
	db *contentTable
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db.content}
}

func (repo *contentRepository) FilterSubjects(_ context.Context, filter content.SubjectFilter, page core.Pagination, _ []core.DBOrdering) ([]content.Subject, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []content.Subject
	for _, s := range repo.db.subjects {
		if !s.IsActive {
			continue
		}
		if filter.GradeLevel > 0 && s.GradeLevel != filter.GradeLevel {
			continue
		}
		if filter.Search != "" && !matchSearch(filter.Search, s.Name, s.Description) {
			continue
		}
		matches = append(matches, *s)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].OrderIndex < matches[j].OrderIndex })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *contentRepository) GetSubjectByID(_ context.Context, id int) (content.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.subjects[id]; ok && s.IsActive {
		return *s, nil
	}
	return content.Subject{}, content.ErrNotFound
}

func (repo *contentRepository) FilterChapters(_ context.Context, filter content.ChapterFilter, page core.Pagination, _ []core.DBOrdering) ([]content.Chapter, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []content.Chapter
	for _, c := range repo.db.chapters {
		if !c.IsActive {
			continue
		}
		if filter.SubjectID > 0 && c.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Search != "" && !matchSearch(filter.Search, c.Title, c.Description) {
			continue
		}
		matches = append(matches, *c)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].OrderIndex < matches[j].OrderIndex })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *contentRepository) GetChapterByID(_ context.Context, id int) (content.Chapter, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.chapters[id]; ok && c.IsActive {
		return *c, nil
	}
	return content.Chapter{}, content.ErrNotFound
}

func (repo *contentRepository) FilterLessons(_ context.Context, filter content.LessonFilter, page core.Pagination, _ []core.DBOrdering) ([]content.Lesson, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []content.Lesson
	for _, l := range repo.db.lessons {
		if !l.IsActive {
			continue
		}
		if filter.ChapterID > 0 && l.ChapterID != filter.ChapterID {
			continue
		}
		if filter.ContentType != "" && l.ContentType != filter.ContentType {
			continue
		}
		if filter.Search != "" && !matchSearch(filter.Search, l.Title) {
			continue
		}
		matches = append(matches, *l)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].OrderIndex < matches[j].OrderIndex })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *contentRepository) GetLessonByID(_ context.Context, id int) (content.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if l, ok := repo.db.lessons[id]; ok && l.IsActive {
		return *l, nil
	}
	return content.Lesson{}, content.ErrNotFound
}
