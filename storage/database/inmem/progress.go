package inmem

import (
	"context"
	"sort"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/progress"
)

type progressRepository struct {
	db        *progressTable
	quizDB    *quizTable
	contentDB *contentTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress, quizDB: db.quiz, contentDB: db.content}
}

func (repo *progressRepository) GetRecord(_ context.Context, studentID, lessonID int) (progress.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.db.records {
		if r.StudentID == studentID && r.LessonID == lessonID {
			return *r, nil
		}
	}
	return progress.Record{}, progress.ErrNotFound
}

func (repo *progressRepository) UpsertRecord(_ context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, r := range repo.db.records {
		if r.StudentID == rec.StudentID && r.LessonID == rec.LessonID {
			rec.ID = r.ID
			repo.db.records[r.ID] = &rec
			return rec, nil
		}
	}

	repo.db.recordSeq++
	rec.ID = repo.db.recordSeq
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *progressRepository) FilterRecords(_ context.Context, studentID int, filter progress.QueryFilter, page core.Pagination) ([]progress.Record, int, error) {
	var lessonSubjects map[int]content.Subject
	if filter.SubjectID > 0 || filter.GradeLevel > 0 {
		lessonSubjects = repo.lessonSubjects()
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []progress.Record
	for _, r := range repo.db.records {
		if r.StudentID != studentID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if lessonSubjects != nil {
			subj, ok := lessonSubjects[r.LessonID]
			if !ok {
				continue
			}
			if filter.SubjectID > 0 && subj.ID != filter.SubjectID {
				continue
			}
			if filter.GradeLevel > 0 && subj.GradeLevel != filter.GradeLevel {
				continue
			}
		}
		matches = append(matches, *r)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].UpdatedAt.After(matches[j].UpdatedAt) })

	total := len(matches)
	return paginate(matches, page), total, nil
}

// lessonSubjects maps each lesson to its subject through the chapter chain.
func (repo *progressRepository) lessonSubjects() map[int]content.Subject {
	repo.contentDB.RLock()
	defer repo.contentDB.RUnlock()

	m := make(map[int]content.Subject)
	for _, l := range repo.contentDB.lessons {
		c, ok := repo.contentDB.chapters[l.ChapterID]
		if !ok {
			continue
		}
		if s, ok := repo.contentDB.subjects[c.SubjectID]; ok {
			m[l.ID] = *s
		}
	}
	return m
}

func (repo *progressRepository) CountCompletedLessons(_ context.Context, studentID int) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, r := range repo.db.records {
		if r.StudentID == studentID && r.IsCompleted() {
			count++
		}
	}
	return count, nil
}

func (repo *progressRepository) CountPassedQuizzes(_ context.Context, studentID int) (int, error) {
	repo.quizDB.RLock()
	defer repo.quizDB.RUnlock()

	passed := make(map[int]bool)
	for _, a := range repo.quizDB.attempts {
		if a.StudentID == studentID && a.IsPassed {
			passed[a.QuizID] = true
		}
	}
	return len(passed), nil
}

func (repo *progressRepository) GetStreak(_ context.Context, studentID int) (progress.Streak, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.streaks[studentID]; ok {
		return *s, nil
	}
	return progress.Streak{}, progress.ErrNotFound
}

func (repo *progressRepository) SaveStreak(_ context.Context, s progress.Streak) (progress.Streak, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.streaks[s.StudentID] = &s
	return s, nil
}

func (repo *progressRepository) CreateMilestone(_ context.Context, m progress.Milestone) (progress.Milestone, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.milestones {
		if existing.StudentID == m.StudentID && existing.Code == m.Code {
			return *existing, false, nil
		}
	}

	repo.db.milestoneSeq++
	m.ID = repo.db.milestoneSeq
	repo.db.milestones[m.ID] = &m
	return m, true, nil
}

func (repo *progressRepository) MilestonesByStudent(_ context.Context, studentID int) ([]progress.Milestone, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var milestones []progress.Milestone
	for _, m := range repo.db.milestones {
		if m.StudentID == studentID {
			milestones = append(milestones, *m)
		}
	}
	sort.Slice(milestones, func(i, j int) bool { return milestones[i].AchievedAt.After(milestones[j].AchievedAt) })
	return milestones, nil
}

func (repo *progressRepository) SubjectProgress(_ context.Context, studentID int) ([]progress.SubjectProgress, error) {
	repo.contentDB.RLock()
	defer repo.contentDB.RUnlock()
	repo.db.RLock()
	defer repo.db.RUnlock()

	// lesson -> subject via chapter
	lessonSubject := make(map[int]int)
	for _, l := range repo.contentDB.lessons {
		if !l.IsActive {
			continue
		}
		if c, ok := repo.contentDB.chapters[l.ChapterID]; ok && c.IsActive {
			lessonSubject[l.ID] = c.SubjectID
		}
	}

	bySubject := make(map[int]*progress.SubjectProgress)
	for _, s := range repo.contentDB.subjects {
		if !s.IsActive {
			continue
		}
		bySubject[s.ID] = &progress.SubjectProgress{
			SubjectID:   s.ID,
			SubjectName: s.Name,
			GradeLevel:  s.GradeLevel,
		}
	}
	for _, subjID := range lessonSubject {
		if sp, ok := bySubject[subjID]; ok {
			sp.TotalLessons++
		}
	}

	scoreSums := make(map[int]float64)
	scoreCounts := make(map[int]int)
	for _, r := range repo.db.records {
		if r.StudentID != studentID {
			continue
		}
		subjID, ok := lessonSubject[r.LessonID]
		if !ok {
			continue
		}
		sp, ok := bySubject[subjID]
		if !ok {
			continue
		}
		sp.TotalTimeSpent += r.TimeSpent
		if r.IsCompleted() {
			sp.CompletedLessons++
			if r.Score > 0 {
				scoreSums[subjID] += r.Score
				scoreCounts[subjID]++
			}
		}
	}

	result := make([]progress.SubjectProgress, 0, len(bySubject))
	for subjID, sp := range bySubject {
		if sp.TotalLessons > 0 {
			sp.CompletionRate = float64(sp.CompletedLessons) / float64(sp.TotalLessons) * 100
		}
		if scoreCounts[subjID] > 0 {
			sp.AverageScore = scoreSums[subjID] / float64(scoreCounts[subjID])
		}
		result = append(result, *sp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubjectID < result[j].SubjectID })
	return result, nil
}
