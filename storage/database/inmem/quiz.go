package inmem

import (
	"context"
	"sort"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/quiz"
)

type quizRepository struct {
	db *quizTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db.quiz}
}

func (repo *quizRepository) FilterQuizzes(_ context.Context, filter quiz.QueryFilter, page core.Pagination, _ []core.DBOrdering) ([]quiz.Quiz, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []quiz.Quiz
	for _, q := range repo.db.quizzes {
		if !q.IsActive {
			continue
		}
		if filter.SubjectID > 0 && q.SubjectID != filter.SubjectID {
			continue
		}
		if filter.LessonID > 0 && q.LessonID != filter.LessonID {
			continue
		}
		if filter.GradeLevel > 0 && q.GradeLevel != filter.GradeLevel {
			continue
		}
		if filter.Search != "" && !matchSearch(filter.Search, q.Title, q.Description) {
			continue
		}
		matches = append(matches, *q)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *quizRepository) GetQuizByID(_ context.Context, id int) (quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok {
		return *q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QuizQuestions(_ context.Context, quizID int) ([]quiz.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var questions []quiz.Question
	for _, q := range repo.db.questions {
		if q.QuizID == quizID && q.IsActive {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].OrderIndex < questions[j].OrderIndex })
	return questions, nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, att quiz.Attempt) (quiz.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// check-and-insert under the table lock; mirrors the partial unique index
	for _, a := range repo.db.attempts {
		if a.StudentID == att.StudentID && a.QuizID == att.QuizID && a.IsLive() {
			return quiz.Attempt{}, quiz.ErrActiveAttemptExists
		}
	}

	repo.db.attemptSeq++
	att.ID = repo.db.attemptSeq
	repo.db.attempts[att.ID] = &att
	return att, nil
}

func (repo *quizRepository) CountFinishedAttempts(_ context.Context, studentID, quizID int) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, a := range repo.db.attempts {
		if a.StudentID == studentID && a.QuizID == quizID && !a.IsLive() {
			count++
		}
	}
	return count, nil
}

func (repo *quizRepository) GetAttemptBySessionKey(_ context.Context, key string) (quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, a := range repo.db.attempts {
		if a.SessionKey == key {
			return *a, nil
		}
	}
	return quiz.Attempt{}, quiz.ErrSessionNotFound
}

func (repo *quizRepository) FilterAttempts(_ context.Context, studentID int, filter quiz.AttemptFilter, page core.Pagination) ([]quiz.Attempt, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []quiz.Attempt
	for _, a := range repo.db.attempts {
		if a.StudentID != studentID {
			continue
		}
		if filter.QuizID > 0 && a.QuizID != filter.QuizID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Completed != nil && (a.Status == quiz.StatusCompleted) != *filter.Completed {
			continue
		}
		matches = append(matches, *a)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].StartedAt.After(matches[j].StartedAt) })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *quizRepository) MarkAttemptInProgress(_ context.Context, attemptID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if a, ok := repo.db.attempts[attemptID]; ok && a.Status == quiz.StatusStarted {
		a.Status = quiz.StatusInProgress
	}
	return nil
}

func (repo *quizRepository) UpsertAnswer(_ context.Context, ans quiz.Answer) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.answers {
		if a.AttemptID == ans.AttemptID && a.QuestionID == ans.QuestionID {
			ans.ID = a.ID
			ans.CreatedAt = a.CreatedAt
			repo.db.answers[a.ID] = &ans
			return nil
		}
	}

	repo.db.answerSeq++
	ans.ID = repo.db.answerSeq
	repo.db.answers[ans.ID] = &ans
	return nil
}

func (repo *quizRepository) AttemptAnswers(_ context.Context, attemptID int) ([]quiz.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var answers []quiz.Answer
	for _, a := range repo.db.answers {
		if a.AttemptID == attemptID {
			answers = append(answers, *a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}

func (repo *quizRepository) FinishAttempt(_ context.Context, att quiz.Attempt) (quiz.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.attempts[att.ID]
	if !ok {
		return quiz.Attempt{}, quiz.ErrSessionNotFound
	}
	if !stored.IsLive() {
		return quiz.Attempt{}, quiz.ErrSessionNotActive
	}
	repo.db.attempts[att.ID] = &att
	return att, nil
}

func (repo *quizRepository) StudentStats(_ context.Context, studentID int) (quiz.StudentStats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats quiz.StudentStats
	var scoreSum float64
	for _, a := range repo.db.attempts {
		if a.StudentID != studentID {
			continue
		}
		stats.TotalAttempts++
		stats.TotalTimeSpent += a.TimeSpent
		if a.Status != quiz.StatusCompleted {
			continue
		}
		stats.CompletedAttempts++
		scoreSum += a.Score
		if a.IsPassed {
			stats.PassedQuizzes++
		} else {
			stats.FailedQuizzes++
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AverageScore = scoreSum / float64(stats.CompletedAttempts)
	}
	return stats, nil
}

func (repo *quizRepository) QuizAnalytics(_ context.Context, quizID int) (quiz.Analytics, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	analytics := quiz.Analytics{QuizID: quizID}
	var scoreSum, timeSum float64
	var passed int
	for _, a := range repo.db.attempts {
		if a.QuizID != quizID {
			continue
		}
		analytics.TotalAttempts++
		if a.Status != quiz.StatusCompleted {
			continue
		}
		analytics.TotalCompletions++
		scoreSum += a.Score
		timeSum += float64(a.TimeSpent)
		if a.IsPassed {
			passed++
		}
	}
	if analytics.TotalCompletions > 0 {
		n := float64(analytics.TotalCompletions)
		analytics.AverageScore = scoreSum / n
		analytics.PassRate = float64(passed) / n * 100
		analytics.AverageTime = timeSum / n / 60
	}
	return analytics, nil
}
