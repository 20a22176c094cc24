// Package inmem is a mutex-guarded in-memory store; used in DEV and tests.
package inmem

import (
	"sync"

	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/notification"
	"github.com/learningcloud/backend/core/progress"
	"github.com/learningcloud/backend/core/quiz"
	"github.com/learningcloud/backend/core/user"
)

type (
	DB struct {
		user         *userTable
		content      *contentTable
		quiz         *quizTable
		progress     *progressTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		users         map[int]*user.User
		loginAttempts []user.LoginAttempt
		userSeq       int
	}

	contentTable struct {
		sync.RWMutex
		subjects map[int]*content.Subject
		chapters map[int]*content.Chapter
		lessons  map[int]*content.Lesson
	}

	quizTable struct {
		sync.RWMutex
		quizzes    map[int]*quiz.Quiz
		questions  map[int]*quiz.Question
		attempts   map[int]*quiz.Attempt
		answers    map[int]*quiz.Answer
		attemptSeq int
		answerSeq  int
	}

	progressTable struct {
		sync.RWMutex
		records      map[int]*progress.Record
		streaks      map[int]*progress.Streak
		milestones   map[int]*progress.Milestone
		recordSeq    int
		milestoneSeq int
	}

	notificationTable struct {
		sync.RWMutex
		notifications map[int]*notification.Notification
		seq           int
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{users: make(map[int]*user.User)},
		content: &contentTable{
			subjects: make(map[int]*content.Subject),
			chapters: make(map[int]*content.Chapter),
			lessons:  make(map[int]*content.Lesson),
		},
		quiz: &quizTable{
			quizzes:   make(map[int]*quiz.Quiz),
			questions: make(map[int]*quiz.Question),
			attempts:  make(map[int]*quiz.Attempt),
			answers:   make(map[int]*quiz.Answer),
		},
		progress: &progressTable{
			records:    make(map[int]*progress.Record),
			streaks:    make(map[int]*progress.Streak),
			milestones: make(map[int]*progress.Milestone),
		},
		notification: &notificationTable{notifications: make(map[int]*notification.Notification)},
	}
	return db, nil
}

// AddSubject seeds a subject row; test and sample-data helper.
func (db *DB) AddSubject(s content.Subject) content.Subject {
	db.content.Lock()
	defer db.content.Unlock()
	if s.ID == 0 {
		s.ID = len(db.content.subjects) + 1
	}
	db.content.subjects[s.ID] = &s
	return s
}

// AddChapter seeds a chapter row; test and sample-data helper.
func (db *DB) AddChapter(c content.Chapter) content.Chapter {
	db.content.Lock()
	defer db.content.Unlock()
	if c.ID == 0 {
		c.ID = len(db.content.chapters) + 1
	}
	db.content.chapters[c.ID] = &c
	return c
}

// AddLesson seeds a lesson row; test and sample-data helper.
func (db *DB) AddLesson(l content.Lesson) content.Lesson {
	db.content.Lock()
	defer db.content.Unlock()
	if l.ID == 0 {
		l.ID = len(db.content.lessons) + 1
	}
	db.content.lessons[l.ID] = &l
	return l
}

// AddQuiz seeds a quiz row; test and sample-data helper.
func (db *DB) AddQuiz(q quiz.Quiz) quiz.Quiz {
	db.quiz.Lock()
	defer db.quiz.Unlock()
	if q.ID == 0 {
		q.ID = len(db.quiz.quizzes) + 1
	}
	db.quiz.quizzes[q.ID] = &q
	return q
}

// AddQuestion seeds a question row; test and sample-data helper.
func (db *DB) AddQuestion(q quiz.Question) quiz.Question {
	db.quiz.Lock()
	defer db.quiz.Unlock()
	if q.ID == 0 {
		q.ID = len(db.quiz.questions) + 1
	}
	db.quiz.questions[q.ID] = &q
	return q
}
