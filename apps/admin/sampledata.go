package main

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/lib/pq"
)

// demoCatalog is the content loaded by the sample-data command: one subject
// per entry with a chapter, a lesson and a short quiz.
var demoCatalog = []demoSubject{
	{name: "Mathematics", description: "Numbers, operations and problem solving", color: "#4CAF50", grade: 1},
	{name: "English", description: "Reading, writing and comprehension", color: "#2196F3", grade: 1},
	{name: "Science", description: "The world around us", color: "#FF9800", grade: 2},
}

type demoSubject struct {
	name, description, color string
	grade                    int
}

const (
	demoQuizTimeLimit    = 10 // minutes
	demoQuizMaxAttempts  = 3
	demoQuizPassingScore = 60
)

// sampleData loads the demo catalog. Subjects that already exist (same name
// and grade level) are skipped along with their chapter, lesson and quiz, so
// re-running does not duplicate content.
func (cli *commandLine) sampleData() error {
	tx, err := cli.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer tx.Rollback()

	for i, s := range demoCatalog {
		var subjectID int
		err = tx.QueryRowx(
			`INSERT INTO subject (name, description, grade_level, order_index, color_code)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name, grade_level) DO NOTHING
			 RETURNING id`,
			s.name, s.description, s.grade, i, s.color,
		).Scan(&subjectID)
		if err == sql.ErrNoRows { // already loaded
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "inserting subject %q", s.name)
		}

		var chapterID int
		err = tx.QueryRowx(
			`INSERT INTO chapter (subject_id, title, description, order_index, estimated_duration)
			 VALUES ($1, $2, $3, 0, 30) RETURNING id`,
			subjectID, "Getting Started", "Introductory chapter",
		).Scan(&chapterID)
		if err != nil {
			return errors.Wrap(err, "inserting chapter")
		}

		var lessonID int
		err = tx.QueryRowx(
			`INSERT INTO lesson (chapter_id, title, content, content_type, duration, order_index)
			 VALUES ($1, $2, $3, 'READING', 10, 0) RETURNING id`,
			chapterID, "Lesson One", "Welcome to "+s.name+"!",
		).Scan(&lessonID)
		if err != nil {
			return errors.Wrap(err, "inserting lesson")
		}

		var quizID int
		err = tx.QueryRowx(
			`INSERT INTO quiz (title, description, lesson_id, subject_id, grade_level, time_limit, max_attempts, passing_score)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			s.name+" Basics", "Check what you learned", lessonID, subjectID, s.grade,
			demoQuizTimeLimit, demoQuizMaxAttempts, demoQuizPassingScore,
		).Scan(&quizID)
		if err != nil {
			return errors.Wrap(err, "inserting quiz")
		}

		_, err = tx.Exec(
			`INSERT INTO question (quiz_id, question_text, question_type, options, correct_answer, accepted_answers, points, order_index)
			 VALUES
			 ($1, 'Is this a sample question?', 'TRUE_FALSE', $2, 'true', '{}', 1, 0),
			 ($1, 'Pick the first option.', 'MULTIPLE_CHOICE', $3, 'A', '{}', 1, 1)`,
			quizID, pq.StringArray{"true", "false"}, pq.StringArray{"A", "B", "C", "D"},
		)
		if err != nil {
			return errors.Wrap(err, "inserting questions")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing tx")
	}
	logger.Print("sample data loaded")
	return nil
}
