package progress

import "fmt"

// MilestoneDef is a static achievement definition. A milestone fires exactly
// once per (student, code), the first time its threshold is crossed; firing is
// idempotent against replayed events through the unique (student, code) insert.
type MilestoneDef struct {
	Code        string
	Type        string
	Threshold   int
	Title       string
	Description string
}

var milestoneDefs = []MilestoneDef{
	{Code: "lessons_1", Type: MilestoneLessonCompletion, Threshold: 1, Title: "First Steps", Description: "Completed your first lesson"},
	{Code: "lessons_5", Type: MilestoneLessonCompletion, Threshold: 5, Title: "Getting Going", Description: "Completed 5 lessons"},
	{Code: "lessons_10", Type: MilestoneLessonCompletion, Threshold: 10, Title: "Dedicated Learner", Description: "Completed 10 lessons"},
	{Code: "lessons_25", Type: MilestoneLessonCompletion, Threshold: 25, Title: "Knowledge Seeker", Description: "Completed 25 lessons"},
	{Code: "lessons_50", Type: MilestoneLessonCompletion, Threshold: 50, Title: "Half Century", Description: "Completed 50 lessons"},
	{Code: "lessons_100", Type: MilestoneLessonCompletion, Threshold: 100, Title: "Centurion", Description: "Completed 100 lessons"},

	{Code: "quizzes_passed_1", Type: MilestoneQuizzesPassed, Threshold: 1, Title: "Quiz Rookie", Description: "Passed your first quiz"},
	{Code: "quizzes_passed_10", Type: MilestoneQuizzesPassed, Threshold: 10, Title: "Quiz Master", Description: "Passed 10 quizzes"},

	{Code: "streak_3", Type: MilestoneStreak, Threshold: 3, Title: "On a Roll", Description: "3 day learning streak"},
	{Code: "streak_7", Type: MilestoneStreak, Threshold: 7, Title: "Week Warrior", Description: "7 day learning streak"},
	{Code: "streak_30", Type: MilestoneStreak, Threshold: 30, Title: "Monthly Master", Description: "30 day learning streak"},
}

func defsOfType(typ string) []MilestoneDef {
	defs := make([]MilestoneDef, 0, len(milestoneDefs))
	for _, d := range milestoneDefs {
		if d.Type == typ {
			defs = append(defs, d)
		}
	}
	return defs
}

func (d MilestoneDef) String() string {
	return fmt.Sprintf("%s(%d)", d.Code, d.Threshold)
}
