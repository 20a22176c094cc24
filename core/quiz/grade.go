package quiz

import "strings"

// gradeAnswer checks a submitted answer against the question's key.
// Matching is case-insensitive; whitespace is trimmed.
func gradeAnswer(q Question, answer string) bool {
	given := strings.ToLower(strings.TrimSpace(answer))
	if given == "" {
		return false
	}
	correct := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))

	switch q.Type {
	case QuestionMultipleChoice, QuestionTrueFalse:
		return given == correct
	case QuestionFillInBlank:
		if given == correct {
			return true
		}
		for _, alt := range q.AcceptedAnswers {
			if given == strings.ToLower(strings.TrimSpace(alt)) {
				return true
			}
		}
		return false
	case QuestionShortAnswer:
		// lenient containment either way
		return strings.Contains(correct, given) || strings.Contains(given, correct)
	}
	return false
}
