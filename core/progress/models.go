package progress

import (
	"strings"
	"time"

	"github.com/learningcloud/backend/core"
)

// Record statuses
const (
	StatusNotStarted = "NOT_STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusPaused     = "PAUSED"
)

// Progress-update actions
const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionPause    = "pause"
	ActionResume   = "resume"
)

// Record tracks one student's progress through one lesson. Exactly one
// exists per (student, lesson); records are never deleted.
type Record struct {
	ID           int       `json:"id"`
	StudentID    int       `json:"student_id"`
	LessonID     int       `json:"lesson_id"`
	Status       string    `json:"status"`
	TimeSpent    int       `json:"time_spent"` // cumulative seconds
	Score        float64   `json:"score,omitempty"`
	LastPosition int       `json:"last_position"`
	StartedAt    time.Time `json:"started_at,omitempty"`   // UTC
	CompletedAt  time.Time `json:"completed_at,omitempty"` // UTC
	CreatedAt    time.Time `json:"created_at"`             // UTC
	UpdatedAt    time.Time `json:"updated_at"`             // UTC
}

func (r Record) IsCompleted() bool { return r.Status == StatusCompleted }

// Streak is the consecutive-day count of qualifying learning activity:
// a day qualifies when at least one lesson was completed or one quiz was
// passed. A missed day resets the count at the next qualifying activity.
type Streak struct {
	StudentID        int       `json:"student_id"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate string    `json:"last_activity_date,omitempty"` // YYYY-MM-DD in app timezone
	StreakStartDate  string    `json:"streak_start_date,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// Milestone types
const (
	MilestoneLessonCompletion = "LESSON_COMPLETION"
	MilestoneStreak           = "STREAK_ACHIEVEMENT"
	MilestoneQuizzesPassed    = "SCORE_ACHIEVEMENT"
)

// Milestone is a one-time achievement flag; at most one per (student, code).
type Milestone struct {
	ID          int       `json:"id"`
	StudentID   int       `json:"student_id"`
	Code        string    `json:"code"`
	Type        string    `json:"milestone_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AchievedAt  time.Time `json:"achieved_at"` // UTC
}

// SubjectProgress is a per-subject completion view derived on read.
type SubjectProgress struct {
	SubjectID        int     `json:"subject_id"`
	SubjectName      string  `json:"subject_name"`
	GradeLevel       int     `json:"grade_level"`
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	CompletionRate   float64 `json:"completion_rate"` // percentage
	TotalTimeSpent   int     `json:"total_time_spent"`
	AverageScore     float64 `json:"average_score"`
}

type QueryFilter struct {
	Status     string `query:"status"`
	SubjectID  int    `query:"subject"`
	GradeLevel int    `query:"grade_level"`
}

func (qf *QueryFilter) Clean() { qf.Status = strings.ToUpper(core.CleanString(qf.Status)) }

// UpdateLesson is the lesson-progress-update request payload.
type UpdateLesson struct {
	Action       string   `json:"action" validate:"required,oneof=start complete pause resume"`
	TimeSpent    int      `json:"time_spent" validate:"omitempty,min=0"` // seconds to add
	LastPosition int      `json:"last_position" validate:"omitempty,min=0"`
	Score        *float64 `json:"score" validate:"omitempty,min=0,max=100"`
}
