package notification

import (
	"time"

	"github.com/learningcloud/backend/core"
)

// Notification types
const (
	TypeQuizResult      = "QUIZ_RESULT"
	TypeAchievement     = "ACHIEVEMENT"
	TypeStreakMilestone = "STREAK_MILESTONE"
	TypeLessonCompleted = "LESSON_COMPLETED"
	TypeReminder        = "REMINDER"
	TypeSystem          = "SYSTEM"
)

// Priorities
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Notification is immutable once created except for the read flag.
// It is scoped to exactly one recipient.
type Notification struct {
	ID        int                    `json:"id"`
	UserID    int                    `json:"user_id"`
	Type      string                 `json:"notification_type"`
	Priority  string                 `json:"priority"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    time.Time              `json:"read_at,omitempty"` // UTC
	CreatedAt time.Time              `json:"created_at"`        // UTC
}

type QueryFilter struct {
	Type   string `query:"notification_type"`
	IsRead *bool  `query:"is_read"`
}

func (qf *QueryFilter) Clean() { qf.Type = core.CleanString(qf.Type) }
