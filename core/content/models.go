package content

import (
	"time"

	"github.com/learningcloud/backend/core"
)

// Lesson content types
const (
	TypeSlides      = "SLIDES"
	TypeVideo       = "VIDEO"
	TypeAudio       = "AUDIO"
	TypeReading     = "READING"
	TypeInteractive = "INTERACTIVE"
)

// Media types
const (
	MediaImage    = "IMAGE"
	MediaVideo    = "VIDEO"
	MediaAudio    = "AUDIO"
	MediaDocument = "DOCUMENT"
)

// Subject is the root of the content tree; one per (name, grade level).
type Subject struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	GradeLevel  int       `json:"grade_level"`
	OrderIndex  int       `json:"order_index"`
	ColorCode   string    `json:"color_code"`
	IconURL     string    `json:"icon_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Chapter belongs to exactly one Subject.
type Chapter struct {
	ID                int       `json:"id"`
	SubjectID         int       `json:"subject_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	OrderIndex        int       `json:"order_index"`
	EstimatedDuration int       `json:"estimated_duration"` // minutes
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

// Lesson belongs to exactly one Chapter.
type Lesson struct {
	ID          int           `json:"id"`
	ChapterID   int           `json:"chapter_id"`
	Title       string        `json:"title"`
	Content     string        `json:"content,omitempty"`
	ContentType string        `json:"content_type"`
	VideoURL    string        `json:"video_url,omitempty"`
	AudioURL    string        `json:"audio_url,omitempty"`
	Duration    int           `json:"duration"` // minutes
	OrderIndex  int           `json:"order_index"`
	IsPremium   bool          `json:"is_premium"`
	IsActive    bool          `json:"is_active"`
	Media       []LessonMedia `json:"media,omitempty"`
	CreatedAt   time.Time     `json:"created_at"` // UTC
	UpdatedAt   time.Time     `json:"updated_at"` // UTC
}

// LessonMedia is an attachment on a Lesson.
type LessonMedia struct {
	ID         int       `json:"id"`
	LessonID   int       `json:"lesson_id"`
	MediaType  string    `json:"media_type"`
	FileURL    string    `json:"file_url"`
	FileName   string    `json:"file_name"`
	FileSize   int64     `json:"file_size"` // bytes
	MimeType   string    `json:"mime_type"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type SubjectFilter struct {
	GradeLevel int    `query:"grade_level"`
	Search     string `query:"search"`
}

func (f *SubjectFilter) Clean() { f.Search = core.CleanString(f.Search) }

type ChapterFilter struct {
	SubjectID int    `query:"subject"`
	Search    string `query:"search"`
}

func (f *ChapterFilter) Clean() { f.Search = core.CleanString(f.Search) }

type LessonFilter struct {
	ChapterID   int    `query:"chapter"`
	ContentType string `query:"content_type"`
	Search      string `query:"search"`
}

func (f *LessonFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.ContentType = core.CleanString(f.ContentType)
}
