package progress

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
)

var ErrNotFound = errors.New("progress record not found")

const dateLayout = "2006-01-02"

type (
	Repository interface {
		GetRecord(ctx context.Context, studentID, lessonID int) (Record, error)
		// UpsertRecord inserts or updates the unique (student, lesson) record.
		UpsertRecord(ctx context.Context, rec Record) (Record, error)
		FilterRecords(ctx context.Context, studentID int, filter QueryFilter, page core.Pagination) ([]Record, int, error)
		CountCompletedLessons(ctx context.Context, studentID int) (int, error)
		CountPassedQuizzes(ctx context.Context, studentID int) (int, error)

		GetStreak(ctx context.Context, studentID int) (Streak, error) // ErrNotFound when none yet
		SaveStreak(ctx context.Context, s Streak) (Streak, error)

		// CreateMilestone is an insert-if-absent on (student, code); the bool
		// reports whether a row was actually created.
		CreateMilestone(ctx context.Context, m Milestone) (Milestone, bool, error)
		MilestonesByStudent(ctx context.Context, studentID int) ([]Milestone, error)

		SubjectProgress(ctx context.Context, studentID int) ([]SubjectProgress, error)
	}

	// Notifier dispatches achievement notifications; delivery is best-effort.
	Notifier interface {
		NotifyAchievement(ctx context.Context, studentID int, title, message string)
	}

	Service struct {
		repo     Repository
		notifier Notifier
		log      core.Logger
		loc      *time.Location // day boundary for streaks
		now      func() time.Time
	}
)

func NewService(repo Repository, notifier Notifier, log core.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		loc:      loc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdateLessonProgress applies a lesson-progress-update event. Completion is
// idempotent: re-completing an already-completed lesson refreshes time-spent
// and score but does not double-count in aggregates, streaks or milestones.
func (svc *Service) UpdateLessonProgress(ctx context.Context, studentID, lessonID int, data UpdateLesson) (Record, error) {
	now := svc.now()

	rec, err := svc.repo.GetRecord(ctx, studentID, lessonID)
	if err != nil {
		if err != ErrNotFound {
			return Record{}, pkgerrors.Wrap(err, "loading progress record")
		}
		rec = Record{
			StudentID: studentID,
			LessonID:  lessonID,
			Status:    StatusNotStarted,
			CreatedAt: now,
		}
	}

	firstCompletion := false
	switch data.Action {
	case ActionStart:
		if rec.Status == StatusNotStarted {
			rec.Status = StatusInProgress
			rec.StartedAt = now
		}
	case ActionComplete:
		firstCompletion = !rec.IsCompleted()
		rec.Status = StatusCompleted
		rec.CompletedAt = now
		if data.Score != nil {
			rec.Score = *data.Score
		}
	case ActionPause:
		if rec.Status == StatusInProgress {
			rec.Status = StatusPaused
		}
	case ActionResume:
		if rec.Status == StatusPaused {
			rec.Status = StatusInProgress
		}
	}

	if data.TimeSpent > 0 {
		rec.TimeSpent += data.TimeSpent
	}
	if data.LastPosition > 0 {
		rec.LastPosition = data.LastPosition
	}
	rec.UpdatedAt = now

	if rec, err = svc.repo.UpsertRecord(ctx, rec); err != nil {
		return Record{}, pkgerrors.Wrap(err, "saving progress record")
	}

	if firstCompletion {
		svc.qualifyingActivity(ctx, studentID, now)
		svc.checkLessonMilestones(ctx, studentID)
	}
	return rec, nil
}

// RecordQuizCompletion consumes a quiz-completion event from the quiz engine.
// A passed quiz counts as qualifying streak activity; when the quiz is linked
// to a lesson its progress record is completed too.
func (svc *Service) RecordQuizCompletion(ctx context.Context, studentID, lessonID, subjectID int, score float64, passed bool, at time.Time) error {
	if lessonID != 0 {
		if _, err := svc.UpdateLessonProgress(ctx, studentID, lessonID, UpdateLesson{
			Action: ActionComplete,
			Score:  &score,
		}); err != nil {
			return pkgerrors.Wrap(err, "completing linked lesson")
		}
	}
	if passed {
		svc.qualifyingActivity(ctx, studentID, at)
		svc.checkQuizMilestones(ctx, studentID)
	}
	return nil
}

func (svc *Service) GetRecord(ctx context.Context, studentID, lessonID int) (Record, error) {
	return svc.repo.GetRecord(ctx, studentID, lessonID)
}

func (svc *Service) FilterRecords(ctx context.Context, studentID int, filter QueryFilter, page core.Pagination) ([]Record, int, error) {
	return svc.repo.FilterRecords(ctx, studentID, filter, page)
}

// GetStreak returns the student's streak, zeroed when a day was missed since
// the last qualifying activity (display only; persisted state resets lazily
// at the next qualifying activity).
func (svc *Service) GetStreak(ctx context.Context, studentID int) (Streak, error) {
	s, err := svc.repo.GetStreak(ctx, studentID)
	if err != nil {
		if err == ErrNotFound {
			return Streak{StudentID: studentID}, nil
		}
		return Streak{}, err
	}
	if s.LastActivityDate != "" {
		today := svc.today(svc.now())
		yesterday := svc.addDays(today, -1)
		if s.LastActivityDate != today && s.LastActivityDate != yesterday {
			s.CurrentStreak = 0
		}
	}
	return s, nil
}

func (svc *Service) Milestones(ctx context.Context, studentID int) ([]Milestone, error) {
	return svc.repo.MilestonesByStudent(ctx, studentID)
}

func (svc *Service) SubjectProgress(ctx context.Context, studentID int) ([]SubjectProgress, error) {
	return svc.repo.SubjectProgress(ctx, studentID)
}

// qualifyingActivity advances the streak for one qualifying activity at `at`.
// Same-day repeats are no-ops; a one-day gap increments; anything longer
// resets the streak to 1.
func (svc *Service) qualifyingActivity(ctx context.Context, studentID int, at time.Time) {
	date := svc.today(at)

	s, err := svc.repo.GetStreak(ctx, studentID)
	if err != nil && err != ErrNotFound {
		svc.log.Error("loading streak", err)
		return
	}
	if err == ErrNotFound {
		s = Streak{StudentID: studentID}
	}

	switch {
	case s.LastActivityDate == "":
		s.CurrentStreak = 1
		s.LongestStreak = 1
		s.StreakStartDate = date
	case s.LastActivityDate == date:
		return // already counted today
	case s.LastActivityDate == svc.addDays(date, -1):
		s.CurrentStreak++
		if s.CurrentStreak > s.LongestStreak {
			s.LongestStreak = s.CurrentStreak
		}
	default:
		s.CurrentStreak = 1
		s.StreakStartDate = date
	}
	s.LastActivityDate = date
	s.UpdatedAt = svc.now()

	if s, err = svc.repo.SaveStreak(ctx, s); err != nil {
		svc.log.Error("saving streak", err)
		return
	}
	svc.checkStreakMilestones(ctx, studentID, s.CurrentStreak)
}

func (svc *Service) checkLessonMilestones(ctx context.Context, studentID int) {
	count, err := svc.repo.CountCompletedLessons(ctx, studentID)
	if err != nil {
		svc.log.Error("counting completed lessons", err)
		return
	}
	svc.fireMilestones(ctx, studentID, MilestoneLessonCompletion, count)
}

func (svc *Service) checkQuizMilestones(ctx context.Context, studentID int) {
	count, err := svc.repo.CountPassedQuizzes(ctx, studentID)
	if err != nil {
		svc.log.Error("counting passed quizzes", err)
		return
	}
	svc.fireMilestones(ctx, studentID, MilestoneQuizzesPassed, count)
}

func (svc *Service) checkStreakMilestones(ctx context.Context, studentID, streak int) {
	svc.fireMilestones(ctx, studentID, MilestoneStreak, streak)
}

func (svc *Service) fireMilestones(ctx context.Context, studentID int, typ string, count int) {
	for _, def := range defsOfType(typ) {
		if count < def.Threshold {
			continue
		}
		m := Milestone{
			StudentID:   studentID,
			Code:        def.Code,
			Type:        def.Type,
			Title:       def.Title,
			Description: def.Description,
			AchievedAt:  svc.now(),
		}
		m, created, err := svc.repo.CreateMilestone(ctx, m)
		if err != nil {
			svc.log.Error("creating milestone "+def.Code, err)
			continue
		}
		if created && svc.notifier != nil {
			svc.notifier.NotifyAchievement(ctx, studentID, m.Title, m.Description)
		}
	}
}

func (svc *Service) today(at time.Time) string {
	return at.In(svc.loc).Format(dateLayout)
}

func (svc *Service) addDays(date string, days int) string {
	t, err := time.ParseInLocation(dateLayout, date, svc.loc)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}
