package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/learningcloud/backend/core"
)

type recordKey struct{ studentID, lessonID int }

type fakeRepo struct {
	mu         sync.Mutex
	records    map[recordKey]Record
	streaks    map[int]Streak
	milestones map[int][]Milestone
	passedQuiz map[int]int // passed quizzes per student, set by tests
	seq        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:    make(map[recordKey]Record),
		streaks:    make(map[int]Streak),
		milestones: make(map[int][]Milestone),
		passedQuiz: make(map[int]int),
	}
}

func (r *fakeRepo) GetRecord(_ context.Context, studentID, lessonID int) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey{studentID, lessonID}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) UpsertRecord(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{rec.StudentID, rec.LessonID}
	if existing, ok := r.records[key]; ok {
		rec.ID = existing.ID
	} else {
		r.seq++
		rec.ID = r.seq
	}
	r.records[key] = rec
	return rec, nil
}

func (r *fakeRepo) FilterRecords(_ context.Context, studentID int, _ QueryFilter, _ core.Pagination) ([]Record, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recs []Record
	for key, rec := range r.records {
		if key.studentID == studentID {
			recs = append(recs, rec)
		}
	}
	return recs, len(recs), nil
}

func (r *fakeRepo) CountCompletedLessons(_ context.Context, studentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for key, rec := range r.records {
		if key.studentID == studentID && rec.IsCompleted() {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CountPassedQuizzes(_ context.Context, studentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passedQuiz[studentID], nil
}

func (r *fakeRepo) GetStreak(_ context.Context, studentID int) (Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streaks[studentID]
	if !ok {
		return Streak{}, ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) SaveStreak(_ context.Context, s Streak) (Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaks[s.StudentID] = s
	return s, nil
}

func (r *fakeRepo) CreateMilestone(_ context.Context, m Milestone) (Milestone, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.milestones[m.StudentID] {
		if existing.Code == m.Code {
			return existing, false, nil
		}
	}
	r.seq++
	m.ID = r.seq
	r.milestones[m.StudentID] = append(r.milestones[m.StudentID], m)
	return m, true, nil
}

func (r *fakeRepo) MilestonesByStudent(_ context.Context, studentID int) ([]Milestone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.milestones[studentID], nil
}

func (r *fakeRepo) SubjectProgress(_ context.Context, _ int) ([]SubjectProgress, error) {
	return nil, nil
}

type achievement struct{ title, message string }

type fakeNotifier struct {
	mu    sync.Mutex
	calls []achievement
}

func (n *fakeNotifier) NotifyAchievement(_ context.Context, _ int, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, achievement{title, message})
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	notif := &fakeNotifier{}
	svc := NewService(repo, notif, nopLogger{}, time.UTC)
	return svc, repo, notif
}

func day(t *testing.T, date string) time.Time {
	t.Helper()
	at, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		t.Fatalf("parsing date %q: %v", date, err)
	}
	return at.Add(9 * time.Hour) // mid-morning
}

func TestService_UpdateLessonProgress_actions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionStart, TimeSpent: 30})
	if err != nil {
		t.Fatalf("UpdateLessonProgress(start) error = %v", err)
	}
	if rec.Status != StatusInProgress {
		t.Errorf("Status = %s, want %s", rec.Status, StatusInProgress)
	}
	if rec.TimeSpent != 30 {
		t.Errorf("TimeSpent = %d, want 30", rec.TimeSpent)
	}

	rec, _ = svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionPause, TimeSpent: 60, LastPosition: 42})
	if rec.Status != StatusPaused {
		t.Errorf("Status = %s, want %s", rec.Status, StatusPaused)
	}
	if rec.TimeSpent != 90 {
		t.Errorf("TimeSpent = %d, want cumulative 90", rec.TimeSpent)
	}
	if rec.LastPosition != 42 {
		t.Errorf("LastPosition = %d, want 42", rec.LastPosition)
	}

	rec, _ = svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionResume})
	if rec.Status != StatusInProgress {
		t.Errorf("Status = %s, want %s", rec.Status, StatusInProgress)
	}

	score := 85.0
	rec, _ = svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionComplete, Score: &score})
	if !rec.IsCompleted() {
		t.Errorf("Status = %s, want %s", rec.Status, StatusCompleted)
	}
	if rec.Score != 85.0 {
		t.Errorf("Score = %v, want 85.0", rec.Score)
	}
}

func TestService_UpdateLessonProgress_idempotentCompletion(t *testing.T) {
	svc, repo, notif := newTestService(t)
	ctx := context.Background()

	svc.now = func() time.Time { return day(t, "2024-05-01") }

	if _, err := svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionComplete}); err != nil {
		t.Fatalf("UpdateLessonProgress(complete) error = %v", err)
	}
	// re-complete the same lesson
	if _, err := svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionComplete, TimeSpent: 10}); err != nil {
		t.Fatalf("second UpdateLessonProgress(complete) error = %v", err)
	}

	count, _ := repo.CountCompletedLessons(ctx, 7)
	if count != 1 {
		t.Errorf("completed lessons = %d, want 1", count)
	}
	s, _ := svc.GetStreak(ctx, 7)
	if s.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 after same-day re-completion", s.CurrentStreak)
	}

	// "First Steps" fired exactly once
	var fired int
	for _, a := range notif.calls {
		if a.title == "First Steps" {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("First Steps notifications = %d, want 1", fired)
	}
}

func TestService_streakProgression(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	complete := func(lessonID int, date string) {
		svc.now = func() time.Time { return day(t, date) }
		if _, err := svc.UpdateLessonProgress(ctx, 7, lessonID, UpdateLesson{Action: ActionComplete}); err != nil {
			t.Fatalf("UpdateLessonProgress(lesson %d) error = %v", lessonID, err)
		}
	}

	complete(1, "2024-05-01")
	complete(2, "2024-05-01") // same day; no double count
	complete(3, "2024-05-02")
	complete(4, "2024-05-03")

	s, err := svc.GetStreak(ctx, 7)
	if err != nil {
		t.Fatalf("GetStreak() error = %v", err)
	}
	if s.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", s.CurrentStreak)
	}
	if s.LongestStreak != 3 {
		t.Errorf("LongestStreak = %d, want 3", s.LongestStreak)
	}
	if s.StreakStartDate != "2024-05-01" {
		t.Errorf("StreakStartDate = %s, want 2024-05-01", s.StreakStartDate)
	}

	// a missed day resets to 1 at the next activity
	complete(5, "2024-05-06")
	s, _ = svc.GetStreak(ctx, 7)
	if s.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 after gap", s.CurrentStreak)
	}
	if s.LongestStreak != 3 {
		t.Errorf("LongestStreak = %d, want 3 preserved", s.LongestStreak)
	}
	if s.StreakStartDate != "2024-05-06" {
		t.Errorf("StreakStartDate = %s, want 2024-05-06", s.StreakStartDate)
	}
}

func TestService_GetStreak_staleDisplay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.now = func() time.Time { return day(t, "2024-05-01") }
	if _, err := svc.UpdateLessonProgress(ctx, 7, 1, UpdateLesson{Action: ActionComplete}); err != nil {
		t.Fatalf("UpdateLessonProgress() error = %v", err)
	}

	// same day and next day still show the streak
	for _, date := range []string{"2024-05-01", "2024-05-02"} {
		svc.now = func() time.Time { return day(t, date) }
		s, _ := svc.GetStreak(ctx, 7)
		if s.CurrentStreak != 1 {
			t.Errorf("on %s: CurrentStreak = %d, want 1", date, s.CurrentStreak)
		}
	}

	// two days later it reads as broken
	svc.now = func() time.Time { return day(t, "2024-05-03") }
	s, _ := svc.GetStreak(ctx, 7)
	if s.CurrentStreak != 0 {
		t.Errorf("CurrentStreak = %d, want 0 after missed day", s.CurrentStreak)
	}
	if s.LongestStreak != 1 {
		t.Errorf("LongestStreak = %d, want 1 preserved", s.LongestStreak)
	}

	// no activity yet: zero-value streak, not an error
	s, err := svc.GetStreak(ctx, 99)
	if err != nil {
		t.Fatalf("GetStreak() error = %v", err)
	}
	if s.CurrentStreak != 0 || s.StudentID != 99 {
		t.Errorf("GetStreak() = %+v, want zeroed streak for student 99", s)
	}
}

func TestService_streakMilestones(t *testing.T) {
	svc, repo, notif := newTestService(t)
	ctx := context.Background()

	dates := []string{"2024-05-01", "2024-05-02", "2024-05-03"}
	for i, date := range dates {
		svc.now = func() time.Time { return day(t, date) }
		if _, err := svc.UpdateLessonProgress(ctx, 7, i+1, UpdateLesson{Action: ActionComplete}); err != nil {
			t.Fatalf("UpdateLessonProgress() error = %v", err)
		}
	}

	milestones, _ := repo.MilestonesByStudent(ctx, 7)
	var hasStreak3 bool
	for _, m := range milestones {
		if m.Code == "streak_3" {
			hasStreak3 = true
		}
	}
	if !hasStreak3 {
		t.Error("streak_3 milestone not awarded after 3 consecutive days")
	}

	var streakNotifs int
	for _, a := range notif.calls {
		if a.title == "On a Roll" {
			streakNotifs++
		}
	}
	if streakNotifs != 1 {
		t.Errorf("On a Roll notifications = %d, want 1", streakNotifs)
	}
}

func TestService_RecordQuizCompletion(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	at := day(t, "2024-05-01")
	svc.now = func() time.Time { return at }
	repo.passedQuiz[7] = 1

	if err := svc.RecordQuizCompletion(ctx, 7, 10, 100, 80.0, true, at); err != nil {
		t.Fatalf("RecordQuizCompletion() error = %v", err)
	}

	// linked lesson completed with the quiz score
	rec, err := svc.GetRecord(ctx, 7, 10)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if !rec.IsCompleted() {
		t.Errorf("Status = %s, want %s", rec.Status, StatusCompleted)
	}
	if rec.Score != 80.0 {
		t.Errorf("Score = %v, want 80.0", rec.Score)
	}

	// pass counted as qualifying activity
	s, _ := svc.GetStreak(ctx, 7)
	if s.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", s.CurrentStreak)
	}

	// quiz milestone awarded
	milestones, _ := repo.MilestonesByStudent(ctx, 7)
	var hasRookie bool
	for _, m := range milestones {
		if m.Code == "quizzes_passed_1" {
			hasRookie = true
		}
	}
	if !hasRookie {
		t.Error("quizzes_passed_1 milestone not awarded")
	}
}

func TestService_RecordQuizCompletion_failedQuiz(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	at := day(t, "2024-05-01")
	svc.now = func() time.Time { return at }

	// standalone quiz, not passed: no lesson record, no streak
	if err := svc.RecordQuizCompletion(ctx, 7, 0, 100, 40.0, false, at); err != nil {
		t.Fatalf("RecordQuizCompletion() error = %v", err)
	}
	if _, err := svc.GetRecord(ctx, 7, 0); err != ErrNotFound {
		t.Errorf("GetRecord() error = %v, want ErrNotFound", err)
	}
	s, _ := svc.GetStreak(ctx, 7)
	if s.CurrentStreak != 0 {
		t.Errorf("CurrentStreak = %d, want 0 for failed quiz", s.CurrentStreak)
	}
}
