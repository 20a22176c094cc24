package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/learningcloud/backend/core/content"
	"github.com/learningcloud/backend/core/progress"
)

func floatPtr(f float64) *float64 { return &f }

func Test_progressApi_updateLesson(t *testing.T) {
	env := setup(t)
	lesson, _, _ := env.seedCatalog(t)
	_, token := env.seedStudent(t, "amina01", "1234", 2)

	path := fmt.Sprintf("/api/v1/progress/lessons/%d/update", lesson.ID)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, path)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("start", func(t *testing.T) {
		body := marchallObj(t, progress.UpdateLesson{Action: "start"})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var got progress.Record
		decode(t, rec, &got)
		if got.Status != progress.StatusInProgress {
			t.Errorf("Status = %s, want %s", got.Status, progress.StatusInProgress)
		}
	})

	t.Run("pause accumulates time", func(t *testing.T) {
		body := marchallObj(t, progress.UpdateLesson{Action: "pause", TimeSpent: 90, LastPosition: 3})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.app.ServeHTTP(rec, req)
		var got progress.Record
		decode(t, rec, &got)
		if got.Status != progress.StatusPaused || got.TimeSpent != 90 || got.LastPosition != 3 {
			t.Errorf("record = %+v", got)
		}
	})

	t.Run("complete with score", func(t *testing.T) {
		body := marchallObj(t, progress.UpdateLesson{Action: "complete", TimeSpent: 60, Score: floatPtr(85)})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.app.ServeHTTP(rec, req)
		var got progress.Record
		decode(t, rec, &got)
		if got.Status != progress.StatusCompleted || got.TimeSpent != 150 || got.Score != 85 {
			t.Errorf("record = %+v", got)
		}
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		body := marchallObj(t, progress.UpdateLesson{Action: "skip"})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400; body %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_progressApi_views(t *testing.T) {
	env := setup(t)
	lesson, _, _ := env.seedCatalog(t)
	_, token := env.seedStudent(t, "amina01", "1234", 2)
	_, teacherToken := env.seedTeacher(t, "teacher@test.cd", "s3cretzzz")

	// complete one lesson to populate every view
	body := marchallObj(t, progress.UpdateLesson{Action: "complete", TimeSpent: 120, Score: floatPtr(90)})
	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/api/v1/progress/lessons/%d/update", lesson.ID), token, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding progress failed: %s", rec.Body.String())
	}

	t.Run("students only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/records", teacherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied", Code: "permission_denied"})}, rec)
	})

	t.Run("records", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/records", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Count   int               `json:"count"`
			Results []progress.Record `json:"results"`
		}
		decode(t, rec, &resp)
		if resp.Count != 1 || resp.Results[0].LessonID != lesson.ID {
			t.Errorf("records = %+v", resp)
		}
	})

	t.Run("records filtered by status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/records?status=completed", token)
		env.app.ServeHTTP(rec, req)
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("completed count = %d, want 1", resp.Count)
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/progress/records?status=paused", token)
		env.app.ServeHTTP(rec, req)
		decode(t, rec, &resp)
		if resp.Count != 0 {
			t.Errorf("paused count = %d, want 0", resp.Count)
		}
	})

	t.Run("streak", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/streak", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var streak progress.Streak
		decode(t, rec, &streak)
		if streak.CurrentStreak != 1 || streak.LongestStreak != 1 {
			t.Errorf("streak = %+v", streak)
		}
	})

	t.Run("milestones", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/milestones", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var milestones []progress.Milestone
		decode(t, rec, &milestones)
		var firstSteps bool
		for _, m := range milestones {
			if m.Code == "lessons_1" {
				firstSteps = true
				if m.Title != "First Steps" {
					t.Errorf("Title = %q", m.Title)
				}
			}
		}
		if !firstSteps {
			t.Errorf("lessons_1 milestone missing: %+v", milestones)
		}
	})

	t.Run("subjects", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/subjects", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var summary []progress.SubjectProgress
		decode(t, rec, &summary)
		if len(summary) != 1 {
			t.Fatalf("subjects = %+v", summary)
		}
		if got := summary[0]; got.TotalLessons != 1 || got.CompletedLessons != 1 || got.CompletionRate != 100 {
			t.Errorf("subject progress = %+v", got)
		}
	})
}

func Test_progressApi_recordsFilters(t *testing.T) {
	env := setup(t)
	mathLesson, _, _ := env.seedCatalog(t)
	_, token := env.seedStudent(t, "amina01", "1234", 2)

	sci := env.db.AddSubject(content.Subject{Name: "Science", GradeLevel: 3, IsActive: true})
	sciChapter := env.db.AddChapter(content.Chapter{SubjectID: sci.ID, Title: "Plants", IsActive: true})
	sciLesson := env.db.AddLesson(content.Lesson{ChapterID: sciChapter.ID, Title: "Roots", ContentType: "READING", IsActive: true})

	for _, l := range []content.Lesson{mathLesson, sciLesson} {
		body := marchallObj(t, progress.UpdateLesson{Action: "complete", TimeSpent: 60, Score: floatPtr(80)})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/api/v1/progress/lessons/%d/update", l.ID), token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("seeding progress failed: %s", rec.Body.String())
		}
	}

	list := func(t *testing.T, query string) []progress.Record {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress/records"+query, token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Results []progress.Record `json:"results"`
		}
		decode(t, rec, &resp)
		return resp.Results
	}

	t.Run("by subject", func(t *testing.T) {
		got := list(t, fmt.Sprintf("?subject=%d", sci.ID))
		if len(got) != 1 || got[0].LessonID != sciLesson.ID {
			t.Errorf("records = %+v", got)
		}
	})

	t.Run("by grade level", func(t *testing.T) {
		got := list(t, "?grade_level=2")
		if len(got) != 1 || got[0].LessonID != mathLesson.ID {
			t.Errorf("records = %+v", got)
		}
	})

	t.Run("no filter returns both", func(t *testing.T) {
		if got := list(t, ""); len(got) != 2 {
			t.Errorf("records = %+v", got)
		}
	})
}

func Test_progressApi_quizFeedsProgress(t *testing.T) {
	env := setup(t)
	lesson, qz, questions := env.seedCatalog(t)
	_, token := env.seedStudent(t, "amina01", "1234", 2)

	started := env.startQuiz(t, token, qz.ID)
	answers := []string{"true", "B", "C", "1", "false"} // all correct
	for i, q := range questions {
		env.submitAnswer(t, token, started.SessionKey, q.ID, answers[i])
	}
	req, rec := newAuthRequest(http.MethodPost, "/api/v1/sessions/"+started.SessionKey+"/complete", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete failed: %s", rec.Body.String())
	}

	// the linked lesson is completed with the quiz score
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/progress/records", token)
	env.app.ServeHTTP(rec, req)
	var resp struct {
		Results []progress.Record `json:"results"`
	}
	decode(t, rec, &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("records = %+v", resp.Results)
	}
	if got := resp.Results[0]; got.LessonID != lesson.ID || got.Status != progress.StatusCompleted || got.Score != 100 {
		t.Errorf("record = %+v", got)
	}

	// passing counts as qualifying activity
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/progress/streak", token)
	env.app.ServeHTTP(rec, req)
	var streak progress.Streak
	decode(t, rec, &streak)
	if streak.CurrentStreak != 1 {
		t.Errorf("streak = %+v", streak)
	}
}
