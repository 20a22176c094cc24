package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/learningcloud/backend/core/content"
)

func Test_contentApi_catalog(t *testing.T) {
	env := setup(t)
	_, token := env.seedStudent(t, "amina01", "1234", 2)

	math := env.db.AddSubject(content.Subject{Name: "Math", GradeLevel: 2, IsActive: true})
	french := env.db.AddSubject(content.Subject{Name: "French", GradeLevel: 3, IsActive: true})
	env.db.AddSubject(content.Subject{Name: "Retired", GradeLevel: 2, IsActive: false})
	chapter := env.db.AddChapter(content.Chapter{SubjectID: math.ID, Title: "Fractions", IsActive: true})
	env.db.AddChapter(content.Chapter{SubjectID: french.ID, Title: "Greetings", IsActive: true})
	lesson := env.db.AddLesson(content.Lesson{ChapterID: chapter.ID, Title: "Halves", ContentType: "READING", IsActive: true})

	type listResp struct {
		Count   int `json:"count"`
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	list := func(t *testing.T, path string) listResp {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: code = %d; body %s", path, rec.Code, rec.Body.String())
		}
		var resp listResp
		decode(t, rec, &resp)
		return resp
	}

	t.Run("subjects are public", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/v1/subjects")
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var resp listResp
		decode(t, rec, &resp)
		if resp.Count != 2 { // inactive hidden
			t.Errorf("count = %d, want 2", resp.Count)
		}
	})

	t.Run("chapters need a login", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/v1/chapters")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("subjects by grade", func(t *testing.T) {
		resp := list(t, "/api/v1/subjects?grade_level=3")
		if resp.Count != 1 || resp.Results[0].ID != french.ID {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("subject detail", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/v1/subjects/%d", math.ID))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var got content.Subject
		decode(t, rec, &got)
		if got.Name != "Math" {
			t.Errorf("Name = %q", got.Name)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/v1/subjects/999")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found", Code: "not_found"})}, rec)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/v1/subjects/abc")
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %d, want 404", rec.Code)
		}
	})

	t.Run("chapters by subject", func(t *testing.T) {
		resp := list(t, fmt.Sprintf("/api/v1/chapters?subject=%d", math.ID))
		if resp.Count != 1 || resp.Results[0].ID != chapter.ID {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("lessons by chapter", func(t *testing.T) {
		resp := list(t, fmt.Sprintf("/api/v1/lessons?chapter=%d", chapter.ID))
		if resp.Count != 1 || resp.Results[0].ID != lesson.ID {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("lesson search", func(t *testing.T) {
		resp := list(t, "/api/v1/lessons?search=halv")
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
	})
}
