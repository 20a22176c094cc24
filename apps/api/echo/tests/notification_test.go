package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/learningcloud/backend/core/notification"
	"github.com/learningcloud/backend/core/user"
)

func (env *testEnv) seedNotifications(t *testing.T, usr user.User, n int) []notification.Notification {
	t.Helper()
	notifs := make([]notification.Notification, 0, n)
	for i := 0; i < n; i++ {
		notif, err := env.notifSvc.Create(context.Background(), notification.Notification{
			UserID:  usr.ID,
			Type:    notification.TypeSystem,
			Title:   fmt.Sprintf("Announcement %d", i+1),
			Message: "School reopens Monday.",
		})
		if err != nil {
			t.Fatalf("seeding notification: %v", err)
		}
		notifs = append(notifs, notif)
	}
	return notifs
}

func Test_notificationApi(t *testing.T) {
	env := setup(t)
	student, token := env.seedStudent(t, "amina01", "1234", 2)
	_, otherToken := env.seedStudent(t, "bob01", "1234", 2)
	notifs := env.seedNotifications(t, student, 3)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/v1/notifications")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/notifications", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Count   int                         `json:"count"`
			Results []notification.Notification `json:"results"`
		}
		decode(t, rec, &resp)
		if resp.Count != 3 {
			t.Errorf("count = %d, want 3", resp.Count)
		}
	})

	t.Run("scoped to recipient", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/notifications", otherToken)
		env.app.ServeHTTP(rec, req)
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, rec, &resp)
		if resp.Count != 0 {
			t.Errorf("count = %d, want 0", resp.Count)
		}
	})

	t.Run("detail", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/notifications/%d", notifs[0].ID)
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var got notification.Notification
		decode(t, rec, &got)
		if got.ID != notifs[0].ID || got.Title != "Announcement 1" {
			t.Errorf("notification = %+v", got)
		}

		req, rec = newAuthRequest(http.MethodGet, path, otherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found", Code: "not_found"})}, rec)
	})

	t.Run("unread count", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/notifications/unread-count", token)
		env.app.ServeHTTP(rec, req)
		wantData := marchallObj(t, map[string]int{"unread_count": 3})
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: wantData}, rec)
	})

	t.Run("mark one read", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/notifications/%d/read", notifs[0].ID)
		req, rec := newAuthRequest(http.MethodPost, path, token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/notifications/unread-count", token)
		env.app.ServeHTTP(rec, req)
		wantData := marchallObj(t, map[string]int{"unread_count": 2})
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: wantData}, rec)
	})

	t.Run("cannot mark someone else's", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/notifications/%d/read", notifs[1].ID)
		req, rec := newAuthRequest(http.MethodPost, path, otherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found", Code: "not_found"})}, rec)
	})

	t.Run("filter by read state", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/notifications?is_read=true", token)
		env.app.ServeHTTP(rec, req)
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("read count = %d, want 1", resp.Count)
		}
	})

	t.Run("mark all read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/notifications/read-all", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/notifications/unread-count", token)
		env.app.ServeHTTP(rec, req)
		wantData := marchallObj(t, map[string]int{"unread_count": 0})
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: wantData}, rec)
	})

	t.Run("achievements arrive from quiz flow", func(t *testing.T) {
		_, qz, questions := env.seedCatalog(t)
		started := env.startQuiz(t, token, qz.ID)
		answers := []string{"true", "B", "C", "1", "false"}
		for i, q := range questions {
			env.submitAnswer(t, token, started.SessionKey, q.ID, answers[i])
		}
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/sessions/"+started.SessionKey+"/complete", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("complete failed: %s", rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/notifications?notification_type="+notification.TypeQuizResult, token)
		env.app.ServeHTTP(rec, req)
		var resp struct {
			Count   int                         `json:"count"`
			Results []notification.Notification `json:"results"`
		}
		decode(t, rec, &resp)
		if resp.Count != 1 {
			t.Fatalf("quiz result notifications = %d, want 1", resp.Count)
		}
		if got := resp.Results[0]; got.Title != "Quiz result: Fractions Quiz" {
			t.Errorf("Title = %q", got.Title)
		}
	})
}
