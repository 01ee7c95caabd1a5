package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestIssueAndParse(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	sess, err := s.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := s.Parse(sess.Token)
	if err != nil || c.SessionID != sess.SessionID {
		t.Fatalf("parse: %+v %v", c, err)
	}

	other := NewSessions("other", time.Hour)
	if _, err := other.Parse(sess.Token); err == nil {
		t.Fatal("token accepted with wrong secret")
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Parse(sess.Token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestRequireSession(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	var seen string
	h := RequireSession(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", rr.Code)
	}

	rec := httptest.NewRecorder()
	SessionHandler(s).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("session status=%d body=%s", rec.Code, rec.Body.String())
	}
	var sess Session
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || seen != sess.SessionID {
		t.Fatalf("status=%d seen=%q want %q", rr.Code, seen, sess.SessionID)
	}
}

func TestRequireAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := RequireAdmin("admin", string(hash))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	cases := []struct {
		user, pass string
		want       int
	}{
		{"admin", "pw", http.StatusNoContent},
		{"admin", "bad", http.StatusUnauthorized},
		{"root", "pw", http.StatusUnauthorized},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetBasicAuth(c.user, c.pass)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != c.want {
			t.Fatalf("%s/%s: status=%d", c.user, c.pass, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	RequireAdmin("admin", "")(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("disabled status=%d", rr.Code)
	}
}
