package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareIssuesAndReusesCookie(t *testing.T) {
	var seenID, seenName, seenSession string
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenID = UserIDFromContext(r.Context())
		seenName = UsernameFromContext(r.Context())
		seenSession = SessionIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if !isValidAnonID(seenID) {
		t.Fatalf("expected anonymous id, got %q", seenID)
	}
	if seenName != deriveUsername(seenID) {
		t.Fatalf("unexpected username %q", seenName)
	}
	if seenSession != DefaultSessionIDValue {
		t.Fatalf("expected default session, got %q", seenSession)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != seenID {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	first := seenID
	req := httptest.NewRequest(http.MethodGet, "/api/me?session_id=tab-2", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seenID != first {
		t.Fatalf("expected cookie id reuse, got %q want %q", seenID, first)
	}
	if seenSession != "tab-2" {
		t.Fatalf("expected session tab-2, got %q", seenSession)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultSessionIDValue},
		{"  tab-1 ", "tab-1"},
		{"bad id with spaces", DefaultSessionIDValue},
		{"a/b", DefaultSessionIDValue},
	}
	for _, tt := range tests {
		if got := sanitizeSessionID(tt.in); got != tt.want {
			t.Errorf("sanitizeSessionID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInvalidCookieIsReplaced(t *testing.T) {
	var seenID string
	h := Middleware(false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenID = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "forged"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seenID == "forged" || !isValidAnonID(seenID) {
		t.Fatalf("expected fresh id, got %q", seenID)
	}
}
