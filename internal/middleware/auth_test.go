package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/splitweek/internal/auth"
)

type stubVerifier map[string]auth.AuthContext

func (s stubVerifier) Verify(token string) (auth.AuthContext, error) {
	ac, ok := s[token]
	if !ok {
		return auth.AuthContext{}, errors.New("bad token")
	}
	return ac, nil
}

func TestRequireBearerRejects(t *testing.T) {
	handler := RequireBearer(stubVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer wrong"} {
		req := httptest.NewRequest("GET", "/api/children", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want %d", header, rec.Code, http.StatusUnauthorized)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
			t.Errorf("%q: body = %v, err = %v", header, body, err)
		}
	}
}

func TestRequireBearerPopulatesContext(t *testing.T) {
	verifier := stubVerifier{"good": {UserID: 7, Email: "mario@example.com"}}

	var got auth.AuthContext
	handler := RequireBearer(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got.UserID != 7 || got.Email != "mario@example.com" {
		t.Errorf("auth context = %+v", got)
	}
}
