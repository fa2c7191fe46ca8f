package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"traderboard/internal/config"
)

func TestCORS_HeadersSet(t *testing.T) {
	t.Parallel()

	corsMW := NewCORS(&config.CORSConfig{
		Origins: []string{"https://example.com"},
		Methods: []string{"GET", "POST"},
		Headers: []string{"Authorization"},
	})

	var reached bool
	h := corsMW.Handler()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, reached)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	t.Parallel()

	corsMW := NewCORS(&config.CORSConfig{})

	var reached bool
	h := corsMW.Handler()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.False(t, reached, "OPTIONS must not reach the next handler")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestJoinOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "*", joinOrDefault(nil, "*"))
	assert.Equal(t, "a,b", joinOrDefault([]string{"a", "b"}, "*"))
	assert.Equal(t, "a", joinOrDefault([]string{"a", ""}, "*"))
}

func TestSubject_Unauthenticated(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Subject(r))
}
