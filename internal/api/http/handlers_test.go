package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/domain"
	"traderboard/internal/rating"
	"traderboard/internal/service"
	"traderboard/internal/window"
)

// --- helpers ---

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

type fakeClock struct {
	mu sync.Mutex
	ts time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

func (c *fakeClock) Set(ts time.Time) {
	c.mu.Lock()
	c.ts = ts
	c.mu.Unlock()
}

type stubChecker struct {
	err error
}

func (c stubChecker) Health(context.Context) error { return c.err }

type testEnv struct {
	svc    *service.Service
	clk    *fakeClock
	router http.Handler
}

func newTestEnv(t *testing.T, checks map[string]HealthChecker) *testEnv {
	t.Helper()

	clk := &fakeClock{ts: time.Date(2024, 1, 8, 10, 0, 30, 0, time.Local)}
	svc := service.New(newTestLogger(), func(*domain.RatingResult) {}, service.Options{
		Clock: clk.Now,
		Week: rating.Options{
			SettleDelay:  10 * time.Millisecond,
			GracePeriod:  50 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
		},
	})
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Stop() })

	h := NewHandler(Deps{
		Log:    newTestLogger(),
		Svc:    svc,
		Checks: checks,
	})

	return &testEnv{
		svc:    svc,
		clk:    clk,
		router: BuildRouter(h, nil, nil, nil),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "ok", envelope.Status)
	return envelope.Data
}

// --- tests ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_AllHealthy(t *testing.T) {
	env := newTestEnv(t, map[string]HealthChecker{
		"redis": stubChecker{},
	})

	rec := env.do(t, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_UnhealthyDependency(t *testing.T) {
	env := newTestEnv(t, map[string]HealthChecker{
		"redis": stubChecker{err: errors.New("connection refused")},
	})

	rec := env.do(t, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/users", map[string]any{"id": 10, "name": "test11"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool { return env.svc.IsUserRegistered(10) },
		2*time.Second, 5*time.Millisecond)
}

func TestRegisterUser_BadJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/users", map[string]any{"id": 10, "name": "test11"})
	env.do(t, http.MethodPost, "/api/users/10/connect", nil)

	require.Eventually(t, func() bool { return env.svc.IsUserConnected(10) },
		2*time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodGet, "/api/users/10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, "test11", data["name"])
	assert.Equal(t, true, data["connected"])
}

func TestUserStatus_NotRegistered(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/users/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserStatus_InvalidID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameUser(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/users", map[string]any{"id": 10, "name": "test11"})
	rec := env.do(t, http.MethodPut, "/api/users/10/name", map[string]any{"name": "test12"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		name, ok := env.svc.UserName(10)
		return ok && name == "test12"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnectUser(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/users", map[string]any{"id": 10, "name": "test11"})
	env.do(t, http.MethodPost, "/api/users/10/connect", nil)
	require.Eventually(t, func() bool { return env.svc.IsUserConnected(10) },
		2*time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodPost, "/api/users/10/disconnect", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool { return !env.svc.IsUserConnected(10) },
		2*time.Second, 5*time.Millisecond)
}

func TestDealWon_NegativeAmount(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/deals", map[string]any{
		"ts":      env.clk.Now().Unix(),
		"user_id": 10,
		"amount":  -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserRating_NoWinnings(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/users/10/rating", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserRating_AfterDeal(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/users", map[string]any{"id": 10, "name": "test11"})
	env.do(t, http.MethodPost, "/api/users/10/connect", nil)

	rec := env.do(t, http.MethodPost, "/api/deals", map[string]any{
		"ts":      env.clk.Now().Unix(),
		"user_id": 10,
		"amount":  42.5,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	// past the minute end the deal gets folded into the week totals
	_, minuteEnd := window.MinuteBounds(env.clk.Now())
	env.clk.Set(minuteEnd.Add(20 * time.Millisecond))

	require.Eventually(t, func() bool {
		return env.do(t, http.MethodGet, "/api/users/10/rating", nil).Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	data := decodeData(t, env.do(t, http.MethodGet, "/api/users/10/rating", nil))
	assert.Equal(t, 42.5, data["amount"])
}
