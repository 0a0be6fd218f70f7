package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T, version string) *time.Time {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	healthChecker = newHealthRegistry()
	healthChecker.version = version
	healthChecker.now = func() time.Time { return now }
	return &now
}

func TestRegisterComponent(t *testing.T) {
	resetHealth(t, "")

	RegisterComponent("store", true, "open")
	require.Len(t, healthChecker.components, 1)

	comp := healthChecker.components["store"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "open", comp.Message)

	UpdateComponent("store", false, "closed")
	assert.False(t, healthChecker.components["store"].Healthy)
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name   string
		setup  func()
		status string
	}{
		{
			name: "all healthy",
			setup: func() {
				RegisterComponent("store", true, "")
				RegisterComponent("api", true, "")
			},
			status: "healthy",
		},
		{
			name: "non-critical component down",
			setup: func() {
				RegisterComponent("store", true, "")
				RegisterComponent("api", false, "listener closed")
			},
			status: "degraded",
		},
		{
			name: "critical component down",
			setup: func() {
				RegisterComponent("api", false, "listener closed")
				RegisterComponent("store", false, "database not open")
			},
			status: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t, "0.4.0")
			tt.setup()

			health := GetHealth()
			assert.Equal(t, tt.status, health.Status)
			assert.Equal(t, "0.4.0", health.Version)
		})
	}
}

func TestStaleComponent(t *testing.T) {
	now := resetHealth(t, "")

	RegisterComponent("reconciler", true, "")
	ExpectUpdates("reconciler", 90*time.Second)

	assert.Equal(t, "healthy", GetHealth().Status)

	*now = now.Add(2 * time.Minute)
	health := GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Contains(t, health.Components["reconciler"], "stale")

	RegisterComponent("reconciler", true, "")
	assert.Equal(t, "healthy", GetHealth().Status, "a fresh report clears staleness")
}

func TestExpectUpdatesBeforeFirstReport(t *testing.T) {
	now := resetHealth(t, "")

	ExpectUpdates("reconciler", time.Minute)
	assert.Equal(t, "healthy", GetHealth().Status)

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, "unhealthy", GetHealth().Status)
}

func TestHealthHandlers(t *testing.T) {
	resetHealth(t, "")
	RegisterComponent("store", true, "")
	RegisterComponent("reconciler", true, "")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  string
	}{
		{"health", HealthHandler(), "healthy"},
		{"live", LivenessHandler(), "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/"+tt.name, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	resetHealth(t, "")
	RegisterComponent("api", false, "closed")

	rec := httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded still serves")

	RegisterComponent("store", false, "closed")
	rec = httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
