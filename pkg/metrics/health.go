package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the component report served on /health/components
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// criticalComponents make the whole process unhealthy when they fail; any
// other failing component only degrades it
var criticalComponents = map[string]bool{
	"store":      true,
	"reconciler": true,
}

// ComponentHealth is the last report of one component
type ComponentHealth struct {
	Healthy bool
	Message string
	Updated time.Time

	// StaleAfter, when set, marks the component unhealthy if it has not
	// reported for that long
	StaleAfter time.Duration
}

func (c ComponentHealth) state(now time.Time) (bool, string) {
	if c.StaleAfter > 0 && now.Sub(c.Updated) > c.StaleAfter {
		return false, "stale: no report for " + now.Sub(c.Updated).Truncate(time.Second).String()
	}
	if !c.Healthy {
		return false, "unhealthy: " + c.Message
	}
	return true, "healthy"
}

type healthRegistry struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
	now        func() time.Time
}

var healthChecker = newHealthRegistry()

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterComponent records a component's current health
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	c := healthChecker.components[name]
	c.Healthy = healthy
	c.Message = message
	c.Updated = healthChecker.now()
	healthChecker.components[name] = c
}

// UpdateComponent is RegisterComponent for components already known
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// ExpectUpdates marks name stale once it goes longer than every without
// an update. Loops that report on each cycle use it to surface a hang.
func ExpectUpdates(name string, every time.Duration) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	c, ok := healthChecker.components[name]
	if !ok {
		c.Healthy = true
		c.Updated = healthChecker.now()
	}
	c.StaleAfter = every
	healthChecker.components[name] = c
}

// GetHealth returns the overall health status
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	now := healthChecker.now()
	status := "healthy"
	components := make(map[string]string, len(healthChecker.components))

	for name, comp := range healthChecker.components {
		ok, text := comp.state(now)
		components[name] = text
		switch {
		case ok:
		case criticalComponents[name]:
			status = "unhealthy"
		case status == "healthy":
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  now,
		Components: components,
		Version:    healthChecker.version,
		Uptime:     now.Sub(healthChecker.startTime).Truncate(time.Second).String(),
	}
}

// HealthHandler serves GetHealth; only an unhealthy status answers 503
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()

		code := http.StatusOK
		if health.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// LivenessHandler answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).Truncate(time.Second).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
