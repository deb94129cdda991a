// Package health serves the /health endpoint in the IETF health-check
// draft format: a top-level pass/warn/fail status plus a per-component
// checks map.
//
// A "warn" check (e.g. the ASR model still warming up) keeps the endpoint
// at 200 so orchestrators do not restart a server that is merely slow to
// become fully ready; any "fail" check turns the response into a 503.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single check may take before the
// context is cancelled.
const checkTimeout = 5 * time.Second

// Status is the health state of the service or of one component.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckResult is one observation of a component's health.
type CheckResult struct {
	Status        Status `json:"status"`
	ComponentType string `json:"componentType,omitempty"`
	ObservedValue any    `json:"observedValue,omitempty"`
	Output        string `json:"output,omitempty"`
	Time          string `json:"time,omitempty"`
}

// Checker is a named health check. Check must respect context cancellation
// and should return quickly; it runs on every /health request.
type Checker struct {
	// Name identifies the component and measurement, conventionally
	// "component:measurement" (e.g. "asr:availability").
	Name string

	// ComponentType classifies the component (e.g. "component", "datastore").
	ComponentType string

	// Check probes the component.
	Check func(ctx context.Context) CheckResult
}

// response is the JSON body of the /health endpoint.
type response struct {
	Status  Status                   `json:"status"`
	Version string                   `json:"version,omitempty"`
	Checks  map[string][]CheckResult `json:"checks,omitempty"`
}

// Handler serves /health. It is safe for concurrent use; the checker list
// is fixed at construction time.
type Handler struct {
	version  string
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each request,
// sequentially in the order provided.
func New(version string, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{version: version, checkers: c}
}

// ServeHTTP evaluates all checks and writes the aggregate. The overall
// status is the worst individual status: any fail makes the response a 503,
// warns alone keep it at 200.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	overall := StatusPass
	checks := make(map[string][]CheckResult, len(h.checkers))

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		res := c.Check(ctx)
		cancel()

		if res.ComponentType == "" {
			res.ComponentType = c.ComponentType
		}
		res.Time = now
		checks[c.Name] = append(checks[c.Name], res)

		switch res.Status {
		case StatusFail:
			overall = StatusFail
		case StatusWarn:
			if overall == StatusPass {
				overall = StatusWarn
			}
		}
	}

	status := http.StatusOK
	if overall == StatusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response{Status: overall, Version: h.version, Checks: checks})
}

// Register adds the /health route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /health", h)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/health+json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"fail"}`, http.StatusInternalServerError)
	}
}
