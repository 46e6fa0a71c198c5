package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck reports whether a dependency (store, cache, provider pool) is
// ready to serve traffic. It returns nil when the check passes.
type ReadyCheck func(ctx context.Context) error

// HealthHandler answers liveness probes at /healthz. It always returns 200;
// the process being able to answer at all is the signal.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, healthStatusOK)
	})
}

// ReadyHandler answers readiness probes at /readyz, running each check in
// order and failing fast on the first error.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				writeHealthJSON(w, http.StatusServiceUnavailable, healthStatusUnavailable)
				return
			}
		}
		writeHealthJSON(w, http.StatusOK, healthStatusOK)
	})
}

func writeHealthJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": body})
}
