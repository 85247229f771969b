package adjudicated

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loadgate/engine"
)

// statusResponse is the JSON body served by GET /status.
type statusResponse struct {
	RunID    string       `json:"run_id"`
	Scenario string       `json:"scenario"`
	Stats    engine.Stats `json:"stats"`
}

// NewAdminServer exposes health, run progress, and metrics endpoints for
// operators. It reads engine progress only; it has no mutation path into
// the run.
func NewAdminServer(eng *engine.Engine, runID, scenarioName string) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{
			RunID:    runID,
			Scenario: scenarioName,
			Stats:    eng.Progress(),
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
