package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports 200 while the history database answers. A missing queue
// only degrades the coordinator: results are still accepted.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"sqlite": checkStore(ctx, d),
			"queue":  checkQueue(ctx, d),
		}

		resp := readyzResponse{
			Ready:      components["sqlite"].OK,
			Mode:       determineMode(components),
			Components: components,
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(d, w, status, resp)
	}
}

func determineMode(components map[string]componentStatus) string {
	if !components["sqlite"].OK {
		return "critical"
	}
	if !components["queue"].OK {
		return "degraded"
	}
	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkQueue(ctx context.Context, d deps.Deps) componentStatus {
	q := d.Coordinator.Queue()
	if q == nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "schedule-check-disabled",
			Error:  "queue not connected",
		}
	}
	if err := q.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "schedule-check-disabled",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}
