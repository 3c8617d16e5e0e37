package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
)

// Submit records the results a worker posts after finishing a task.
func Submit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub domain.Submission
		if err := decodeBody(d, w, r, &sub); err != nil {
			writeError(d, w, r, err)
			return
		}
		if strings.TrimSpace(sub.URL) == "" {
			writeError(d, w, r, fmt.Errorf("%w: missing url", errBadRequest))
			return
		}

		if err := d.Coordinator.Submit(r.Context(), sub); err != nil {
			writeError(d, w, r, err)
			return
		}
		writeText(d, w, http.StatusOK, "OK")
	}
}
