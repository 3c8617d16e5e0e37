package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// Schedule publishes a check task for the target at ?url=. The optional
// JSON body overrides the target's flags for this dispatch only.
func Schedule(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := strings.TrimSpace(r.URL.Query().Get("url"))
		if url == "" {
			writeText(d, w, http.StatusMethodNotAllowed, "missing url")
			return
		}

		var overrides domain.Overrides
		if err := decodeBody(d, w, r, &overrides); err != nil {
			writeError(d, w, r, err)
			return
		}
		if force, err := strconv.ParseBool(r.URL.Query().Get("force-run")); err == nil && force {
			overrides.ForceRun = true
		}

		n, err := d.Coordinator.Schedule(r.Context(), url, overrides)
		if err != nil {
			writeError(d, w, r, err)
			return
		}

		d.Logger.Info("check scheduled",
			logger.String("url", url),
			logger.String("owner", overrides.Owner),
			logger.Int("tasks", n),
			logger.Bool("force_run", overrides.ForceRun))
		writeText(d, w, http.StatusOK, "OK")
	}
}
