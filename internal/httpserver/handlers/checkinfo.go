package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// CheckInfo lists the targets due for a check, with the flags to dispatch.
func CheckInfo(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, err := d.Coordinator.DueSet(r.Context())
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		d.Logger.Debug("due set computed", logger.Int("due", len(due)))
		writeJSON(d, w, http.StatusOK, due)
	}
}
