package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// Reload triggers a manual reload of the targets file.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReloadTrigger == nil {
			writeText(d, w, http.StatusNotFound, "no targets file configured\n")
			return
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual targets reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeText(d, w, http.StatusAccepted, "✅ Reload triggered successfully\n")
		default:
			d.Logger.Warn("targets reload already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeText(d, w, http.StatusTooManyRequests, "⏳ Reload already in progress, please wait\n")
		}
	}
}
