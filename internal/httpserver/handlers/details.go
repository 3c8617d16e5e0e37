package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
)

func CheckDetails(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		url := strings.TrimSpace(q.Get("url"))
		if url == "" {
			writeError(d, w, r, fmt.Errorf("%w: missing url", errBadRequest))
			return
		}

		details, err := d.Coordinator.Details(r.Context(), url, strings.TrimSpace(q.Get("owner")))
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		writeJSON(d, w, http.StatusOK, details)
	}
}
