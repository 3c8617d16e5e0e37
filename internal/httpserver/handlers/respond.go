package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/sitecheck/internal/coordinator"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/store/sqlite"
)

const defaultMaxBodyBytes = 32 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(d deps.Deps, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

func writeText(d deps.Deps, w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(msg)); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and answered with 500.
func writeError(d deps.Deps, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeText(d, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coordinator.ErrUnauthorized):
		writeText(d, w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, coordinator.ErrNotFound), errors.Is(err, sqlite.ErrNotFound):
		writeText(d, w, http.StatusNotFound, "Not Found")
	case errors.Is(err, coordinator.ErrQueueUnavailable):
		writeText(d, w, http.StatusServiceUnavailable, "Queue unavailable")
	default:
		d.Logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		writeText(d, w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(d deps.Deps, w http.ResponseWriter, r *http.Request, v interface{}) error {
	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
