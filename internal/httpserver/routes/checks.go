package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/mw"
)

func init() { Register(registerChecks) }

func registerChecks(r chi.Router, d deps.Deps) {
	internal := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	internal.Get("/get-check-info", handlers.CheckInfo(d))
	internal.Post("/schedule-check", handlers.Schedule(d))
	internal.Get("/check-details", handlers.CheckDetails(d))

	r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.SubmitBurst,
		RefillPerIPPerMin: d.SubmitPerMin,
		MaxEntries:        10000,
		IdleTTL:           15 * time.Minute,
		TrustProxy:        d.TrustProxy,
	})).Post("/submit-check", handlers.Submit(d))
}
