package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/coordinator"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	AllowedCIDRS  []string             // IPs allowed to reach the internal endpoints (empty = no filter)
	TrustProxy    bool                 // true if running behind a trusted reverse proxy
	Coordinator   *coordinator.Service // due set, dispatch, result correlation
	Store         Pinger               // sqlite history, checked by /readyz
	ReloadTrigger chan struct{}        // manual target reload (nil if no targets file)
	SubmitBurst   int                  // /submit-check rate limit burst per client IP
	SubmitPerMin  int                  // /submit-check rate limit refill per client IP
	MaxBodyBytes  int64                // request body cap for JSON endpoints
}
