package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/service"
	"github.com/MrSnakeDoc/stash/internal/store"
	redisstore "github.com/MrSnakeDoc/stash/internal/store/redis"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time          // for testing, defaults to time.Now
	AllowedHosts   []string                  // Host headers allowed to access the server
	AllowedCIDRS   []string                  // IPs allowed to access ops endpoints
	TrustProxy     bool                      // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimitBurst int                       // API requests allowed in a burst, per client IP
	RateLimitRate  int                       // API requests refilled per minute, per client IP
	Users          *auth.Users               // Basic-auth credentials
	Bookmarks      *service.BookmarkService  // Bookmark and tag operations
	Recomputer     *service.Recomputer       // Background score recompute
	Store          store.Store               // Backing store, for readiness checks
	StoreKind      string                    // "sqlite" or "memory"
	RedisClient    *redis.Client             // nil when Redis is not configured
	Runs           *redisstore.Store         // Last recompute runs; nil without Redis
	Metrics        *metrics.Metrics          // nil disables instrumentation
	RescoreTrigger chan struct{}             // Channel to trigger a manual rescore of every user
	ImportTrigger  chan struct{}             // Channel to trigger a manual bookmarks.yaml import (nil if disabled)
}

// Now returns the injected clock, or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
