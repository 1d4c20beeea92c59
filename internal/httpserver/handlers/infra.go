package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
	LastRuns   []domain.RecomputeRun      `json:"last_runs,omitempty"`
}

// Infra reports the state of the store and of the optional Redis throttle,
// with the last recompute run of each user when Redis keeps them.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"store": checkStore(ctx, d),
			"redis": checkRedis(ctx, d),
		}

		resp := infraResponse{
			Mode:       determineMode(components),
			Components: components,
		}
		if d.Runs != nil && components["redis"].OK {
			if runs, err := d.Runs.Runs(ctx); err == nil {
				resp.LastRuns = runs
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func determineMode(components map[string]componentStatus) string {
	if !components["store"].OK {
		return "critical"
	}
	// Without Redis, throttling falls back to a per-process window.
	if redis := components["redis"]; !redis.OK && redis.Mode != "disabled" {
		return "degraded"
	}
	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.StoreKind, Impact: "bookmarks-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StoreKind}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "local-throttle",
		}
	}

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "throttle-fails-open",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "shared-throttle",
	}
}
