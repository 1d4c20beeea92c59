package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/scheduler"
	"github.com/MrSnakeDoc/stash/internal/utils"
)

type reloadResponse struct {
	Rescore bool `json:"rescore"`
	Import  bool `json:"import"`
}

// Reload triggers the rescore of every user and, when configured, a
// bookmarks.yaml import. It answers 429 when both are already pending.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := reloadResponse{
			Rescore: scheduler.Notify(d.RescoreTrigger),
			Import:  scheduler.Notify(d.ImportTrigger),
		}

		d.Logger.Info("manual reload requested",
			logger.Bool("rescore", resp.Rescore),
			logger.Bool("import", resp.Import),
			logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)))

		status := http.StatusAccepted
		if !resp.Rescore && !resp.Import {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, resp)
	}
}
