package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
)

type buildInfo struct {
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

type healthzResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Store         componentStatus `json:"store"`
	Build         buildInfo       `json:"build"`
}

// Healthz answers 200 while the process serves requests. An unreachable
// store only marks it degraded; /readyz is the endpoint that returns 503.
func Healthz(d deps.Deps) http.HandlerFunc {
	build := buildInfo{
		Version:   d.Version,
		Commit:    d.Commit,
		BuildDate: d.BuildDate,
		GoVersion: d.GoVersion,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		st := checkStore(ctx, d)
		status := "ok"
		if !st.OK {
			status = "degraded"
			st.Error = ""
		}
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        status,
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			Store:         st,
			Build:         build,
		})
	}
}
