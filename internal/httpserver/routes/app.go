package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/stash/internal/httpserver/mw"
)

const realm = "stash"

func init() { Register("app", registerApp) }

// registerApp mounts the page and the JSON API behind basic auth. The rate
// limiter runs after auth so that buckets are keyed by user.
func registerApp(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(mw.BasicAuth(d.Users, realm, d.TrustProxy, d.Logger))
		r.Use(mw.RateLimit(mw.RateLimitConfig{
			Burst:        d.RateLimitBurst,
			RefillPerMin: d.RateLimitRate,
			MaxEntries:   10_000,
			TrustProxy:   d.TrustProxy,
			Now:          d.TimeNow,
		}))

		r.Get("/", handlers.Index(d))

		r.Route("/api", func(r chi.Router) {
			r.Get("/user", handlers.CurrentUser(d))

			r.Route("/tag", func(r chi.Router) {
				r.Get("/", handlers.ListTags(d))
				r.Post("/", handlers.CreateTag(d))
				r.Put("/", handlers.UpdateTag(d))
				r.Delete("/", handlers.DeleteTag(d))
			})

			r.Route("/bookmark", func(r chi.Router) {
				r.Get("/", handlers.ListBookmarks(d))
				r.Post("/", handlers.CreateBookmark(d))
				r.Delete("/", handlers.DeleteBookmark(d))

				r.Post("/tag", handlers.AddBookmarkTags(d))
				r.Delete("/tag", handlers.DropBookmarkTags(d))
				r.Post("/visit", handlers.LogVisit(d))
				r.Post("/refresh", handlers.RefreshBookmark(d))
				r.Get("/search", handlers.SearchBookmarks(d))
			})
		})
	})
}
