package handlers

import (
	"html/template"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/httpserver/mw"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>stash</title>
</head>
<body>
<header><h1>stash</h1><span id="user">{{.User}}</span></header>
<main>
<ul id="bookmarks">
{{- range .Bookmarks}}
<li><a href="{{.URL}}" data-id="{{.ID}}">{{.Title}}</a>{{range .Tags}} <small>{{.Name}}</small>{{end}}</li>
{{- else}}
<li>No untagged bookmarks.</li>
{{- end}}
</ul>
</main>
<footer>stash {{.Version}}</footer>
</body>
</html>
`))

type indexData struct {
	User      string
	Version   string
	Bookmarks []domain.Bookmark
}

// Index serves the landing page and starts a background score recompute for
// the user. The page shows the current ranking; the recompute never delays it.
func Index(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := mw.UserFrom(r.Context())
		if d.Recomputer != nil {
			d.Recomputer.Trigger(user)
		}

		bookmarks, err := d.Bookmarks.Bookmarks(r.Context(), user, nil)
		if err != nil {
			d.Logger.Warn("failed to list bookmarks for page",
				logger.String("user", user),
				logger.Error(err))
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := indexPage.Execute(w, indexData{User: user, Version: d.Version, Bookmarks: bookmarks}); err != nil {
			d.Logger.Debug("failed to write page", logger.Error(err))
		}
	}
}

// CurrentUser returns the authenticated username as a JSON string.
func CurrentUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mw.UserFrom(r.Context()))
	}
}
