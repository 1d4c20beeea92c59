package homepage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/service"
)

// MapBookmarks flattens the config into importable bookmarks. The group name
// becomes a tag and the bookmark name the title. A URL listed in several
// groups yields one bookmark carrying every group. Entries without href
// (often an unresolved template variable) are skipped.
func MapBookmarks(config BookmarksConfig) ([]service.ImportedBookmark, error) {
	var out []service.ImportedBookmark
	byURL := make(map[string]int)

	for _, group := range config {
		for _, groupName := range sortedKeys(group) {
			tag := strings.TrimSpace(groupName)
			for _, bookmarkMap := range group[groupName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					if len(entries) == 0 {
						continue
					}
					entry := entries[0]

					href := strings.TrimSpace(entry.Href)
					if href == "" {
						continue
					}

					if i, ok := byURL[href]; ok {
						out[i].Tags = appendUnique(out[i].Tags, tag)
						continue
					}

					title := strings.TrimSpace(name)
					if title == "" {
						title = entry.Abbr
					}

					byURL[href] = len(out)
					out = append(out, service.ImportedBookmark{
						Title: title,
						URL:   href,
						Tags:  appendUnique(nil, tag),
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid bookmarks found in config")
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
