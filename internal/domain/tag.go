package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Visibility is the display tier of a tag.
type Visibility string

const (
	// Primary tags are shown by default.
	Primary Visibility = "PRIMARY"
	// Secondary tags are hidden behind "show more".
	Secondary Visibility = "SECONDARY"
)

// ParseVisibility accepts the literal names, case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToUpper(strings.TrimSpace(s))) {
	case Primary:
		return Primary, nil
	case Secondary:
		return Secondary, nil
	default:
		return "", fmt.Errorf("invalid tag visibility %q", s)
	}
}

func (v Visibility) rank() int {
	if v == Primary {
		return 0
	}
	return 1
}

// Tag is a named label owned by one user. (user, name) is unique.
type Tag struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewTag mints a tag with the factory's id and clock.
func NewTag(f Factory, name string, visibility Visibility) Tag {
	return Tag{
		ID:         f.IDs.NewID(),
		Name:       name,
		Visibility: visibility,
		CreatedAt:  f.Clock.Now(),
	}
}

// SortTags returns tags ordered PRIMARY by name, then SECONDARY by name.
// The input slice is not modified.
func SortTags(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	copy(out, tags)
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Visibility.rank(), out[j].Visibility.rank(); ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TagIDs extracts ids, keeping order.
func TagIDs(tags []Tag) []string {
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
