package domain

import (
	"math"
	"net/url"
	"sort"
	"strings"
)

const (
	// Lexical weights
	MatchExact     = 100.0
	MatchPrefix    = 75.0
	MatchSubstring = 50.0
	MatchFuzzy     = 25.0

	// Position bonus (earlier is better)
	MatchPositionBonus = 10.0

	// Exact title bonus
	MatchExactTitleBonus = 200.0

	// Host matches count for less than title matches
	MatchHostWeight = 0.6

	// Visit rate contributes to the final score
	MatchUsageWeight = 0.1
)

// BookmarkCandidate is a search hit with its score breakdown.
type BookmarkCandidate struct {
	Bookmark     Bookmark `json:"bookmark"`
	LexicalScore float64  `json:"lexicalScore"`
	UsageScore   float64  `json:"usageScore"`
	TotalScore   float64  `json:"totalScore"`
}

// MatchBookmark scores a bookmark's title and host against a query.
func MatchBookmark(query string, bookmark Bookmark) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0.0
	}

	title := matchText(query, strings.ToLower(bookmark.Title))
	host := matchText(query, hostOf(bookmark.URL)) * MatchHostWeight
	return math.Max(title, host)
}

func matchText(query, text string) float64 {
	if text == "" {
		return 0.0
	}

	if query == text {
		return MatchExact + MatchExactTitleBonus
	}

	if strings.HasPrefix(text, query) {
		return MatchPrefix
	}

	if idx := strings.Index(text, query); idx >= 0 {
		bonus := MatchPositionBonus * (1.0 - float64(idx)/float64(len(text)))
		return MatchSubstring + bonus
	}

	// All query words present
	words := strings.Fields(query)
	if len(words) > 1 {
		all := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				all = false
				break
			}
		}
		if all {
			return MatchFuzzy
		}
	}

	if sim := similarity(query, text); sim > 0.5 {
		return MatchFuzzy * sim
	}

	return 0.0
}

// similarity is the share of query runes that appear in text.
func similarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0.0
	}
	matches, total := 0, 0
	for _, c := range s1 {
		total++
		if strings.ContainsRune(s2, c) {
			matches++
		}
	}
	return float64(matches) / float64(total)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// RankBookmarkCandidates returns matching bookmarks ordered by total score.
// scores maps bookmark id to visit rate; missing ids contribute nothing.
func RankBookmarkCandidates(query string, bookmarks []Bookmark, scores map[string]float64) []BookmarkCandidate {
	candidates := make([]BookmarkCandidate, 0, len(bookmarks))

	for _, b := range bookmarks {
		lexical := MatchBookmark(query, b)
		if lexical == 0.0 {
			continue
		}

		// Logarithmic so heavy use never drowns a better title match
		usage := 0.0
		if rate := scores[b.ID]; rate > 0 {
			usage = math.Log10(rate+1) * MatchUsageWeight * 100
		}

		candidates = append(candidates, BookmarkCandidate{
			Bookmark:     b,
			LexicalScore: lexical,
			UsageScore:   usage,
			TotalScore:   lexical + usage,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].TotalScore != candidates[j].TotalScore {
			return candidates[i].TotalScore > candidates[j].TotalScore
		}
		return candidates[i].Bookmark.CreatedAt.After(candidates[j].Bookmark.CreatedAt)
	})

	return candidates
}
