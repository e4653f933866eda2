package library

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// suggestionThreshold is the minimum Jaro-Winkler similarity for a name to be suggested
const suggestionThreshold = 0.7

// SuggestNames returns up to max candidates that look like name, best match first.
// Matching ignores case; a candidate containing name as a substring always qualifies.
func SuggestNames(name string, candidates []string, max int) []string {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" || max <= 0 {
		return nil
	}

	type scored struct {
		name  string
		score float32
	}
	var matches []scored
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if lc == query {
			continue
		}
		score, err := edlib.StringsSimilarity(query, lc, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if strings.Contains(lc, query) && score < 1 {
			score = (score + 1) / 2
		}
		if score >= suggestionThreshold {
			matches = append(matches, scored{name: c, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return edlib.LevenshteinDistance(query, strings.ToLower(matches[i].name)) <
			edlib.LevenshteinDistance(query, strings.ToLower(matches[j].name))
	})

	out := make([]string, 0, max)
	for _, m := range matches {
		if len(out) == max {
			break
		}
		out = append(out, m.name)
	}
	return out
}

// SuggestNames returns visible library names similar to name
func (r *Registry) SuggestNames(name string, max int) []string {
	libs := r.Libraries()
	names := make([]string, len(libs))
	for i, lib := range libs {
		names[i] = lib.Name()
	}
	return SuggestNames(name, names, max)
}
