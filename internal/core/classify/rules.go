package classify

import (
	"fmt"
	"strings"
)

const (
	filenameWeight = 0.5
	contentWeight  = 0.5
)

type candidate struct {
	Type   string
	Score  float64
	Reason string
}

// scoreRules computes the combined keyword score of every configured type.
// Ties on the maximum are broken by the lexicographically smallest type code.
func scoreRules(settings Settings, filename, text string) (candidate, map[string]float64) {
	lowerName := strings.ToLower(filename)
	lowerText := strings.ToLower(text)

	scores := make(map[string]float64)
	best := candidate{}
	var bestName, bestContent float64
	for _, code := range settings.Types() {
		nameRatio := matchRatio(settings.FilenameKeywords[code], lowerName)
		contentRatio := matchRatio(settings.ContentKeywords[code], lowerText)
		score := filenameWeight*nameRatio + contentWeight*contentRatio
		scores[code] = score

		if score > best.Score {
			best = candidate{Type: code, Score: score}
			bestName, bestContent = nameRatio, contentRatio
		}
	}

	if best.Score <= 0 {
		return candidate{
			Type:   settings.CatchAllType,
			Score:  settings.DefaultConfidence,
			Reason: "no filename or content keyword matched",
		}, scores
	}
	best.Reason = fmt.Sprintf("filename match %.2f, content match %.2f", bestName, bestContent)
	return best, scores
}

// matchRatio is the fraction of non-empty keywords found in haystack, which
// must already be lowercased.
func matchRatio(keywords []string, haystack string) float64 {
	total := 0
	found := 0
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		total++
		if haystack != "" && strings.Contains(haystack, keyword) {
			found++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(found) / float64(total)
}
