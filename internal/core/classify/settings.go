package classify

import (
	"sort"
	"time"
)

// Settings is the classifier configuration, loaded once at startup.
type Settings struct {
	// Threshold is the minimum rule score accepted without consulting the
	// oracle.
	Threshold float64
	// CatchAllType is predicted when no rule matches anything.
	CatchAllType      string
	DefaultConfidence float64

	FilenameKeywords map[string][]string
	ContentKeywords  map[string][]string

	OracleTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Threshold:         0.7,
		CatchAllType:      "ALT",
		DefaultConfidence: 0.2,
		FilenameKeywords:  map[string][]string{},
		ContentKeywords:   map[string][]string{},
		OracleTimeout:     30 * time.Second,
	}
}

func (s Settings) normalize() Settings {
	out := s
	def := DefaultSettings()

	if out.Threshold < 0 || out.Threshold > 1 {
		out.Threshold = def.Threshold
	}
	if out.CatchAllType == "" {
		out.CatchAllType = def.CatchAllType
	}
	if out.DefaultConfidence <= 0 || out.DefaultConfidence > 1 {
		out.DefaultConfidence = def.DefaultConfidence
	}
	if out.FilenameKeywords == nil {
		out.FilenameKeywords = map[string][]string{}
	}
	if out.ContentKeywords == nil {
		out.ContentKeywords = map[string][]string{}
	}
	if out.OracleTimeout <= 0 {
		out.OracleTimeout = def.OracleTimeout
	}
	return out
}

// Types lists every type code that has filename or content keywords, sorted.
func (s Settings) Types() []string {
	seen := make(map[string]struct{}, len(s.FilenameKeywords)+len(s.ContentKeywords))
	for code := range s.FilenameKeywords {
		seen[code] = struct{}{}
	}
	for code := range s.ContentKeywords {
		seen[code] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
