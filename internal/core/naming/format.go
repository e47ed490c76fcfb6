package naming

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ncruces/go-strftime"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

const slugMaxLength = 10

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
}

func renderAttribute(v domain.AttributeValue, format string) string {
	raw := strings.TrimSpace(v.Raw)
	if format == "" {
		return raw
	}
	switch v.Definition.DataType {
	case domain.DataTypeInt, domain.DataTypeDecimal, domain.DataTypeBool, domain.DataTypeEntityRef:
		return raw
	default:
		return formatValue(raw, format)
	}
}

// formatValue renders a resolved value. Dates honor a strftime format;
// strings are parsed as ISO-8601 first and returned unchanged when that
// fails.
func formatValue(v any, format string) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		if format == "" {
			return value
		}
		t, ok := parseISO(value)
		if !ok {
			return value
		}
		return strftime.Format(format, t)
	case time.Time:
		return formatTime(value, format)
	case *time.Time:
		if value == nil {
			return ""
		}
		return formatTime(*value, format)
	case []byte:
		return formatValue(string(value), format)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case domain.EntityRef:
		return value.ID
	case *domain.Record:
		if value == nil {
			return ""
		}
		return value.Ref.ID
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func formatTime(t time.Time, format string) string {
	if format != "" {
		return strftime.Format(format, t)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func parseISO(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Slugify lowercases value, folds it to ASCII, joins words with hyphens and
// truncates the result to max bytes.
func Slugify(value string, max int) string {
	asciiFold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(asciiFold, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}

	slug := strings.Trim(b.String(), "-_")
	if max > 0 && len(slug) > max {
		slug = slug[:max]
	}
	return slug
}
