package extract

import (
	"strconv"
	"strings"
)

// NormalizePrice converts a localized price string into a numeric value.
// Currency symbols and thousands separators are stripped; both "1,299.00" and
// "1.299,00" style groupings are handled. The second return value is false when
// the text holds no parseable price; callers persist that as a null price,
// never as zero.
func NormalizePrice(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" {
		return 0, false
	}

	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" {
		return 0, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// the later separator is the decimal mark, the other groups thousands
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		// a single trailing two-digit group is a decimal comma, anything else
		// is thousands grouping ("45,000" or Indian-style "45,00,000")
		idx := strings.LastIndex(cleaned, ",")
		if len(cleaned)-idx-1 == 2 && strings.Count(cleaned, ",") == 1 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasDot:
		// dots grouping thousands ("1.299.000") leave multiple separators
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
