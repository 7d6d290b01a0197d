package wiki

import (
	"fmt"
	"strings"
	"time"
)

// Zone is the fixed UTC+8 zone the wiki publishes all dates in.
var Zone = time.FixedZone("UTC+8", 8*60*60)

// Layouts accepted for absolute dates, tried in order. Dates without a
// clock time resolve to local midnight.
var wikiLayouts = []string{
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2006年1月2日 15:04:05",
	"2006年1月2日 15:04",
	"2006年1月2日",
}

// ParseWikiTime parses an absolute date string as found in wiki cells.
// RFC 3339 input keeps its own offset; every other layout is read in Zone.
func ParseWikiTime(s string) (time.Time, error) {
	v := collapseSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("parse time: empty value")
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	for _, layout := range wikiLayouts {
		if t, err := time.ParseInLocation(layout, v, Zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognized format", v)
}

// cleanText strips line breaks and surrounding whitespace from cell text.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
