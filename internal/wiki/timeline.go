package wiki

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	appLog "wikical/internal/log"
	"wikical/internal/model"
)

// The version history page has no table id; its data table is the only
// one whose header row reaches ten columns.
const versionRowSelector = "tbody:has(tr:first-child th:nth-child(10)) tr:not(:first-child)"

var ErrVersionTableNotFound = errors.New("wiki: version table not found")

// Timeline maps version ids to their effective windows. It is built once
// and never mutated afterwards.
type Timeline struct {
	byVersion map[string]model.VersionInterval
	order     []string
}

// NewTimeline builds a Timeline from intervals. When a version appears more
// than once the first interval is kept.
func NewTimeline(intervals ...model.VersionInterval) *Timeline {
	tl := &Timeline{byVersion: make(map[string]model.VersionInterval, len(intervals))}
	for _, iv := range intervals {
		tl.add(iv)
	}
	return tl
}

func (tl *Timeline) add(iv model.VersionInterval) bool {
	if _, exists := tl.byVersion[iv.Version]; exists {
		return false
	}
	tl.byVersion[iv.Version] = iv
	tl.order = append(tl.order, iv.Version)
	return true
}

// Lookup returns the interval for version, if known.
func (tl *Timeline) Lookup(version string) (model.VersionInterval, bool) {
	if tl == nil {
		return model.VersionInterval{}, false
	}
	iv, ok := tl.byVersion[version]
	return iv, ok
}

func (tl *Timeline) Len() int {
	if tl == nil {
		return 0
	}
	return len(tl.order)
}

// Versions returns a copy of all intervals in table order.
func (tl *Timeline) Versions() []model.VersionInterval {
	if tl == nil {
		return nil
	}
	out := make([]model.VersionInterval, 0, len(tl.order))
	for _, v := range tl.order {
		out = append(out, tl.byVersion[v])
	}
	return out
}

// BuildTimeline reads the version history table from doc.
//
// Each data row contributes its leading th as the version id and its first
// td as the release date. Any unparseable date fails the whole build since
// it means the page layout changed.
func BuildTimeline(doc *goquery.Document) (*Timeline, error) {
	rows := doc.Find(versionRowSelector)
	if rows.Length() == 0 {
		return nil, ErrVersionTableNotFound
	}

	tl := NewTimeline()
	var buildErr error

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		version := cleanText(row.Find("th").First().Text())
		if version == "" {
			return true
		}

		cell := row.Find("td").First()
		if cell.Length() == 0 {
			buildErr = fmt.Errorf("wiki: version %s (row %d): missing release date cell", version, i)
			return false
		}
		start, err := ParseWikiTime(cleanText(cell.Text()))
		if err != nil {
			buildErr = fmt.Errorf("wiki: version %s (row %d): %w", version, i, err)
			return false
		}

		if !tl.add(model.NewVersionInterval(version, start.In(Zone))) {
			appLog.Warn("duplicate version row ignored", "version", version, "row", i)
		}
		return true
	})
	if buildErr != nil {
		return nil, buildErr
	}

	appLog.Debug("version timeline built", "versions", tl.Len())
	return tl, nil
}
