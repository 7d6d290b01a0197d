package wiki

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/PuerkitoBio/goquery"

	appLog "wikical/internal/log"
	"wikical/internal/model"
)

const (
	eventRowSelector = "#CardSelectTr tbody tr"
	categoryAttr     = "data-param1"
	categorySep      = ", "

	timeCell = 0
	nameCell = 2
)

// DefaultExcludedCategories are events without a meaningful bounded
// window. The wiki uses the Chinese labels; the English ones cover
// translated mirrors.
var DefaultExcludedCategories = []string{"特殊活动", "永久活动", "special event", "permanent event"}

var (
	ErrEventTableNotFound = errors.New("wiki: event table not found")
	ErrMalformedRange     = errors.New("time range must contain exactly one '~'")
	ErrMissingCells       = errors.New("row has too few cells")
)

// RowError ties an extraction failure to a schedule row. Index counts data
// rows from zero, header excluded.
type RowError struct {
	Index int
	Name  string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("wiki: event row %d (%q): %v", e.Index, e.Name, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ExtractOptions tunes ExtractEvents.
type ExtractOptions struct {
	// ExcludeCategories extends DefaultExcludedCategories.
	ExcludeCategories []string
	// SkipMalformed drops rows with a malformed time range or an
	// unparseable absolute date instead of failing. Unknown version
	// references are fatal regardless.
	SkipMalformed bool
}

// EventID derives a stable id from an event name: CRC-32 (IEEE) as eight
// lowercase hex digits.
func EventID(name string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(name)))
}

// ExtractEvents reads the schedule table in doc and resolves every kept
// row. Output follows document order.
func ExtractEvents(doc *goquery.Document, r *Resolver, opts ExtractOptions) ([]model.Event, error) {
	rows := doc.Find(eventRowSelector)
	if rows.Length() == 0 {
		return nil, ErrEventTableNotFound
	}

	excluded := make(map[string]struct{}, len(DefaultExcludedCategories)+len(opts.ExcludeCategories))
	for _, c := range DefaultExcludedCategories {
		excluded[c] = struct{}{}
	}
	for _, c := range opts.ExcludeCategories {
		excluded[c] = struct{}{}
	}

	events := make([]model.Event, 0, rows.Length())
	var extractErr error
	filtered, skipped := 0, 0

	rows.Slice(1, goquery.ToEnd).EachWithBreak(func(i int, row *goquery.Selection) bool {
		categories, _ := row.Attr(categoryAttr)
		if hasExcludedCategory(categories, excluded) {
			filtered++
			return true
		}

		ev, err := extractRow(row, categories, r)
		if err == nil {
			events = append(events, ev)
			return true
		}

		rowErr := &RowError{Index: i, Name: ev.Name, Err: err}
		var unknown *UnknownVersionError
		if opts.SkipMalformed && !errors.As(err, &unknown) {
			appLog.Warn("skipping malformed event row", "row", i, "name", ev.Name, "err", err)
			skipped++
			return true
		}
		extractErr = rowErr
		return false
	})
	if extractErr != nil {
		return nil, extractErr
	}

	appLog.Debug("events extracted", "events", len(events), "filtered", filtered, "skipped", skipped)
	return events, nil
}

// extractRow builds one event. On error the returned event carries the
// name, when known, for error context.
func extractRow(row *goquery.Selection, categories string, r *Resolver) (model.Event, error) {
	cells := row.Find("td")
	if cells.Length() <= nameCell {
		return model.Event{}, ErrMissingCells
	}

	ev := model.Event{
		Name:        cleanText(cells.Eq(nameCell).Text()),
		Description: categories,
	}
	ev.ID = EventID(ev.Name)

	startPhrase, endPhrase, err := splitRange(cleanText(cells.Eq(timeCell).Text()))
	if err != nil {
		return ev, err
	}

	start, err := r.Resolve(startPhrase)
	if err != nil {
		return ev, fmt.Errorf("start: %w", err)
	}
	end, err := r.Resolve(endPhrase)
	if err != nil {
		return ev, fmt.Errorf("end: %w", err)
	}
	if end.Kind == KindOpenHorizon {
		appLog.Debug("event end uses open horizon", "name", ev.Name, "phrase", endPhrase, "end", end.Time)
	}

	ev.Start = start.Time
	ev.End = end.Time
	return ev, nil
}

func splitRange(s string) (string, string, error) {
	parts := strings.Split(s, "~")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func hasExcludedCategory(categories string, excluded map[string]struct{}) bool {
	if categories == "" {
		return false
	}
	for _, c := range strings.Split(categories, categorySep) {
		if _, ok := excluded[c]; ok {
			return true
		}
	}
	return false
}
