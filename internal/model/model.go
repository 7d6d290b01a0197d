package model

import "time"

// VersionWindow is the fixed lifespan assigned to every game version.
const VersionWindow = 42 * 24 * time.Hour

// VersionInterval is one version's effective window as derived from the
// version history page. End is always Start plus six weeks; the page only
// publishes release dates.
type VersionInterval struct {
	Version string    `json:"version"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// NewVersionInterval derives the interval for a version released at start.
func NewVersionInterval(version string, start time.Time) VersionInterval {
	return VersionInterval{
		Version: version,
		Start:   start,
		End:     start.Add(VersionWindow),
	}
}

// Event is one bounded entry from the event schedule page.
//
// Description keeps the raw comma separated category list as published.
// End is not guaranteed to be after Start; malformed wiki rows are passed
// through as-is.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}
