package wiki

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LaunchTime is the public service launch instant referenced by
// "正式开服后" phrases.
var LaunchTime = time.Date(2023, 6, 5, 19, 59, 0, 0, time.UTC)

// ResolutionKind tells an exact lookup apart from the open-horizon
// fallback used for end boundaries of undocumented versions.
type ResolutionKind int

const (
	KindExact ResolutionKind = iota
	KindOpenHorizon
)

func (k ResolutionKind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindOpenHorizon:
		return "open-horizon"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is the outcome of resolving one date phrase.
type Resolution struct {
	Time time.Time
	Rule string
	Kind ResolutionKind
}

// UnknownVersionError is returned when a phrase needs a version the
// timeline does not contain and no fallback applies.
type UnknownVersionError struct {
	Version string
	Phrase  string
	Rule    string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("cannot find version %s (phrase %q, rule %s)", e.Version, e.Phrase, e.Rule)
}

// PhraseError is returned when a phrase matches no pattern and is not an
// absolute date either.
type PhraseError struct {
	Phrase string
	Err    error
}

func (e *PhraseError) Error() string {
	return fmt.Sprintf("unresolvable date phrase %q: %v", e.Phrase, e.Err)
}

func (e *PhraseError) Unwrap() error { return e.Err }

const (
	RuleReleasedAfter = "released-after"
	RuleEndsBefore    = "ends-before"
	RuleEnds          = "ends"
	RuleLaunch        = "launch"
	RuleAbsolute      = "absolute"
)

type phraseRule struct {
	name    string
	pattern *regexp.Regexp
	resolve func(r *Resolver, phrase string, m []string) (Resolution, error)
}

// phraseRules is evaluated top to bottom and the first match wins.
// "ends before" must stay ahead of "ends" since the latter matches both.
var phraseRules = []phraseRule{
	{
		name:    RuleReleasedAfter,
		pattern: regexp.MustCompile(`(\d+\.\d+)\s*(?:版本更新后|version released after)`),
		resolve: func(r *Resolver, phrase string, m []string) (Resolution, error) {
			iv, ok := r.timeline.Lookup(m[1])
			if !ok {
				return Resolution{}, &UnknownVersionError{Version: m[1], Phrase: phrase, Rule: RuleReleasedAfter}
			}
			return Resolution{Time: iv.Start, Rule: RuleReleasedAfter, Kind: KindExact}, nil
		},
	},
	{
		name:    RuleEndsBefore,
		pattern: regexp.MustCompile(`(\d+\.\d+)\s*(?:版本结束前|version ends before)`),
		resolve: func(r *Resolver, phrase string, m []string) (Resolution, error) {
			if iv, ok := r.timeline.Lookup(m[1]); ok {
				return Resolution{Time: iv.End, Rule: RuleEndsBefore, Kind: KindExact}, nil
			}
			// Event end dates are often announced beyond the newest
			// documented version; refined once the version table catches up.
			return Resolution{Time: OpenHorizon(r.now()), Rule: RuleEndsBefore, Kind: KindOpenHorizon}, nil
		},
	},
	{
		name:    RuleEnds,
		pattern: regexp.MustCompile(`(\d+\.\d+)\s*(?:版本结束|version ends)`),
		resolve: func(r *Resolver, phrase string, m []string) (Resolution, error) {
			iv, ok := r.timeline.Lookup(m[1])
			if !ok {
				return Resolution{}, &UnknownVersionError{Version: m[1], Phrase: phrase, Rule: RuleEnds}
			}
			return Resolution{Time: iv.End, Rule: RuleEnds, Kind: KindExact}, nil
		},
	},
	{
		name:    RuleLaunch,
		pattern: regexp.MustCompile(`正式开服后|official service launch after`),
		resolve: func(_ *Resolver, _ string, _ []string) (Resolution, error) {
			return Resolution{Time: LaunchTime, Rule: RuleLaunch, Kind: KindExact}, nil
		},
	},
}

// Resolver turns wiki date phrases into absolute timestamps against a
// fixed Timeline.
type Resolver struct {
	timeline *Timeline
	clock    func() time.Time
}

// NewResolver returns a Resolver over tl. A nil clock means time.Now.
func NewResolver(tl *Timeline, clock func() time.Time) *Resolver {
	if tl == nil {
		tl = NewTimeline()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{timeline: tl, clock: clock}
}

func (r *Resolver) now() time.Time { return r.clock() }

// Timeline returns the timeline the resolver reads from.
func (r *Resolver) Timeline() *Timeline { return r.timeline }

// MatchRule reports which rule would handle phrase.
func MatchRule(phrase string) string {
	for _, rule := range phraseRules {
		if rule.pattern.MatchString(phrase) {
			return rule.name
		}
	}
	return RuleAbsolute
}

// Resolve maps phrase to an instant. Results are normalized to Zone.
func (r *Resolver) Resolve(phrase string) (Resolution, error) {
	phrase = strings.TrimSpace(phrase)

	for _, rule := range phraseRules {
		m := rule.pattern.FindStringSubmatch(phrase)
		if m == nil {
			continue
		}
		res, err := rule.resolve(r, phrase, m)
		if err != nil {
			return Resolution{}, err
		}
		res.Time = res.Time.In(Zone)
		return res, nil
	}

	t, err := ParseWikiTime(phrase)
	if err != nil {
		return Resolution{}, &PhraseError{Phrase: phrase, Err: err}
	}
	return Resolution{Time: t.In(Zone), Rule: RuleAbsolute, Kind: KindExact}, nil
}

// OpenHorizon returns the end of the calendar month following now: local
// midnight (UTC+8) on that month's last day.
func OpenHorizon(now time.Time) time.Time {
	n := now.In(Zone)
	// Day 0 of the month after next is the last day of next month.
	return time.Date(n.Year(), n.Month()+2, 0, 0, 0, 0, 0, Zone)
}
