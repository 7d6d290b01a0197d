package wiki

import (
	"errors"
	"testing"
	"time"

	"wikical/internal/model"
)

func englishTimeline() *Timeline {
	return NewTimeline(
		model.NewVersionInterval("3.2", time.Date(2024, 1, 31, 16, 0, 0, 0, time.UTC)),
	)
}

func TestResolveReleasedAfter(t *testing.T) {
	t.Parallel()

	r := NewResolver(englishTimeline(), fixedClock)
	want := time.Date(2024, 1, 31, 16, 0, 0, 0, time.UTC)

	for _, phrase := range []string{"3.2 version released after", "3.2版本更新后"} {
		res, err := r.Resolve(phrase)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", phrase, err)
		}
		if !res.Time.Equal(want) || res.Rule != RuleReleasedAfter || res.Kind != KindExact {
			t.Errorf("Resolve(%q) = %+v", phrase, res)
		}
	}
}

func TestResolveUnknownVersionIsFatal(t *testing.T) {
	t.Parallel()

	r := NewResolver(englishTimeline(), fixedClock)
	cases := map[string]string{
		"9.9 version released after": RuleReleasedAfter,
		"9.9版本结束":                  RuleEnds,
		"9.9 version ends":           RuleEnds,
	}
	for phrase, rule := range cases {
		_, err := r.Resolve(phrase)
		var uv *UnknownVersionError
		if !errors.As(err, &uv) {
			t.Fatalf("Resolve(%q) err = %v, want *UnknownVersionError", phrase, err)
		}
		if uv.Version != "9.9" || uv.Rule != rule {
			t.Errorf("Resolve(%q) error = %+v", phrase, uv)
		}
	}
}

func TestResolveEndsBefore(t *testing.T) {
	t.Parallel()

	r := NewResolver(englishTimeline(), fixedClock)

	known, err := r.Resolve("3.2版本结束前")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 3, 13, 16, 0, 0, 0, time.UTC); !known.Time.Equal(want) || known.Kind != KindExact {
		t.Errorf("known = %+v, want end %s", known, want)
	}

	for _, phrase := range []string{"9.9 version ends before", "9.9版本结束前"} {
		res, err := r.Resolve(phrase)
		if err != nil {
			t.Fatalf("Resolve(%q): open horizon must not error: %v", phrase, err)
		}
		want := time.Date(2026, 11, 30, 0, 0, 0, 0, Zone)
		if !res.Time.Equal(want) {
			t.Errorf("Resolve(%q) = %s, want %s", phrase, res.Time, want)
		}
		if res.Kind != KindOpenHorizon {
			t.Errorf("Kind = %s, want open-horizon", res.Kind)
		}
		if m := res.Time.In(Zone).Month(); m != time.November {
			t.Errorf("Resolve(%q) month = %s, want November", phrase, m)
		}
	}
}

func TestResolveLaunch(t *testing.T) {
	t.Parallel()

	want := time.Date(2023, 6, 5, 19, 59, 0, 0, time.UTC)
	for _, tl := range []*Timeline{nil, englishTimeline()} {
		r := NewResolver(tl, fixedClock)
		for _, phrase := range []string{"official service launch after", "正式开服后"} {
			res, err := r.Resolve(phrase)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Time.Equal(want) {
				t.Errorf("Resolve(%q) = %s", phrase, res.Time)
			}
		}
	}
}

func TestResolveAbsoluteFallback(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, fixedClock)
	res, err := r.Resolve(" 2024/02/05 10:00 ")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 2, 5, 2, 0, 0, 0, time.UTC); !res.Time.Equal(want) || res.Rule != RuleAbsolute {
		t.Errorf("res = %+v", res)
	}
	if res.Time.Location() != Zone {
		t.Errorf("location = %s, want UTC+8", res.Time.Location())
	}

	_, err = r.Resolve("未知时间")
	var pe *PhraseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PhraseError", err)
	}
}

func TestRulePrecedence(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"3.2版本更新后":                    RuleReleasedAfter,
		"3.2版本结束前":                    RuleEndsBefore,
		"3.2 version ends before":       RuleEndsBefore,
		"3.2版本结束":                     RuleEnds,
		"3.2 version ends":              RuleEnds,
		"正式开服后":                       RuleLaunch,
		"2024/02/05":                  RuleAbsolute,
		"3.2 version released after": RuleReleasedAfter,
	}
	for phrase, want := range cases {
		if got := MatchRule(phrase); got != want {
			t.Errorf("MatchRule(%q) = %s, want %s", phrase, got, want)
		}
	}
}

func TestOpenHorizon(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid month", fixedNow, time.Date(2026, 11, 30, 0, 0, 0, 0, Zone)},
		{"year rollover", time.Date(2026, 12, 20, 12, 0, 0, 0, Zone), time.Date(2027, 1, 31, 0, 0, 0, 0, Zone)},
		{"utc month differs", time.Date(2026, 10, 31, 20, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, Zone)},
		{"january 31", time.Date(2027, 1, 31, 0, 0, 0, 0, Zone), time.Date(2027, 2, 28, 0, 0, 0, 0, Zone)},
		{"leap february", time.Date(2028, 1, 10, 0, 0, 0, 0, Zone), time.Date(2028, 2, 29, 0, 0, 0, 0, Zone)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OpenHorizon(tc.now); !got.Equal(tc.want) {
				t.Errorf("OpenHorizon(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}
