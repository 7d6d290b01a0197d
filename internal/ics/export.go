package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"wikical/internal/model"
)

const defaultProductID = "-//wikical//wiki event schedule//ZH"

// RenderOptions controls calendar-level properties of the export.
type RenderOptions struct {
	// Domain is appended to event ids to build globally unique UIDs.
	Domain string
	// Name is shown by clients as the calendar title.
	Name string
	// Stamp is written as DTSTAMP on every event. Zero means time.Now.
	Stamp time.Time
}

// Render serializes events as a PUBLISH iCalendar, one VEVENT per event in
// input order. Times are written in UTC.
func Render(events []model.Event, opts RenderOptions) string {
	if opts.Domain == "" {
		opts.Domain = "wikical.local"
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(defaultProductID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + "@" + opts.Domain)
		ve.SetDtStampTime(opts.Stamp.UTC())
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetSummary(ev.Name)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
			ve.AddProperty(ical.ComponentPropertyCategories, strings.ReplaceAll(ev.Description, ", ", ","))
		}
	}

	return cal.Serialize()
}
