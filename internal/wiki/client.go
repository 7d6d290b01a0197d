package wiki

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"wikical/internal/config"
	"wikical/internal/fetch"
	appLog "wikical/internal/log"
	"wikical/internal/model"
)

// TextFetcher fetches a page body. *fetch.Fetcher satisfies it.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Snapshot is the result of one refresh: the extracted events plus the
// version timeline they were resolved against.
type Snapshot struct {
	Events    []model.Event
	Versions  []model.VersionInterval
	FetchedAt time.Time
}

// Client fetches both wiki pages and runs the timeline builder and the
// event extractor over them.
type Client struct {
	Fetcher     TextFetcher
	EventsURL   string
	VersionsURL string
	Options     ExtractOptions

	// Now is the clock used for the open-horizon fallback. Nil means time.Now.
	Now func() time.Time
}

// NewClient returns a Client pointed at the default wiki pages.
func NewClient(f TextFetcher) *Client {
	return &Client{
		Fetcher:     f,
		EventsURL:   config.DefaultEventsURL,
		VersionsURL: config.DefaultVersionsURL,
	}
}

// NewClientFromConfig builds a Client and its Fetcher from cfg.
func NewClientFromConfig(cfg *config.Config) *Client {
	return &Client{
		Fetcher:     fetch.NewFetcher(cfg.CacheDir),
		EventsURL:   cfg.Wiki.EventsURL,
		VersionsURL: cfg.Wiki.VersionsURL,
		Options: ExtractOptions{
			ExcludeCategories: cfg.Wiki.ExcludeCategories,
			SkipMalformed:     cfg.Wiki.SkipMalformedRows,
		},
	}
}

// GetAllEvents fetches the default wiki pages and returns the resolved
// event list.
func GetAllEvents() ([]model.Event, error) {
	return NewClient(fetch.NewFetcher("")).Events(context.Background())
}

// Events returns the resolved event list.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Events, nil
}

// Snapshot fetches both pages concurrently, then builds the timeline and
// extracts events. Any failure fails the whole run.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var eventsHTML, versionsHTML string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.Fetcher.FetchText(gctx, c.EventsURL)
		if err != nil {
			return fmt.Errorf("fetch event schedule: %w", err)
		}
		eventsHTML = body
		return nil
	})
	g.Go(func() error {
		body, err := c.Fetcher.FetchText(gctx, c.VersionsURL)
		if err != nil {
			return fmt.Errorf("fetch version history: %w", err)
		}
		versionsHTML = body
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}
	return BuildSnapshot(eventsHTML, versionsHTML, now, c.Options)
}

// BuildSnapshot runs the pure part of a refresh over already-fetched page
// bodies.
func BuildSnapshot(eventsHTML, versionsHTML string, now func() time.Time, opts ExtractOptions) (*Snapshot, error) {
	versionDoc, err := goquery.NewDocumentFromReader(strings.NewReader(versionsHTML))
	if err != nil {
		return nil, fmt.Errorf("parse version history: %w", err)
	}
	tl, err := BuildTimeline(versionDoc)
	if err != nil {
		return nil, err
	}

	eventDoc, err := goquery.NewDocumentFromReader(strings.NewReader(eventsHTML))
	if err != nil {
		return nil, fmt.Errorf("parse event schedule: %w", err)
	}
	events, err := ExtractEvents(eventDoc, NewResolver(tl, now), opts)
	if err != nil {
		return nil, err
	}

	appLog.Info("wiki snapshot built", "versions", tl.Len(), "events", len(events))
	return &Snapshot{
		Events:    events,
		Versions:  tl.Versions(),
		FetchedAt: now(),
	}, nil
}
