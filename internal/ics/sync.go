package ics

import (
	"context"
	"errors"
	"fmt"

	appLog "pampatime/internal/log"
	"pampatime/internal/model"
)

// Importer replaces the events previously imported from a source.
type Importer interface {
	ReplaceSource(ctx context.Context, source string, events []model.ScheduleEvent) error
}

// Syncer pulls every configured feed into an Importer.
type Syncer struct {
	fetcher *Fetcher
	dest    Importer
	feeds   []Feed
	opts    WeeklyOptions
}

func NewSyncer(fetcher *Fetcher, dest Importer, feeds []Feed, opts WeeklyOptions) *Syncer {
	return &Syncer{fetcher: fetcher, dest: dest, feeds: feeds, opts: opts}
}

// SyncAll imports every feed. A failing feed is logged and does not stop the
// others; the joined error lists every failure.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var errs []error
	for _, feed := range s.feeds {
		if err := s.Sync(ctx, feed); err != nil {
			appLog.Error("ics sync failed", err, "feed", feed.Name)
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Sync imports a single feed.
func (s *Syncer) Sync(ctx context.Context, feed Feed) error {
	payload, err := s.fetcher.Fetch(ctx, feed)
	if err != nil {
		return err
	}
	sessions, err := Parse(feed.Name, payload.Body)
	if err != nil {
		return err
	}
	events := Weekly(feed.Name, sessions, s.opts)
	return s.dest.ReplaceSource(ctx, feed.Name, events)
}
