package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"pampatime/internal/analysis"
	"pampatime/internal/config"
	"pampatime/internal/ics"
	appLog "pampatime/internal/log"
	"pampatime/internal/store"
	"pampatime/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	database   string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.database != "" {
		conf.Database = flags.database
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("pampatime starting",
		"listen", conf.Listen,
		"database", conf.Database,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"feed_count", len(conf.Feeds),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags.once); err != nil {
		appLog.Error("pampatime failed", err)
		os.Exit(1)
	}
	appLog.Info("pampatime exiting")
}

func run(ctx context.Context, conf *config.Config, once bool) error {
	hours, err := conf.Hours()
	if err != nil {
		return err
	}
	loc := conf.Location()
	palette := conf.Palette()

	db, err := store.OpenDB(conf.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	rec := store.NewHistory(db)
	defer rec.Close()

	st := store.New(db, store.Options{
		Location: loc,
		Palette:  palette,
		Hours:    hours,
		Recorder: rec,
	})

	an := analysis.New()
	unfollow, err := an.Follow(ctx, st)
	if err != nil {
		return err
	}
	defer unfollow()

	feeds := make([]ics.Feed, 0, len(conf.Feeds))
	for _, f := range conf.Feeds {
		feeds = append(feeds, ics.Feed{Name: f.Name, URL: f.URL})
	}
	syncer := ics.NewSyncer(ics.NewFetcher(nil, conf.CacheDir, conf.FeedMaxBytes), st, feeds, ics.WeeklyOptions{
		Location:   loc,
		SkipAllDay: true,
	})

	if once {
		if len(feeds) > 0 {
			if err := syncer.SyncAll(ctx); err != nil {
				appLog.Error("feed sync incomplete", err)
			}
		}
		return analysis.WriteReport(os.Stdout, an.Snapshot())
	}

	if len(feeds) > 0 {
		c := cron.New(cron.WithLocation(loc))
		if _, err := c.AddFunc(conf.RefreshCron, func() {
			syncCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := syncer.SyncAll(syncCtx); err != nil {
				appLog.Error("scheduled feed sync incomplete", err)
			}
		}); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()

		go func() {
			if err := syncer.SyncAll(ctx); err != nil {
				appLog.Error("initial feed sync incomplete", err)
			}
		}()
	}

	srv := web.NewServer(st, an, rec, web.Options{
		BasicAuth:    conf.BasicAuth,
		Hours:        hours,
		Palette:      palette,
		CalendarName: "Timetable",
		TimeZone:     conf.Timezone,
	})
	return srv.Run(ctx, conf.Listen)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./pampatime.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.database, "db", "", "SQLite database path (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Sync feeds once, print the conflict report and exit")

	flag.Parse()

	return cfg
}
