package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/opendata"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/snapshot"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/services/fetcher/config"
)

func main() {
	watch := flag.Bool("watch", false, "keep refreshing on a fixed interval")
	dryRun := flag.Bool("dry-run", false, "fetch and report without writing the snapshot")
	interval := flag.Duration("interval", 0, "refresh interval in watch mode (overrides FETCH_INTERVAL)")
	flag.Parse()

	log := logrus.New()
	if os.Getenv("APP_ENV") == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	if *dryRun {
		cfg.DryRun = true
	}
	if *interval > 0 {
		cfg.Interval = *interval
	}

	if !*watch {
		if err := runOnce(context.Background(), cfg, log); err != nil {
			log.Fatalf("fetch failed: %v", err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runWatch(ctx, cfg, log); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func runOnce(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	client := opendata.NewClient(cfg.HintURL, cfg.APIKey, cfg.RequestTimeout, log)
	store := snapshot.NewStore(cfg.DataDir, log)
	return fetchCycle(ctx, client, store, cfg.DryRun, log)
}

// runWatch runs one cycle immediately, then keeps refreshing on the
// configured interval until the context is canceled.
func runWatch(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	client := opendata.NewClient(cfg.HintURL, cfg.APIKey, cfg.RequestTimeout, log)
	store := snapshot.NewStore(cfg.DataDir, log)

	cycle := func() {
		// Enough time for every candidate to time out back-to-back.
		cycleCtx, cancel := context.WithTimeout(ctx, 5*cfg.RequestTimeout+10*time.Second)
		defer cancel()

		if err := fetchCycle(cycleCtx, client, store, cfg.DryRun, log); err != nil {
			log.WithError(err).Error("fetch cycle failed")
		}
	}

	cycle()

	c := cron.New()
	if _, err := c.AddFunc("@every "+cfg.Interval.String(), cycle); err != nil {
		return fmt.Errorf("schedule fetch: %w", err)
	}
	c.Start()
	log.WithField("interval", cfg.Interval.String()).Info("watching for updates")

	<-ctx.Done()

	// Let an in-flight cycle finish before exiting.
	<-c.Stop().Done()
	return nil
}

// fetchCycle fetches the dataset and replaces the snapshot; dry-run
// reports what it would have written instead.
func fetchCycle(ctx context.Context, client *opendata.Client, store *snapshot.Store, dryRun bool, log logrus.FieldLogger) error {
	res, err := client.Fetch(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		log.WithFields(logrus.Fields{
			"url":     res.URL,
			"records": len(res.Records),
		}).Info("dry-run: skipping snapshot write")
		return nil
	}

	savedAt := time.Now()
	if err := store.Write(res.Records, res.URL, savedAt); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"path":     store.Path(),
		"url":      res.URL,
		"records":  len(res.Records),
		"saved_at": savedAt.Format(models.LocalTimeLayout),
	}).Info("snapshot updated")
	return nil
}
