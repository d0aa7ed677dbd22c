package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/dataset"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/opendata"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/snapshot"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/services/api/config"
	httpserver "github.com/wyhuang-tw/taichung-airmicro-viewer/services/api/http"
)

func main() {
	log := logrus.New()
	if os.Getenv("APP_ENV") == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := opendata.NewClient(cfg.HintURL, cfg.APIKey, cfg.RequestTimeout, log)
	store := snapshot.NewStore(cfg.DataDir, log)
	data := dataset.New(client, store, dataset.Options{
		CacheTTL:      cfg.CacheTTL,
		HintURL:       cfg.HintURL,
		Credential:    cfg.APIKey,
		FetchDisabled: cfg.FetchDisabled,
		Log:           log,
	})

	srv := httpserver.New(cfg, data, log)
	log.Infof("REST API listening on %s", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
