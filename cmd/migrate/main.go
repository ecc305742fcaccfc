package main

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sir_venger/resumable/internal/config"
	meta "github.com/sir_venger/resumable/internal/repo"
	"github.com/sir_venger/resumable/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	dsn := strings.TrimSpace(cfg.MetaDSN)
	if dsn == "" {
		log.Fatal("meta_dsn is not configured")
	}
	if !meta.NeedsMigrations(dsn) {
		log.WithField("dsn", strings.SplitN(dsn, "://", 2)[0]).Info("ledger has no sql schema, skipping migrations")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	applied, err := meta.ApplyMigrations(ctx, dsn, log)
	if err != nil {
		log.WithError(err).Fatal("apply migrations")
	}

	log.WithField("applied", applied).Info("ledger schema is up to date")
}
