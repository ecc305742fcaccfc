package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/resumable/internal/app/resthttp"
	"github.com/sir_venger/resumable/internal/config"
	"github.com/sir_venger/resumable/pkg/logging"
)

// main поднимает HTTP-сервис загрузки чанков, фоновый сборщик и корректно завершает их по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, srv, err := resthttp.NewServer(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init server")
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.WithError(err).Warn("close ledger")
		}
	}()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", cfg.ListenAddr).Info("REST listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return srv.Engine.RunSweeper(gctx, cfg.GCTTL, cfg.GCInterval)
	})

	// Сценарий graceful shutdown при получении SIGTERM/SIGINT или падении одной из горутин.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("service stopped")
		return
	}
	log.Info("service stopped")
}
