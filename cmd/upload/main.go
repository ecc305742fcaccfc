package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/sir_venger/resumable/pkg/logging"
	"github.com/sir_venger/resumable/pkg/resumableclient"
)

// main загружает файл в сервис по протоколу чанков. Повторный запуск после обрыва докачивает недостающее.
func main() {
	var (
		addr      = flag.String("addr", "http://localhost:3000", "адрес сервиса")
		id        = flag.String("id", "", "идентификатор сессии (по умолчанию <size>-<имя файла>)")
		chunkSize = flag.String("chunk", "1MiB", "размер чанка")
		parallel  = flag.Int("parallel", 3, "число параллельных чанков")
		retries   = flag.Int("retries", 3, "повторы на сетевые ошибки и 5xx")
		quiet     = flag.Bool("q", false, "без индикатора прогресса")
		level     = flag.String("log-level", "info", "уровень логирования")
	)
	flag.Parse()

	log := logging.New(*level, "text")
	if flag.NArg() != 1 {
		log.Fatal("usage: upload [flags] <file>")
	}

	size, err := units.RAMInBytes(*chunkSize)
	if err != nil || size <= 0 {
		log.WithField("chunk", *chunkSize).Fatal("invalid chunk size")
	}

	opts := resumableclient.Options{
		ChunkSize: size,
		Parallel:  *parallel,
		Retries:   *retries,
		Logger:    log,
	}
	if !*quiet {
		opts.Progress = os.Stderr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := flag.Arg(0)
	status, err := resumableclient.New(*addr, opts).UploadFile(ctx, path, *id)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{"file": path, "status": status}).Fatal("upload failed")
	}
}
