package resumable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/sir_venger/resumable/internal/models"
)

const (
	defaultScanTimeout     = 10 * time.Second
	defaultAssembleTimeout = 10 * time.Minute
)

// DestinationFunc открывает приёмник для собранного файла и возвращает его путь для журнала.
type DestinationFunc func(filename string) (io.WriteCloser, string, error)

// Ledger — журнал собранных загрузок.
type Ledger interface {
	Save(ctx context.Context, upload models.Upload) error
	Get(ctx context.Context, identifier string) (models.Upload, error)
}

// Config — параметры движка. Каждый экземпляр независим от остальных.
type Config struct {
	TempDir            string
	UploadDir          string
	MaxFileSize        int64
	ScanTimeout        time.Duration
	AssembleTimeout    time.Duration
	CleanAfterAssemble bool
	// Destination по умолчанию пишет в <UploadDir>/<base(filename)>.
	Destination DestinationFunc
}

// Engine связывает валидатор, хранилище чанков, трекер завершённости, сборку и очистку.
type Engine struct {
	cfg     Config
	store   *ChunkStore
	tracker *Tracker
	locks   *keyedMutex
	ledger  Ledger
	log     logrus.FieldLogger
}

// New конструирует движок и создаёт рабочие каталоги.
func New(cfg Config, ledger Ledger, log logrus.FieldLogger) (*Engine, error) {
	if strings.TrimSpace(cfg.TempDir) == "" {
		return nil, fmt.Errorf("temp dir is not configured")
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaultScanTimeout
	}
	if cfg.AssembleTimeout <= 0 {
		cfg.AssembleTimeout = defaultAssembleTimeout
	}
	if cfg.Destination == nil {
		if strings.TrimSpace(cfg.UploadDir) == "" {
			return nil, fmt.Errorf("upload dir is not configured")
		}
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
		cfg.Destination = FileDestination(cfg.UploadDir)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	store, err := NewChunkStore(cfg.TempDir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:     cfg,
		store:   store,
		tracker: NewTracker(),
		locks:   newKeyedMutex(),
		ledger:  ledger,
		log:     log,
	}, nil
}

// committer — приёмник, который публикует результат только после Commit. Abort выбрасывает недописанное.
type committer interface {
	Commit() error
	Abort() error
}

// FileDestination пишет собранные файлы в dir. От имени файла берётся только последний элемент пути.
// Байты сначала идут в уникальный <name>.*.part и переименовываются в <name> только после проверки размера,
// поэтому оборванная сборка не оставляет обрезанный файл, а две сессии с одним именем не смешивают байты.
func FileDestination(dir string) DestinationFunc {
	return func(filename string) (io.WriteCloser, string, error) {
		name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
		if name == "/" || name == "." {
			return nil, "", fmt.Errorf("invalid destination filename %q", filename)
		}
		path := filepath.Join(dir, name)
		f, err := os.CreateTemp(dir, "."+name+".*.part")
		if err != nil {
			return nil, "", err
		}
		return &partFile{File: f, final: path}, path, nil
	}
}

// partFile — временный файл сборки, который становится итоговым при Commit.
type partFile struct {
	*os.File
	final  string
	closed bool
}

func (p *partFile) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.File.Close()
}

func (p *partFile) Commit() error {
	if err := p.Close(); err != nil {
		_ = os.Remove(p.Name())
		return err
	}
	return os.Rename(p.Name(), p.final)
}

func (p *partFile) Abort() error {
	_ = p.Close()
	return os.Remove(p.Name())
}

// Store отдаёт хранилище чанков движка.
func (e *Engine) Store() *ChunkStore { return e.store }

// Validate применяет правила валидатора с настроенным максимальным размером файла.
func (e *Engine) Validate(p models.ChunkParams, actualSize int64) models.Status {
	return Validate(p, e.cfg.MaxFileSize, actualSize)
}

// Get — путь проверки статуса: есть ли уже такой чанк.
func (e *Engine) Get(_ context.Context, p models.ChunkParams) models.ChunkResult {
	if e.Validate(p, UnknownSize) != models.StatusValid {
		return models.ChunkResult{Status: models.StatusNotFound}
	}

	id := SanitizeIdentifier(p.Identifier)
	if !e.store.Exists(id, p.ChunkNumber) {
		return models.ChunkResult{Status: models.StatusNotFound}
	}

	return models.ChunkResult{
		Status:     models.StatusFound,
		Filename:   p.Filename,
		Identifier: id,
		ChunkPath:  e.store.ChunkPath(id, p.ChunkNumber),
	}
}

// Post — путь записи: валидирует чанк, сохраняет его и, если сессия завершена, собирает файл.
// Ошибка возвращается только для фатальных сбоев ввода-вывода; отказы валидации — это статусы.
func (e *Engine) Post(ctx context.Context, p models.ChunkParams, file *models.FileHandle) (models.ChunkResult, error) {
	id := SanitizeIdentifier(p.Identifier)
	res := models.ChunkResult{Filename: p.Filename, Identifier: id}

	if file == nil || file.Path == "" || file.Size == 0 {
		e.discard(file)
		res.Status = models.StatusInvalidResumableRequest
		return res, nil
	}

	if status := e.Validate(p, file.Size); status != models.StatusValid {
		e.discard(file)
		res.Status = status
		return res, nil
	}

	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		e.discard(file)
		return res, err
	}
	defer unlock()

	if err = e.store.Persist(id, p.ChunkNumber, *file); err != nil {
		e.discard(file)
		return res, err
	}

	total := p.NumberOfChunks()
	res.ChunkPath = e.store.ChunkPath(id, p.ChunkNumber)

	if err = e.track(ctx, id, total, p.ChunkNumber); err != nil {
		return res, err
	}
	e.log.WithFields(logrus.Fields{
		"identifier": id,
		"chunk":      p.ChunkNumber,
		"received":   e.tracker.Received(id),
		"chunks":     total,
	}).Debug("chunk stored")
	if !e.tracker.Complete(id, total) {
		res.Status = models.StatusPartlyDone
		return res, nil
	}

	if e.tracker.Assembled(id) {
		res.Status = models.StatusDone
		return res, nil
	}

	if err = e.assemble(ctx, id, p, total); err != nil {
		return res, err
	}

	res.Status = models.StatusDone
	return res, nil
}

// track отмечает сохранённый чанк в трекере. Незнакомую сессию засевает сканом диска,
// который уже видит только что сохранённый чанк.
func (e *Engine) track(ctx context.Context, id string, total, chunkNumber int64) error {
	if e.tracker.Known(id, total) {
		e.tracker.Mark(id, total, chunkNumber)
		return nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, e.cfg.ScanTimeout)
	defer cancel()

	present, err := e.store.present(scanCtx, id, total)
	if err != nil {
		return fmt.Errorf("completion scan: %w", err)
	}
	e.tracker.Seed(id, total, present)
	return nil
}

// assemble собирает файл сессии. Вызывается только под блокировкой идентификатора.
func (e *Engine) assemble(ctx context.Context, id string, p models.ChunkParams, total int64) error {
	log := e.log.WithFields(logrus.Fields{"identifier": id, "filename": p.Filename, "chunks": total})

	dst, path, err := e.cfg.Destination(p.Filename)
	if err != nil {
		return fmt.Errorf("%w: open destination: %v", models.ErrAssemble, err)
	}

	asmCtx, cancel := context.WithTimeout(ctx, e.cfg.AssembleTimeout)
	defer cancel()

	started := time.Now()
	res, err := e.store.Assemble(asmCtx, id, dst, AssembleOptions{Chunks: total})
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %v", models.ErrAssemble, err)
	case res.Chunks < total:
		// Чанк исчез между проверкой и сборкой: трекер больше не отражает диск.
		e.tracker.Forget(id)
		err = fmt.Errorf("%w: %d of %d chunks streamed", models.ErrIncomplete, res.Chunks, total)
	case res.Bytes != p.TotalSize:
		err = fmt.Errorf("%w: wrote %d bytes, expected %d", models.ErrAssemble, res.Bytes, p.TotalSize)
	}
	c, staged := dst.(committer)
	if err != nil {
		if staged {
			if aerr := c.Abort(); aerr != nil {
				log.WithError(aerr).Warn("abort destination")
			}
		}
		return err
	}
	if staged {
		if err = c.Commit(); err != nil {
			return fmt.Errorf("%w: commit destination: %v", models.ErrAssemble, err)
		}
	}

	e.tracker.MarkAssembled(id)
	log.WithField("size", units.HumanSize(float64(res.Bytes))).
		WithField("took", time.Since(started).Round(time.Millisecond)).
		Info("upload assembled")

	if e.ledger != nil {
		err = e.ledger.Save(ctx, models.Upload{
			Identifier:  id,
			Filename:    p.Filename,
			Destination: path,
			TotalSize:   p.TotalSize,
			ChunkSize:   p.ChunkSize,
			Chunks:      total,
			CompletedAt: time.Now().UTC(),
		})
		if err != nil {
			log.WithError(err).Warn("ledger save failed")
		}
	}

	if e.cfg.CleanAfterAssemble {
		// Чанков больше нет: следующая загрузка под тем же идентификатором — новая сессия.
		_, _ = e.store.Clean(ctx, id, e.cleanOptions(id))
		e.tracker.Forget(id)
	}

	return nil
}

// Clean удаляет все чанки сессии и сбрасывает её состояние. Не пересекается со сборкой того же идентификатора.
func (e *Engine) Clean(ctx context.Context, identifier string) (int64, error) {
	id := SanitizeIdentifier(identifier)
	if id == "" {
		return 0, fmt.Errorf("identifier is empty")
	}

	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return 0, err
	}
	defer unlock()

	removed, err := e.store.Clean(ctx, id, e.cleanOptions(id))
	e.tracker.Forget(id)
	return removed, err
}

func (e *Engine) cleanOptions(id string) CleanOptions {
	return CleanOptions{
		OnError: func(n int64, err error) {
			e.log.WithFields(logrus.Fields{"identifier": id, "chunk": n}).WithError(err).Warn("chunk remove failed")
		},
		OnDone: func(removed int64) {
			e.log.WithFields(logrus.Fields{"identifier": id, "removed": removed}).Debug("chunks cleaned")
		},
	}
}

// Upload возвращает запись журнала о собранном файле.
func (e *Engine) Upload(ctx context.Context, identifier string) (models.Upload, error) {
	id := SanitizeIdentifier(identifier)
	if id == "" || e.ledger == nil {
		return models.Upload{}, models.ErrNotFound
	}
	return e.ledger.Get(ctx, id)
}

// Stream пишет собранный файл из ещё не удалённых чанков в w, не закрывая его.
func (e *Engine) Stream(ctx context.Context, identifier string, w io.Writer) error {
	up, err := e.Upload(ctx, identifier)
	if err != nil {
		return err
	}

	unlock, err := e.locks.Lock(ctx, up.Identifier)
	if err != nil {
		return err
	}
	defer unlock()

	scanCtx, cancel := context.WithTimeout(ctx, e.cfg.ScanTimeout)
	complete, err := e.store.IsComplete(scanCtx, up.Identifier, up.Chunks)
	cancel()
	if err != nil {
		return err
	}
	if !complete {
		return models.ErrIncomplete
	}

	asmCtx, cancel := context.WithTimeout(ctx, e.cfg.AssembleTimeout)
	defer cancel()
	_, err = e.store.Assemble(asmCtx, up.Identifier, w, AssembleOptions{KeepOpen: true, Chunks: up.Chunks})
	return err
}

// discard удаляет временный файл отклонённого чанка.
func (e *Engine) discard(file *models.FileHandle) {
	if file == nil || file.Path == "" {
		return
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.WithError(err).WithField("path", file.Path).Debug("discard incoming chunk")
	}
}
