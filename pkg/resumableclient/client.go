// Package resumableclient — клиент протокола чанковой загрузки: режет файл, пропускает уже
// загруженные чанки и отправляет остальные с повторами.
package resumableclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/resumable/internal/models"
)

// Options настраивает клиента.
type Options struct {
	// ChunkSize — размер чанка, последний чанк забирает остаток.
	ChunkSize int64
	// Parallel — сколько чанков отправляется одновременно.
	Parallel int
	// Retries — число повторов на сетевые ошибки и 5xx.
	Retries int
	// Progress — куда рисовать индикатор; nil отключает его.
	Progress io.Writer
	Logger   logrus.FieldLogger
}

// DefaultOptions возвращает настройки по умолчанию: чанки по 1MiB, 3 потока, 3 повтора.
func DefaultOptions() Options {
	return Options{
		ChunkSize: 1 << 20,
		Parallel:  3,
		Retries:   3,
	}
}

// Chunk — параметры одного чанка в терминах протокола.
type Chunk = models.ChunkParams

type Client struct {
	base string
	http *retryablehttp.Client
	opts Options
	log  logrus.FieldLogger
}

// New создаёт клиента для сервиса по адресу baseURL.
func New(baseURL string, opts Options) *Client {
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.Parallel <= 0 {
		opts.Parallel = def.Parallel
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Retries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.WithFields(logrus.Fields{"url": req.URL.Path, "attempt": attempt}).Warn("retrying request")
		}
	}
	// 4xx — это ответ протокола, а не сбой: не повторяем и не превращаем в ошибку.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: rc,
		opts: opts,
		log:  log,
	}
}

// Identifier строит идентификатор сессии так же, как браузерный клиент: <size>-<имя файла>.
// Недопустимые символы сервер вырежет сам.
func Identifier(size int64, filename string) string {
	return strconv.FormatInt(size, 10) + "-" + filepath.Base(filename)
}

func (c *Client) values(ch Chunk) url.Values {
	v := url.Values{}
	v.Set("resumableChunkNumber", strconv.FormatInt(ch.ChunkNumber, 10))
	v.Set("resumableChunkSize", strconv.FormatInt(ch.ChunkSize, 10))
	v.Set("resumableTotalSize", strconv.FormatInt(ch.TotalSize, 10))
	v.Set("resumableIdentifier", ch.Identifier)
	v.Set("resumableFilename", ch.Filename)
	return v
}

// HasChunk спрашивает сервер, лежит ли уже чанк.
func (c *Client) HasChunk(ctx context.Context, ch Chunk) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+"/chunks?"+c.values(ch).Encode(), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNoContent, http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check chunk %d: %s", ch.ChunkNumber, resp.Status)
	}
}

// PutChunk отправляет чанк multipart-формой и возвращает статус протокола.
// Отказ валидации приходит статусом без ошибки; ошибка — только транспорт и 5xx.
func (c *Client) PutChunk(ctx context.Context, ch Chunk, data []byte) (models.Status, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range c.values(ch) {
		if err := mw.WriteField(k, vs[0]); err != nil {
			return "", err
		}
	}
	fw, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", err
	}
	if _, err = fw.Write(data); err != nil {
		return "", err
	}
	if err = mw.Close(); err != nil {
		return "", err
	}

	// тело передаётся байтами, чтобы retryablehttp мог перечитать его при повторе
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chunks", body.Bytes())
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("put chunk %d: %s: %s", ch.ChunkNumber, resp.Status, strings.TrimSpace(string(b)))
	}

	return models.Status(strings.TrimSpace(string(b))), nil
}

// UploadFile загружает файл целиком. Уже принятые сервером чанки пропускаются, поэтому
// повторный вызов после обрыва докачивает только недостающее. Последний чанк уходит
// отдельно после остальных, и его ответ — итоговый статус загрузки.
func (c *Client) UploadFile(ctx context.Context, path, identifier string) (models.Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if identifier == "" {
		identifier = Identifier(info.Size(), path)
	}

	base := Chunk{
		ChunkSize:  c.opts.ChunkSize,
		TotalSize:  info.Size(),
		Identifier: identifier,
		Filename:   filepath.Base(path),
	}
	total := base.NumberOfChunks()

	bar := newProgressBar(c.opts.Progress, "Uploading "+base.Filename, info.Size())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallel)
	for n := int64(1); n < total; n++ {
		ch := base
		ch.ChunkNumber = n
		g.Go(func() error {
			return c.sendMissing(gctx, f, ch, bar)
		})
	}
	if err = g.Wait(); err != nil {
		bar.Fail(err)
		return "", err
	}

	last := base
	last.ChunkNumber = total
	data, err := readChunk(f, last)
	if err != nil {
		bar.Fail(err)
		return "", err
	}
	status, err := c.PutChunk(ctx, last, data)
	if err != nil {
		bar.Fail(err)
		return "", err
	}
	bar.AddBytes(int64(len(data)))

	if status != models.StatusDone {
		err = fmt.Errorf("upload %s finished with status %s", identifier, status)
		bar.Fail(err)
		return status, err
	}

	bar.Finish()
	c.log.WithFields(logrus.Fields{"identifier": identifier, "chunks": total}).Info("upload done")
	return status, nil
}

func (c *Client) sendMissing(ctx context.Context, f *os.File, ch Chunk, bar *progressBar) error {
	size := ch.ChunkSize
	has, err := c.HasChunk(ctx, ch)
	if err != nil {
		return err
	}
	if has {
		bar.AddBytes(size)
		return nil
	}

	data, err := readChunk(f, ch)
	if err != nil {
		return err
	}
	status, err := c.PutChunk(ctx, ch, data)
	if err != nil {
		return err
	}
	if !status.Accepted() {
		return fmt.Errorf("chunk %d rejected: %s", ch.ChunkNumber, status)
	}

	bar.AddBytes(int64(len(data)))
	return nil
}

// readChunk читает байты чанка; последний чанк забирает остаток файла.
func readChunk(f *os.File, ch Chunk) ([]byte, error) {
	offset := (ch.ChunkNumber - 1) * ch.ChunkSize
	size := ch.ChunkSize
	if ch.ChunkNumber == ch.NumberOfChunks() {
		size = ch.TotalSize - offset
	}

	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read chunk %d: %w", ch.ChunkNumber, err)
	}
	return buf, nil
}
