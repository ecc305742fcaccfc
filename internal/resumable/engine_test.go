package resumable

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/resumable/internal/models"
	meta "github.com/sir_venger/resumable/internal/repo"
)

type testEngine struct {
	*Engine
	uploadDir string
	ledger    *meta.MemoryStore
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		TempDir:     filepath.Join(root, "tmp"),
		UploadDir:   filepath.Join(root, "uploads"),
		MaxFileSize: 4 << 30,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger, _ := test.NewNullLogger()
	ledger := meta.NewMemoryStore()
	e, err := New(cfg, ledger, logger)
	require.NoError(t, err)

	return &testEngine{Engine: e, uploadDir: cfg.UploadDir, ledger: ledger}
}

func (te *testEngine) post(t *testing.T, id, filename string, total, chunkSize, n int64, data []byte) models.ChunkResult {
	t.Helper()
	res, err := te.Post(context.Background(), models.ChunkParams{
		ChunkNumber: n,
		ChunkSize:   chunkSize,
		TotalSize:   total,
		Identifier:  id,
		Filename:    filename,
	}, incoming(t, te.Store(), data))
	require.NoError(t, err)
	return res
}

func uploadInOrder(t *testing.T, te *testEngine, id string, data []byte, chunkSize int64, order []int) []models.Status {
	chunks := split(data, chunkSize)
	statuses := make([]models.Status, 0, len(order))
	for _, n := range order {
		res := te.post(t, id, id+".bin", int64(len(data)), chunkSize, int64(n), chunks[n-1])
		statuses = append(statuses, res.Status)
	}
	return statuses
}

func TestEngine_OrderIndependence(t *testing.T) {
	data := payload(1000)

	inOrder := newTestEngine(t, nil)
	got := uploadInOrder(t, inOrder, "ordered", data, 300, []int{1, 2, 3})
	assert.Equal(t, []models.Status{models.StatusPartlyDone, models.StatusPartlyDone, models.StatusDone}, got)

	shuffled := newTestEngine(t, nil)
	got = uploadInOrder(t, shuffled, "ordered", data, 300, []int{2, 1, 3})
	assert.Equal(t, []models.Status{models.StatusPartlyDone, models.StatusPartlyDone, models.StatusDone}, got)

	a := readFile(t, filepath.Join(inOrder.uploadDir, "ordered.bin"))
	b := readFile(t, filepath.Join(shuffled.uploadDir, "ordered.bin"))
	assert.True(t, bytes.Equal(data, a))
	assert.True(t, bytes.Equal(a, b))
}

func TestEngine_LateEarlyChunkCompletesSession(t *testing.T) {
	te := newTestEngine(t, nil)
	data := payload(900)

	got := uploadInOrder(t, te, "late", data, 300, []int{3, 2, 1})
	assert.Equal(t, []models.Status{models.StatusPartlyDone, models.StatusPartlyDone, models.StatusDone}, got)
	assert.Equal(t, data, readFile(t, filepath.Join(te.uploadDir, "late.bin")))

	up, err := te.Upload(context.Background(), "late")
	require.NoError(t, err)
	assert.EqualValues(t, 3, up.Chunks)
	assert.EqualValues(t, 900, up.TotalSize)
	assert.Equal(t, filepath.Join(te.uploadDir, "late.bin"), up.Destination)
}

func TestEngine_PostRejections(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.MaxFileSize = 500 })
	ctx := context.Background()
	p := models.ChunkParams{ChunkNumber: 1, ChunkSize: 300, TotalSize: 1000, Identifier: "rej", Filename: "f"}

	res, err := te.Post(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalidResumableRequest, res.Status)
	assert.Equal(t, "f", res.Filename)
	assert.Equal(t, "rej", res.Identifier)

	res, err = te.Post(ctx, p, &models.FileHandle{Path: "whatever", Size: 0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalidResumableRequest, res.Status)

	fh := incoming(t, te.Store(), payload(300))
	res, err = te.Post(ctx, p, fh)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFileTooBig, res.Status)
	_, statErr := os.Stat(fh.Path)
	assert.True(t, os.IsNotExist(statErr), "rejected upload is discarded")

	p.TotalSize = 450
	res, err = te.Post(ctx, p, incoming(t, te.Store(), payload(10)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFileSizeInvalid, res.Status)
	assert.False(t, te.Store().Exists("rej", 1))
}

func TestEngine_Get(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	data := payload(1000)
	uploadInOrder(t, te, "status", data, 300, []int{2})

	p := models.ChunkParams{ChunkNumber: 2, ChunkSize: 300, TotalSize: 1000, Identifier: "status", Filename: "status.bin"}
	res := te.Get(ctx, p)
	assert.Equal(t, models.StatusFound, res.Status)
	assert.Equal(t, te.Store().ChunkPath("status", 2), res.ChunkPath)
	assert.Equal(t, "status.bin", res.Filename)

	p.ChunkNumber = 1
	assert.Equal(t, models.StatusNotFound, te.Get(ctx, p).Status)

	p.ChunkNumber = 9
	assert.Equal(t, models.StatusNotFound, te.Get(ctx, p).Status)
}

func TestEngine_ReuploadOverwrites(t *testing.T) {
	te := newTestEngine(t, nil)

	te.post(t, "re", "re.bin", 600, 300, 1, bytes.Repeat([]byte("a"), 300))
	te.post(t, "re", "re.bin", 600, 300, 1, bytes.Repeat([]byte("b"), 300))
	res := te.post(t, "re", "re.bin", 600, 300, 2, bytes.Repeat([]byte("c"), 300))
	require.Equal(t, models.StatusDone, res.Status)

	want := append(bytes.Repeat([]byte("b"), 300), bytes.Repeat([]byte("c"), 300)...)
	assert.Equal(t, want, readFile(t, filepath.Join(te.uploadDir, "re.bin")))
}

// countingDestination считает, сколько раз запускалась сборка.
type countingDestination struct {
	calls atomic.Int32
	mu    sync.Mutex
	bufs  []*nopCloseBuffer
}

func (c *countingDestination) open(string) (io.WriteCloser, string, error) {
	c.calls.Add(1)
	b := &nopCloseBuffer{}
	c.mu.Lock()
	c.bufs = append(c.bufs, b)
	c.mu.Unlock()
	return b, "memory", nil
}

func TestEngine_AssemblesAtMostOnce(t *testing.T) {
	dest := &countingDestination{}
	te := newTestEngine(t, func(c *Config) { c.Destination = dest.open })

	data := payload(64*1024 + 123)
	const chunkSize = 4096
	chunks := split(data, chunkSize)

	var done atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for round := 0; round < 3; round++ {
		for i, chunk := range chunks {
			n, chunk := int64(i+1), chunk
			fh := incoming(t, te.Store(), chunk)
			g.Go(func() error {
				res, err := te.Post(ctx, models.ChunkParams{
					ChunkNumber: n,
					ChunkSize:   chunkSize,
					TotalSize:   int64(len(data)),
					Identifier:  "race",
					Filename:    "race.bin",
				}, fh)
				if res.Status == models.StatusDone {
					done.Add(1)
				}
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, dest.calls.Load())
	assert.GreaterOrEqual(t, done.Load(), int32(1))
	require.Len(t, dest.bufs, 1)
	assert.True(t, bytes.Equal(data, dest.bufs[0].Bytes()))
	assert.Equal(t, 1, dest.bufs[0].closed)
}

func TestEngine_SeedsFromDiskAfterRestart(t *testing.T) {
	root := t.TempDir()
	cfg := func(c *Config) {
		c.TempDir = filepath.Join(root, "tmp")
		c.UploadDir = filepath.Join(root, "uploads")
	}
	data := payload(1000)

	first := newTestEngine(t, cfg)
	uploadInOrder(t, first, "restart", data, 300, []int{1, 3})

	second := newTestEngine(t, cfg)
	got := uploadInOrder(t, second, "restart", data, 300, []int{2})
	assert.Equal(t, []models.Status{models.StatusDone}, got)
	assert.Equal(t, data, readFile(t, filepath.Join(root, "uploads", "restart.bin")))
}

func TestEngine_MissingChunkDuringAssembly(t *testing.T) {
	te := newTestEngine(t, nil)
	data := payload(900)
	uploadInOrder(t, te, "vanish", data, 300, []int{1, 2})

	// Чанк удалён мимо Cleaner: трекер об этом не знает.
	require.NoError(t, te.Store().Remove("vanish", 1))

	res, err := te.Post(context.Background(), models.ChunkParams{
		ChunkNumber: 3, ChunkSize: 300, TotalSize: 900, Identifier: "vanish", Filename: "vanish.bin",
	}, incoming(t, te.Store(), split(data, 300)[2]))
	assert.ErrorIs(t, err, models.ErrIncomplete)
	assert.Empty(t, res.Status)

	// Оборванная сборка не оставляет в каталоге ни итогового, ни временного файла.
	entries, err := os.ReadDir(te.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Трекер пересеян: после дозагрузки сессия собирается.
	got := uploadInOrder(t, te, "vanish", data, 300, []int{1})
	assert.Equal(t, []models.Status{models.StatusDone}, got)
	assert.Equal(t, data, readFile(t, filepath.Join(te.uploadDir, "vanish.bin")))
	entries, err = os.ReadDir(te.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEngine_Clean(t *testing.T) {
	te := newTestEngine(t, nil)
	data := payload(1000)
	uploadInOrder(t, te, "clean", data, 300, []int{1, 2, 3})

	removed, err := te.Clean(context.Background(), "clean")
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)
	for n := int64(1); n <= 3; n++ {
		assert.False(t, te.Store().Exists("clean", n))
	}

	// После очистки идентификатор начинает новую сессию и собирается заново.
	got := uploadInOrder(t, te, "clean", data, 300, []int{3, 1, 2})
	assert.Equal(t, models.StatusDone, got[2])

	_, err = te.Clean(context.Background(), "...")
	assert.Error(t, err)
}

func TestEngine_CleanAfterAssemble(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.CleanAfterAssemble = true })
	data := payload(600)
	got := uploadInOrder(t, te, "auto", data, 300, []int{1, 2})
	assert.Equal(t, models.StatusDone, got[1])

	assert.False(t, te.Store().Exists("auto", 1))
	assert.False(t, te.Store().Exists("auto", 2))
	assert.Equal(t, data, readFile(t, filepath.Join(te.uploadDir, "auto.bin")))

	err := te.Stream(context.Background(), "auto", io.Discard)
	assert.ErrorIs(t, err, models.ErrIncomplete)

	// Тот же идентификатор после автоочистки — новая сессия с новым содержимым.
	second := bytes.Repeat([]byte("B"), 600)
	got = uploadInOrder(t, te, "auto", second, 300, []int{1, 2})
	assert.Equal(t, []models.Status{models.StatusPartlyDone, models.StatusDone}, got)
	assert.Equal(t, second, readFile(t, filepath.Join(te.uploadDir, "auto.bin")))
	assert.False(t, te.Store().Exists("auto", 1))
	assert.False(t, te.Store().Exists("auto", 2))
}

func TestEngine_Stream(t *testing.T) {
	te := newTestEngine(t, nil)
	data := payload(1000)
	uploadInOrder(t, te, "dl", data, 300, []int{1, 2, 3})

	var buf bytes.Buffer
	require.NoError(t, te.Stream(context.Background(), "dl", &buf))
	assert.Equal(t, data, buf.Bytes())

	assert.ErrorIs(t, te.Stream(context.Background(), "unknown", &buf), models.ErrNotFound)
}

func TestFileDestination_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	open := FileDestination(dir)

	w, path, err := open("../../escape.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, filepath.Join(dir, "escape.txt"), path)

	w, path, err = open(`C:\temp\win.txt`)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, filepath.Join(dir, "win.txt"), path)

	_, _, err = open("/")
	assert.Error(t, err)
}

func TestFileDestination_PublishesOnCommit(t *testing.T) {
	dir := t.TempDir()
	open := FileDestination(dir)
	final := filepath.Join(dir, "same.txt")

	a, path, err := open("same.txt")
	require.NoError(t, err)
	assert.Equal(t, final, path)
	b, _, err := open("same.txt")
	require.NoError(t, err)

	// Две сборки в одно имя пишут в разные временные файлы.
	_, err = a.Write([]byte("first"))
	require.NoError(t, err)
	_, err = b.Write([]byte("second"))
	require.NoError(t, err)
	assert.NoFileExists(t, final)

	require.NoError(t, a.(committer).Commit())
	assert.Equal(t, []byte("first"), readFile(t, final))
	require.NoError(t, b.Close())
	require.NoError(t, b.(committer).Commit())
	assert.Equal(t, []byte("second"), readFile(t, final))

	c, _, err := open("same.txt")
	require.NoError(t, err)
	_, err = c.Write([]byte("truncated"))
	require.NoError(t, err)
	require.NoError(t, c.(committer).Abort())

	assert.Equal(t, []byte("second"), readFile(t, final))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNew_RequiresDirs(t *testing.T) {
	_, err := New(Config{}, nil, logrus.New())
	assert.Error(t, err)

	_, err = New(Config{TempDir: t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestEngine_LogsReceivedChunks(t *testing.T) {
	root := t.TempDir()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e, err := New(Config{TempDir: filepath.Join(root, "tmp"), UploadDir: filepath.Join(root, "up")}, nil, logger)
	require.NoError(t, err)

	data := payload(900)
	chunks := split(data, 300)
	for i, n := range []int64{3, 1} {
		_, err := e.Post(context.Background(), models.ChunkParams{
			ChunkNumber: n, ChunkSize: 300, TotalSize: 900, Identifier: "log", Filename: "log.bin",
		}, incoming(t, e.Store(), chunks[n-1]))
		require.NoError(t, err)

		var stored *logrus.Entry
		for _, entry := range hook.AllEntries() {
			if entry.Message == "chunk stored" && entry.Data["chunk"] == n {
				stored = entry
			}
		}
		require.NotNil(t, stored)
		assert.EqualValues(t, i+1, stored.Data["received"])
		assert.EqualValues(t, 3, stored.Data["chunks"])
	}
}
