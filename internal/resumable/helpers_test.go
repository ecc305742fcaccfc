package resumable

import (
	"bytes"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sir_venger/resumable/internal/models"
)

// payload возвращает детерминированные псевдослучайные байты.
func payload(size int) []byte {
	b := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(b)
	return b
}

// split режет данные так же, как клиент: последний чанк забирает остаток.
func split(data []byte, chunkSize int64) [][]byte {
	total := int64(len(data))
	n := max(total/chunkSize, 1)
	out := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == n-1 {
			end = total
		}
		out = append(out, data[start:end])
	}
	return out
}

// incoming кладёт байты во временный файл каталога чанков, как это делает транспорт.
func incoming(t *testing.T, store *ChunkStore, data []byte) *models.FileHandle {
	t.Helper()
	f, err := store.CreateIncoming()
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return &models.FileHandle{Path: f.Name(), Size: int64(len(data))}
}

func putChunk(t *testing.T, store *ChunkStore, id string, n int64, data []byte) {
	t.Helper()
	require.NoError(t, store.Persist(id, n, *incoming(t, store, data)))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

// nopCloseBuffer считает вызовы Close.
type nopCloseBuffer struct {
	bytes.Buffer
	closed int
}

func (b *nopCloseBuffer) Close() error {
	b.closed++
	return nil
}
