package resumable

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sir_venger/resumable/internal/models"
)

const (
	incomingPrefix = "upload-"
	incomingSuffix = ".tmp"
)

// ChunkStore владеет файлами чанков в каталоге dir. Никто другой туда не пишет.
type ChunkStore struct {
	dir string
}

// NewChunkStore создаёт каталог для чанков, если его ещё нет.
func NewChunkStore(dir string) (*ChunkStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	return &ChunkStore{dir: dir}, nil
}

// Dir возвращает корневой каталог чанков.
func (s *ChunkStore) Dir() string { return s.dir }

// ChunkPath возвращает <dir>/<sanitizedIdentifier>.<chunkNumber>.
func (s *ChunkStore) ChunkPath(identifier string, chunkNumber int64) string {
	name := SanitizeIdentifier(identifier) + "." + strconv.FormatInt(chunkNumber, 10)
	return filepath.Join(s.dir, name)
}

// Exists сообщает, лежит ли чанк на диске.
func (s *ChunkStore) Exists(identifier string, chunkNumber int64) bool {
	info, err := os.Stat(s.ChunkPath(identifier, chunkNumber))
	return err == nil && info.Mode().IsRegular()
}

// Persist переносит принятый временный файл на каноническое место чанка,
// перезаписывая прежнее содержимое с тем же номером.
func (s *ChunkStore) Persist(identifier string, chunkNumber int64, src models.FileHandle) error {
	if src.Path == "" || src.Size == 0 {
		return fmt.Errorf("%w: empty source", models.ErrPersist)
	}

	dst := s.ChunkPath(identifier, chunkNumber)
	err := os.Rename(src.Path, dst)
	if errors.Is(err, syscall.EXDEV) {
		// Источник на другом разделе: копируем и удаляем.
		err = copyFile(src.Path, dst)
		if err == nil {
			_ = os.Remove(src.Path)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrPersist, dst, err)
	}

	return nil
}

// Open открывает чанк на чтение.
func (s *ChunkStore) Open(identifier string, chunkNumber int64) (*os.File, error) {
	return os.Open(s.ChunkPath(identifier, chunkNumber))
}

// Remove удаляет один чанк.
func (s *ChunkStore) Remove(identifier string, chunkNumber int64) error {
	return os.Remove(s.ChunkPath(identifier, chunkNumber))
}

// CreateIncoming создаёт уникальный файл в каталоге чанков для приёма тела запроса.
// После приёма он переносится в чанк через Persist одним rename.
func (s *ChunkStore) CreateIncoming() (*os.File, error) {
	name := incomingPrefix + uuid.NewString() + incomingSuffix
	return os.OpenFile(filepath.Join(s.dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
}

// chunkEntry — разобранное имя файла из каталога чанков.
type chunkEntry struct {
	identifier  string
	chunkNumber int64
	incoming    bool
}

// parseEntryName разбирает имя файла каталога; ok=false для посторонних файлов.
func parseEntryName(name string) (chunkEntry, bool) {
	if strings.HasPrefix(name, incomingPrefix) && strings.HasSuffix(name, incomingSuffix) {
		return chunkEntry{incoming: true}, true
	}

	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return chunkEntry{}, false
	}
	id := name[:dot]
	if SanitizeIdentifier(id) != id {
		return chunkEntry{}, false
	}
	n, err := strconv.ParseInt(name[dot+1:], 10, 64)
	if err != nil || n <= 0 {
		return chunkEntry{}, false
	}

	return chunkEntry{identifier: id, chunkNumber: n}, true
}

// entries перечисляет файлы каталога вместе с их FileInfo.
func (s *ChunkStore) entries() ([]fs.FileInfo, error) {
	list, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	out := make([]fs.FileInfo, 0, len(list))
	for _, e := range list {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Файл мог исчезнуть между ReadDir и Info.
			continue
		}
		out = append(out, info)
	}

	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// RemoveIncoming удаляет недопринятый файл. Ошибки игнорируются: остатки подберёт сборщик.
func (s *ChunkStore) RemoveIncoming(path string) {
	_ = os.Remove(path)
}

// sessionChunks возвращает номера чанков сессии на диске и время изменения самого свежего из них.
func (s *ChunkStore) sessionChunks(identifier string) ([]int64, time.Time, error) {
	infos, err := s.entries()
	if err != nil {
		return nil, time.Time{}, err
	}

	var (
		numbers []int64
		newest  time.Time
	)
	for _, info := range infos {
		entry, ok := parseEntryName(info.Name())
		if !ok || entry.incoming || entry.identifier != identifier {
			continue
		}
		numbers = append(numbers, entry.chunkNumber)
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}

	return numbers, newest, nil
}
