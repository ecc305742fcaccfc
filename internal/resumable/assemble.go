package resumable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// AssembleOptions управляет поведением Assemble.
type AssembleOptions struct {
	// KeepOpen оставляет приёмник открытым после последнего чанка; закрывать его будет вызывающий.
	// По умолчанию приёмник, реализующий io.Closer, закрывается.
	KeepOpen bool
	// Chunks > 0 ограничивает сборку первыми Chunks чанками: хвост от прошлой сессии с тем же
	// идентификатором в файл не попадёт.
	Chunks int64
}

// AssembleResult — сколько чанков и байт записано в приёмник.
type AssembleResult struct {
	Chunks int64
	Bytes  int64
}

// Assemble пишет чанки 1, 2, ... строго по порядку в dst и останавливается на первом
// отсутствующем номере. Завершённость должна быть проверена заранее: на неполной
// сессии результат будет обрезан на пропуске.
func (s *ChunkStore) Assemble(ctx context.Context, identifier string, dst io.Writer, opts AssembleOptions) (AssembleResult, error) {
	var res AssembleResult
	err := s.pipeChunks(ctx, identifier, dst, opts.Chunks, &res)

	if !opts.KeepOpen {
		if c, ok := dst.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close destination: %w", cerr)
			}
		}
	}

	return res, err
}

func (s *ChunkStore) pipeChunks(ctx context.Context, identifier string, dst io.Writer, limit int64, res *AssembleResult) error {
	for n := int64(1); limit <= 0 || n <= limit; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := s.Open(identifier, n)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("open chunk %d: %w", n, err)
		}

		written, err := io.Copy(dst, ctxReader{ctx: ctx, r: f})
		_ = f.Close()
		res.Bytes += written
		if err != nil {
			return fmt.Errorf("copy chunk %d: %w", n, err)
		}
		res.Chunks++
	}

	return nil
}

// ctxReader прерывает копирование, как только контекст отменён.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
