package resumableclient

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
)

const (
	barWidth     = 32
	renderPeriod = 120 * time.Millisecond
)

// progressBar рисует ASCII-индикатор загрузки. Чанки уходят параллельно, поэтому счётчик под мьютексом.
// nil-бар и бар без writer'а ничего не делают.
type progressBar struct {
	out        io.Writer
	prefix     string
	total      int64
	current    int64
	lastRender time.Time
	lastWidth  int
	finished   bool
	mu         sync.Mutex
}

func newProgressBar(out io.Writer, prefix string, total int64) *progressBar {
	if out == nil {
		return nil
	}
	return &progressBar{out: out, prefix: prefix, total: total}
}

func (p *progressBar) AddBytes(n int64) {
	if p == nil || n <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.current += n
	if time.Since(p.lastRender) >= renderPeriod {
		p.drawLocked("", false)
	}
}

func (p *progressBar) Finish() { p.complete(" ✓") }

func (p *progressBar) Fail(err error) { p.complete(fmt.Sprintf(" ✗ %v", err)) }

func (p *progressBar) complete(suffix string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.drawLocked(suffix, true)
}

func (p *progressBar) drawLocked(suffix string, newline bool) {
	line := p.line() + suffix
	pad := ""
	if p.lastWidth > len(line) {
		pad = strings.Repeat(" ", p.lastWidth-len(line))
	}
	p.lastWidth = len(line)
	p.lastRender = time.Now()

	end := ""
	if newline {
		end = "\n"
	}
	fmt.Fprintf(p.out, "\r%s%s%s", line, pad, end)
}

func (p *progressBar) line() string {
	if p.total <= 0 {
		return fmt.Sprintf("%s %s sent", p.prefix, units.HumanSize(float64(p.current)))
	}

	ratio := min(float64(p.current)/float64(p.total), 1)
	filled := int(ratio*barWidth + 0.5)
	return fmt.Sprintf("%s [%s%s] %3d%% %s/%s",
		p.prefix,
		strings.Repeat("=", filled),
		strings.Repeat(" ", barWidth-filled),
		int(ratio*100+0.5),
		units.HumanSize(float64(p.current)),
		units.HumanSize(float64(p.total)),
	)
}
