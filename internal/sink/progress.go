// Package sink provides upload.Sink implementations: an HTTP client for the
// relay endpoint and a direct object-storage writer.
package sink

import (
	"errors"
	"io"
	"sync"

	"github.com/stagebox/service/internal/upload"
)

// progressReader reports bytes read through fn. It seeks when the wrapped
// reader does, so SDKs that rewind bodies for retries keep working.
type progressReader struct {
	r     io.Reader
	total int64
	fn    upload.ProgressFunc

	mu   sync.Mutex
	sent int64
}

func newProgressReader(r io.Reader, total int64, fn upload.ProgressFunc) *progressReader {
	if fn == nil {
		fn = func(int64, int64) {}
	}
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		sent := p.sent
		p.mu.Unlock()
		p.fn(sent, p.total)
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := p.r.(io.Seeker)
	if !ok {
		return 0, errors.New("progress reader: underlying reader cannot seek")
	}
	pos, err := s.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	p.mu.Lock()
	p.sent = pos
	p.mu.Unlock()
	return pos, nil
}
