// Reusable buffer pool for whole file reads; more efficient than allocating a
// buffer for every read and relying on GC.

package utils

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

const (
	// maxReadSize value for pools w/ no single read limit:
	READ_FILE_BUF_POOL_MAX_READ_SIZE_UNBOUND = 0
)

// Returned for reads that hit the pool's maxReadSize, since the file may
// have more data than what was loaded into the buffer:
var ErrReadFileBufPotentialTruncation = errors.New("potential truncation")

type ReadFileBufPool struct {
	// The buffers, maintained as a LIFO stack such that the most recently
	// used one is handed out first:
	bufPool []*bytes.Buffer
	// The current number of buffers in the stack:
	poolSize int
	// The max number of buffers that may be held in the stack; excess
	// returns are left to GC. Use <= 0 for no limit:
	maxPoolSize int
	// The max number of bytes for a single read, use
	// READ_FILE_BUF_POOL_MAX_READ_SIZE_UNBOUND for no limit:
	maxReadSize int64
	// Access lock:
	mu *sync.Mutex
}

func NewReadFileBufPool(maxPoolSize int, maxReadSize int64) *ReadFileBufPool {
	return &ReadFileBufPool{
		bufPool:     make([]*bytes.Buffer, 0, 8),
		maxPoolSize: maxPoolSize,
		maxReadSize: maxReadSize,
		mu:          &sync.Mutex{},
	}
}

// Get a buffer, reset but w/ its previously grown capacity intact:
func (p *ReadFileBufPool) GetBuf() *bytes.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.poolSize == 0 {
		return &bytes.Buffer{}
	}
	p.poolSize--
	b := p.bufPool[p.poolSize]
	p.bufPool = p.bufPool[:p.poolSize]
	b.Reset()
	return b
}

func (p *ReadFileBufPool) ReturnBuf(b *bytes.Buffer) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxPoolSize <= 0 || p.poolSize < p.maxPoolSize {
		p.bufPool = append(p.bufPool, b)
		p.poolSize++
	}
}

// Read a file in its entirety into a pooled buffer; the caller should
// ReturnBuf the buffer when done w/ it:
func (p *ReadFileBufPool) ReadFile(path string) (*bytes.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := p.GetBuf()
	if p.maxReadSize > 0 {
		n, err := b.ReadFrom(io.LimitReader(f, p.maxReadSize))
		if err == nil && n >= p.maxReadSize {
			err = ErrReadFileBufPotentialTruncation
		}
		if err != nil {
			p.ReturnBuf(b)
			return nil, err
		}
	} else if _, err = b.ReadFrom(f); err != nil {
		p.ReturnBuf(b)
		return nil, err
	}
	return b, nil
}
