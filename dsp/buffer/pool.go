package buffer

import "sync"

// Pool provides sync.Pool-based Buffer reuse, so callers that hand out
// blocks per audio callback do not create garbage.
type Pool struct {
	pool sync.Pool
}

// NewPool returns a Pool ready for use.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return &Buffer{}
			},
		},
	}
}

// Get returns a zeroed Buffer with the requested shape.
// Callers must return it via Put when done.
func (p *Pool) Get(channels, length int) *Buffer {
	b := p.pool.Get().(*Buffer)
	b.Resize(channels, length)
	b.Zero()

	return b
}

// Put returns a Buffer to the pool for reuse.
// The caller must not use the buffer after calling Put.
func (p *Pool) Put(b *Buffer) {
	if b == nil {
		return
	}
	p.pool.Put(b)
}
