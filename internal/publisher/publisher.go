// Package publisher holds the single-slot latest-frame buffer connecting
// the classification loop to the stream clients.
package publisher

import "sync"

// Publisher is an overwrite-on-write, copy-on-read slot for the most recent
// encoded frame. Exactly one writer (the classification loop) and any number
// of concurrent readers (one per stream connection). Publish never blocks on
// readers; a reader can never observe bytes from two different publishes.
type Publisher struct {
	mu  sync.RWMutex
	buf []byte
	seq uint64
}

// New returns an empty publisher; ReadCopy reports unavailable until the
// first Publish.
func New() *Publisher {
	return &Publisher{}
}

// Publish replaces the held frame with a copy of data and bumps the
// sequence. The critical section covers only the copy.
func (p *Publisher) Publish(data []byte) {
	p.mu.Lock()
	if cap(p.buf) < len(data) {
		p.buf = make([]byte, len(data))
	}
	p.buf = p.buf[:len(data)]
	copy(p.buf, data)
	p.seq++
	p.mu.Unlock()
}

// ReadCopy returns an independent copy of the current frame and its sequence
// number. ok is false when nothing has been published yet.
func (p *Publisher) ReadCopy() (data []byte, seq uint64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.seq == 0 {
		return nil, 0, false
	}
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out, p.seq, true
}

// Seq returns the current sequence number without copying the frame.
func (p *Publisher) Seq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seq
}
