package provider

import (
	"io"
	"sync"
	"time"
)

// Disk describes one bright disk painted on the synthetic test pattern, in
// absolute frame coordinates.
type Disk struct {
	X, Y   int
	Radius int
	Luma   byte
}

// Synthetic generates a paced test-pattern stream: a flat dark field with
// zero or more bright disks. It satisfies the blocking NextFrame/Release
// contract, including pool starvation when frames are never released.
type Synthetic struct {
	width    int
	height   int
	interval time.Duration

	mu        sync.Mutex
	scene     []Disk
	base      byte
	limit     uint64 // 0 = unlimited
	seq       uint64
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	pool sync.Pool
	// slots bounds the number of un-released frames in flight, mirroring a
	// device provider's fixed buffer ring.
	slots chan struct{}
}

// SyntheticOptions configures a Synthetic provider.
type SyntheticOptions struct {
	Width  int
	Height int
	// FPS paces NextFrame. Zero means unpaced (as fast as the caller pulls),
	// which is what tests want.
	FPS int
	// Buffers is the number of frames that may be held un-released at once.
	// Zero defaults to 2, the reference device's buffer count.
	Buffers int
	// FrameLimit ends the stream (io.EOF) after this many frames. Zero means
	// unlimited.
	FrameLimit uint64
	// BaseLuma is the background luminance of the field.
	BaseLuma byte
}

// NewSynthetic creates a synthetic provider.
func NewSynthetic(opts SyntheticOptions) *Synthetic {
	if opts.Buffers <= 0 {
		opts.Buffers = 2
	}
	var interval time.Duration
	if opts.FPS > 0 {
		interval = time.Second / time.Duration(opts.FPS)
	}
	s := &Synthetic{
		width:    opts.Width,
		height:   opts.Height,
		interval: interval,
		base:     opts.BaseLuma,
		limit:    opts.FrameLimit,
		done:     make(chan struct{}),
		slots:    make(chan struct{}, opts.Buffers),
	}
	for i := 0; i < opts.Buffers; i++ {
		s.slots <- struct{}{}
	}
	return s
}

// SetScene replaces the painted disks; the next generated frame reflects it.
func (s *Synthetic) SetScene(disks ...Disk) {
	s.mu.Lock()
	s.scene = append(s.scene[:0], disks...)
	s.mu.Unlock()
}

// Close ends the stream: pending and future NextFrame calls return io.EOF.
func (s *Synthetic) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

// NextFrame blocks for a free buffer slot (and the frame pacing interval),
// then renders and returns the next frame. Returns io.EOF after Close or
// once FrameLimit frames have been produced.
func (s *Synthetic) NextFrame() (*Frame, error) {
	if s.interval > 0 {
		time.Sleep(s.interval)
	}
	select {
	case <-s.slots:
	case <-s.done:
		return nil, io.EOF
	}

	s.mu.Lock()
	if s.closed || (s.limit > 0 && s.seq >= s.limit) {
		s.mu.Unlock()
		s.slots <- struct{}{}
		return nil, io.EOF
	}
	s.seq++
	seq := s.seq
	scene := append([]Disk(nil), s.scene...)
	base := s.base
	s.mu.Unlock()

	f := s.acquire()
	f.Seq = seq
	f.Timestamp = time.Now()
	for i := range f.Y {
		f.Y[i] = base
	}
	// Neutral chroma (gray field).
	for i := range f.Cb {
		f.Cb[i] = 128
		f.Cr[i] = 128
	}
	for _, d := range scene {
		paintDisk(f, d)
	}
	return f, nil
}

// Release returns the frame's buffers to the pool and frees its slot.
func (s *Synthetic) Release(f *Frame) {
	if f == nil {
		return
	}
	s.pool.Put(f)
	s.slots <- struct{}{}
}

func (s *Synthetic) acquire() *Frame {
	if v := s.pool.Get(); v != nil {
		return v.(*Frame)
	}
	cw := (s.width + 1) / 2
	ch := (s.height + 1) / 2
	return &Frame{
		Width:  s.width,
		Height: s.height,
		Y:      make([]byte, s.width*s.height),
		Cb:     make([]byte, cw*ch),
		Cr:     make([]byte, cw*ch),
	}
}

func paintDisk(f *Frame, d Disk) {
	r2 := d.Radius * d.Radius
	for dy := -d.Radius; dy <= d.Radius; dy++ {
		y := d.Y + dy
		if y < 0 || y >= f.Height {
			continue
		}
		for dx := -d.Radius; dx <= d.Radius; dx++ {
			x := d.X + dx
			if x < 0 || x >= f.Width {
				continue
			}
			if dx*dx+dy*dy <= r2 {
				f.Y[y*f.Width+x] = d.Luma
			}
		}
	}
}
