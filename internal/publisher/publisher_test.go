package publisher

import (
	"bytes"
	"sync"
	"testing"
)

func TestReadCopyBeforeFirstPublish(t *testing.T) {
	p := New()
	if _, _, ok := p.ReadCopy(); ok {
		t.Fatal("ReadCopy ok = true before any publish")
	}
}

func TestPublishThenReadCopy(t *testing.T) {
	p := New()
	p.Publish([]byte("frame-1"))

	data, seq, ok := p.ReadCopy()
	if !ok {
		t.Fatal("ReadCopy ok = false after publish")
	}
	if seq != 1 {
		t.Fatalf("seq = %d, want 1", seq)
	}
	if !bytes.Equal(data, []byte("frame-1")) {
		t.Fatalf("data = %q", data)
	}
}

func TestReadCopyIsIndependent(t *testing.T) {
	p := New()
	p.Publish([]byte("aaaa"))

	data, _, _ := p.ReadCopy()
	p.Publish([]byte("bbbb"))

	if !bytes.Equal(data, []byte("aaaa")) {
		t.Fatalf("earlier copy changed after overwrite: %q", data)
	}

	// Mutating the reader's copy must not leak into the slot.
	data[0] = 'z'
	again, _, _ := p.ReadCopy()
	if !bytes.Equal(again, []byte("bbbb")) {
		t.Fatalf("slot corrupted by reader mutation: %q", again)
	}
}

// Every published frame is uniform bytes whose value also encodes its
// length, so any mix of two publishes is detectable in a returned copy.
func TestConcurrentReadersNeverSeeTornFrames(t *testing.T) {
	p := New()

	frameFor := func(v byte) []byte {
		return bytes.Repeat([]byte{v}, 100+int(v))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := byte(0); v < 200; v++ {
			p.Publish(frameFor(v))
		}
		close(stop)
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				data, _, ok := p.ReadCopy()
				if !ok {
					continue
				}
				v := data[0]
				if len(data) != 100+int(v) {
					t.Errorf("length %d does not match value %d", len(data), v)
					return
				}
				for _, b := range data {
					if b != v {
						t.Errorf("torn frame: saw %d inside frame of %d", b, v)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}

func TestSeqAdvances(t *testing.T) {
	p := New()
	if p.Seq() != 0 {
		t.Fatalf("fresh Seq = %d", p.Seq())
	}
	p.Publish([]byte("a"))
	p.Publish([]byte("b"))
	if p.Seq() != 2 {
		t.Fatalf("Seq = %d, want 2", p.Seq())
	}
}
