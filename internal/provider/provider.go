// Package provider defines the frame acquisition contract the classification
// loop consumes. Real deployments bind a camera-backed implementation; the
// package ships a synthetic test-pattern provider for development and tests.
package provider

import "time"

// Frame is one raw video frame in planar YCbCr 4:2:0. The luminance plane is
// what classification samples; chroma is only carried for annotation.
//
// Frames are pooled: a frame obtained from NextFrame must be handed back with
// Release exactly once, after which the caller must not touch it again.
type Frame struct {
	Width  int
	Height int

	// Y is the full-resolution luminance plane, len Width*Height.
	Y []byte
	// Cb and Cr are quarter-resolution chroma planes,
	// len ((Width+1)/2)*((Height+1)/2).
	Cb []byte
	Cr []byte

	Seq       uint64
	Timestamp time.Time
}

// Luma returns the luminance at (x, y). Callers guarantee bounds.
func (f *Frame) Luma(x, y int) byte {
	return f.Y[y*f.Width+x]
}

// FrameProvider yields a blocking sequence of raw frames.
//
// Implementations must guarantee:
//   - NextFrame blocks until a frame is available, and returns io.EOF once
//     the stream has ended (no further frames will ever arrive).
//   - Release must be called exactly once per frame obtained; withholding it
//     exhausts the provider's buffers and stalls future NextFrame calls.
type FrameProvider interface {
	NextFrame() (*Frame, error)
	Release(*Frame)
}
