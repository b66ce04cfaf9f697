// Package detector drives the classification loop: provider frames in,
// annotated JPEG frames out to the publisher.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"sync"
	"time"

	"github.com/edocrave99/LightSignalDetector/internal/config"
	"github.com/edocrave99/LightSignalDetector/internal/logger"
	"github.com/edocrave99/LightSignalDetector/internal/metrics"
	"github.com/edocrave99/LightSignalDetector/internal/provider"
	"github.com/edocrave99/LightSignalDetector/internal/publisher"
	"github.com/edocrave99/LightSignalDetector/internal/signal"
)

// Options wires a Detector.
type Options struct {
	Provider provider.FrameProvider
	Store    *config.Store
	Reload   *config.ReloadSignal
	Pub      *publisher.Publisher
	Metrics  *metrics.Metrics

	// ConfigPath is re-read when the reload signal fires; empty disables
	// file-backed reload and the store is used as-is.
	ConfigPath string

	// JPEGQuality for the published frames (1-100).
	JPEGQuality int

	// OnTransition, when set, is invoked from the loop goroutine on every
	// state change with the new result. It must not block.
	OnTransition func(signal.Result)
}

// Detector runs the classification loop on a single goroutine.
type Detector struct {
	opts Options

	mu   sync.Mutex
	last signal.Result
}

// New creates a Detector. Provider, Store, Reload, Pub and Metrics are
// required.
func New(opts Options) *Detector {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 75
	}
	return &Detector{opts: opts, last: signal.Result{State: signal.StateUnknown, Brightest: -1}}
}

// LastResult returns the most recent classification result.
func (d *Detector) LastResult() signal.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Run executes the loop until the provider reports end-of-stream (nil
// return), a fatal provider error (non-nil), or ctx is cancelled. The loop
// suspends only while waiting for the next raw frame; it never touches
// network I/O.
//
// Cancellation is observed between cycles only. A Run blocked in NextFrame
// does not notice ctx until the provider yields, so shutdown must close the
// provider (forcing end-of-stream) rather than rely on ctx alone.
func (d *Detector) Run(ctx context.Context) error {
	logger.Info("Detector", "Classification loop starting (quality=%d)", d.opts.JPEGQuality)

	var encodeBuf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			logger.Info("Detector", "Classification loop stopped: %v", ctx.Err())
			return nil
		default:
		}

		d.maybeReload()

		// Snapshot every cycle, reload or not: the whole cycle works from
		// one consistent config value.
		cfg := d.opts.Store.Snapshot()

		frame, err := d.opts.Provider.NextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Detector", "Frame provider reported end of stream")
				return nil
			}
			return fmt.Errorf("frame provider: %w", err)
		}
		d.opts.Metrics.FramesRead.Add(1)

		start := time.Now()
		res := signal.Classify(frame, cfg)
		img := signal.Annotate(frame, res)
		d.opts.Metrics.FramesClassified.Add(1)
		d.opts.Metrics.UpdateClassifyLatency(time.Since(start))
		if !res.RegionValid {
			d.opts.Metrics.RegionOutOfBounds.Add(1)
		}

		encodeStart := time.Now()
		encodeBuf.Reset()
		if err := jpeg.Encode(&encodeBuf, img, &jpeg.Options{Quality: d.opts.JPEGQuality}); err != nil {
			// Encoder failures on a valid RGBA image do not happen in
			// practice; skip the frame rather than tearing the slot.
			logger.Error("Detector", "JPEG encode failed: %v", err)
			d.opts.Provider.Release(frame)
			continue
		}
		d.opts.Metrics.UpdateEncodeLatency(time.Since(encodeStart))

		d.opts.Pub.Publish(encodeBuf.Bytes())
		d.opts.Metrics.FramesPublished.Add(1)

		d.opts.Provider.Release(frame)
		d.observe(res)
	}
}

// maybeReload consumes the reload signal and, when set, re-reads the
// persisted config document. Multiple signals since the last cycle coalesce
// into this one reload.
func (d *Detector) maybeReload() {
	if !d.opts.Reload.Consume() {
		return
	}
	if d.opts.ConfigPath == "" {
		d.opts.Metrics.ConfigReloads.Add(1)
		return
	}

	cfg, err := config.Load(d.opts.ConfigPath, d.opts.Store.Snapshot())
	if err != nil {
		// Rejected documents never reach the store; keep classifying with
		// the previous config.
		logger.Warn("Detector", "Config reload failed: %v", err)
		return
	}
	if err := d.opts.Store.Replace(cfg); err != nil {
		logger.Warn("Detector", "Config reload rejected: %v", err)
		return
	}
	d.opts.Metrics.ConfigReloads.Add(1)
	logger.Info("Detector", "Configuration reloaded")
}

// observe records the result and reports transitions.
func (d *Detector) observe(res signal.Result) {
	d.mu.Lock()
	prev := d.last.State
	d.last = res
	d.mu.Unlock()

	d.opts.Metrics.CurrentState.Store(uint64(res.State))
	if prev != res.State {
		d.opts.Metrics.StateTransitions.Add(1)
		logger.Info("Detector", "State %s -> %s (luma R:%.1f Y:%.1f G:%.1f)",
			prev, res.State, res.Luma[0], res.Luma[1], res.Luma[2])
		if d.opts.OnTransition != nil {
			d.opts.OnTransition(res)
		}
	}
}
