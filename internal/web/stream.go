package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/edocrave99/LightSignalDetector/internal/logger"
)

// handleStream serves the continuous multipart MJPEG stream. Each connection
// pulls from the publisher at its own pace; a stalled client only stalls its
// own goroutine. The loop alternates between waiting for a frame (none
// published yet) and sending one, and terminates solely on write failure or
// request cancellation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.opts.Metrics.ActiveStreamClients.Add(1)
	s.opts.Metrics.TotalStreamClients.Add(1)
	defer func() {
		s.opts.Metrics.ActiveStreamClients.Add(^uint64(0))
	}()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	logger.Debug("Stream", "Client %s connected", r.RemoteAddr)

	interval := s.opts.Settings.StreamInterval
	retry := s.opts.Settings.RetryInterval
	writeTimeout := s.opts.Settings.StreamWriteTimeout
	rc := http.NewResponseController(w)

	for {
		data, _, ok := s.opts.Pub.ReadCopy()
		if !ok {
			// Nothing published yet: wait and retry rather than erroring.
			select {
			case <-r.Context().Done():
				logger.Debug("Stream", "Client %s gone while waiting for first frame", r.RemoteAddr)
				return
			case <-time.After(retry):
			}
			continue
		}

		if writeTimeout > 0 {
			// Rearmed per frame: a client that stops reading fails the next
			// write instead of holding the goroutine forever.
			_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
		}
		if err := writeFramePart(w, data); err != nil {
			// Client disconnected; expected end of every stream, not an
			// application error.
			logger.Debug("Stream", "Client %s disconnected: %v", r.RemoteAddr, err)
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			logger.Debug("Stream", "Client %s cancelled", r.RemoteAddr)
			return
		case <-time.After(interval):
		}
	}
}

// writeFramePart writes one self-delimited MJPEG chunk: boundary, headers,
// payload, trailing delimiter.
func writeFramePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
