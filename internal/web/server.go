// Package web serves the detector's HTTP surface: the MJPEG stream, the
// configuration upload endpoint and the state/status feeds.
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edocrave99/LightSignalDetector/internal/config"
	"github.com/edocrave99/LightSignalDetector/internal/logger"
	"github.com/edocrave99/LightSignalDetector/internal/metrics"
	"github.com/edocrave99/LightSignalDetector/internal/publisher"
	"github.com/edocrave99/LightSignalDetector/internal/signal"
)

// StateSource exposes the most recent classification result.
type StateSource interface {
	LastResult() signal.Result
}

// Options wires a Server.
type Options struct {
	Settings config.Settings
	Store    *config.Store
	Reload   *config.ReloadSignal
	Pub      *publisher.Publisher
	Metrics  *metrics.Metrics
	State    StateSource
	Hub      *Hub
}

// Server serves the detector endpoints.
type Server struct {
	opts      Options
	startTime time.Time
}

// NewServer returns a configured server.
func NewServer(opts Options) *Server {
	return &Server{opts: opts, startTime: time.Now()}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/stream", s.withCORS(s.handleStream))
	mux.HandleFunc("/api/save_config", s.withCORS(s.handleSaveConfig))
	mux.HandleFunc("/api/config", s.withCORS(s.handleConfig))
	mux.HandleFunc("/api/state", s.withCORS(s.handleState))
	mux.HandleFunc("/api/state/ws", s.handleStateWS)
	mux.HandleFunc("/api/status", s.withCORS(s.handleStatus))
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

// withCORS answers preflight requests directly and stamps the permissive
// CORS header the embedded UI relies on.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			// Preflight: empty acknowledgment, no state change.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// handleSaveConfig accepts a configuration document, persists it and signals
// the classification loop to reload. Rejected documents mutate nothing.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeJSONWithStatus(w, map[string]any{
			"status": "error", "message": "Empty body",
		}, http.StatusBadRequest)
		return
	}

	var doc config.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		writeJSONWithStatus(w, map[string]any{
			"status": "error", "message": "Invalid configuration document",
		}, http.StatusBadRequest)
		return
	}

	merged := doc.MergeInto(s.opts.Store.Snapshot())
	if err := config.Validate(merged); err != nil {
		s.opts.Metrics.ConfigRejected.Add(1)
		writeJSONWithStatus(w, map[string]any{
			"status": "error", "message": err.Error(),
		}, http.StatusUnprocessableEntity)
		return
	}

	if err := config.Save(s.opts.Settings.ConfigPath, body); err != nil {
		logger.Error("Web", "Persisting config failed: %v", err)
		writeJSONWithStatus(w, map[string]any{
			"status": "error", "message": "Failed to persist configuration",
		}, http.StatusInternalServerError)
		return
	}

	if err := s.opts.Store.Replace(merged); err != nil {
		// Unreachable: merged was validated above. Kept symmetrical with the
		// store contract.
		s.opts.Metrics.ConfigRejected.Add(1)
		writeJSONWithStatus(w, map[string]any{
			"status": "error", "message": err.Error(),
		}, http.StatusUnprocessableEntity)
		return
	}

	s.opts.Reload.Set()
	logger.Info("Web", "Configuration accepted, reload signalled")
	writeJSON(w, map[string]any{"status": "success"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.opts.Store.Snapshot().AsDocument())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statePayload(s.opts.State.LastResult(), s.opts.Store.Snapshot()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	m := s.opts.Metrics
	res := s.opts.State.LastResult()
	payload := map[string]any{
		"state":             res.State,
		"uptime_seconds":    int64(time.Since(s.startTime).Seconds()),
		"frames_read":       m.FramesRead.Load(),
		"frames_classified": m.FramesClassified.Load(),
		"frames_published":  m.FramesPublished.Load(),
		"config_reloads":    m.ConfigReloads.Load(),
		"stream_clients":    m.ActiveStreamClients.Load(),
		"ws_clients":        s.opts.Hub.ClientCount(),
		"timestamp":         float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":          "ok",
		"frame_published": s.opts.Pub.Seq() > 0,
	})
}

// StatePayload marshals the state document pushed on the websocket feed.
// Marshaling a map of plain values cannot fail; the error is discarded.
func StatePayload(res signal.Result, cfg config.Config) []byte {
	data, _ := json.Marshal(statePayload(res, cfg))
	return data
}

// statePayload is the document pushed on the websocket feed and served on
// /api/state.
func statePayload(res signal.Result, cfg config.Config) map[string]any {
	return map[string]any{
		"state":        res.State,
		"luma":         res.Luma,
		"brightest":    res.Brightest,
		"region_valid": res.RegionValid,
		"config":       cfg.AsDocument(),
		"timestamp":    float64(time.Now().Unix()),
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}
