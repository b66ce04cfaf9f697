package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edocrave99/LightSignalDetector/internal/config"
	"github.com/edocrave99/LightSignalDetector/internal/detector"
	"github.com/edocrave99/LightSignalDetector/internal/logger"
	"github.com/edocrave99/LightSignalDetector/internal/metrics"
	"github.com/edocrave99/LightSignalDetector/internal/provider"
	"github.com/edocrave99/LightSignalDetector/internal/publisher"
	"github.com/edocrave99/LightSignalDetector/internal/web"
	sig "github.com/edocrave99/LightSignalDetector/internal/signal"
)

var (
	// Command-line flags
	settingsPath = flag.String("settings", "", "Server settings YAML file (optional)")
	configPath   = flag.String("config", "", "Detection config JSON path (overrides settings)")
	httpAddr     = flag.String("http", "", "HTTP server address (overrides settings)")
	metricsAddr  = flag.String("metrics", "", "Metrics server address (overrides settings)")
	sourceFPS    = flag.Int("fps", 30, "Synthetic source frame rate")
	demoScene    = flag.Bool("demo-scene", true, "Paint a lit red lamp into the synthetic source")
	logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor     = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "Light signal detector starting...")

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *configPath != "" {
		settings.ConfigPath = *configPath
	}
	if *httpAddr != "" {
		settings.HTTPAddr = *httpAddr
	}
	if *metricsAddr != "" {
		settings.MetricsAddr = *metricsAddr
	}

	cfg, err := config.Load(settings.ConfigPath, config.Default())
	if err != nil {
		// Startup continues on the compiled-in default; a bad persisted
		// document must not keep the detector down.
		logger.Warn("Main", "Startup config ignored: %v", err)
		cfg = config.Default()
	}

	srv := newServer(settings, cfg)
	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sigChan:
		logger.Info("Main", "Signal %v, shutting down...", s)
	case err := <-srv.loopDone:
		if err != nil {
			logger.Error("Main", "Classification loop failed: %v", err)
		} else {
			// End-of-stream: classification has no meaning without frames.
			logger.Info("Main", "Frame source ended, shutting down...")
		}
	}

	srv.Shutdown()
	logger.Info("Main", "Server stopped")
}

// server groups the wired components for startup and orderly shutdown.
type server struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings config.Settings
	source   *provider.Synthetic
	det      *detector.Detector
	hub      *web.Hub
	metrics  *metrics.Metrics
	httpSrv  *http.Server

	loopDone chan error
}

func newServer(settings config.Settings, cfg config.Config) *server {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.New()
	store := config.NewStore(cfg)
	reload := &config.ReloadSignal{}
	pub := publisher.New()
	hub := web.NewHub()

	source := provider.NewSynthetic(provider.SyntheticOptions{
		Width:    settings.FrameWidth,
		Height:   settings.FrameHeight,
		FPS:      *sourceFPS,
		BaseLuma: 24,
	})
	if *demoScene {
		source.SetScene(provider.Disk{
			X:      cfg.MasterX + cfg.RedX,
			Y:      cfg.MasterY + cfg.RedY,
			Radius: cfg.LampRadius,
			Luma:   230,
		})
	}

	det := detector.New(detector.Options{
		Provider:    source,
		Store:       store,
		Reload:      reload,
		Pub:         pub,
		Metrics:     m,
		ConfigPath:  settings.ConfigPath,
		JPEGQuality: settings.JPEGQuality,
		OnTransition: func(res sig.Result) {
			hub.Broadcast(web.StatePayload(res, store.Snapshot()))
		},
	})

	webSrv := web.NewServer(web.Options{
		Settings: settings,
		Store:    store,
		Reload:   reload,
		Pub:      pub,
		Metrics:  m,
		State:    det,
		Hub:      hub,
	})

	httpSrv := &http.Server{
		Addr:     settings.HTTPAddr,
		Handler:  webSrv.Handler(),
		ErrorLog: logger.ErrorLog("HTTP"),
	}

	return &server{
		ctx:      ctx,
		cancel:   cancel,
		settings: settings,
		source:   source,
		det:      det,
		hub:      hub,
		metrics:  m,
		httpSrv:  httpSrv,
		loopDone: make(chan error, 1),
	}
}

// Start launches the hub, the metrics and HTTP listeners, and the
// classification loop.
func (s *server) Start() {
	go s.hub.Run(s.ctx)

	go func() {
		logger.Info("Main", "Metrics server on %s", s.settings.MetricsAddr)
		if err := s.metrics.StartServer(s.settings.MetricsAddr); err != nil {
			logger.Error("Main", "Metrics server: %v", err)
		}
	}()

	go func() {
		logger.Info("Main", "HTTP server on %s", s.settings.HTTPAddr)
		if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Main", "HTTP server: %v", err)
		}
	}()

	go func() {
		s.loopDone <- s.det.Run(s.ctx)
	}()
}

// Shutdown stops frame acquisition, the loop, and drains the HTTP server.
// In-flight stream connections end when Shutdown's drain window closes them.
func (s *server) Shutdown() {
	s.source.Close()
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("Main", "HTTP shutdown: %v", err)
		_ = s.httpSrv.Close()
	}
}
