package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"pettracker/internal/config"
	"pettracker/internal/logger"
	"pettracker/internal/repository"
	"pettracker/internal/repository/mongo"
	"pettracker/internal/repository/sqlite"
	"pettracker/internal/route"
	"pettracker/internal/service"
	"pettracker/internal/service/ai"
	"pettracker/internal/service/detector"
	"pettracker/internal/service/eventbus"
	"pettracker/internal/service/storage"
	"pettracker/internal/service/stream"
	"pettracker/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	store      repository.Store
	bus        *eventbus.Bus
	classifier ai.Classifier
	hub        *websocket.HubService
	manager    *service.Manager
	server     *http.Server
}

// NewApp builds every component and wires the bus subscribers. Nothing runs
// until Run is called.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	cls, err := ai.New(cfg, log.Named("classifier"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	bus := eventbus.New(log.Named("eventbus"), eventbus.WithQueueSize(cfg.EventQueueSize))

	hub := websocket.NewHubService(store.Detections(), store.Snapshots(), websocket.Options{
		KeepAlive:           cfg.KeepAliveInterval,
		BootstrapDetections: cfg.BootstrapDetections,
		BootstrapSnapshots:  cfg.BootstrapSnapshots,
	}, log.Named("live"))

	recorder := storage.NewRecorder(store.Detections(), log.Named("recorder"))
	writer := storage.NewSnapshotWriter(cfg.SnapshotDirectory, store.Snapshots(), bus, log.Named("snapshots"),
		storage.WithQuality(cfg.SnapshotQuality))

	if _, err := recorder.Subscribe(bus); err != nil {
		store.Close()
		return nil, err
	}
	if _, err := writer.Subscribe(bus); err != nil {
		store.Close()
		return nil, err
	}
	if err := hub.Subscribe(bus); err != nil {
		store.Close()
		return nil, err
	}

	sources := stream.NewRegistry(stream.Options{
		Width:   cfg.FrameWidth,
		Height:  cfg.FrameHeight,
		Command: stream.FFmpegCommand(cfg.FFmpegPath),
	}, log.Named("stream"))
	detectors := detector.NewRegistry(cls, bus, log.Named("detector"))
	manager := service.NewManager(sources, detectors, detector.Options{
		ModelID:             cfg.ModelID,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Interval:            cfg.DetectionInterval,
		StopTimeout:         cfg.DetectorStopTimeout,
	}, log)

	router := route.SetupRoutes(cfg, route.Deps{
		Cameras:    manager,
		Bus:        bus,
		Hub:        hub,
		Detections: store.Detections(),
		Snapshots:  store.Snapshots(),
		Logger:     log.Named("http"),
	})

	return &App{
		config:     cfg,
		logger:     log,
		store:      store,
		bus:        bus,
		classifier: cls,
		hub:        hub,
		manager:    manager,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.DatabaseDriver {
	case "", "sqlite":
		return sqlite.Open(cfg.DatabasePath)
	case "mongo", "mongodb":
		return mongo.Open(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
}

// Run starts the pipeline and the HTTP server and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives. Shutdown order: HTTP server,
// detectors, sources, bus drain, live clients, storage.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	busCtx, stopBus := context.WithCancel(context.Background())
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopBus()
	defer stopHub()

	var background errgroup.Group
	background.Go(func() error { return a.bus.Run(busCtx) })
	background.Go(func() error { return a.hub.Run(hubCtx) })

	if a.config.CameraConfigErr != nil {
		a.logger.Error("Invalid camera configuration, no cameras started: %v", a.config.CameraConfigErr)
	}
	a.manager.StartCameras(a.config.Cameras)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("🚀 Pet Tracker API listening on %s%s", a.server.Addr, a.config.APIPrefix)
		a.logger.Info("📁 Snapshots: %s", a.config.SnapshotDirectory)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	})
	runErr := g.Wait()

	a.logger.Info("Shutting down")
	a.manager.Stop()

	stopBus()
	<-a.bus.Done()
	stopHub()
	err := multierr.Append(runErr, background.Wait())

	if c, ok := a.classifier.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	err = multierr.Append(err, a.store.Close())

	a.logger.Info("👋 Stopped")
	a.logger.Sync()
	return err
}
