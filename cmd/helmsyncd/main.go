// Command helmsyncd is the authority server. It owns the vessel registry of
// every simulation space, accepts websocket participants and persists
// vessels, economy profiles and mission assignments.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/helmsync/internal/cache"
	"github.com/OCAP2/helmsync/internal/catalog"
	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/economy"
	"github.com/OCAP2/helmsync/internal/handlers"
	"github.com/OCAP2/helmsync/internal/hub"
	"github.com/OCAP2/helmsync/internal/influx"
	"github.com/OCAP2/helmsync/internal/journal"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/mission"
	"github.com/OCAP2/helmsync/internal/monitor"
	intOtel "github.com/OCAP2/helmsync/internal/otel"
	"github.com/OCAP2/helmsync/internal/registry"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/internal/worker"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion = "0.0.1"
	BuildDate      = "unknown"

	BinaryName = "helmsyncd"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime = time.Now()
)

func main() {
	configDir := "."
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	if err := run(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", BinaryName, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(viper.GetString("logLevel"), logging.Sinks{})
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFile, closeLog := openLogFile()
	defer closeLog()

	connections := &cache.SafeCounter{}
	reg := registry.New()
	setupLogging(logFile, connections, reg)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(flushCtx); err != nil {
			fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
		}
	}()

	Logger.Info("Starting", "version", CurrentVersion, "build", BuildDate)

	zlog := zerolog.New(logWriter(logFile)).With().Timestamp().Str("binary", BinaryName).Logger()

	// storage
	backend, err := initStorage(config.GetStorageConfig(), SlogManager, zlog)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage", "error", err)
		}
	}()

	// world
	missionCfg := config.GetMissionConfig()
	world, err := catalog.Load(missionCfg.Catalog)
	if errors.Is(err, os.ErrNotExist) {
		Logger.Warn("World file not found, using built-in catalog", "path", missionCfg.Catalog)
		world, err = catalog.Load("")
	}
	if err != nil {
		return fmt.Errorf("failed to load world: %w", err)
	}
	if err := loadVessels(ctx, reg, backend, world); err != nil {
		return err
	}

	// services
	rules := config.GetRulesConfig()
	core.StartingCredits = rules.StartingCredits
	econ := economy.NewService(backend)
	profiles := cache.NewProfileCache()

	persist := worker.NewManager(worker.Dependencies{
		Store:      backend,
		LogManager: SlogManager,
		Debounce:   rules.PersistDebounce,
	})

	var admin *journal.Journal
	if jc := config.GetJournalConfig(); jc.Enabled {
		admin = journal.New(jc.Dir)
		defer admin.Close()
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	session := &sessionRef{}
	h, err := hub.New(hub.Dependencies{
		Dispatcher:   eventDispatcher,
		Session:      session,
		Economy:      econ,
		ProfileCache: profiles,
		Connections:  connections,
		LogManager:   SlogManager,
		Config:       config.GetServerConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}

	tracker := mission.NewTracker(mission.Dependencies{
		Store:    backend,
		Catalog:  world,
		Spaces:   liveSpaces(reg),
		Notifier: h,
		Logger:   Logger,
	}, mission.Config{
		PickupRadius:   missionCfg.PickupRadius,
		DeliveryRadius: missionCfg.DeliveryRadius,
		SweepInterval:  missionCfg.SweepInterval,
	})

	handlerService := handlers.NewService(handlers.Dependencies{
		Registry:     reg,
		Ports:        world,
		Economy:      econ,
		Missions:     tracker,
		ProfileCache: profiles,
		Persist:      persist,
		Journal:      admin,
		Broadcast:    h,
		LogManager:   SlogManager,
		Rules:        rules,
	})
	session.svc = handlerService
	handlerService.RegisterHandlers(eventDispatcher)

	for _, space := range reg.Spaces() {
		if n := handlerService.Moor(space.ID); n > 0 {
			Logger.Info("Vessels moored at startup", "space", space.ID, "count", n)
		}
	}

	// telemetry
	var telemetry monitor.Telemetry
	influxManager := influx.NewManager(zlog, config.GetInfluxConfig())
	switch err := influxManager.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
	case err != nil:
		Logger.Error("Failed to connect to InfluxDB", "error", err)
	default:
		telemetry = influxManager
		defer influxManager.Close()
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		Registry:    reg,
		Writer:      persist,
		Connections: connections,
		Influx:      telemetry,
		LogManager:  SlogManager,
		StatusFile:  filepath.Join(viper.GetString("logsDir"), BinaryName+".status.json"),
	})

	// background loops
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		persist.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		tracker.Run(ctx)
	}()
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}
	defer monitorService.Stop()

	// listener
	serverCfg := config.GetServerConfig()
	srv := &http.Server{
		Addr:              serverCfg.Listen,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		Logger.Info("Listening", "addr", serverCfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		Logger.Info("Shutting down")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("listener failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Logger.Error("HTTP shutdown failed", "error", err)
	}
	wg.Wait()
	Logger.Info("Stopped", "written", persist.Written())
	return nil
}

// openLogFile creates the per-session log file in logsDir. A failure leaves
// logging on the console.
func openLogFile() (*os.File, func()) {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		Logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
		return nil, func() {}
	}

	path := logging.LogFilePath(logsDir, BinaryName, SessionStartTime)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", path)
		return nil, func() {}
	}
	Logger.Info("Begin logging in logs directory", "path", path)
	if removed, err := logging.PruneLogs(logsDir, BinaryName, viper.GetInt("logKeep")); err != nil {
		Logger.Warn("Failed to prune old logs", "error", err)
	} else if len(removed) > 0 {
		Logger.Info("Pruned old logs", "count", len(removed))
	}
	return f, func() { f.Close() }
}

func logWriter(f *os.File) io.Writer {
	if f == nil {
		return os.Stdout
	}
	return f
}

// setupLogging re-initializes slog with the file, Graylog and OTel sinks.
func setupLogging(logFile *os.File, connections *cache.SafeCounter, reg *registry.Registry) {
	var err error
	sinks := logging.Sinks{
		Context: func() []slog.Attr {
			return []slog.Attr{
				slog.Int("connections", connections.Value()),
				slog.Int("spaces", len(reg.Spaces())),
			}
		},
	}
	if logFile != nil {
		sinks.File = logFile
	}

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if logFile != nil {
		otelWriter = logFile
	}
	OTelProvider, err = intOtel.New(otelCfg, otelWriter)
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider, _ = intOtel.New(config.OTelConfig{}, nil)
	} else if OTelProvider.Enabled() {
		Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	sinks.Provider = otelLogProvider

	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.NewGELFWriter(gc.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			sinks.GELF = w
		}
	}

	SlogManager.Setup(viper.GetString("logLevel"), sinks)
	Logger = SlogManager.Logger()
}

// loadVessels fills the registry from storage and seeds spaces the world
// file names but storage has never seen.
func loadVessels(ctx context.Context, reg *registry.Registry, backend storage.Backend, world *catalog.Catalog) error {
	persisted, err := backend.LoadVessels(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load vessels: %w", err)
	}
	n := reg.Load(persisted)
	Logger.Info("Vessels loaded", "count", n)

	for _, spaceID := range world.Spaces() {
		if space, ok := reg.Lookup(spaceID); ok && space.Len() > 0 {
			continue
		}
		seed := world.SeedVessels(spaceID)
		if err := backend.SaveVessels(ctx, seed); err != nil {
			return fmt.Errorf("failed to seed space %s: %w", spaceID, err)
		}
		Logger.Info("Space seeded", "space", spaceID, "count", reg.Load(seed))
	}
	return nil
}

func liveSpaces(reg *registry.Registry) mission.Spaces {
	return func() map[string]mission.Space {
		out := make(map[string]mission.Space)
		for _, s := range reg.Spaces() {
			out[s.ID] = s
		}
		return out
	}
}

// sessionRef lets the hub reach the handler service, which is built after it.
type sessionRef struct {
	svc *handlers.Service
}

func (r *sessionRef) Snapshot(spaceID string) streaming.Outbound {
	return r.svc.Snapshot(spaceID)
}

func (r *sessionRef) Disconnect(spaceID, userID string) {
	r.svc.Disconnect(spaceID, userID)
}
