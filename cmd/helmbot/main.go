// Command helmbot is a headless participant. It joins a space, crews the
// user's vessel and runs the client physics loop against the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/viper"

	"github.com/OCAP2/helmsync/internal/client"
	"github.com/OCAP2/helmsync/internal/clientloop"
	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/physics"
	"github.com/OCAP2/helmsync/internal/uistore"
)

const BinaryName = "helmbot"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", BinaryName, err)
		os.Exit(1)
	}
}

// run takes an optional config dir and an optional throttle in [0,1].
func run(args []string) error {
	configDir := "."
	if len(args) > 0 {
		configDir = args[0]
	}
	throttle := 0.4
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v < 0 || v > 1 {
			return fmt.Errorf("throttle %q must be a number in [0,1]", args[1])
		}
		throttle = v
	}

	logManager := logging.NewSlogManager()
	loadErr := config.Load(configDir)
	logManager.Setup(viper.GetString("logLevel"), logging.Sinks{})
	logger := logManager.Logger().With("binary", BinaryName)
	if loadErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", loadErr)
	}

	clientCfg := config.GetClientConfig()
	simCfg := config.GetSimConfig()

	mod, err := physics.Load(simCfg.Module)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := clientloop.NewTickerScheduler(simCfg.FrameInterval)
	store := uistore.New(uistore.Snapshot{})
	b := &bot{
		userID:   clientCfg.UserID,
		throttle: throttle,
		store:    store,
		sched:    sched,
		logger:   logger,
	}

	c, err := client.New(client.Config{
		URL:          clientCfg.ServerURL,
		UserID:       clientCfg.UserID,
		Roles:        clientCfg.Roles,
		Space:        clientCfg.Space,
		Codec:        clientCfg.Codec,
		ReconnectMin: clientCfg.ReconnectMin,
		ReconnectMax: clientCfg.ReconnectMax,
	}, func(m client.Message) { b.handle(m.Type, m.Decode) }, logger)
	if err != nil {
		return err
	}
	b.cmd = c

	b.loop = clientloop.New(clientloop.Dependencies{
		Bridge:     physics.NewBridge(mod),
		Store:      store,
		Scheduler:  sched,
		Uplink:     c,
		LogManager: logManager,
		OnFuelAlarm: func(s uistore.Snapshot) {
			logger.Warn("Fuel alarm", "vessel", s.VesselID, "fuel", s.Fuel)
		},
	}, clientloop.Options{
		MaxFrameDelta:      simCfg.MaxFrameDelta,
		PosePushInterval:   simCfg.PosePushInterval,
		FuelAlarmThreshold: simCfg.FuelAlarmThreshold,
	})

	go sched.Run(ctx)
	logger.Info("Connecting", "url", clientCfg.ServerURL, "space", clientCfg.Space, "user", clientCfg.UserID)

	err = c.Run(ctx)
	b.loop.Stop()
	if errors.Is(err, client.ErrKicked) {
		logger.Warn("Kicked by server")
		err = nil
	}
	if closer, ok := mod.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("Failed to unload physics module", "error", cerr)
		}
	}
	logger.Info("Stopped", "anomalies", b.loop.Anomalies(), "fuel", store.Snapshot().Fuel)
	return err
}
