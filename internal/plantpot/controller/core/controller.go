// Package core hosts the watering engine: it opens the hardware, the state
// files and the history database, starts the engine and serves the operator
// surfaces (socket, HTTP, MQTT) until it is told to stop.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/daemon"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/database"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/httpapi"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/mqttbridge"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/socket"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/gate"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/hal"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/notify"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/status"
)

const (
	// historyRetention bounds the history database
	historyRetention = 365 * 24 * time.Hour
	pruneInterval    = 24 * time.Hour
	// drainTimeout bounds how long shutdown waits for a running pump
	drainTimeout = 5 * time.Minute
)

// Controller owns every long-lived component of a running plant pot
type Controller struct {
	cfg types.ControllerConfig

	source       *config.FileSource
	device       hal.Device
	store        *status.Store
	inbox        *command.Channel
	db           *database.DB
	gate         *gate.Gate
	registry     *prometheus.Registry
	engine       *engine.Engine
	socketServer *socket.Server
	httpServer   *httpapi.Server
	bridge       *mqttbridge.Bridge

	openDevice func(config.Config) (hal.Device, error)
}

// New creates a controller. Nothing is opened until Start or Run.
func New(cfg types.ControllerConfig) *Controller {
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = types.DefaultControllerConfig.ConfigPath
	}
	if cfg.Tick <= 0 {
		cfg.Tick = types.DefaultControllerConfig.Tick
	}
	return &Controller{cfg: cfg, openDevice: hal.Open}
}

// Start runs the controller, detaching first in daemon mode. In the parent
// process of a daemon start it returns as soon as the child is forked.
func (c *Controller) Start() error {
	if c.cfg.DaemonMode {
		log.Info("Starting plant pot controller in DAEMON mode...")
		isChild, pid, err := daemon.Daemonize(c.cfg.PidFile, c.cfg.LogFile)
		if err != nil {
			return err
		}
		if !isChild {
			log.Info("✅ Plant pot controller started")
			log.Info("📄 PID: %d (saved to %s)", pid, c.cfg.PidFile)
			log.Info("📝 Logs: %s", c.cfg.LogFile)
			return nil
		}
		log.SetTimestamps(true)
		log.Info("🚀 Plant pot controller daemon started (PID: %d)", pid)
	} else {
		log.Info("Starting plant pot controller in foreground mode...")
		if err := daemon.WritePIDFile(c.cfg.PidFile, os.Getpid()); err != nil {
			return err
		}
	}
	defer func() {
		if err := daemon.RemovePIDFile(c.cfg.PidFile); err != nil {
			log.Error("%v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.Run(ctx)
}

// Run opens every component, starts the engine and blocks until ctx is done
// or a component fails. Everything is closed before it returns.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.setup(); err != nil {
		c.teardown()
		return err
	}
	defer c.teardown()

	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.WatchConfig {
		g.Go(func() error { return c.source.Watch(gctx) })
	}
	if c.socketServer.IsEnabled() {
		g.Go(func() error {
			c.socketServer.Run(gctx)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return c.socketServer.Close()
		})
	}
	if c.httpServer != nil {
		g.Go(func() error { return c.httpServer.ListenAndServe(gctx) })
	}
	if c.bridge != nil {
		g.Go(func() error { return c.bridge.Run(gctx) })
	}
	if c.db.IsEnabled() {
		g.Go(func() error {
			c.pruneLoop(gctx)
			return nil
		})
	}

	log.Info("Plant pot controller running")
	<-gctx.Done()
	log.Info("Stopping plant pot controller...")

	if err := c.engine.Stop(); err != nil {
		log.Error("%v", err)
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := c.engine.Wait(waitCtx); err != nil {
		log.Error("Pump did not finish before shutdown: %v", err)
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("Plant pot controller stopped")
	return err
}

func (c *Controller) setup() error {
	source, err := config.NewFileSource(c.cfg.ConfigPath)
	if err != nil {
		return err
	}
	c.source = source
	cfg := source.Current()
	source.OnChange(func(old, updated config.Config) {
		if old.Sensors != updated.Sensors || old.Pump.Pin != updated.Pump.Pin {
			log.Warn("Sensor and pump wiring changes take effect after a restart")
		}
	})

	if err := daemon.EnsureDirectoriesExist(cfg.Paths.StatusFile, cfg.Paths.CommandFile); err != nil {
		return err
	}

	device, err := c.openDevice(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s hardware: %w", cfg.Sensors.Driver, err)
	}
	c.device = device

	c.store = status.NewStore(cfg.Paths.StatusFile)
	c.inbox = command.Open(cfg.Paths.CommandFile)
	c.gate = gate.New(device, source)

	c.db = database.New(cfg.Paths.DatabaseFile, c.cfg.DatabaseOn)
	if err := c.db.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []engine.Option{
		engine.WithTick(c.cfg.Tick),
		engine.WithMetrics(engine.NewMetrics(c.registry)),
	}
	if c.db.IsEnabled() {
		opts = append(opts, engine.WithRecorder(c.db))
	}
	if dispatcher := notify.FromConfig(cfg.Notify); dispatcher.Enabled() {
		opts = append(opts, engine.WithNotifier(dispatcher))
	}
	c.engine = engine.New(source, device, device, c.store, c.inbox, opts...)

	c.socketServer = socket.NewServer(cfg.Paths.SocketFile, c.cfg.SocketOn, socket.NewDefaultCommandHandler(c))
	if err := c.socketServer.Init(); err != nil {
		return fmt.Errorf("failed to initialize socket server: %w", err)
	}

	if cfg.HTTP.Enabled {
		c.httpServer = httpapi.New(cfg.HTTP, c, c.registry)
	}
	if cfg.MQTT.Enabled {
		c.bridge = mqttbridge.New(cfg.MQTT, c)
	}
	return nil
}

func (c *Controller) teardown() {
	if c.socketServer != nil {
		if err := c.socketServer.Close(); err != nil {
			log.Error("Failed to close socket server: %v", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			log.Error("Failed to close database: %v", err)
		}
	}
	if c.device != nil {
		if err := c.device.Close(); err != nil {
			log.Error("Failed to release hardware: %v", err)
		}
	}
}

func (c *Controller) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.db.Prune(historyRetention)
			if err != nil {
				log.Error("History prune failed: %v", err)
				continue
			}
			log.DebugH2("pruned %d history rows", n)
		}
	}
}
