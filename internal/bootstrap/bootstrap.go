// Package bootstrap wires every subsystem together and runs the process
// to completion: same PID-file dance, same shutdown order (servers before
// generators before workers before the queue), same signal.Notify/
// graceful-shutdown shape as a standard foreground-run command.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/songokas/hvents/internal/adminserver"
	"github.com/songokas/hvents/internal/config"
	"github.com/songokas/hvents/internal/dispatch"
	"github.com/songokas/hvents/internal/filewatch"
	"github.com/songokas/hvents/internal/httpcall"
	"github.com/songokas/hvents/internal/httplisten"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/internal/mqttpool"
	"github.com/songokas/hvents/internal/queue"
	"github.com/songokas/hvents/internal/registry"
	"github.com/songokas/hvents/internal/restorelog"
	"github.com/songokas/hvents/internal/scancode"
	"github.com/songokas/hvents/internal/subprocess"
	"github.com/songokas/hvents/internal/timewheel"
	"github.com/songokas/hvents/internal/worker"
	"github.com/songokas/hvents/pkg/models"
)

const (
	defaultAdminBind  = ":8080"
	defaultHTTPCallTO = 30 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Run loads configPath, wires every subsystem, and blocks until SIGINT or
// SIGTERM, then shuts everything down gracefully. It returns only once the
// process is ready to exit.
func Run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration from %q: %w", configPath, err)
	}

	if err := logger.Init(cfg.Application, nil); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.L()
	log.Info("hvents starting")

	if err := claimPIDFile(cfg.Application.PIDFilePath, log); err != nil {
		return err
	}
	defer releasePIDFile(cfg.Application.PIDFilePath, log)

	reg, err := registry.Load(cfg)
	if err != nil {
		return fmt.Errorf("loading event registry: %w", err)
	}

	log.Debug("initializing services")

	state := models.NewStateMap()
	ready := queue.New(readyQueueCapacity(cfg.Application))
	wheel := timewheel.New()
	restore := restorelog.New(cfg.Restore)
	httpCaller := httpcall.NewCaller(defaultHTTPCallTO)
	executor := subprocess.NewExecutor()

	// dispatcher is constructed after the source pools below, but the
	// pools' Fire callbacks must call back into it; declaring it here and
	// closing over the pointer breaks the construction cycle without an
	// adapter type. None of these callbacks can fire before Start(), by
	// which point dispatcher is assigned.
	var dispatcher *dispatch.Dispatcher

	mqttPool := mqttpool.New(func(eventName string, data models.Data, metadata map[string]string) {
		dispatcher.HandleMqttFire(eventName, data, metadata)
	})
	if err := mqttPool.Configure(cfg.MQTT); err != nil {
		return fmt.Errorf("configuring mqtt pools: %w", err)
	}

	fileWatch, err := filewatch.New(func(eventName string, data models.Data, metadata map[string]string) {
		dispatcher.HandleBlockingFire(eventName, data, metadata)
	})
	if err != nil {
		return fmt.Errorf("initializing file watcher: %w", err)
	}

	scanCode := scancode.New(func(eventName string, data models.Data, metadata map[string]string) {
		dispatcher.HandleBlockingFire(eventName, data, metadata)
	})
	if len(cfg.Devices) > 0 {
		if err := scanCode.Open(cfg.Devices); err != nil {
			return fmt.Errorf("opening scancode devices: %w", err)
		}
	}

	httpListen := httplisten.New(func(eventName string, data models.Data, metadata map[string]string) {
		dispatcher.HandleBlockingFire(eventName, data, metadata)
	}, defaultHTTPCallTO)
	httpListen.Configure(cfg.HTTP)

	dispatcher = dispatch.New(dispatch.Dependencies{
		Registry:    reg,
		State:       state,
		Ready:       ready,
		Wheel:       wheel,
		RestoreLog:  restore,
		MqttPool:    mqttPool,
		HTTPListen:  httpListen,
		HTTPCaller:  httpCaller,
		FileWatch:   fileWatch,
		ScanCode:    scanCode,
		Executor:    executor,
		Location:    cfg.Location,
		AppSettings: cfg.Application,
	})
	dispatcher.SetNotifier(httpListen.Notify)

	adminBind := cfg.Application.AdminBind
	if adminBind == "" {
		adminBind = defaultAdminBind
	}
	admin := adminserver.New(adminBind, ready, state)

	workers := worker.NewPool(cfg.Application, ready, dispatcher)

	if restore.Enabled() {
		specs, err := restore.Replay(state)
		if err != nil {
			log.Error("restore log replay failed", "error", err)
		}
		for _, spec := range specs {
			wheel.Schedule(spec)
		}
		log.Info("restore log replayed", "entries", len(specs))
	}

	log.Info("starting services")
	admin.Start()
	httpListen.Start()
	workers.Start()

	wheelCtx, cancelWheel := context.WithCancel(context.Background())
	defer cancelWheel()
	go timewheel.Run(wheelCtx, wheel, dispatcher.HandleWheelFire)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go fileWatch.Run(watchCtx)

	scanCtx, cancelScan := context.WithCancel(context.Background())
	defer cancelScan()
	go scanCode.Run(scanCtx)

	dispatcher.SeedStartWith(reg.StartWith())
	log.Info("all services started")

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopChan
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("initiating graceful shutdown")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// Stop order: servers first (stop accepting new work), then source
	// generators, then the worker pool, then the queue they feed.
	if err := admin.Stop(shutdownCtx); err != nil {
		log.Error("error stopping admin server", "error", err)
	}
	if err := httpListen.Stop(shutdownCtx); err != nil {
		log.Error("error stopping api_listen pool", "error", err)
	}
	cancelWatch()
	cancelScan()
	cancelWheel()
	mqttPool.Close()
	if err := fileWatch.Close(); err != nil {
		log.Error("error closing file watcher", "error", err)
	}
	workers.Stop()
	ready.Stop()

	log.Info("hvents shut down gracefully")
	return nil
}

func readyQueueCapacity(app models.ApplicationSettings) int {
	if app.ReadyQueueCapacity > 0 {
		return app.ReadyQueueCapacity
	}
	return 256
}

func claimPIDFile(path string, log *slog.Logger) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		if pidBytes, readErr := os.ReadFile(path); readErr == nil {
			if pid, convErr := strconv.Atoi(strings.TrimSpace(string(pidBytes))); convErr == nil {
				if process, findErr := os.FindProcess(pid); findErr == nil && process.Signal(syscall.Signal(0)) == nil {
					return fmt.Errorf("process with pid %d already running (from %s)", pid, path)
				}
			}
		}
		log.Warn("removing stale pid file", "path", path)
		_ = os.Remove(path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing pid file %q: %w", path, err)
	}
	return nil
}

func releasePIDFile(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	log.Info("removing pid file", "path", path)
	_ = os.Remove(path)
}
