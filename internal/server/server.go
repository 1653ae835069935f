// Package server orchestrates all components: NATS client, config store,
// dispatcher, delay scheduler, external API registry, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/morezero/mirror-remote/internal/config"
	"github.com/morezero/mirror-remote/pkg/api"
	"github.com/morezero/mirror-remote/pkg/channel"
	"github.com/morezero/mirror-remote/pkg/comms"
	"github.com/morezero/mirror-remote/pkg/delay"
	"github.com/morezero/mirror-remote/pkg/dispatch"
	"github.com/morezero/mirror-remote/pkg/extapi"
	"github.com/morezero/mirror-remote/pkg/notify"
	"github.com/morezero/mirror-remote/pkg/pkgmgr"
	"github.com/morezero/mirror-remote/pkg/query"
	"github.com/morezero/mirror-remote/pkg/state"
	"github.com/morezero/mirror-remote/pkg/store"
	"github.com/morezero/mirror-remote/pkg/system"
	"github.com/morezero/mirror-remote/pkg/updates"
)

const logPrefix = "server:server"

// Run starts the server, blocks until a shutdown signal or a STOP/RESTART
// action, then cleans up. The returned restart flag tells the caller whether
// the supervisor should bring the process back up.
func Run() (restart bool, err error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return false, fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return false, err
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info(fmt.Sprintf("%s - Starting mirror-remote", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Open the config store
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return false, fmt.Errorf("%s - failed to open store: %w", logPrefix, err)
	}

	// Step 2: Connect to NATS
	nc, err := comms.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		st.Close()
		return false, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 3: Build collaborators
	notifier := notify.NewCommsNotifier(nc, nil)
	appState := state.New()
	external := extapi.New()
	external.OnChange(func() {
		external.BroadcastMenu(notifier, appState.Translate)
	})

	controller := system.NewController(system.Commands{
		MonitorOn:     cfg.MonitorOnCommand,
		MonitorOff:    cfg.MonitorOffCommand,
		MonitorStatus: cfg.MonitorStatusCommand,
		Shutdown:      cfg.ShutdownCommand,
		Reboot:        cfg.RebootCommand,
		Aliases:       cfg.CommandAliases,
	})
	packages := pkgmgr.NewManager(cfg.ModulesDir)
	packages.Timeout = cfg.InstallTimeout
	checker := updates.NewChecker(cfg.MirrorDir, cfg.ModulesDir)

	// Step 4: Dispatcher with the stop channel as its shutdown hook
	stopCh := make(chan bool, 1)
	deps := &dispatch.Deps{
		Notifier:  notifier,
		State:     appState,
		Store:     st,
		External:  external,
		System:    controller,
		Packages:  packages,
		Updates:   checker,
		MirrorDir: cfg.MirrorDir,
		OwnDir:    cfg.OwnDir,
		Shutdown: func(restart bool) {
			select {
			case stopCh <- restart:
			default:
			}
		},
	}
	dispatcher := dispatch.New(deps)

	// Deferred queries fire through the same dispatcher with no responder.
	deps.Delays = delay.New(func(q *query.Query) {
		dispatcher.Run(ctx, q, query.Discard{})
	})

	// Step 5: Guess external APIs from widget sources
	if names, err := packages.Installed(); err != nil {
		slog.Warn(fmt.Sprintf("%s - cannot scan widget sources: %v", logPrefix, err))
	} else {
		external.Scan(cfg.ModulesDir, names)
	}

	// Step 6: Channel adapter
	adapter := channel.New(nc, channel.Opts{
		Dispatcher: dispatcher,
		External:   external,
		State:      appState,
		Notifier:   notifier,
	})
	if err := adapter.Start(); err != nil {
		nc.Close()
		st.Close()
		return false, fmt.Errorf("%s - failed to start channel adapter: %w", logPrefix, err)
	}

	// Step 7: Periodic update checks
	checker.Refresh(ctx)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.UpdateCheckSchedule, func() {
		checker.Refresh(ctx)
	}); err != nil {
		slog.Warn(fmt.Sprintf("%s - invalid update check schedule %q: %v", logPrefix, cfg.UpdateCheckSchedule, err))
	}
	scheduler.Start()

	// Step 8: HTTP API
	e := api.New(api.Opts{
		Dispatcher:      dispatcher,
		State:           appState,
		External:        external,
		APIKey:          cfg.APIKey,
		SecureEndpoints: cfg.SecureEndpoints,
	})
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP API listening on %s", logPrefix, cfg.ListenAddr()))
		if err := e.Start(cfg.ListenAddr()); err != nil && err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - mirror-remote is ready", logPrefix))

	// Wait for a shutdown signal or a STOP/RESTART action
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))
	case restart = <-stopCh:
		slog.Info(fmt.Sprintf("%s - Stop requested (restart=%t), shutting down", logPrefix, restart))
	}

	// Graceful shutdown: no deferred work fires once this begins.
	scheduler.Stop()
	deps.Delays.Shutdown()
	adapter.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}
	nc.Drain()
	st.Close()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return restart, nil
}
