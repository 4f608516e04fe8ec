// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	appconfig "github.com/gowerlin/AutoDoc/cmd/autodoc/config"
	"github.com/gowerlin/AutoDoc/pkg/logging"
)

// pidFileName marks a running supervisor session. `backend stop` and
// `backend restart` signal the process recorded here.
const pidFileName = "backend.pid"

func pidFilePath(store *appconfig.Store) string {
	return filepath.Join(store.Dir, pidFileName)
}

func writePIDFile(store *appconfig.Store) error {
	if err := os.MkdirAll(store.Dir, 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	pid := strconv.Itoa(os.Getpid())
	return os.WriteFile(pidFilePath(store), []byte(pid+"\n"), 0o644)
}

func readPIDFile(store *appconfig.Store) (int, error) {
	data, err := os.ReadFile(pidFilePath(store))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file %s: %w", pidFilePath(store), err)
	}
	return pid, nil
}

// signalSupervisor delivers sig to the supervisor session recorded in
// the pid file. A stale pid file is removed.
func signalSupervisor(store *appconfig.Store, sig os.Signal) error {
	pid, err := readPIDFile(store)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no supervisor session found: %w", ErrBackendNotRunning)
		}
		return err
	}

	proc, err := os.FindProcess(pid)
	if err == nil {
		err = proc.Signal(sig)
	}
	if err != nil {
		_ = os.Remove(pidFilePath(store))
		return fmt.Errorf("supervisor pid %d is gone: %w", pid, ErrBackendNotRunning)
	}
	return nil
}

// runBackendStart starts the backend and supervises it until the
// process is interrupted. SIGHUP restarts the backend in place.
// Optional extras in this mode:
//
//   - --metrics-addr serves Prometheus metrics for the session
//   - --watch restarts the backend when the config file changes
func runBackendStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restartCh := make(chan os.Signal, 1)
	signal.Notify(restartCh, syscall.SIGHUP)
	defer signal.Stop(restartCh)

	session := GenerateID()
	logger := a.logger.With("session", session)
	a.supervisor.logger = logger

	if err := a.supervisor.Start(ctx, backendPort); err != nil {
		return err
	}
	if err := writePIDFile(a.store); err != nil {
		logger.Warn("could not record supervisor pid, backend stop/restart disabled", "error", err)
	} else {
		defer os.Remove(pidFilePath(a.store))
	}
	fmt.Printf("backend started on port %d (session %s)\n", backendPort, session)

	if metricsAddr != "" {
		go serveMetrics(logger, metricsAddr)
	}

	var watcher *ConfigWatcher
	if watchConfig {
		watcher, err = NewConfigWatcher(a.store, func(cfg appconfig.AppConfig) {
			logger.Info("config changed, restarting backend")
			if err := a.supervisor.Restart(ctx, backendPort); err != nil {
				logger.Error("restart after config change failed", "error", err)
			}
		}, logger)
		if err != nil {
			_ = a.supervisor.Stop()
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			_ = a.supervisor.Stop()
			return err
		}
		defer watcher.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nshutting down")
			return a.supervisor.Stop()
		case <-restartCh:
			logger.Info("restart requested")
			if err := a.supervisor.Restart(ctx, backendPort); err != nil {
				logger.Error("restart failed", "error", err)
			}
		}
	}
}

// runBackendStop signals the supervising session to shut down.
func runBackendStop(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := signalSupervisor(a.store, syscall.SIGTERM); err != nil {
		return err
	}
	fmt.Println("stop signal sent")
	return nil
}

// runBackendRestart asks the supervising session to restart its backend.
func runBackendRestart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := signalSupervisor(a.store, syscall.SIGHUP); err != nil {
		return err
	}
	fmt.Println("restart signal sent")
	return nil
}

// serveMetrics exposes the Prometheus registry for the session.
func serveMetrics(logger *logging.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "addr", addr, "error", err)
	}
}

// runBackendStatus probes the backend and prints a status document.
//
// This command runs in its own process, so it cannot see a supervisor
// owned by another session; status is derived from the health probe.
func runBackendStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	healthy := a.supervisor.CheckHealth(cmd.Context())
	status := BackendStatus{
		Running: healthy, // reachable implies running
		Healthy: healthy,
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runBackendHealth probes the backend; the exit code is the result.
func runBackendHealth(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if !a.supervisor.CheckHealth(cmd.Context()) {
		return fmt.Errorf("backend is not healthy")
	}
	fmt.Println("backend is healthy")
	return nil
}
