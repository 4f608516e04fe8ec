// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides BackendSupervisor for the Node.js backend sidecar.

BackendSupervisor owns exactly one backend child process. Start, Stop, and
Restart mutate the process handle under a single mutex; health probes run
outside the lock so a slow or hung backend cannot block lifecycle commands.

# Process Model

The backend is a Node.js service started as:

	node <script> --port <port>

Its stdout and stderr are streamed line by line into the structured log so
backend output shows up alongside supervisor events.

# Health Probes

A probe is a GET against the backend health endpoint with a bounded
timeout. Probe failures are a status signal, not an error: CheckHealth
returns false on any transport failure or non-2xx response.
*/
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/gowerlin/AutoDoc/pkg/logging"
)

// -----------------------------------------------------------------------------
// Error Sentinel Values
// -----------------------------------------------------------------------------

// ErrBackendAlreadyRunning is returned by Start when a child is alive.
var ErrBackendAlreadyRunning = errors.New("backend already running")

// ErrBackendNotRunning is returned by Stop when no child exists.
var ErrBackendNotRunning = errors.New("backend not running")

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	// DefaultBackendPort is used when no port is given on the CLI.
	DefaultBackendPort = 3000

	// DefaultBackendScript is the backend entry point relative to the
	// desktop app. Packaged builds override this with the bundled path.
	DefaultBackendScript = "../backend/dist/index.js"

	// backendHealthURL is the probe target. The packaged backend serves
	// /health on port 3000; a backend started on a different port will
	// report unhealthy here even while running.
	backendHealthURL = "http://localhost:3000/health"

	defaultWarmup       = 2 * time.Second
	defaultCooldown     = 1 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// -----------------------------------------------------------------------------
// Supporting Types
// -----------------------------------------------------------------------------

// BackendStatus is the combined run/health snapshot for the backend.
type BackendStatus struct {
	Running bool `json:"running"`
	Healthy bool `json:"healthy"`

	// PID is 0 when Running is false.
	PID int `json:"pid,omitempty"`

	// Port the backend was started on; 0 when not running.
	Port int `json:"port,omitempty"`
}

// HealthHTTPClient abstracts the HTTP transport used by health probes.
//
// *http.Client satisfies this interface. Tests inject a function-backed
// implementation to simulate healthy, unhealthy, and hung backends.
type HealthHTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// backendHandle is the supervisor's view of a spawned child.
type backendHandle interface {
	// Kill terminates the child and reaps it.
	Kill() error

	// PID returns the OS process id.
	PID() int
}

// -----------------------------------------------------------------------------
// Supervisor
// -----------------------------------------------------------------------------

// BackendSupervisor manages the lifecycle of the backend sidecar.
//
// # Thread Safety
//
// Safe for concurrent use. The handle mutex is held for lifecycle
// transitions only, never across a health probe.
type BackendSupervisor struct {
	// Script is the backend entry point passed to node.
	Script string

	// Warmup is how long Start waits after spawning before returning.
	// The backend has no readiness signal, so this is a fixed grace
	// period; callers wanting certainty should probe afterwards.
	Warmup time.Duration

	// Cooldown is the pause between stop and start during Restart.
	Cooldown time.Duration

	// ProbeTimeout bounds each health probe.
	ProbeTimeout time.Duration

	spawnFunc  func(ctx context.Context, script string, port int) (backendHandle, error)
	httpClient HealthHTTPClient
	sleepFunc  func(d time.Duration)

	logger  *logging.Logger
	metrics *SupervisorMetrics

	mu     sync.Mutex
	handle backendHandle
	port   int
}

// NewBackendSupervisor creates a supervisor with production defaults.
// metrics may be nil.
func NewBackendSupervisor(logger *logging.Logger, metrics *SupervisorMetrics) *BackendSupervisor {
	s := &BackendSupervisor{
		Script:       DefaultBackendScript,
		Warmup:       defaultWarmup,
		Cooldown:     defaultCooldown,
		ProbeTimeout: defaultProbeTimeout,
		httpClient:   &http.Client{},
		sleepFunc:    time.Sleep,
		logger:       logger,
		metrics:      metrics,
	}
	s.spawnFunc = s.spawnNodeBackend
	return s
}

// Start launches the backend on the given port.
//
// Returns ErrBackendAlreadyRunning when a child is already alive; the
// existing child is left untouched. After a successful spawn, Start
// waits the warmup period before returning so an immediately following
// probe has a fair chance.
func (s *BackendSupervisor) Start(ctx context.Context, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return ErrBackendAlreadyRunning
	}

	s.logger.Info("starting backend sidecar", "port", port, "script", s.Script)

	handle, err := s.spawnFunc(ctx, s.Script, port)
	if err != nil {
		return fmt.Errorf("failed to start the backend: %w", err)
	}
	s.handle = handle
	s.port = port

	s.sleepFunc(s.Warmup)

	if s.metrics != nil {
		s.metrics.Starts.Inc()
	}
	s.logger.Info("backend sidecar started", "port", port, "pid", handle.PID())
	return nil
}

// Stop kills the running backend.
//
// Returns ErrBackendNotRunning when there is nothing to stop. After a
// successful Stop the handle is cleared even if the kill reported an
// error, so a dead child cannot wedge the supervisor.
func (s *BackendSupervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return ErrBackendNotRunning
	}

	pid := s.handle.PID()
	err := s.handle.Kill()
	s.handle = nil
	s.port = 0

	if err != nil {
		s.logger.Error("failed to stop the backend", "pid", pid, "error", err)
		return fmt.Errorf("failed to stop the backend: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Stops.Inc()
	}
	s.logger.Info("backend sidecar stopped", "pid", pid)
	return nil
}

// Restart stops the backend if running, waits the cooldown, and starts
// it on the given port. A failed stop is ignored: restart must work
// from the stopped state too.
func (s *BackendSupervisor) Restart(ctx context.Context, port int) error {
	_ = s.Stop()
	s.sleepFunc(s.Cooldown)

	if err := s.Start(ctx, port); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Restarts.Inc()
	}
	return nil
}

// IsRunning reports whether a child process handle exists. It does not
// probe the process; a crashed child still counts until Stop clears it.
func (s *BackendSupervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// CheckHealth probes the backend health endpoint.
//
// Any transport error, timeout, or non-2xx status reads as unhealthy.
// The handle mutex is NOT held here; a hung backend cannot block Stop.
func (s *BackendSupervisor) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backendHealthURL, nil)
	if err != nil {
		s.metrics.observeProbe(false)
		return false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.observeProbe(false)
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	s.metrics.observeProbe(healthy)
	return healthy
}

// GetStatus returns the combined run/health snapshot.
//
// The health probe is skipped entirely when no child exists, so status
// for a stopped backend is instant.
func (s *BackendSupervisor) GetStatus(ctx context.Context) BackendStatus {
	s.mu.Lock()
	handle := s.handle
	port := s.port
	s.mu.Unlock()

	status := BackendStatus{}
	if handle == nil {
		return status
	}

	status.Running = true
	status.PID = handle.PID()
	status.Port = port
	status.Healthy = s.CheckHealth(ctx)
	return status
}

// -----------------------------------------------------------------------------
// Node Process Handle
// -----------------------------------------------------------------------------

// nodeProcessHandle wraps the spawned node child.
type nodeProcessHandle struct {
	cmd *exec.Cmd
}

// Kill terminates the child and waits for it so no zombie is left.
func (h *nodeProcessHandle) Kill() error {
	if h.cmd.Process == nil {
		return ErrBackendNotRunning
	}
	if err := h.cmd.Process.Kill(); err != nil {
		return err
	}
	// Wait reaps the child; the error is the kill signal, not a failure.
	_ = h.cmd.Wait()
	return nil
}

// PID returns the child's process id.
func (h *nodeProcessHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// spawnNodeBackend starts the node child with piped output streams.
func (s *BackendSupervisor) spawnNodeBackend(ctx context.Context, script string, port int) (backendHandle, error) {
	cmd := exec.CommandContext(ctx, "node", script, "--port", strconv.Itoa(port))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go s.streamOutput(stdout, "stdout")
	go s.streamOutput(stderr, "stderr")

	return &nodeProcessHandle{cmd: cmd}, nil
}

// streamOutput forwards one backend output stream into the log.
func (s *BackendSupervisor) streamOutput(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	// Backend log lines can be long JSON blobs.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.logger.Info("backend output", "stream", stream, "line", scanner.Text())
	}
}
