/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package monitor runs one worker per device and coordinates their shutdown.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/devmon/pkg/lifecycle"
	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"github.com/carverauto/devmon/pkg/session"
	"github.com/carverauto/devmon/pkg/tracker"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultWaitReportInterval = 10 * time.Second

// Options configures an Orchestrator.
type Options struct {
	Config   *models.MonitorConfig
	Patterns *tracker.PatternSet
	Dialer   session.Dialer
	Sinks    SinkOpener
	// Shutdown is created when nil.
	Shutdown *lifecycle.ShutdownSignal
	// RunID is generated when empty.
	RunID  string
	Clock  Clock
	Logger logger.Logger
	// HandleSignals installs a SIGINT/SIGTERM handler for the duration of Run.
	HandleSignals bool
}

// RunSummary reports how each device's worker ended.
type RunSummary struct {
	RunID     string
	Succeeded []string
	Failed    map[string]error
}

// Err joins the failures in device order, or returns nil.
func (s *RunSummary) Err() error {
	ids := make([]string, 0, len(s.Failed))
	for id := range s.Failed {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, fmt.Errorf("%s: %w", id, s.Failed[id]))
	}

	return errors.Join(errs...)
}

// Orchestrator starts a worker per device and waits for all of them.
type Orchestrator struct {
	opts Options

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewOrchestrator returns an orchestrator for opts.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Shutdown == nil {
		opts.Shutdown = lifecycle.NewShutdownSignal()
	}

	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	return &Orchestrator{
		opts:    opts,
		pending: make(map[string]struct{}),
	}
}

// RunID identifies this run in device logs and forwarded events.
func (o *Orchestrator) RunID() string {
	return o.opts.RunID
}

// Shutdown returns the signal shared with every worker.
func (o *Orchestrator) Shutdown() *lifecycle.ShutdownSignal {
	return o.opts.Shutdown
}

// Run monitors devices until shutdown is requested (signal, ctx cancellation
// or Shutdown().Trigger()) and every worker has terminated. A device that
// fails never stops its siblings.
func (o *Orchestrator) Run(ctx context.Context, devices []models.Device) *RunSummary {
	log := o.opts.Logger

	if o.opts.HandleSignals {
		stop := lifecycle.NotifyOnSignal(o.opts.Shutdown, log)
		defer stop()
	}

	finished := make(chan struct{})
	watched := make(chan struct{})

	go func() {
		defer close(watched)

		o.watchContext(ctx, finished)
	}()

	defer func() {
		close(finished)
		<-watched
	}()

	log.Info().
		Str("run_id", o.opts.RunID).
		Int("devices", len(devices)).
		Msg("Starting device workers")

	results := make([]error, len(devices))

	g := new(errgroup.Group)
	g.SetLimit(max(len(devices), 1))

	for i := range devices {
		i := i
		device := devices[i]
		id := device.Name()

		o.markPending(id, true)

		g.Go(func() error {
			defer o.markPending(id, false)

			results[i] = o.runDevice(ctx, device)

			return nil
		})
	}

	done := make(chan struct{})

	go func() {
		_ = g.Wait()

		close(done)
	}()

	o.awaitWorkers(ctx, done)

	return o.summarize(devices, results)
}

// watchContext turns ctx cancellation into a shutdown request. The check
// after the select also covers workers that saw ctx first and finished.
func (o *Orchestrator) watchContext(ctx context.Context, finished <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-o.opts.Shutdown.Done():
	case <-finished:
	}

	if ctx.Err() != nil && o.opts.Shutdown.Trigger() {
		o.opts.Logger.Info().Msg("Context cancelled, initiating shutdown")
	}
}

// awaitWorkers blocks until done is closed. Once shutdown has been
// requested, or ctx cancelled, it reports the workers still running every
// wait interval.
func (o *Orchestrator) awaitWorkers(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-o.opts.Shutdown.Done():
	case <-ctx.Done():
	}

	interval := o.opts.Config.WaitReportInterval.Std(defaultWaitReportInterval)

	ticker := o.opts.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			o.opts.Logger.Info().
				Strs("pending", o.pendingIDs()).
				Msg("waiting for workers")
		}
	}
}

func (o *Orchestrator) markPending(id string, running bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if running {
		o.pending[id] = struct{}{}
	} else {
		delete(o.pending, id)
	}
}

func (o *Orchestrator) pendingIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func (o *Orchestrator) runDevice(ctx context.Context, device models.Device) (err error) {
	id := device.Name()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errWorkerPanic, r)
		}
	}()

	sink, err := o.opts.Sinks.Open(id)
	if err != nil {
		return fmt.Errorf("open device log: %w", err)
	}

	defer func() {
		if cerr := sink.Close(); cerr != nil {
			o.opts.Logger.Warn().Err(cerr).Str("device", id).Msg("Failed to close device log")
		}
	}()

	cfg := o.opts.Config

	w := NewWorker(WorkerOptions{
		Device:        device,
		Patterns:      o.opts.Patterns,
		AlertStrings:  cfg.AlertStrings,
		SetupCommands: cfg.SetupCommands,
		DebugCommands: cfg.DebugCommandsFor(&device),
		StopCommand:   cfg.StopCommand,
		PollInterval:  cfg.PollInterval.Std(defaultPollInterval),
		Dialer:        o.opts.Dialer,
		Sink:          sink,
		Shutdown:      o.opts.Shutdown,
		Clock:         o.opts.Clock,
		Logger:        o.opts.Logger,
	})

	err = w.Run(ctx)

	if cleanErr := w.CleanupErr(); cleanErr != nil {
		o.opts.Logger.Warn().Err(cleanErr).Str("device", id).Msg("Device cleanup incomplete")
	}

	return err
}

func (o *Orchestrator) summarize(devices []models.Device, results []error) *RunSummary {
	summary := &RunSummary{
		RunID:  o.opts.RunID,
		Failed: make(map[string]error),
	}

	for i := range devices {
		id := devices[i].Name()

		if results[i] != nil {
			summary.Failed[id] = results[i]

			o.opts.Logger.Error().Err(results[i]).Str("device", id).Msg("Device monitoring failed")

			continue
		}

		summary.Succeeded = append(summary.Succeeded, id)
	}

	o.opts.Logger.Info().
		Str("run_id", o.opts.RunID).
		Int("succeeded", len(summary.Succeeded)).
		Int("failed", len(summary.Failed)).
		Msg("All device workers finished")

	return summary
}
