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

package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/carverauto/devmon/pkg/lifecycle"
	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"github.com/carverauto/devmon/pkg/session"
	"github.com/carverauto/devmon/pkg/tracker"
)

const defaultPollInterval = time.Second

// WorkerOptions carries everything one device worker needs. Nothing in it
// is shared mutable state except Shutdown, which workers only read.
type WorkerOptions struct {
	Device        models.Device
	Patterns      *tracker.PatternSet
	AlertStrings  []string
	SetupCommands []string
	DebugCommands []string
	StopCommand   string
	PollInterval  time.Duration
	Dialer        session.Dialer
	Sink          models.RecordEmitter
	Shutdown      lifecycle.ShutdownObserver
	Clock         Clock
	Logger        logger.Logger
}

// Worker monitors a single device: connect, arm debugging, poll output
// through a MessageTracker until shutdown, then disarm and disconnect.
type Worker struct {
	opts     WorkerOptions
	id       string
	tracker  *tracker.MessageTracker
	splitter lineSplitter
	state    atomic.Int32
	cleanErr error
}

// NewWorker creates a worker with its own tracker.
func NewWorker(opts WorkerOptions) *Worker {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	id := opts.Device.Name()

	return &Worker{
		opts:    opts,
		id:      id,
		tracker: tracker.NewMessageTracker(id, opts.Patterns, opts.AlertStrings, opts.Sink),
	}
}

// ID returns the device name the worker reports under.
func (w *Worker) ID() string {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// CleanupErr returns the joined cleanup failures, if any.
func (w *Worker) CleanupErr() error {
	return w.cleanErr
}

func (w *Worker) setState(s WorkerState) {
	prev := WorkerState(w.state.Swap(int32(s)))

	w.opts.Logger.Debug().
		Str("device", w.id).
		Str("from", prev.String()).
		Str("to", s.String()).
		Msg("Worker state changed")
}

func (w *Worker) record(severity models.Severity, echo bool, text string) {
	w.opts.Sink.Emit(models.LogRecord{
		DeviceID:      w.id,
		Text:          text,
		Severity:      severity,
		EchoToConsole: echo,
	})
}

// Run drives the worker to a terminal state. The returned error is the
// reason for FAILED; cleanup problems never surface here.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errWorkerPanic, r)
		}

		if err != nil {
			w.record(models.SeverityError, true, fmt.Sprintf("Monitoring %s failed: %v", w.opts.Device.Host, err))
			w.setState(StateFailed)

			return
		}

		w.setState(StateTerminated)
	}()

	w.setState(StateConnecting)

	sess, err := w.opts.Dialer.Dial(ctx, &w.opts.Device)
	if err != nil {
		return err
	}

	// Runs on every exit from ARMING, POLLING or DRAINING, panics included.
	defer w.cleanup(ctx, sess)

	w.setState(StateArming)

	if err := w.arm(ctx, sess); err != nil {
		return err
	}

	return w.poll(ctx, sess)
}

func (w *Worker) arm(ctx context.Context, sess session.Session) error {
	host := w.opts.Device.Host

	for _, cmd := range w.opts.SetupCommands {
		out, err := sess.Execute(ctx, cmd)
		if err != nil {
			return err
		}

		w.record(models.SeverityInfo, true, fmt.Sprintf("Connected to %s: %s", host, out))
	}

	if len(w.opts.DebugCommands) == 0 {
		w.record(models.SeverityInfo, true, fmt.Sprintf("No debug commands configured for %s", host))

		return nil
	}

	for _, cmd := range w.opts.DebugCommands {
		out, err := sess.Execute(ctx, cmd)
		if err != nil {
			return err
		}

		w.record(models.SeverityInfo, true, fmt.Sprintf("Debug set on %s, command: %s, output: %s", host, cmd, out))
	}

	return nil
}

func (w *Worker) stopping(ctx context.Context) bool {
	return w.opts.Shutdown.IsSet() || ctx.Err() != nil
}

func (w *Worker) poll(ctx context.Context, sess session.Session) error {
	w.setState(StatePolling)

	ticker := w.opts.Clock.Ticker(w.opts.PollInterval)
	defer ticker.Stop()

	for !w.stopping(ctx) {
		if err := w.readOnce(sess); err != nil {
			return err
		}

		select {
		case <-w.opts.Shutdown.Done():
		case <-ctx.Done():
		case <-ticker.Chan():
		}
	}

	w.setState(StateDraining)

	return w.readOnce(sess)
}

// readOnce processes whatever the session has buffered. A partial line is
// held until more output arrives, a read comes back empty, or cleanup.
func (w *Worker) readOnce(sess session.Session) error {
	out, err := sess.DrainNonBlocking()
	if err != nil {
		return fmt.Errorf("%w: %w", errReadFailed, err)
	}

	if out == "" {
		w.process(w.splitter.Flush())

		return nil
	}

	w.feed(out)

	return nil
}

func (w *Worker) feed(out string) {
	for _, line := range w.splitter.Feed(out) {
		w.process(line)
	}
}

func (w *Worker) process(line string) {
	line = strings.TrimRight(line, " \t")
	if strings.TrimSpace(line) == "" {
		return
	}

	w.tracker.ProcessLine(line)
}

func (w *Worker) cleanup(ctx context.Context, sess session.Session) {
	w.setState(StateCleanup)

	host := w.opts.Device.Host
	ctx = context.WithoutCancel(ctx)

	var errs []error

	if w.opts.StopCommand != "" {
		out, err := sess.Execute(ctx, w.opts.StopCommand)
		if err != nil {
			cerr := &CleanupError{Op: "stop command", Err: err}
			errs = append(errs, cerr)

			w.record(models.SeverityError, true, fmt.Sprintf("Failed to send stop command to %s: %v", host, err))
		} else {
			// Debug output that arrived ahead of the stop command's prompt.
			w.feed(out)
			w.record(models.SeverityInfo, true, fmt.Sprintf("Stop command sent to %s", host))
		}
	}

	// The tracker must be finished while the session is still open.
	w.process(w.splitter.Flush())
	w.tracker.Finish()

	if err := sess.Close(); err != nil {
		cerr := &CleanupError{Op: "close session", Err: err}
		errs = append(errs, cerr)

		w.record(models.SeverityError, true, fmt.Sprintf("Failed to close session to %s: %v", host, err))
	}

	w.cleanErr = errors.Join(errs...)
}
