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
	"sync"
	"testing"
	"time"

	"github.com/carverauto/devmon/pkg/lifecycle"
	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"github.com/carverauto/devmon/pkg/session"
	"github.com/carverauto/devmon/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingSink collects records and satisfies DeviceSink.
type recordingSink struct {
	mu      sync.Mutex
	records []models.LogRecord
	closed  bool
}

func (s *recordingSink) Emit(r models.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *recordingSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Text
	}

	return out
}

func (s *recordingSink) last() models.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[len(s.records)-1]
}

func indexOf(texts []string, want string) int {
	for i, text := range texts {
		if text == want {
			return i
		}
	}

	return -1
}

type workerFixture struct {
	ctrl     *gomock.Controller
	dialer   *session.MockDialer
	sess     *session.MockSession
	clock    *MockClock
	ticks    chan time.Time
	sink     *recordingSink
	shutdown *lifecycle.ShutdownSignal
	opts     WorkerOptions
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	patterns, err := tracker.CompilePatterns(models.PatternSpecs{{Key: "rssi", Pattern: `RSSI:(-?\d+)`}})
	require.NoError(t, err)

	f := &workerFixture{
		ctrl:     ctrl,
		dialer:   session.NewMockDialer(ctrl),
		sess:     session.NewMockSession(ctrl),
		clock:    NewMockClock(ctrl),
		ticks:    make(chan time.Time, 1),
		sink:     &recordingSink{},
		shutdown: lifecycle.NewShutdownSignal(),
	}

	ticker := NewMockTicker(ctrl)
	ticker.EXPECT().Chan().Return(f.ticks).AnyTimes()
	ticker.EXPECT().Stop().AnyTimes()
	f.clock.EXPECT().Ticker(time.Second).Return(ticker).AnyTimes()

	f.opts = WorkerOptions{
		Device:        models.Device{Host: "10.0.0.1"},
		Patterns:      patterns,
		AlertStrings:  []string{"CRITICAL"},
		SetupCommands: []string{"terminal monitor"},
		DebugCommands: []string{"debug dot11 trace"},
		StopCommand:   "undebug all",
		PollInterval:  time.Second,
		Dialer:        f.dialer,
		Sink:          f.sink,
		Shutdown:      f.shutdown,
		Clock:         f.clock,
		Logger:        logger.NewTestLogger(),
	}

	return f
}

func (f *workerFixture) expectArm() {
	gomock.InOrder(
		f.sess.EXPECT().Execute(gomock.Any(), "terminal monitor").Return("", nil),
		f.sess.EXPECT().Execute(gomock.Any(), "debug dot11 trace").Return("trace debugging is on", nil),
	)
}

func TestWorkerFullLifecycle(t *testing.T) {
	f := newWorkerFixture(t)

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	f.ticks <- time.Now()

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().Return("RSSI:-40\r\nRSSI:-40\r\n", nil),
		f.sess.EXPECT().DrainNonBlocking().DoAndReturn(func() (string, error) {
			f.shutdown.Trigger()

			return "RSSI:-41\r\nCRITICAL fail", nil
		}),
		f.sess.EXPECT().DrainNonBlocking().Return("", nil),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", nil),
		f.sess.EXPECT().Close().Return(nil),
	)

	w := NewWorker(f.opts)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, StateTerminated, w.State())
	assert.NoError(t, w.CleanupErr())
	assert.Equal(t, []string{
		"Connected to 10.0.0.1: ",
		"Debug set on 10.0.0.1, command: debug dot11 trace, output: trace debugging is on",
		"Pattern [rssi]: RSSI:-40 (Count: 2)",
		"CRITICAL fail",
		"Stop command sent to 10.0.0.1",
		"Pattern [rssi]: RSSI:-41 (Count: 1)",
	}, f.sink.texts())

	assert.Equal(t, models.SeverityWarning, f.sink.records[3].Severity)
	assert.True(t, f.sink.records[3].EchoToConsole)
	assert.False(t, f.sink.records[2].EchoToConsole)
	assert.True(t, f.sink.records[0].EchoToConsole)
}

func TestWorkerConnectFailure(t *testing.T) {
	f := newWorkerFixture(t)

	connErr := &session.ConnectionError{Host: "10.0.0.1", Err: errors.New("connection refused")}
	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(nil, connErr)

	w := NewWorker(f.opts)
	err := w.Run(context.Background())

	var target *session.ConnectionError

	require.True(t, errors.As(err, &target))
	assert.Equal(t, StateFailed, w.State())

	rec := f.sink.last()
	assert.Equal(t, models.SeverityError, rec.Severity)
	assert.True(t, rec.EchoToConsole)
	assert.Contains(t, rec.Text, "connection refused")
}

func TestWorkerArmingFailureStillCleansUp(t *testing.T) {
	f := newWorkerFixture(t)

	cmdErr := &session.CommandError{Command: "terminal monitor", Err: errors.New("timeout")}

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)

	gomock.InOrder(
		f.sess.EXPECT().Execute(gomock.Any(), "terminal monitor").Return("", cmdErr),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", nil),
		f.sess.EXPECT().Close().Return(nil),
	)

	w := NewWorker(f.opts)
	err := w.Run(context.Background())

	require.ErrorIs(t, err, cmdErr)
	assert.Equal(t, StateFailed, w.State())
}

func TestWorkerNoDebugCommands(t *testing.T) {
	f := newWorkerFixture(t)
	f.opts.SetupCommands = nil
	f.opts.DebugCommands = nil
	f.shutdown.Trigger()

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().Return("late line\n", nil),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", nil),
		f.sess.EXPECT().Close().Return(nil),
	)

	w := NewWorker(f.opts)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []string{
		"No debug commands configured for 10.0.0.1",
		"late line",
		"Stop command sent to 10.0.0.1",
	}, f.sink.texts())
}

func TestWorkerReadFailure(t *testing.T) {
	f := newWorkerFixture(t)

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().Return("RSSI:-70\n", nil),
		f.sess.EXPECT().DrainNonBlocking().Return("", errors.New("EOF")),
	)

	f.ticks <- time.Now()

	f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", errors.New("session closed"))
	f.sess.EXPECT().Close().Return(nil)

	w := NewWorker(f.opts)
	err := w.Run(context.Background())

	require.ErrorIs(t, err, errReadFailed)
	assert.Equal(t, StateFailed, w.State())

	texts := f.sink.texts()
	assert.Contains(t, texts, "Pattern [rssi]: RSSI:-70 (Count: 1)")
	assert.Contains(t, texts, "Failed to send stop command to 10.0.0.1: session closed")

	var cleanErr *CleanupError

	require.True(t, errors.As(w.CleanupErr(), &cleanErr))
	assert.Equal(t, "stop command", cleanErr.Op)
}

func TestWorkerReadFailureKeepsPartialLine(t *testing.T) {
	f := newWorkerFixture(t)

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	f.ticks <- time.Now()

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().Return("RSSI:-70\r\n%LINK-3-UPDOWN: Interface Gi0/1, changed state to down", nil),
		f.sess.EXPECT().DrainNonBlocking().Return("", errors.New("EOF")),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", errors.New("session closed")),
		f.sess.EXPECT().Close().DoAndReturn(func() error {
			assert.Contains(t, f.sink.texts(), "%LINK-3-UPDOWN: Interface Gi0/1, changed state to down")
			assert.Contains(t, f.sink.texts(), "Pattern [rssi]: RSSI:-70 (Count: 1)")

			return nil
		}),
	)

	w := NewWorker(f.opts)
	require.ErrorIs(t, w.Run(context.Background()), errReadFailed)

	texts := f.sink.texts()
	assert.Less(t, indexOf(texts, "%LINK-3-UPDOWN: Interface Gi0/1, changed state to down"), len(texts)-1)
	assert.Contains(t, texts[len(texts)-1], "Monitoring 10.0.0.1 failed")
}

func TestWorkerProcessesStopCommandOutput(t *testing.T) {
	f := newWorkerFixture(t)
	f.shutdown.Trigger()

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().Return("RSSI:-40\n", nil),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").
			Return("RSSI:-40\nCRITICAL radio reset\nAll possible debugging has been turned off", nil),
		f.sess.EXPECT().Close().Return(nil),
	)

	w := NewWorker(f.opts)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []string{
		"Connected to 10.0.0.1: ",
		"Debug set on 10.0.0.1, command: debug dot11 trace, output: trace debugging is on",
		"CRITICAL radio reset",
		"Stop command sent to 10.0.0.1",
		"All possible debugging has been turned off",
		"Pattern [rssi]: RSSI:-40 (Count: 2)",
	}, f.sink.texts())
}

func TestWorkerCleanupFailureDoesNotFail(t *testing.T) {
	f := newWorkerFixture(t)
	f.shutdown.Trigger()

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	f.sess.EXPECT().DrainNonBlocking().Return("", nil)
	f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", errors.New("timeout"))
	f.sess.EXPECT().Close().Return(errors.New("already closed"))

	w := NewWorker(f.opts)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, StateTerminated, w.State())
	require.Error(t, w.CleanupErr())

	rec := f.sink.last()
	assert.Equal(t, models.SeverityError, rec.Severity)
	assert.Equal(t, "Failed to close session to 10.0.0.1: already closed", rec.Text)
}

func TestWorkerRecoversPanic(t *testing.T) {
	f := newWorkerFixture(t)

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	f.ticks <- time.Now()

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().Return("RSSI:-40\n", nil),
		f.sess.EXPECT().DrainNonBlocking().DoAndReturn(func() (string, error) {
			panic("driver bug")
		}),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").Return("", nil),
		f.sess.EXPECT().Close().DoAndReturn(func() error {
			assert.Contains(t, f.sink.texts(), "Pattern [rssi]: RSSI:-40 (Count: 1)")

			return nil
		}),
	)

	w := NewWorker(f.opts)
	err := w.Run(context.Background())

	require.ErrorIs(t, err, errWorkerPanic)
	assert.Equal(t, StateFailed, w.State())

	texts := f.sink.texts()
	assert.Less(t, indexOf(texts, "Pattern [rssi]: RSSI:-40 (Count: 1)"), indexOf(texts, "Monitoring 10.0.0.1 failed: worker panicked: driver bug"))
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	f := newWorkerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())

	f.dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(f.sess, nil)
	f.expectArm()

	gomock.InOrder(
		f.sess.EXPECT().DrainNonBlocking().DoAndReturn(func() (string, error) {
			cancel()

			return "", nil
		}),
		f.sess.EXPECT().DrainNonBlocking().Return("", nil),
		f.sess.EXPECT().Execute(gomock.Any(), "undebug all").DoAndReturn(func(ctx context.Context, _ string) (string, error) {
			assert.NoError(t, ctx.Err())

			return "", nil
		}),
		f.sess.EXPECT().Close().Return(nil),
	)

	w := NewWorker(f.opts)
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, StateTerminated, w.State())
}

func TestLineSplitter(t *testing.T) {
	var s lineSplitter

	assert.Equal(t, []string{"a", "b"}, s.Feed("a\r\nb\r\npar"))
	assert.Equal(t, []string{"partial", ""}, s.Feed("tial\r\r\n"))
	assert.Empty(t, s.Feed("tail"))
	assert.Equal(t, "tail", s.Flush())
	assert.Empty(t, s.Flush())
}

func TestWorkerStateString(t *testing.T) {
	assert.Equal(t, "POLLING", StatePolling.String())
	assert.Equal(t, "STATE(42)", WorkerState(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateCleanup.Terminal())
}
