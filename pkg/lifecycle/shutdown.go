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

package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/carverauto/devmon/pkg/logger"
)

// ShutdownObserver is the read-only side of a ShutdownSignal handed to workers.
type ShutdownObserver interface {
	IsSet() bool
	Done() <-chan struct{}
}

// ShutdownSignal transitions from unset to set exactly once and is never reset.
type ShutdownSignal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewShutdownSignal creates an unset signal.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

// Trigger sets the signal. Only the call that performed the transition
// returns true; later calls are no-ops.
func (s *ShutdownSignal) Trigger() bool {
	first := false

	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)

		first = true
	})

	return first
}

// IsSet reports whether shutdown has been requested.
func (s *ShutdownSignal) IsSet() bool {
	return s.set.Load()
}

// Done is closed when the signal is set.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.done
}

// NotifyOnSignal triggers sig when the process receives one of signals
// (SIGINT and SIGTERM by default). The returned stop function uninstalls the
// handler and waits for its goroutine to exit; it is safe to call repeatedly.
func NotifyOnSignal(sig *ShutdownSignal, log logger.Logger, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	quit := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case received := <-ch:
				if sig.Trigger() {
					log.Info().Str("signal", received.String()).Msg("Received signal, initiating shutdown")
				} else {
					log.Debug().Str("signal", received.String()).Msg("Shutdown already in progress")
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
			wg.Wait()
		})
	}
}
