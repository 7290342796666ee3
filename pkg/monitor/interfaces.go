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

//go:generate mockgen -destination=mock_monitor.go -package=monitor github.com/carverauto/devmon/pkg/monitor Clock,Ticker

import (
	"time"

	"github.com/carverauto/devmon/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// DeviceSink is the per-device record destination owned by a worker.
type DeviceSink interface {
	models.RecordEmitter
	Close() error
}

// SinkOpener opens the sink for a device.
type SinkOpener interface {
	Open(deviceID string) (DeviceSink, error)
}

// SinkOpenerFunc adapts a function to SinkOpener.
type SinkOpenerFunc func(deviceID string) (DeviceSink, error)

func (f SinkOpenerFunc) Open(deviceID string) (DeviceSink, error) {
	return f(deviceID)
}
