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

import "fmt"

// WorkerState is the lifecycle position of a device worker.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateConnecting
	StateArming
	StatePolling
	StateDraining
	StateCleanup
	StateTerminated
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "IDLE",
	StateConnecting: "CONNECTING",
	StateArming:     "ARMING",
	StatePolling:    "POLLING",
	StateDraining:   "DRAINING",
	StateCleanup:    "CLEANUP",
	StateTerminated: "TERMINATED",
	StateFailed:     "FAILED",
}

func (s WorkerState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("STATE(%d)", int32(s))
	}

	return stateNames[s]
}

// Terminal reports whether the worker has finished.
func (s WorkerState) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}
