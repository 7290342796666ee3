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

package models

// LogRecord is a single classified line on its way to a device log.
type LogRecord struct {
	DeviceID      string
	Text          string
	Severity      Severity
	EchoToConsole bool
}

// ShouldEcho reports whether the record reaches the shared console: the
// producer asked for it and the severity allows it.
func (r LogRecord) ShouldEcho() bool {
	return r.EchoToConsole && r.Severity.ConsoleEligible()
}

// RecordEmitter consumes log records. Device log sinks implement it.
type RecordEmitter interface {
	Emit(record LogRecord)
}

// RecordEmitterFunc adapts a function to RecordEmitter.
type RecordEmitterFunc func(record LogRecord)

func (f RecordEmitterFunc) Emit(record LogRecord) {
	f(record)
}
