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

// Package devicelog writes classified device records to per-device audit
// files and echoes selected records to the shared operator console.
package devicelog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/carverauto/devmon/pkg/models"
	"github.com/rs/zerolog"
)

const (
	consoleTimeFormat = time.DateTime
	fileTimeFormat    = time.DateTime
)

// Options configures a Factory.
type Options struct {
	OutputDir    string
	Format       string
	RunID        string
	ConsoleLevel models.Severity
	// Console is shared by every sink. Build it with NewConsole.
	Console zerolog.Logger
	// Forwarder, if set, receives every record that is echo-eligible.
	Forwarder models.RecordEmitter
	Now       func() time.Time
}

// Factory opens one Sink per device.
type Factory struct {
	opts Options
}

// NewFactory returns a factory for opts.
func NewFactory(opts Options) *Factory {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Format == "" {
		opts.Format = models.LogFormatText
	}

	return &Factory{opts: opts}
}

// NewConsole builds the shared console logger. Writes are serialized so
// records from different devices never interleave within a line.
func NewConsole(w io.Writer, noColor bool) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:         w,
		NoColor:     noColor,
		TimeFormat:  consoleTimeFormat,
		FormatLevel: formatSeverity,
	}

	return zerolog.New(zerolog.SyncWriter(cw)).With().Timestamp().Logger()
}

// Open creates the device's audit file and returns its sink.
func (f *Factory) Open(deviceID string) (*Sink, error) {
	file, err := OpenLogFile(f.opts.OutputDir, LogFileName(deviceID, f.opts.Now()))
	if err != nil {
		return nil, err
	}

	var out io.Writer = file
	if f.opts.Format != models.LogFormatJSON {
		out = zerolog.ConsoleWriter{
			Out:         file,
			NoColor:     true,
			TimeFormat:  fileTimeFormat,
			FormatLevel: formatSeverity,
		}
	}

	return &Sink{
		deviceID: deviceID,
		file:     file,
		log: zerolog.New(out).With().
			Timestamp().
			Str("device", deviceID).
			Str("run_id", f.opts.RunID).
			Logger(),
		console:      f.opts.Console,
		consoleLevel: f.opts.ConsoleLevel,
		forwarder:    f.opts.Forwarder,
	}, nil
}

// OpenTranscript creates the raw session transcript file for a device.
func (f *Factory) OpenTranscript(deviceID string) (*os.File, error) {
	return OpenLogFile(f.opts.OutputDir, TranscriptFileName(deviceID, f.opts.Now()))
}

// formatSeverity prints zerolog levels with the severity names used in device logs.
func formatSeverity(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return "-"
	}

	sev, err := models.ParseSeverity(s)
	if err != nil {
		return s
	}

	return fmt.Sprintf("%-8s", sev.String())
}

// Sink delivers records for one device. Writes to its file are serialized.
type Sink struct {
	deviceID     string
	file         *os.File
	log          zerolog.Logger
	console      zerolog.Logger
	consoleLevel models.Severity
	forwarder    models.RecordEmitter

	mu     sync.Mutex
	closed bool
}

var _ models.RecordEmitter = (*Sink)(nil)

// Emit writes the record to the device file and, when the record asks for
// it and its severity allows, to the console.
func (s *Sink) Emit(record models.LogRecord) {
	msg := s.deviceID + ": " + record.Text

	s.mu.Lock()
	if !s.closed {
		s.log.WithLevel(record.Severity.Level()).
			Str("severity", record.Severity.String()).
			Msg(msg)
	}
	s.mu.Unlock()

	if !record.ShouldEcho() {
		return
	}

	if record.Severity.AtLeast(s.consoleLevel) {
		s.console.WithLevel(record.Severity.Level()).Msg(msg)
	}

	if s.forwarder != nil {
		s.forwarder.Emit(record)
	}
}

// Path returns the audit file path.
func (s *Sink) Path() string {
	return s.file.Name()
}

// Close closes the audit file. Records emitted afterwards only reach the console.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.file.Close()
}
