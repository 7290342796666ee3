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

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Severity is the level a device log record is written at.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

type severityTraits struct {
	name    string
	level   zerolog.Level
	console bool
}

// severityTable is the single place severity behavior is defined. Critical
// maps to zerolog's fatal level; records are written with WithLevel so the
// process is never terminated by a device record.
var severityTable = [...]severityTraits{
	SeverityDebug:    {name: "DEBUG", level: zerolog.DebugLevel, console: false},
	SeverityInfo:     {name: "INFO", level: zerolog.InfoLevel, console: true},
	SeverityWarning:  {name: "WARNING", level: zerolog.WarnLevel, console: true},
	SeverityError:    {name: "ERROR", level: zerolog.ErrorLevel, console: true},
	SeverityCritical: {name: "CRITICAL", level: zerolog.FatalLevel, console: true},
}

func (s Severity) traits() severityTraits {
	if !s.Valid() {
		return severityTraits{name: fmt.Sprintf("SEVERITY(%d)", int(s)), level: zerolog.NoLevel}
	}

	return severityTable[s]
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	return s >= SeverityDebug && int(s) < len(severityTable)
}

func (s Severity) String() string {
	return s.traits().name
}

// Level returns the zerolog level used when writing a record of this severity.
func (s Severity) Level() zerolog.Level {
	return s.traits().level
}

// ConsoleEligible reports whether records of this severity may reach the
// shared console at all. Debug never does.
func (s Severity) ConsoleEligible() bool {
	return s.traits().console
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s >= min
}

// ParseSeverity accepts the severity names case-insensitively, plus the
// short forms "warn" and "fatal".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return SeverityDebug, nil
	case "info", "":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	case "critical", "fatal":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("%w: %q", errInvalidSeverity, s)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", errInvalidSeverity, int(s))
	}

	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
