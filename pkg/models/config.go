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
	"time"

	"github.com/carverauto/devmon/pkg/logger"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"

	defaultPollInterval       = time.Second
	defaultWaitReportInterval = 10 * time.Second
	defaultOutputDir          = "./logs"
	defaultStopCommand        = "undebug all"
	defaultSetupCommand       = "terminal monitor"
)

// MonitorConfig is the immutable snapshot the monitor runs from.
type MonitorConfig struct {
	Devices            []Device       `json:"devices" yaml:"devices"`
	Patterns           PatternSpecs   `json:"regex_patterns" yaml:"regex_patterns"`
	AlertStrings       []string       `json:"alert_strings" yaml:"alert_strings"`
	SetupCommands      []string       `json:"setup_commands" yaml:"setup_commands"`
	DebugCommands      []string       `json:"debug_commands" yaml:"debug_commands"`
	StopCommand        string         `json:"stop_command" yaml:"stop_command"`
	PollInterval       Duration       `json:"poll_interval" yaml:"poll_interval"`
	OutputDir          string         `json:"output_dir" yaml:"output_dir"`
	ConsoleLevel       string         `json:"console_level" yaml:"console_level"`
	LogFormat          string         `json:"log_format" yaml:"log_format"`
	SessionLog         bool           `json:"session_log" yaml:"session_log"`
	WaitReportInterval Duration       `json:"wait_report_interval" yaml:"wait_report_interval"`
	Logging            *logger.Config `json:"logging,omitempty" yaml:"logging,omitempty"`
	NATS               *NATSConfig    `json:"nats,omitempty" yaml:"nats,omitempty"`
}

// Validate checks required fields and fills defaults. It is called by the
// config loader before anything is started.
func (c *MonitorConfig) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("%w: no devices configured", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Devices))

	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Host == "" {
			return fmt.Errorf("%w: device %d has no host", ErrInvalidConfig, i)
		}

		if _, dup := seen[d.Name()]; dup {
			return fmt.Errorf("%w: duplicate device %q", ErrInvalidConfig, d.Name())
		}

		seen[d.Name()] = struct{}{}
	}

	if err := c.Patterns.checkKeys(); err != nil {
		return err
	}

	if _, err := ParseSeverity(c.ConsoleLevel); err != nil {
		return fmt.Errorf("%w: console_level: %w", ErrInvalidConfig, err)
	}

	switch c.LogFormat {
	case "":
		c.LogFormat = LogFormatText
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	if c.PollInterval < 0 || c.WaitReportInterval < 0 {
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	}

	c.PollInterval = Duration(c.PollInterval.Std(defaultPollInterval))
	c.WaitReportInterval = Duration(c.WaitReportInterval.Std(defaultWaitReportInterval))

	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}

	if c.StopCommand == "" {
		c.StopCommand = defaultStopCommand
	}

	if c.SetupCommands == nil {
		c.SetupCommands = []string{defaultSetupCommand}
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ConsoleSeverity returns the minimum severity echoed to the console.
func (c *MonitorConfig) ConsoleSeverity() Severity {
	s, _ := ParseSeverity(c.ConsoleLevel)

	return s
}

// DebugCommandsFor returns the debug commands for a device, preferring the
// device's own list.
func (c *MonitorConfig) DebugCommandsFor(d *Device) []string {
	if len(d.DebugCommands) > 0 {
		return d.DebugCommands
	}

	return c.DebugCommands
}
