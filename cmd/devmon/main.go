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

// Command devmon arms debug output on a set of network devices over SSH and
// records deduplicated, classified log lines per device until interrupted.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/carverauto/devmon/pkg/config"
	"github.com/carverauto/devmon/pkg/devicelog"
	"github.com/carverauto/devmon/pkg/lifecycle"
	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"github.com/carverauto/devmon/pkg/monitor"
	"github.com/carverauto/devmon/pkg/natsutil"
	"github.com/carverauto/devmon/pkg/session"
	"github.com/carverauto/devmon/pkg/tracker"
	"github.com/google/uuid"
	"golang.org/x/term"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errDevicesFailed      = errors.New("one or more devices failed")
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("devmon", flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "Path to monitor config file (JSON or YAML)")
	escape := fs.String("escape-pattern", "", "Validate a regex and print it escaped for a JSON config")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *escape != "" {
		escaped, err := escapePattern(*escape)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(stdout, escaped)

		return err
	}

	ctx := context.Background()

	var cfg models.MonitorConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	appLogger, err := lifecycle.CreateComponentLogger("devmon", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	patterns, err := tracker.CompilePatterns(cfg.Patterns)
	if err != nil {
		return err
	}

	if sanitized, err := config.SanitizedJSON(&cfg); err == nil {
		appLogger.Debug().RawJSON("config", sanitized).Msg("Loaded configuration")
	}

	if err := session.FillCredentials(cfg.Devices, session.NewTerminalPrompter(os.Stdin, os.Stderr)); err != nil {
		return err
	}

	runID := uuid.New().String()

	var forwarder models.RecordEmitter

	if cfg.NATS != nil {
		publisher, err := natsutil.Connect(ctx, cfg.NATS, runID, appLogger)
		if err != nil {
			return err
		}

		defer func() {
			if err := publisher.Close(); err != nil {
				appLogger.Warn().Err(err).Msg("Failed to drain NATS connection")
			}
		}()

		forwarder = publisher
	}

	factory := devicelog.NewFactory(devicelog.Options{
		OutputDir:    cfg.OutputDir,
		Format:       cfg.LogFormat,
		RunID:        runID,
		ConsoleLevel: cfg.ConsoleSeverity(),
		Console:      devicelog.NewConsole(os.Stderr, !term.IsTerminal(int(os.Stderr.Fd()))),
		Forwarder:    forwarder,
	})

	orchestrator := monitor.NewOrchestrator(monitor.Options{
		Config:   &cfg,
		Patterns: patterns,
		Dialer:   session.NewSSHDialer(appLogger, factory, cfg.SessionLog),
		Sinks: monitor.SinkOpenerFunc(func(deviceID string) (monitor.DeviceSink, error) {
			return factory.Open(deviceID)
		}),
		RunID:         runID,
		Logger:        appLogger,
		HandleSignals: true,
	})

	appLogger.Info().
		Str("run_id", runID).
		Str("output_dir", cfg.OutputDir).
		Msg("Monitoring started, press Ctrl+C to stop")

	summary := orchestrator.Run(ctx, cfg.Devices)

	if _, err := fmt.Fprintln(stdout, renderSummary(summary)); err != nil {
		return err
	}

	if len(summary.Failed) > 0 {
		return errDevicesFailed
	}

	return nil
}

// escapePattern returns the regex as it must appear inside a JSON string.
func escapePattern(pattern string) (string, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(pattern); err != nil {
		return "", err
	}

	data := strings.TrimSpace(buf.String())

	return strings.TrimSuffix(strings.TrimPrefix(data, `"`), `"`), nil
}
