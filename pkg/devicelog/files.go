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

package devicelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	fileTimestampLayout = "20060102_150405"
	maxNameAttempts     = 1000

	logFilePerm = 0o640
	logDirPerm  = 0o750
)

var (
	errNoFreeName = errors.New("no free log file name")

	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// SanitizeID makes a device id safe to use in a file name.
func SanitizeID(id string) string {
	clean := strings.Trim(unsafeNameChars.ReplaceAllString(id, "_"), "_.")
	if clean == "" {
		return "device"
	}

	return clean
}

// LogFileName returns the audit log file name for a device session started at ts.
func LogFileName(deviceID string, ts time.Time) string {
	return fmt.Sprintf("device_monitor_debug_%s_%s.log", SanitizeID(deviceID), ts.Format(fileTimestampLayout))
}

// TranscriptFileName returns the raw session transcript file name.
func TranscriptFileName(deviceID string, ts time.Time) string {
	return fmt.Sprintf("session_%s_%s.log", SanitizeID(deviceID), ts.Format(fileTimestampLayout))
}

// OpenLogFile creates dir if needed and exclusively creates name inside it.
// If name is taken, _1, _2, ... is inserted before the extension.
func OpenLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}

		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err == nil {
			return f, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("%w: %s in %s", errNoFreeName, name, dir)
}
