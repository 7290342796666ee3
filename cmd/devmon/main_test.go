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

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carverauto/devmon/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapePattern(t *testing.T) {
	escaped, err := escapePattern(`RSSI:\s*(-?\d+) "dBm"`)
	require.NoError(t, err)
	assert.Equal(t, `RSSI:\\s*(-?\\d+) \"dBm\"`, escaped)

	escaped, err = escapePattern(`<\w+>`)
	require.NoError(t, err)
	assert.Equal(t, `<\\w+>`, escaped)

	_, err = escapePattern(`(unclosed`)
	require.Error(t, err)
}

func TestRunEscapePatternFlag(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, run([]string{"-escape-pattern", `\d+`}, &out))
	assert.Equal(t, "\\\\d+\n", out.String())
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"devices": []}`), 0o600))

	err := run([]string{"-config", path}, &bytes.Buffer{})
	require.ErrorIs(t, err, errFailedToLoadConfig)
}

func TestRunRejectsBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{"devices": [{"host": "10.0.0.1", "password": "p", "secret": "s"}], "regex_patterns": {"bad": "(x"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	err := run([]string{"-config", path}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(&monitor.RunSummary{
		RunID:     "run-7",
		Succeeded: []string{"10.0.0.1"},
		Failed:    map[string]error{"10.0.0.2": errors.New("connection refused")},
	})

	assert.Contains(t, out, "devmon run run-7")
	assert.Contains(t, out, "1 succeeded")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "10.0.0.1")
	assert.Contains(t, out, "connection refused")
}
