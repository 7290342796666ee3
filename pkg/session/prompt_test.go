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

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carverauto/devmon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPromptDetection(t *testing.T) {
	assert.True(t, endsWithPrompt("banner\r\nwgb>"))
	assert.True(t, endsWithPrompt("output\r\ncore-sw(config)# "))
	assert.False(t, endsWithPrompt("RSSI:-40\r\n"))
	assert.False(t, endsWithPrompt("a > b is true"))
	assert.True(t, endsWithPasswordPrompt("enable\r\nPassword: "))
	assert.True(t, isPrivileged("x\r\nwgb#"))
	assert.False(t, isPrivileged("x\r\nwgb>"))
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, "line one\nline two", cleanOutput("show x\r\nline one\r\nline two\r\nwgb#", "show x"))
	assert.Equal(t, "", cleanOutput("terminal monitor\r\nwgb#", "terminal monitor"))
	assert.Equal(t, "unsolicited\nresult", cleanOutput("unsolicited\r\nresult\r\nwgb#", "cmd"))
}

func TestFillCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockCredentialSource(ctrl)

	devices := []models.Device{
		{Host: "10.0.0.1"},
		{Host: "10.0.0.2", Password: "set", SkipEnable: true},
		{Host: "10.0.0.3", Transport: models.TransportOptions{KeyFile: "/keys/id"}, Secret: "set"},
	}

	gomock.InOrder(
		src.EXPECT().Prompt("Enter password for 10.0.0.1: ").Return("pw1", nil),
		src.EXPECT().Prompt("Enter enable password for 10.0.0.1: ").Return("en1", nil),
	)

	require.NoError(t, FillCredentials(devices, src))

	assert.Equal(t, "pw1", devices[0].Password)
	assert.Equal(t, "en1", devices[0].Secret)
	assert.Equal(t, "set", devices[1].Password)
	assert.Empty(t, devices[1].Secret)
	assert.Empty(t, devices[2].Password)
}

func TestFillCredentialsError(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockCredentialSource(ctrl)

	boom := errors.New("no tty")
	src.EXPECT().Prompt(gomock.Any()).Return("", boom)

	err := FillCredentials([]models.Device{{Host: "10.0.0.1"}}, src)
	require.ErrorIs(t, err, boom)
}

func TestTerminalPrompterReadsLineWhenNotATerminal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(path, []byte("first\r\nsecond"), 0o600))

	in, err := os.Open(path)
	require.NoError(t, err)

	defer in.Close()

	var out testWriter

	p := NewTerminalPrompter(in, &out)

	secret, err := p.Prompt("Enter password for 10.0.0.1: ")
	require.NoError(t, err)
	assert.Equal(t, "first", secret)

	secret, err = p.Prompt("Enter enable password for 10.0.0.1: ")
	require.NoError(t, err)
	assert.Equal(t, "second", secret)

	_, err = p.Prompt("again: ")
	require.Error(t, err)

	assert.Equal(t, "Enter password for 10.0.0.1: Enter enable password for 10.0.0.1: again: ", out.String())
}

type testWriter struct {
	buf []byte
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	return len(p), nil
}

func (w *testWriter) String() string {
	return string(w.buf)
}
