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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carverauto/devmon/pkg/models"
	"golang.org/x/term"
)

// TerminalPrompter reads secrets from a terminal without echo. When in is
// not a terminal it reads a plain line instead.
type TerminalPrompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminalPrompter prompts on out and reads from in.
func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out}
}

var _ CredentialSource = (*TerminalPrompter)(nil)

// Prompt implements CredentialSource.
func (p *TerminalPrompter) Prompt(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}

	fd := int(p.in.Fd())

	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(p.out)

		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}

		return string(secret), nil
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read secret: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// FillCredentials prompts for every missing password, and for missing enable
// secrets on devices that do not skip enable mode. Devices are handled one at
// a time so prompts never overlap.
func FillCredentials(devices []models.Device, src CredentialSource) error {
	for i := range devices {
		d := &devices[i]

		if d.NeedsPassword() {
			secret, err := src.Prompt(fmt.Sprintf("Enter password for %s: ", d.Host))
			if err != nil {
				return fmt.Errorf("password for %s: %w", d.Name(), err)
			}

			d.Password = secret
		}

		if d.NeedsSecret() {
			secret, err := src.Prompt(fmt.Sprintf("Enter enable password for %s: ", d.Host))
			if err != nil {
				return fmt.Errorf("enable password for %s: %w", d.Name(), err)
			}

			d.Secret = secret
		}
	}

	return nil
}
