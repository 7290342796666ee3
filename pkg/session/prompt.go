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
	"regexp"
	"strings"
)

var (
	// Router prompts: "wgb>", "core-sw#", "ap(config)#".
	promptPattern         = regexp.MustCompile(`^[A-Za-z0-9][\w.\-@:/()\[\]]*[#>]$`)
	passwordPromptPattern = regexp.MustCompile(`(?i)password:\s*$`)
)

func lastLine(out string) string {
	out = strings.TrimRight(out, " \t")

	return out[strings.LastIndexAny(out, "\r\n")+1:]
}

func endsWithPrompt(out string) bool {
	return promptPattern.MatchString(lastLine(out))
}

func endsWithPasswordPrompt(out string) bool {
	return passwordPromptPattern.MatchString(out)
}

func isPrivileged(out string) bool {
	return endsWithPrompt(out) && strings.HasSuffix(lastLine(out), "#")
}

// cleanOutput normalizes line endings and strips the echoed command and the
// trailing prompt.
func cleanOutput(raw, command string) string {
	out := strings.ReplaceAll(raw, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")

	if endsWithPrompt(out) {
		out = out[:strings.LastIndex(out, "\n")+1]
	}

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.TrimSpace(line) == command {
			lines = lines[i+1:]
		}

		break
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
