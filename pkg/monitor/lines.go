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

package monitor

import "strings"

// lineSplitter turns drained output chunks into complete lines, carrying a
// trailing partial line over to the next chunk.
type lineSplitter struct {
	partial string
}

func (s *lineSplitter) Feed(chunk string) []string {
	data := s.partial + chunk
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")

	lines := strings.Split(data, "\n")
	s.partial = lines[len(lines)-1]

	return lines[:len(lines)-1]
}

// Flush returns and clears the pending partial line.
func (s *lineSplitter) Flush() string {
	p := s.partial
	s.partial = ""

	return p
}
