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

// Package tracker classifies device output lines against named patterns and
// collapses consecutive identical matches into counted runs.
package tracker

import (
	"fmt"
	"strings"

	"github.com/carverauto/devmon/pkg/models"
)

// run is the open run for one pattern key.
type run struct {
	matched   string
	firstLine string
	count     int
}

// MessageTracker holds the run state for a single device. It is not safe for
// concurrent use; each device worker owns its own tracker.
type MessageTracker struct {
	deviceID     string
	patterns     *PatternSet
	alertStrings []string
	emitter      models.RecordEmitter

	// runs is indexed like patterns.patterns; nil means no open run.
	runs []*run
}

// NewMessageTracker creates a tracker for deviceID that delivers records to emitter.
func NewMessageTracker(deviceID string, patterns *PatternSet, alertStrings []string, emitter models.RecordEmitter) *MessageTracker {
	return &MessageTracker{
		deviceID:     deviceID,
		patterns:     patterns,
		alertStrings: alertStrings,
		emitter:      emitter,
		runs:         make([]*run, patterns.Len()),
	}
}

// ProcessLine classifies one line.
//
// Each pattern that matches either extends its open run (same matched text)
// or flushes the open run and starts a new one. A line containing an alert
// string is emitted at WARNING for the console; a line that matched nothing
// is emitted at INFO for the device log only. Matched, non-alert lines are
// only recorded when their run is flushed.
func (t *MessageTracker) ProcessLine(line string) {
	if line == "" {
		return
	}

	matchedAny := false

	for i := range t.runs {
		p := t.patterns.patterns[i]

		loc := p.re.FindStringIndex(line)
		if loc == nil {
			continue
		}

		matchedAny = true
		m := line[loc[0]:loc[1]]

		if r := t.runs[i]; r != nil && r.matched == m {
			r.count++

			continue
		}

		t.flush(i)
		t.runs[i] = &run{matched: m, firstLine: line, count: 1}
	}

	switch {
	case t.hasAlert(line):
		t.emit(line, models.SeverityWarning, true)
	case !matchedAny:
		t.emit(line, models.SeverityInfo, false)
	}
}

// Finish flushes every open run and clears the run state. Calling it again
// emits nothing until new lines are processed.
func (t *MessageTracker) Finish() {
	for i := range t.runs {
		t.flush(i)
	}
}

// OpenRuns returns the number of keys with an open run.
func (t *MessageTracker) OpenRuns() int {
	n := 0

	for _, r := range t.runs {
		if r != nil {
			n++
		}
	}

	return n
}

func (t *MessageTracker) flush(i int) {
	r := t.runs[i]
	if r == nil {
		return
	}

	t.runs[i] = nil
	t.emit(FormatRun(t.patterns.patterns[i].key, r.firstLine, r.count), models.SeverityInfo, false)
}

func (t *MessageTracker) hasAlert(line string) bool {
	for _, alert := range t.alertStrings {
		if alert != "" && strings.Contains(line, alert) {
			return true
		}
	}

	return false
}

func (t *MessageTracker) emit(text string, severity models.Severity, echo bool) {
	t.emitter.Emit(models.LogRecord{
		DeviceID:      t.deviceID,
		Text:          text,
		Severity:      severity,
		EchoToConsole: echo,
	})
}

// FormatRun renders the record text for a flushed run.
func FormatRun(key, firstLine string, count int) string {
	return fmt.Sprintf("Pattern [%s]: %s (Count: %d)", key, firstLine, count)
}
