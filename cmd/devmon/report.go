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
	"fmt"
	"sort"
	"strings"

	"github.com/carverauto/devmon/pkg/monitor"
	"github.com/charmbracelet/lipgloss"
)

const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaRed        = "#FF5555"
	draculaComment    = "#6272A4"

	reportPadding = 2
)

type reportStyles struct {
	title, success, failure, hint, box lipgloss.Style
}

func newReportStyles() reportStyles {
	return reportStyles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)).
			Bold(true),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		failure: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		box: lipgloss.NewStyle().
			Padding(0, reportPadding).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaCyan)).
			Foreground(lipgloss.Color(draculaForeground)),
	}
}

// renderSummary formats the end-of-run report.
func renderSummary(summary *monitor.RunSummary) string {
	s := newReportStyles()

	var b strings.Builder

	b.WriteString(s.title.Render("devmon run " + summary.RunID))
	b.WriteString("\n")
	b.WriteString(s.success.Render(fmt.Sprintf("%d succeeded", len(summary.Succeeded))))
	b.WriteString("  ")

	failed := fmt.Sprintf("%d failed", len(summary.Failed))
	if len(summary.Failed) > 0 {
		b.WriteString(s.failure.Render(failed))
	} else {
		b.WriteString(s.hint.Render(failed))
	}

	for _, id := range summary.Succeeded {
		b.WriteString("\n")
		b.WriteString(s.success.Render("✓ " + id))
	}

	ids := make([]string, 0, len(summary.Failed))
	for id := range summary.Failed {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		b.WriteString("\n")
		b.WriteString(s.failure.Render("✗ " + id))
		b.WriteString(" ")
		b.WriteString(s.hint.Render(summary.Failed[id].Error()))
	}

	return s.box.Render(b.String())
}
