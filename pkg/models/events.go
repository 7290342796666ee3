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
)

const (
	defaultEventStream        = "devmon_events"
	defaultEventSubjectPrefix = "events.devmon"
	defaultPublishTimeout     = 2 * time.Second
)

// NATSConfig configures forwarding of console-eligible device records to
// NATS JetStream.
type NATSConfig struct {
	URL            string   `json:"url" yaml:"url"`
	Domain         string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	CredsFile      string   `json:"creds_file,omitempty" yaml:"creds_file,omitempty" sensitive:"true"`
	StreamName     string   `json:"stream_name,omitempty" yaml:"stream_name,omitempty"`
	SubjectPrefix  string   `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
	PublishTimeout Duration `json:"publish_timeout,omitempty" yaml:"publish_timeout,omitempty"`
}

// Validate ensures the NATS configuration is valid and fills defaults.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: nats url is required", ErrInvalidConfig)
	}

	if c.StreamName == "" {
		c.StreamName = defaultEventStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultEventSubjectPrefix
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = Duration(defaultPublishTimeout)
	}

	return nil
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DeviceEventData is the payload of a forwarded device record.
type DeviceEventData struct {
	RunID     string    `json:"run_id"`
	DeviceID  string    `json:"device_id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
