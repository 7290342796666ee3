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

// Package natsutil forwards device alerts to NATS JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	eventSource = "devmon/monitor"
	eventType   = "com.carverauto.devmon.device.record"
)

// AlertPublisher publishes echo-eligible device records to JetStream.
type AlertPublisher struct {
	js            jetstream.JetStream
	nc            *nats.Conn
	stream        string
	subjectPrefix string
	runID         string
	timeout       time.Duration
	logger        logger.Logger
	now           func() time.Time
}

var _ models.RecordEmitter = (*AlertPublisher)(nil)

// NewAlertPublisher wraps an existing JetStream context. cfg must already be validated.
func NewAlertPublisher(js jetstream.JetStream, cfg *models.NATSConfig, runID string, log logger.Logger) *AlertPublisher {
	return &AlertPublisher{
		js:            js,
		stream:        cfg.StreamName,
		subjectPrefix: cfg.SubjectPrefix,
		runID:         runID,
		timeout:       cfg.PublishTimeout.Std(2 * time.Second),
		logger:        log,
		now:           time.Now,
	}
}

// Connect dials NATS, ensures the stream covers the configured subjects and
// returns a publisher that owns the connection.
func Connect(ctx context.Context, cfg *models.NATSConfig, runID string, log logger.Logger, extraOpts ...nats.Option) (*AlertPublisher, error) {
	opts := []nats.Option{
		nats.Name("devmon"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := newJetStream(nc, cfg.Domain)
	if err != nil {
		nc.Close()

		return nil, err
	}

	if err := ensureStream(ctx, js, cfg.StreamName, cfg.SubjectPrefix+".>"); err != nil {
		nc.Close()

		return nil, err
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", cfg.StreamName).
		Msg("Forwarding device alerts to NATS")

	p := NewAlertPublisher(js, cfg, runID, log)
	p.nc = nc

	return p, nil
}

func newJetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain != "" {
		js, err := jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}

		return js, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return js, nil
}

// ensureStream creates the stream, or extends an existing stream's subjects
// when they do not already cover subject.
func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create or get stream %s: %w", name, err)
		}

		return nil
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(cfg.Subjects, subject)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, name, err)
	}

	return nil
}

func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern (which may use * and >) covers subject.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

// Subject returns the subject records for deviceID are published on.
func (p *AlertPublisher) Subject(deviceID string) string {
	return p.subjectPrefix + "." + subjectToken(deviceID)
}

func subjectToken(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, id)
}

// Publish sends one record as a CloudEvent.
func (p *AlertPublisher) Publish(ctx context.Context, record models.LogRecord) error {
	now := p.now()
	subject := p.Subject(record.DeviceID)

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data: models.DeviceEventData{
			RunID:     p.runID,
			DeviceID:  record.DeviceID,
			Severity:  record.Severity,
			Message:   record.Text,
			Timestamp: now,
		},
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal device event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish device event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published device event")

	return nil
}

// Emit implements models.RecordEmitter. Each publish is bounded by the
// configured timeout; failures are logged and dropped.
func (p *AlertPublisher) Emit(record models.LogRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.Publish(ctx, record); err != nil {
		p.logger.Warn().Err(err).Str("device", record.DeviceID).Msg("Dropped device event")
	}
}

// Close drains and closes the connection if the publisher owns one.
func (p *AlertPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}
