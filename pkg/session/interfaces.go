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

//go:generate mockgen -destination=mock_session.go -package=session github.com/carverauto/devmon/pkg/session Session,Dialer,CredentialSource

import (
	"context"
	"os"

	"github.com/carverauto/devmon/pkg/models"
)

// Session is one authenticated, privileged interactive connection to a device.
type Session interface {
	// Execute sends command and returns its output once the device prompt
	// comes back. It fails with a *CommandError.
	Execute(ctx context.Context, command string) (string, error)
	// DrainNonBlocking returns whatever output has arrived since the last
	// call, possibly nothing. It never waits. An error means the transport
	// is gone.
	DrainNonBlocking() (string, error)
	Close() error
}

// Dialer establishes sessions. Failures are reported as *ConnectionError.
type Dialer interface {
	Dial(ctx context.Context, device *models.Device) (Session, error)
}

// CredentialSource supplies secrets missing from the configuration.
type CredentialSource interface {
	Prompt(prompt string) (string, error)
}

// TranscriptOpener creates the raw transcript file for a device session.
type TranscriptOpener interface {
	OpenTranscript(deviceID string) (*os.File, error)
}
