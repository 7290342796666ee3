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

// Package session provides the interactive device session used by monitor
// workers: an SSH shell on a PTY, driven like a person at a router CLI.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	readBufferSize = 32 * 1024
	ptyTerm        = "vt100"
	ptyRows        = 24
	ptyCols        = 511

	enableCommand = "enable"
	pagingCommand = "terminal length 0"
)

// SSHDialer opens PTY shell sessions to network devices.
type SSHDialer struct {
	logger      logger.Logger
	transcripts TranscriptOpener
	sessionLog  bool
}

// NewSSHDialer creates a dialer. When transcripts is non-nil, devices with
// session logging enabled (sessionLog is the global default) get a raw
// transcript of everything the device sends.
func NewSSHDialer(log logger.Logger, transcripts TranscriptOpener, sessionLog bool) *SSHDialer {
	return &SSHDialer{
		logger:      log,
		transcripts: transcripts,
		sessionLog:  sessionLog,
	}
}

var _ Dialer = (*SSHDialer)(nil)

// Dial connects, logs in, enters privileged mode unless the device skips it,
// and disables paging.
func (d *SSHDialer) Dial(ctx context.Context, device *models.Device) (Session, error) {
	connErr := func(err error) error {
		return &ConnectionError{Host: device.Host, Err: err}
	}

	cfg, err := d.clientConfig(device)
	if err != nil {
		return nil, connErr(err)
	}

	addr := device.Address()
	dialer := net.Dialer{Timeout: device.DialTimeout()}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connErr(err)
	}

	// Bound the handshake; cleared once the shell is up.
	_ = conn.SetDeadline(time.Now().Add(device.DialTimeout()))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()

		return nil, connErr(err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	s, err := d.startShell(client, device)
	if err != nil {
		_ = client.Close()

		return nil, connErr(err)
	}

	_ = conn.SetDeadline(time.Time{})

	if err := s.login(ctx, device); err != nil {
		_ = s.Close()

		return nil, connErr(err)
	}

	d.logger.Debug().
		Str("device", device.Name()).
		Str("addr", addr).
		Msg("Session established")

	return s, nil
}

func (d *SSHDialer) clientConfig(device *models.Device) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if device.Transport.KeyFile != "" {
		keyData, err := os.ReadFile(device.Transport.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}

		auth = append(auth, ssh.PublicKeys(signer))
	}

	if device.Password != "" {
		password := device.Password

		auth = append(auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}

				return answers, nil
			}),
		)
	}

	if len(auth) == 0 {
		return nil, errNoCredentials
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()

	if device.Transport.KnownHostsFile != "" {
		cb, err := knownhosts.New(device.Transport.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}

		hostKeyCallback = cb
	} else {
		d.logger.Debug().Str("device", device.Name()).Msg("No known_hosts_file configured, host key not verified")
	}

	return &ssh.ClientConfig{
		User:            device.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         device.DialTimeout(),
	}, nil
}

func (d *SSHDialer) startShell(client *ssh.Client, device *models.Device) (*sshSession, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := sess.RequestPty(ptyTerm, ptyRows, ptyCols, modes); err != nil {
		_ = sess.Close()

		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()

		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()

		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		_ = sess.Close()

		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &sshSession{
		client:         client,
		session:        sess,
		stdin:          stdin,
		commandTimeout: device.CommandTimeout(),
		notify:         make(chan struct{}, 1),
	}

	if d.transcripts != nil && device.SessionLogEnabled(d.sessionLog) {
		f, err := d.transcripts.OpenTranscript(device.Name())
		if err != nil {
			d.logger.Warn().Err(err).Str("device", device.Name()).Msg("Session transcript disabled")
		} else {
			s.transcript = f
		}
	}

	go s.readLoop(stdout)

	return s, nil
}

// sshSession buffers everything the device sends in the background so that
// DrainNonBlocking never blocks.
type sshSession struct {
	client         *ssh.Client
	session        *ssh.Session
	stdin          io.WriteCloser
	transcript     io.WriteCloser
	commandTimeout time.Duration

	mu      sync.Mutex
	pending bytes.Buffer
	readErr error

	notify    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *sshSession) readLoop(r io.Reader) {
	buf := make([]byte, readBufferSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.pending.Write(buf[:n])

			if s.transcript != nil {
				_, _ = s.transcript.Write(buf[:n])
			}
			s.mu.Unlock()

			s.signal()
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errSessionClosed
			}

			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()

			s.signal()

			return
		}
	}
}

func (s *sshSession) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// take removes and returns buffered output along with any terminal read error.
func (s *sshSession) take() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending.String()
	s.pending.Reset()

	return out, s.readErr
}

// waitFor accumulates output until done reports true for it.
func (s *sshSession) waitFor(ctx context.Context, timeout time.Duration, done func(string) bool) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out strings.Builder

	for {
		chunk, readErr := s.take()
		out.WriteString(chunk)

		if done(out.String()) {
			return out.String(), nil
		}

		if readErr != nil {
			return out.String(), readErr
		}

		select {
		case <-s.notify:
		case <-timer.C:
			return out.String(), errCommandTimeout
		case <-ctx.Done():
			return out.String(), ctx.Err()
		}
	}
}

func (s *sshSession) send(line string) error {
	_, err := io.WriteString(s.stdin, line+"\n")

	return err
}

func (s *sshSession) login(ctx context.Context, device *models.Device) error {
	banner, err := s.waitFor(ctx, device.DialTimeout(), endsWithPrompt)
	if err != nil {
		return fmt.Errorf("waiting for initial prompt: %w", err)
	}

	if !device.SkipEnable && !isPrivileged(banner) {
		if err := s.enable(ctx, device.Secret); err != nil {
			return err
		}
	}

	if _, err := s.Execute(ctx, pagingCommand); err != nil {
		return err
	}

	return nil
}

func (s *sshSession) enable(ctx context.Context, secret string) error {
	if err := s.send(enableCommand); err != nil {
		return err
	}

	out, err := s.waitFor(ctx, s.commandTimeout, func(out string) bool {
		return endsWithPrompt(out) || endsWithPasswordPrompt(out)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errEnableFailed, err)
	}

	if endsWithPasswordPrompt(out) {
		if err := s.send(secret); err != nil {
			return err
		}

		out, err = s.waitFor(ctx, s.commandTimeout, endsWithPrompt)
		if err != nil {
			return fmt.Errorf("%w: %w", errEnableFailed, err)
		}
	}

	if !isPrivileged(out) {
		return errEnableFailed
	}

	return nil
}

// Execute implements Session.
func (s *sshSession) Execute(ctx context.Context, command string) (string, error) {
	if err := s.send(command); err != nil {
		return "", &CommandError{Command: command, Err: err}
	}

	raw, err := s.waitFor(ctx, s.commandTimeout, endsWithPrompt)
	output := cleanOutput(raw, command)

	if err != nil {
		return output, &CommandError{Command: command, Output: output, Err: err}
	}

	return output, nil
}

// DrainNonBlocking implements Session.
func (s *sshSession) DrainNonBlocking() (string, error) {
	out, err := s.take()
	if out != "" {
		return out, nil
	}

	return "", err
}

// Close implements Session.
func (s *sshSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.session.Close()
		s.closeErr = s.client.Close()

		s.mu.Lock()
		if s.transcript != nil {
			_ = s.transcript.Close()
			s.transcript = nil
		}
		s.mu.Unlock()
	})

	return s.closeErr
}
