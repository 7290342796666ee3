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
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carverauto/devmon/pkg/logger"
	"github.com/carverauto/devmon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	testUser   = "admin"
	testPass   = "cisco"
	testSecret = "enable-me"
)

// routerEmulator is an in-process SSH server that behaves like a small
// IOS-style CLI on a PTY shell.
type routerEmulator struct {
	addr    string
	hostKey ssh.PublicKey

	mu       sync.Mutex
	commands []string
}

func (r *routerEmulator) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.commands...)
}

func startRouter(t *testing.T) *routerEmulator {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPass {
				return &ssh.Permissions{}, nil
			}

			return nil, fmt.Errorf("password rejected for %s", conn.User())
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := &routerEmulator{addr: listener.Addr().String(), hostKey: hostSigner.PublicKey()}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go router.handleConn(conn, config)
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		<-done
	})

	return router
}

func (r *routerEmulator) handleConn(netConn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()

		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")

			continue
		}

		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}

		go r.handleSession(ch, requests)
	}
}

func (r *routerEmulator) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			req.Reply(true, nil)
		case "shell":
			req.Reply(true, nil)

			go func() {
				for range requests {
				}
			}()

			r.runCLI(ch)

			return
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (r *routerEmulator) runCLI(ch ssh.Channel) {
	prompt := "wgb>"
	reader := bufio.NewReader(ch)
	awaitingSecret := false

	fmt.Fprintf(ch, "\r\nUser Access Verification\r\n\r\n%s", prompt)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		cmd := strings.TrimRight(line, "\r\n")

		if awaitingSecret {
			awaitingSecret = false

			if cmd == testSecret {
				prompt = "wgb#"
				fmt.Fprintf(ch, "\r\n%s", prompt)
			} else {
				fmt.Fprintf(ch, "\r\n%% Access denied\r\n\r\n%s", prompt)
			}

			continue
		}

		r.mu.Lock()
		r.commands = append(r.commands, cmd)
		r.mu.Unlock()

		fmt.Fprintf(ch, "%s\r\n", cmd)

		switch {
		case cmd == "enable":
			awaitingSecret = true

			fmt.Fprint(ch, "Password: ")
		case cmd == "terminal length 0", cmd == "terminal monitor":
			fmt.Fprint(ch, prompt)
		case strings.HasPrefix(cmd, "debug "):
			fmt.Fprintf(ch, "%s debugging is on\r\n%s", strings.TrimPrefix(cmd, "debug "), prompt)

			go func() {
				time.Sleep(20 * time.Millisecond)
				fmt.Fprint(ch, "\r\n*Mar 1 00:01:02: RSSI:-40\r\n*Mar 1 00:01:03: RSSI:-40\r\n")
			}()
		case cmd == "undebug all":
			fmt.Fprintf(ch, "All possible debugging has been turned off\r\n%s", prompt)
		case cmd == "hang":
		case cmd == "exit":
			return
		default:
			fmt.Fprintf(ch, "%% Invalid input detected\r\n%s", prompt)
		}
	}
}

func (r *routerEmulator) device() *models.Device {
	host, portStr, _ := net.SplitHostPort(r.addr)
	port, _ := strconv.Atoi(portStr)

	return &models.Device{
		ID:       "wgb-lab",
		Host:     host,
		Port:     port,
		Username: testUser,
		Password: testPass,
		Secret:   testSecret,
		Transport: models.TransportOptions{
			Timeout:        models.Duration(2 * time.Second),
			CommandTimeout: models.Duration(time.Second),
		},
	}
}

type dirTranscripts struct {
	dir string
}

func (d dirTranscripts) OpenTranscript(deviceID string) (*os.File, error) {
	return os.Create(filepath.Join(d.dir, deviceID+".log"))
}

func TestSSHDialerSessionLifecycle(t *testing.T) {
	router := startRouter(t)
	dir := t.TempDir()

	dialer := NewSSHDialer(logger.NewTestLogger(), dirTranscripts{dir: dir}, true)

	sess, err := dialer.Dial(context.Background(), router.device())
	require.NoError(t, err)

	out, err := sess.Execute(context.Background(), "terminal monitor")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = sess.Execute(context.Background(), "debug dot11 trace")
	require.NoError(t, err)
	assert.Equal(t, "dot11 trace debugging is on", out)

	var drained strings.Builder

	require.Eventually(t, func() bool {
		chunk, err := sess.DrainNonBlocking()
		if err != nil {
			return false
		}

		drained.WriteString(chunk)

		return strings.Count(drained.String(), "RSSI:-40") == 2
	}, 2*time.Second, 10*time.Millisecond)

	chunk, err := sess.DrainNonBlocking()
	require.NoError(t, err)
	assert.Empty(t, chunk)

	out, err = sess.Execute(context.Background(), "undebug all")
	require.NoError(t, err)
	assert.Equal(t, "All possible debugging has been turned off", out)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	assert.Equal(t, []string{"enable", "terminal length 0", "terminal monitor", "debug dot11 trace", "undebug all"}, router.received())

	transcript, err := os.ReadFile(filepath.Join(dir, "wgb-lab.log"))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "User Access Verification")
	assert.Contains(t, string(transcript), "RSSI:-40")
}

func TestSSHDialerSkipEnable(t *testing.T) {
	router := startRouter(t)

	device := router.device()
	device.SkipEnable = true
	device.Secret = ""

	sess, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)
	require.NoError(t, err)

	defer sess.Close()

	assert.Equal(t, []string{"terminal length 0"}, router.received())
}

func TestSSHDialerRejectsBadPassword(t *testing.T) {
	router := startRouter(t)

	device := router.device()
	device.Password = "wrong"

	_, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)

	var connErr *ConnectionError

	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, device.Host, connErr.Host)
}

func TestSSHDialerRejectsBadEnableSecret(t *testing.T) {
	router := startRouter(t)

	device := router.device()
	device.Secret = "nope"

	_, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)
	require.ErrorIs(t, err, errEnableFailed)
}

func TestSSHDialerRequiresCredentials(t *testing.T) {
	router := startRouter(t)

	device := router.device()
	device.Password = ""

	_, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)
	require.ErrorIs(t, err, errNoCredentials)
}

func TestSSHDialerKnownHosts(t *testing.T) {
	router := startRouter(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(good, []byte(knownhosts.Line([]string{router.addr}, router.hostKey)+"\n"), 0o600))

	device := router.device()
	device.Transport.KnownHostsFile = good

	sess, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	otherKey, err := ssh.NewPublicKey(otherPub)
	require.NoError(t, err)

	bad := filepath.Join(dir, "known_hosts_bad")
	require.NoError(t, os.WriteFile(bad, []byte(knownhosts.Line([]string{router.addr}, otherKey)+"\n"), 0o600))

	device.Transport.KnownHostsFile = bad

	_, err = NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)

	var connErr *ConnectionError

	require.True(t, errors.As(err, &connErr))
	assert.Contains(t, err.Error(), "knownhosts: key mismatch")
}

func TestSSHSessionCommandTimeout(t *testing.T) {
	router := startRouter(t)

	device := router.device()
	device.Transport.CommandTimeout = models.Duration(150 * time.Millisecond)

	sess, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), device)
	require.NoError(t, err)

	defer sess.Close()

	_, err = sess.Execute(context.Background(), "hang")

	var cmdErr *CommandError

	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "hang", cmdErr.Command)
	require.ErrorIs(t, err, errCommandTimeout)
}

func TestSSHSessionDrainAfterRemoteExit(t *testing.T) {
	router := startRouter(t)

	sess, err := NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), router.device())
	require.NoError(t, err)

	defer sess.Close()

	_, err = sess.Execute(context.Background(), "exit")
	require.Error(t, err)

	require.Eventually(t, func() bool {
		_, err := sess.DrainNonBlocking()

		return errors.Is(err, errSessionClosed)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDialUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	_, err = NewSSHDialer(logger.NewTestLogger(), nil, false).Dial(context.Background(), &models.Device{
		Host:     host,
		Port:     port,
		Password: "x",
	})

	var connErr *ConnectionError

	require.True(t, errors.As(err, &connErr))
}
