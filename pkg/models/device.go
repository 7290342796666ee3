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
	"net"
	"strconv"
	"time"
)

const (
	defaultSSHPort        = 22
	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 10 * time.Second
)

// Device describes one monitored network device.
type Device struct {
	ID            string           `json:"id,omitempty" yaml:"id,omitempty"`
	Host          string           `json:"host" yaml:"host"`
	Port          int              `json:"port,omitempty" yaml:"port,omitempty"`
	DeviceType    string           `json:"device_type,omitempty" yaml:"device_type,omitempty"` // e.g. cisco_ios
	Username      string           `json:"username" yaml:"username"`
	Password      string           `json:"password,omitempty" yaml:"password,omitempty" sensitive:"true"`
	Secret        string           `json:"secret,omitempty" yaml:"secret,omitempty" sensitive:"true"`
	SkipEnable    bool             `json:"skip_enable,omitempty" yaml:"skip_enable,omitempty"`
	DebugCommands []string         `json:"debug_commands,omitempty" yaml:"debug_commands,omitempty"`
	Transport     TransportOptions `json:"transport,omitempty" yaml:"transport,omitempty"`
}

// TransportOptions tunes the session to a single device.
type TransportOptions struct {
	Timeout        Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	CommandTimeout Duration `json:"command_timeout,omitempty" yaml:"command_timeout,omitempty"`
	KnownHostsFile string   `json:"known_hosts_file,omitempty" yaml:"known_hosts_file,omitempty"`
	KeyFile        string   `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	SessionLog     *bool    `json:"session_log,omitempty" yaml:"session_log,omitempty"`
}

// Name identifies the device in logs and file names.
func (d *Device) Name() string {
	if d.ID != "" {
		return d.ID
	}

	return d.Host
}

// Address returns host:port for dialing.
func (d *Device) Address() string {
	port := d.Port
	if port == 0 {
		port = defaultSSHPort
	}

	return net.JoinHostPort(d.Host, strconv.Itoa(port))
}

// DialTimeout returns the connect timeout for the device.
func (d *Device) DialTimeout() time.Duration {
	return d.Transport.Timeout.Std(defaultDialTimeout)
}

// CommandTimeout returns how long a single command may take to return a prompt.
func (d *Device) CommandTimeout() time.Duration {
	return d.Transport.CommandTimeout.Std(defaultCommandTimeout)
}

// SessionLogEnabled resolves the per-device session log flag against the
// global default.
func (d *Device) SessionLogEnabled(global bool) bool {
	if d.Transport.SessionLog != nil {
		return *d.Transport.SessionLog
	}

	return global
}

// NeedsPassword reports whether the password must be prompted for.
func (d *Device) NeedsPassword() bool {
	return d.Password == "" && d.Transport.KeyFile == ""
}

// NeedsSecret reports whether the enable secret must be prompted for.
func (d *Device) NeedsSecret() bool {
	return d.Secret == "" && !d.SkipEnable
}
