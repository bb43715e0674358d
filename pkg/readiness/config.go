// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package readiness

import (
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/conf"
	"github.com/intelsdi-x/rendezvous/pkg/utils/errutil"
	"github.com/pkg/errors"
)

// Config of the readiness poll loops. Every phase has its own timeout.
type Config struct {
	PollInterval     time.Duration `help:"Time between two polls of a peer." default:"2s"`
	MaxPollInterval  time.Duration `help:"Upper bound of the poll interval when backoff factor is above 1." default:"10s"`
	BackoffFactor    float64       `help:"Multiplier applied to the poll interval after each poll that did not succeed. 1 keeps it fixed." default:"1"`
	HeartbeatTimeout time.Duration `help:"How long to wait for a peer agent to answer heartbeats. Peers may still be installing dependencies." default:"40m"`
	OnlineTimeout    time.Duration `help:"How long to wait for the workload of a peer to signal it is online." default:"10m"`
	StateTimeout     time.Duration `help:"How long to wait for a peer to publish state, e.g. server configuration." default:"10m"`
	RunTimeout       time.Duration `help:"How long to wait for the workload run of a peer to finish. Only cancellation ends the wait when 0." default:"0s"`

	flagPrefix string
}

func init() {
	DefaultConfig()
}

// DefaultConfig returns configuration from flags, environment or defaults.
func DefaultConfig() Config {
	config := Config{flagPrefix: "readiness"}
	errutil.CheckWithContext(conf.Process(&config), "cannot register readiness flags")
	return config
}

// Validate rejects configurations which would poll in a busy loop or never time out.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.BackoffFactor < 1 {
		return errors.Errorf("backoff factor must be at least 1, got %v", c.BackoffFactor)
	}
	if c.MaxPollInterval < c.PollInterval {
		return errors.Errorf("max poll interval %s is shorter than poll interval %s", c.MaxPollInterval, c.PollInterval)
	}
	for name, timeout := range map[string]time.Duration{
		"heartbeat": c.HeartbeatTimeout,
		"online":    c.OnlineTimeout,
		"state":     c.StateTimeout,
	} {
		if timeout <= 0 {
			return errors.Errorf("%s timeout must be positive, got %s", name, timeout)
		}
	}
	if c.RunTimeout < 0 {
		return errors.Errorf("run timeout must not be negative, got %s", c.RunTimeout)
	}
	return nil
}

// nextInterval grows interval by the backoff factor, never beyond the maximum.
func (c Config) nextInterval(interval time.Duration) time.Duration {
	next := time.Duration(float64(interval) * c.BackoffFactor)
	if next > c.MaxPollInterval {
		return c.MaxPollInterval
	}
	return next
}
