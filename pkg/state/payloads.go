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

package state

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ServerConfigurationKey is the key the server role publishes its configuration under.
const ServerConfigurationKey = "ServerConfiguration"

// ServerInstance describes one running copy of the server workload.
type ServerInstance struct {
	Port     int    `json:"port"`
	Affinity string `json:"affinity,omitempty"`
}

// ServerConfiguration is published by the server role once its listeners are bound.
// Instances are listed in the order they were started.
type ServerConfiguration struct {
	Instances []ServerInstance `json:"instances"`
}

// Validate checks that configuration describes at least one reachable instance.
func (c ServerConfiguration) Validate() error {
	if len(c.Instances) == 0 {
		return errors.New("server configuration lists no instances")
	}
	for i, instance := range c.Instances {
		if instance.Port <= 0 || instance.Port > 65535 {
			return errors.Errorf("server instance %d has invalid port %d", i, instance.Port)
		}
	}
	return nil
}

// DecodeServerConfiguration unmarshals and validates published configuration.
func DecodeServerConfiguration(payload []byte) (ServerConfiguration, error) {
	var config ServerConfiguration
	if err := json.Unmarshal(payload, &config); err != nil {
		return ServerConfiguration{}, errors.Wrap(err, "cannot decode server configuration")
	}
	if err := config.Validate(); err != nil {
		return ServerConfiguration{}, err
	}
	return config, nil
}

// ToolStatus is the lifecycle state of an auxiliary tool process.
type ToolStatus string

const (
	// ToolRunning means the tool process is up.
	ToolRunning ToolStatus = "Running"
	// ToolStopped is the terminal state.
	ToolStopped ToolStatus = "Stopped"
)

// ToolRunState lets a remote peer follow a long lived tool process, e.g. a network
// traffic generator, until it stops.
type ToolRunState struct {
	Status   ToolStatus        `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DecodeToolRunState unmarshals tool state and rejects unknown statuses.
func DecodeToolRunState(payload []byte) (ToolRunState, error) {
	var toolState ToolRunState
	if err := json.Unmarshal(payload, &toolState); err != nil {
		return ToolRunState{}, errors.Wrap(err, "cannot decode tool run state")
	}
	switch toolState.Status {
	case ToolRunning, ToolStopped:
		return toolState, nil
	default:
		return ToolRunState{}, errors.Errorf("unknown tool status %q", toolState.Status)
	}
}

// Encode marshals v for publishing.
func Encode(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode state payload")
	}
	return payload, nil
}
