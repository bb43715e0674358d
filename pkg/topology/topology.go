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

// Package topology describes the agents taking part in a run.
// A Directory is built once at startup and never mutated.
package topology

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Role of an agent in a client/server benchmark.
type Role string

const (
	// Client role generates load.
	Client Role = "Client"
	// Server role hosts the workload under test.
	Server Role = "Server"
)

// ParseRole converts case insensitive role name into Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "client":
		return Client, nil
	case "server":
		return Server, nil
	}
	return "", errors.Errorf("unknown role %q (expected client or server)", name)
}

// AgentDescriptor identifies one agent process.
type AgentDescriptor struct {
	Name    string
	Address string
	Role    Role
}

func (a AgentDescriptor) String() string {
	return fmt.Sprintf("%s(%s@%s)", a.Name, a.Role, a.Address)
}

// TopologyError is returned when the directory does not have the expected shape.
type TopologyError struct {
	Role  Role
	Found int
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("expected exactly one %s agent in topology, found %d", e.Role, e.Found)
}

// Directory is the immutable set of agents in a run, in definition order.
type Directory struct {
	agents     []AgentDescriptor
	multiRole  bool
	byLowerKey map[string]int
}

// New validates agents and builds a multi-role Directory.
// Names must be unique (case insensitive) and addresses non empty.
func New(agents []AgentDescriptor) (*Directory, error) {
	if len(agents) == 0 {
		return nil, errors.New("topology has no agents")
	}

	d := &Directory{
		agents:     make([]AgentDescriptor, 0, len(agents)),
		multiRole:  true,
		byLowerKey: map[string]int{},
	}
	for i, agent := range agents {
		if agent.Name == "" {
			return nil, errors.Errorf("agent %d has no name", i)
		}
		if agent.Address == "" {
			return nil, errors.Errorf("agent %q has no address", agent.Name)
		}
		if agent.Role != Client && agent.Role != Server {
			return nil, errors.Errorf("agent %q has unknown role %q", agent.Name, agent.Role)
		}

		key := strings.ToLower(agent.Name)
		if _, exists := d.byLowerKey[key]; exists {
			return nil, errors.Errorf("agent name %q is defined more than once", agent.Name)
		}
		d.byLowerKey[key] = len(d.agents)
		d.agents = append(d.agents, agent)
	}

	return d, nil
}

// Loopback returns the single machine directory: one implicit client and
// one implicit server agent on the local host.
func Loopback() *Directory {
	d, err := New([]AgentDescriptor{
		{Name: "client", Address: "127.0.0.1", Role: Client},
		{Name: "server", Address: "127.0.0.1", Role: Server},
	})
	if err != nil {
		panic(err)
	}
	d.multiRole = false
	return d
}

// IsMultiRole returns false for the loopback directory.
// Readiness synchronization is skipped when it is false.
func (d *Directory) IsMultiRole() bool {
	return d.multiRole
}

// Agents returns all agents in definition order.
func (d *Directory) Agents() []AgentDescriptor {
	return append([]AgentDescriptor{}, d.agents...)
}

// Resolve returns agents of given role in definition order.
func (d *Directory) Resolve(role Role) []AgentDescriptor {
	resolved := []AgentDescriptor{}
	for _, agent := range d.agents {
		if agent.Role == role {
			resolved = append(resolved, agent)
		}
	}
	return resolved
}

// ResolveOne returns the only agent of given role or *TopologyError.
func (d *Directory) ResolveOne(role Role) (AgentDescriptor, error) {
	resolved := d.Resolve(role)
	if len(resolved) != 1 {
		return AgentDescriptor{}, &TopologyError{Role: role, Found: len(resolved)}
	}
	return resolved[0], nil
}

// Lookup finds agent by case insensitive name.
func (d *Directory) Lookup(name string) (AgentDescriptor, bool) {
	i, ok := d.byLowerKey[strings.ToLower(name)]
	if !ok {
		return AgentDescriptor{}, false
	}
	return d.agents[i], true
}
