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

package remote

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/intelsdi-x/rendezvous/pkg/topology"
	"github.com/intelsdi-x/rendezvous/pkg/utils/env"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultAPIPort is the port agents serve their API on unless overridden.
const DefaultAPIPort = 4500

// Ports decides which port an agent API listens on.
type Ports struct {
	// Default port for every agent. DefaultAPIPort when zero.
	Default int
	// PerRole overrides Default for all agents of a role.
	PerRole map[topology.Role]int
}

// Resolve returns the API port of agent. An environment variable named after
// the agent (see env.PortVariable) wins over per role and default ports.
func (p Ports) Resolve(agent topology.AgentDescriptor) (int, error) {
	port, ok, err := env.PortOverride(agent.Name)
	if err != nil {
		return 0, err
	}
	if ok {
		return port, nil
	}
	if port := p.PerRole[agent.Role]; port > 0 {
		return port, nil
	}
	if p.Default > 0 {
		return p.Default, nil
	}
	return DefaultAPIPort, nil
}

// Factory creates a client for the agent reachable at baseURL.
type Factory func(agent topology.AgentDescriptor, baseURL string) AgentClient

// Manager creates clients on demand and caches them by agent name for the
// lifetime of the run.
type Manager struct {
	mu      sync.Mutex
	clients map[string]AgentClient
	ports   Ports
	factory Factory
}

// NewManager returns Manager creating HTTP clients with given config.
func NewManager(config Config, ports Ports) *Manager {
	return NewManagerWithFactory(ports, func(agent topology.AgentDescriptor, baseURL string) AgentClient {
		return NewClient(agent.Name, baseURL, config)
	})
}

// NewManagerWithFactory returns Manager using custom client factory.
func NewManagerWithFactory(ports Ports, factory Factory) *Manager {
	return &Manager{
		clients: map[string]AgentClient{},
		ports:   ports,
		factory: factory,
	}
}

// BaseURL returns API address of agent.
func (m *Manager) BaseURL(agent topology.AgentDescriptor) (string, error) {
	port, err := m.ports.Resolve(agent)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve API port of agent %q", agent.Name)
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(agent.Address, strconv.Itoa(port))), nil
}

// GetOrCreate returns the cached client of agent, creating it on first use.
// Agent names are compared case insensitively.
func (m *Manager) GetOrCreate(agent topology.AgentDescriptor) (AgentClient, error) {
	key := strings.ToLower(agent.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[key]; ok {
		return client, nil
	}

	baseURL, err := m.BaseURL(agent)
	if err != nil {
		return nil, err
	}

	client := m.factory(agent, baseURL)
	m.clients[key] = client
	logrus.Debugf("Created API client for agent %s at %s", agent, baseURL)

	return client, nil
}

// Delete evicts the cached client of agent name.
func (m *Manager) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.clients, strings.ToLower(name))
}
