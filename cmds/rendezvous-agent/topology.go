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

package main

import (
	"strings"

	"github.com/intelsdi-x/rendezvous/pkg/topology"
	"github.com/intelsdi-x/rendezvous/pkg/utils/netutil"
	"github.com/pkg/errors"
)

// loadTopology reads agents from --topology_file or --agent flags. Without
// either the run is single machine.
func loadTopology() (*topology.Directory, error) {
	switch {
	case topologyFileFlag.Value() != "" && len(agentFlag.Value()) > 0:
		return nil, errors.New("topology_file and agent flags are mutually exclusive")
	case topologyFileFlag.Value() != "":
		return topology.LoadFile(topologyFileFlag.Value())
	case len(agentFlag.Value()) > 0:
		return topology.ParseAgentSpecs(agentFlag.Value())
	default:
		return topology.Loopback(), nil
	}
}

// resolveSelf finds this agent in directory and decides its role.
func resolveSelf(directory *topology.Directory, name, role string) (topology.AgentDescriptor, string, error) {
	if !directory.IsMultiRole() {
		if role != "" && !strings.EqualFold(role, roleLocal) {
			return topology.AgentDescriptor{}, "", errors.Errorf("role %q requires a topology", role)
		}
		server, err := directory.ResolveOne(topology.Server)
		return server, roleLocal, err
	}

	if name == "" {
		return topology.AgentDescriptor{}, "", errors.New("agent_name is required with a topology")
	}
	self, ok := directory.Lookup(name)
	if !ok {
		return topology.AgentDescriptor{}, "", errors.Errorf("agent %q is not in topology", name)
	}
	if err := checkReachable(directory, self); err != nil {
		return topology.AgentDescriptor{}, "", err
	}
	if role == "" {
		return self, string(self.Role), nil
	}

	parsed, err := topology.ParseRole(role)
	if err != nil {
		return topology.AgentDescriptor{}, "", err
	}
	if parsed != self.Role {
		return topology.AgentDescriptor{}, "", errors.Errorf("agent %q is a %s in topology, not a %s", name, self.Role, parsed)
	}
	return self, string(parsed), nil
}

// checkReachable rejects a loopback address for self when any peer lives on another host.
func checkReachable(directory *topology.Directory, self topology.AgentDescriptor) error {
	if !netutil.IsAddrLocal(self.Address) {
		return nil
	}
	for _, peer := range directory.Agents() {
		if !netutil.IsAddrLocal(peer.Address) {
			return errors.Errorf("agent %q has loopback address %s but peer %q at %s cannot reach it", self.Name, self.Address, peer.Name, peer.Address)
		}
	}
	return nil
}
