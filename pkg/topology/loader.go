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

package topology

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// agentEntry is the on disk form of AgentDescriptor.
type agentEntry struct {
	Name    string `yaml:"name" toml:"name"`
	Address string `yaml:"address" toml:"address"`
	Role    string `yaml:"role" toml:"role"`
}

type topologyFile struct {
	Agents []agentEntry `yaml:"agents" toml:"agents"`
}

// LoadFile reads a topology file. The format is chosen by extension:
// .yaml/.yml for YAML and .toml for TOML.
//
//	agents:
//	  - name: client01
//	    address: 10.0.0.1
//	    role: client
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read topology file %q", path)
	}

	var file topologyFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrapf(err, "cannot parse topology file %q", path)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, errors.Wrapf(err, "cannot parse topology file %q", path)
		}
	default:
		return nil, errors.Errorf("unsupported topology file extension %q", ext)
	}

	agents, err := fromEntries(file.Agents)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid topology file %q", path)
	}
	return New(agents)
}

// ParseAgentSpecs builds a directory from "name,address,role" values, one agent per value.
func ParseAgentSpecs(specs []string) (*Directory, error) {
	entries := make([]agentEntry, 0, len(specs))
	for i, spec := range specs {
		fields := strings.Split(spec, ",")
		if len(fields) != 3 {
			return nil, errors.Errorf("agent %d %q is not in name,address,role form", i+1, spec)
		}
		entries = append(entries, agentEntry{
			Name:    strings.TrimSpace(fields[0]),
			Address: strings.TrimSpace(fields[1]),
			Role:    fields[2],
		})
	}

	agents, err := fromEntries(entries)
	if err != nil {
		return nil, err
	}
	return New(agents)
}

func fromEntries(entries []agentEntry) ([]AgentDescriptor, error) {
	agents := make([]AgentDescriptor, 0, len(entries))
	for _, entry := range entries {
		role, err := ParseRole(entry.Role)
		if err != nil {
			return nil, errors.Wrapf(err, "agent %q", entry.Name)
		}
		agents = append(agents, AgentDescriptor{Name: entry.Name, Address: entry.Address, Role: role})
	}
	return agents, nil
}
