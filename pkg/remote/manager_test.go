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
	"os"
	"testing"

	"github.com/intelsdi-x/rendezvous/pkg/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortsResolve(t *testing.T) {
	server := topology.AgentDescriptor{Name: "server01", Address: "10.0.0.2", Role: topology.Server}
	client := topology.AgentDescriptor{Name: "client01", Address: "10.0.0.1", Role: topology.Client}
	ports := Ports{Default: 5000, PerRole: map[topology.Role]int{topology.Server: 5001}}

	port, err := ports.Resolve(client)
	require.NoError(t, err)
	assert.Equal(t, 5000, port)

	port, err = ports.Resolve(server)
	require.NoError(t, err)
	assert.Equal(t, 5001, port)

	os.Setenv("SERVER01_PORT", "5002")
	defer os.Unsetenv("SERVER01_PORT")
	port, err = ports.Resolve(server)
	require.NoError(t, err)
	assert.Equal(t, 5002, port)

	port, err = Ports{}.Resolve(client)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIPort, port)
}

func TestManagerCachesClients(t *testing.T) {
	created := 0
	manager := NewManagerWithFactory(Ports{}, func(agent topology.AgentDescriptor, baseURL string) AgentClient {
		created++
		return NewClient(agent.Name, baseURL, testConfig())
	})
	agent := topology.AgentDescriptor{Name: "Server01", Address: "10.0.0.2", Role: topology.Server}

	first, err := manager.GetOrCreate(agent)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:4500", first.BaseURL())

	agent.Name = "SERVER01"
	second, err := manager.GetOrCreate(agent)
	require.NoError(t, err)
	assert.True(t, first == second)
	assert.Equal(t, 1, created)

	manager.Delete("server01")
	_, err = manager.GetOrCreate(agent)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestManagerFormatsIPv6Addresses(t *testing.T) {
	manager := NewManager(testConfig(), Ports{Default: 4501})
	client, err := manager.GetOrCreate(topology.AgentDescriptor{Name: "v6", Address: "::1", Role: topology.Client})
	require.NoError(t, err)
	assert.Equal(t, "http://[::1]:4501", client.BaseURL())
}
