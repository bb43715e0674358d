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

package roles

import (
	"context"
	"sync"

	"github.com/intelsdi-x/rendezvous/pkg/readiness"
	"github.com/intelsdi-x/rendezvous/pkg/state"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/intelsdi-x/rendezvous/pkg/workload"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Host is the local agent API the roles publish through.
type Host interface {
	Store() *state.Store
	SetOnline(online bool)
}

// ServerRole hosts the server workload.
type ServerRole struct {
	name         string
	host         Host
	launcher     workload.Launcher
	orchestrator *workflow.Orchestrator

	mu      sync.Mutex
	servers *workload.Servers
}

// NewServerRole returns ServerRole of agent name.
func NewServerRole(name string, host Host, launcher workload.Launcher, orchestrator *workflow.Orchestrator) *ServerRole {
	return &ServerRole{
		name:         name,
		host:         host,
		launcher:     launcher,
		orchestrator: orchestrator,
	}
}

// Start launches the workload and publishes its configuration. Every attempt
// starts over: the online signal is lowered and copies of a previous attempt
// are stopped before launching again.
func (r *ServerRole) Start(ctx context.Context) error {
	return r.orchestrator.Run(ctx, r.name, func(ctx context.Context, attempt int) error {
		r.host.SetOnline(false)
		if err := r.stopServers(); err != nil {
			logrus.Warnf("Cannot stop server workload of previous attempt: %v", err)
		}

		logrus.Infof("Starting %s (attempt %d)", r.launcher, attempt)
		servers, err := r.launcher.Launch(ctx)
		if err != nil {
			return err
		}
		r.setServers(servers)

		payload, err := state.Encode(servers.Configuration)
		if err != nil {
			return workflow.Permanent(err)
		}
		r.host.Store().Put(state.ServerConfigurationKey, payload)
		r.publishRunState(state.ToolRunning)

		r.host.SetOnline(true)
		logrus.Infof("Server workload online: %s", payload)
		return nil
	})
}

// Wait blocks until the workload exits or ctx is done. The online signal is
// lowered in both cases.
func (r *ServerRole) Wait(ctx context.Context) error {
	servers := r.getServers()
	if servers == nil {
		return errors.New("server workload is not started")
	}

	terminated := servers.Wait(ctx)
	r.host.SetOnline(false)
	if !terminated {
		return ctx.Err()
	}
	logrus.Warn("Server workload exited")
	r.publishRunState(state.ToolStopped)
	return nil
}

// AwaitClients blocks until every client peer reports its run stopped and
// acknowledges it on the client. Waiting for the run is bounded by the run
// timeout of synchronizer and is not attempted again when it fails.
func (r *ServerRole) AwaitClients(ctx context.Context, synchronizer *readiness.Synchronizer, clients []readiness.Peer) ([]workflow.Outcome, error) {
	names := make([]string, 0, len(clients))
	byName := make(map[string]readiness.Peer, len(clients))
	for _, client := range clients {
		names = append(names, client.Name)
		byName[client.Name] = client
	}

	return r.orchestrator.RunAll(ctx, names, func(ctx context.Context, name string, attempt int) error {
		peer := byName[name]
		if _, err := synchronizer.AwaitRun(ctx, peer, ClientRunStateKey, isStopped); err != nil {
			return workflow.Permanent(err)
		}
		payload, err := state.Encode(state.ToolRunState{Status: state.ToolStopped, Metadata: map[string]string{"agent": r.name}})
		if err != nil {
			return workflow.Permanent(err)
		}
		return peer.Client.PutState(ctx, AcknowledgementKey(r.name), payload)
	})
}

// Stop lowers the online signal and stops the workload.
func (r *ServerRole) Stop() error {
	r.host.SetOnline(false)
	err := r.stopServers()
	r.publishRunState(state.ToolStopped)
	return err
}

func (r *ServerRole) publishRunState(status state.ToolStatus) {
	publishRunState(r.host.Store(), ServerRunStateKey, state.ToolRunState{
		Status:   status,
		Metadata: map[string]string{"agent": r.name, "launcher": r.launcher.String()},
	})
}

func (r *ServerRole) setServers(servers *workload.Servers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers = servers
}

func (r *ServerRole) getServers() *workload.Servers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.servers
}

func (r *ServerRole) stopServers() error {
	r.mu.Lock()
	servers := r.servers
	r.servers = nil
	r.mu.Unlock()

	if servers == nil {
		return nil
	}
	return servers.Stop()
}
