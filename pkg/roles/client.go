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
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	"github.com/intelsdi-x/rendezvous/pkg/state"
	"github.com/intelsdi-x/rendezvous/pkg/topology"
	"github.com/intelsdi-x/rendezvous/pkg/utils/err_collection"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/intelsdi-x/rendezvous/pkg/workload"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ClientSource returns a client of a peer agent. *remote.Manager implements it.
type ClientSource interface {
	GetOrCreate(agent topology.AgentDescriptor) (remote.AgentClient, error)
}

// Result of the client role against one server peer.
type Result struct {
	workflow.Outcome
	Output workload.Output
}

// ClientRole generates load against server peers.
type ClientRole struct {
	name         string
	directory    *topology.Directory
	host         Host
	clients      ClientSource
	synchronizer *readiness.Synchronizer
	orchestrator *workflow.Orchestrator
	runner       workload.Runner
}

// NewClientRole returns ClientRole of agent name. clients and synchronizer are
// not used when directory is not multi-role.
func NewClientRole(name string, directory *topology.Directory, host Host, clients ClientSource,
	synchronizer *readiness.Synchronizer, orchestrator *workflow.Orchestrator, runner workload.Runner) *ClientRole {
	return &ClientRole{
		name:         name,
		directory:    directory,
		host:         host,
		clients:      clients,
		synchronizer: synchronizer,
		orchestrator: orchestrator,
		runner:       runner,
	}
}

// Run runs the workload against every server peer and returns results in
// directory order. The error consolidates every failed peer.
func (r *ClientRole) Run(ctx context.Context) ([]Result, error) {
	publishRunState(r.host.Store(), ClientRunStateKey, state.ToolRunState{
		Status:   state.ToolRunning,
		Metadata: map[string]string{"agent": r.name},
	})

	results, err := r.run(ctx)

	verdict := "succeeded"
	if err != nil {
		verdict = "failed"
	}
	publishRunState(r.host.Store(), ClientRunStateKey, state.ToolRunState{
		Status:   state.ToolStopped,
		Metadata: map[string]string{"agent": r.name, "result": verdict},
	})
	return results, err
}

func (r *ClientRole) run(ctx context.Context) ([]Result, error) {
	if !r.directory.IsMultiRole() {
		return r.runLocal(ctx)
	}

	servers := r.directory.Resolve(topology.Server)
	if len(servers) == 0 {
		return nil, errors.New("topology has no server agents")
	}

	names := make([]string, 0, len(servers))
	agents := make(map[string]topology.AgentDescriptor, len(servers))
	for _, server := range servers {
		names = append(names, server.Name)
		agents[server.Name] = server
	}

	var mu sync.Mutex
	outputs := make(map[string]workload.Output, len(servers))

	outcomes, err := r.orchestrator.RunAll(ctx, names, func(ctx context.Context, peer string, attempt int) error {
		output, err := r.runAgainst(ctx, agents[peer], attempt)
		if err != nil {
			return err
		}
		mu.Lock()
		outputs[peer] = output
		mu.Unlock()
		return nil
	})

	results := make([]Result, 0, len(outcomes))
	for _, outcome := range outcomes {
		results = append(results, Result{Outcome: outcome, Output: outputs[outcome.Peer]})
	}
	return results, err
}

// AwaitAcknowledged blocks until every server peer acknowledged the stopped
// client run, so the client API stays up while servers still poll it.
func (r *ClientRole) AwaitAcknowledged(ctx context.Context) error {
	if !r.directory.IsMultiRole() {
		return nil
	}

	self, ok := r.directory.Lookup(r.name)
	if !ok {
		return errors.Errorf("agent %q is not in topology", r.name)
	}
	client, err := r.clients.GetOrCreate(self)
	if err != nil {
		return err
	}

	var errCollection errcollection.ErrorCollection
	for _, server := range r.directory.Resolve(topology.Server) {
		_, err := r.synchronizer.AwaitState(ctx, readiness.Peer{Name: r.name, Client: client}, AcknowledgementKey(server.Name), func([]byte) (bool, error) {
			return true, nil
		})
		errCollection.Add(err)
	}
	return errCollection.GetErrIfAny()
}

// runAgainst is one attempt of the whole sequence against a server agent.
func (r *ClientRole) runAgainst(ctx context.Context, agent topology.AgentDescriptor, attempt int) (workload.Output, error) {
	client, err := r.clients.GetOrCreate(agent)
	if err != nil {
		return workload.Output{}, workflow.Permanent(err)
	}

	logrus.Infof("Synchronizing with %s (attempt %d)", agent, attempt)
	result, err := r.synchronizer.Await(ctx, readiness.Peer{Name: agent.Name, Client: client}, readiness.Plan{
		Heartbeat: true,
		Online:    true,
		StateKey:  state.ServerConfigurationKey,
	})
	if err != nil {
		return workload.Output{}, err
	}

	configuration, err := state.DecodeServerConfiguration(result.Payload)
	if err != nil {
		return workload.Output{}, &readiness.Error{
			Peer:  agent.Name,
			Phase: readiness.PhaseConfiguration,
			Kind:  readiness.Malformed,
			Err:   err,
		}
	}

	return r.runner.Run(ctx, workload.Target{
		Peer:      agent.Name,
		Address:   agent.Address,
		Instances: configuration.Instances,
	})
}

// runLocal reads the configuration published by the in-process server role.
func (r *ClientRole) runLocal(ctx context.Context) ([]Result, error) {
	server, err := r.directory.ResolveOne(topology.Server)
	if err != nil {
		return nil, err
	}

	var output workload.Output
	outcome := r.orchestrator.Outcome(ctx, server.Name, func(ctx context.Context, attempt int) error {
		document, err := r.host.Store().Get(state.ServerConfigurationKey)
		if err != nil {
			return workflow.Permanent(errors.Wrap(err, "server configuration is not published"))
		}
		configuration, err := state.DecodeServerConfiguration(document.Payload)
		if err != nil {
			return workflow.Permanent(err)
		}

		output, err = r.runner.Run(ctx, workload.Target{
			Peer:      server.Name,
			Address:   server.Address,
			Instances: configuration.Instances,
		})
		return err
	})

	return []Result{{Outcome: outcome, Output: output}}, outcome.Err
}
