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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/api"
	"github.com/intelsdi-x/rendezvous/pkg/conf"
	"github.com/intelsdi-x/rendezvous/pkg/executor"
	"github.com/intelsdi-x/rendezvous/pkg/metrics"
	"github.com/intelsdi-x/rendezvous/pkg/readiness"
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	"github.com/intelsdi-x/rendezvous/pkg/report"
	"github.com/intelsdi-x/rendezvous/pkg/roles"
	"github.com/intelsdi-x/rendezvous/pkg/runlog"
	"github.com/intelsdi-x/rendezvous/pkg/topology"
	"github.com/intelsdi-x/rendezvous/pkg/utils/errutil"
	"github.com/intelsdi-x/rendezvous/pkg/utils/uuid"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/intelsdi-x/rendezvous/pkg/workload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const roleLocal = "local"

var (
	roleFlag = conf.NewStringFlag("role",
		"Role of this agent: client, server or local. Taken from the topology entry of agent_name when empty.", "")
	agentNameFlag    = conf.NewStringFlag("agent_name", "Name of this agent in the topology.", "")
	topologyFileFlag = conf.NewStringFlag("topology_file", "YAML or TOML file listing agents of the run.", "")
	agentFlag        = conf.NewRepeatedFlag("agent",
		"Agent of the run as name,address,role. Can be specified many times (--agent=client01,10.0.0.1,client --agent=server01,10.0.0.2,server).")

	apiPortFlag       = conf.NewIntFlag("api_port", "Port agents serve their API on.", remote.DefaultAPIPort)
	clientAPIPortFlag = conf.NewIntFlag("client_api_port", "API port of client agents. api_port when 0.", 0)
	serverAPIPortFlag = conf.NewIntFlag("server_api_port", "API port of server agents. api_port when 0.", 0)
	apiSecretFlag     = conf.NewStringFlag("api_secret", "Secret agents require in the X-Agent-Secret header. API is open when empty.", "")

	clientLingerFlag = conf.NewDurationFlag("client_linger",
		"How long a client agent keeps its API up after the run waiting for servers to acknowledge it.", 2*time.Minute)
	configDumpFlag = conf.NewBoolFlag("config_dump", "Print configuration as environment script and exit.", false)
)

func main() {
	conf.SetAppName("rendezvous-agent")
	conf.SetHelp(`Agent of a multi-role benchmark. A server agent launches the server workload and publishes
its configuration, client agents wait until every server is alive, online and configured and then
generate load against it. With --role=local both roles run in this process.`)

	errutil.CheckWithContext(conf.ParseFlags(), "cannot parse flags")
	logrus.SetLevel(conf.LogLevel())

	if configDumpFlag.Value() {
		fmt.Println(conf.DumpConfig())
		return
	}

	run, err := runlog.Initialize(conf.AppName(), uuid.Short())
	errutil.CheckWithContext(err, "cannot create run directory")
	defer run.Close()

	flags := conf.GetFlags()
	if flags[apiSecretFlag.Model().Name] != "" {
		flags[apiSecretFlag.Model().Name] = "<hidden>"
	}
	if _, err := run.SaveFlags(flags); err != nil {
		logrus.Warnf("Flags of the run are not recorded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errutil.CheckWithContext(runAgent(ctx, run), "rendezvous failed")
}

func runAgent(ctx context.Context, run *runlog.Run) error {
	directory, err := loadTopology()
	if err != nil {
		return err
	}
	self, role, err := resolveSelf(directory, agentNameFlag.Value(), roleFlag.Value())
	if err != nil {
		return err
	}
	logrus.Infof("Agent %s acting as %s", self, role)

	ports := remote.Ports{
		Default: apiPortFlag.Value(),
		PerRole: map[topology.Role]int{
			topology.Client: clientAPIPortFlag.Value(),
			topology.Server: serverAPIPortFlag.Value(),
		},
	}
	port, err := ports.Resolve(self)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	host := api.New(api.Config{
		Name:     self.Name,
		Address:  fmt.Sprintf(":%d", port),
		Secret:   apiSecretFlag.Value(),
		Metrics:  m,
		Gatherer: registry,
	})
	if err := host.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := host.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("Agent API shutdown: %v", err)
		}
	}()

	remoteConfig := remote.DefaultConfig()
	remoteConfig.Secret = apiSecretFlag.Value()
	manager := remote.NewManager(remoteConfig, ports)

	synchronizer, err := readiness.New(readiness.DefaultConfig(), m)
	if err != nil {
		return err
	}
	orchestrator, err := workflow.New(workflow.DefaultConfig(), m)
	if err != nil {
		return err
	}

	exec := executor.NewLocalIn(run.Dir)
	workloadConfig := workload.DefaultConfig()

	a := &agent{
		self:         self,
		directory:    directory,
		host:         host,
		manager:      manager,
		synchronizer: synchronizer,
		orchestrator: orchestrator,
		exec:         exec,
		config:       workloadConfig,
		run:          run,
		linger:       clientLingerFlag.Value(),
	}

	switch role {
	case roleLocal:
		return a.runLocal(ctx)
	case string(topology.Server):
		return a.runServer(ctx)
	default:
		return a.runClient(ctx)
	}
}

type agent struct {
	self         topology.AgentDescriptor
	directory    *topology.Directory
	host         *api.Server
	manager      *remote.Manager
	synchronizer *readiness.Synchronizer
	orchestrator *workflow.Orchestrator
	exec         executor.Executor
	config       workload.Config
	run          *runlog.Run
	linger       time.Duration
}

func (a *agent) serverRole() (*roles.ServerRole, error) {
	launcher, err := workload.NewServerLauncher(a.exec, a.config)
	if err != nil {
		return nil, err
	}
	return roles.NewServerRole(a.self.Name, a.host, launcher, a.orchestrator), nil
}

func (a *agent) clientRole() (*roles.ClientRole, error) {
	runner, err := workload.NewCommand(a.exec, a.config.WorkloadCmd)
	if err != nil {
		return nil, err
	}
	return roles.NewClientRole(a.self.Name, a.directory, a.host, a.manager, a.synchronizer, a.orchestrator, runner), nil
}

func (a *agent) runServer(ctx context.Context) error {
	server, err := a.serverRole()
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logrus.Errorf("Cannot stop server workload: %v", err)
		}
	}()

	clients := a.directory.Resolve(topology.Client)
	if len(clients) == 0 {
		logrus.Info("No client agents in topology, serving until the workload exits")
		return server.Wait(ctx)
	}

	peers := make([]readiness.Peer, 0, len(clients))
	for _, client := range clients {
		agentClient, err := a.manager.GetOrCreate(client)
		if err != nil {
			return err
		}
		peers = append(peers, readiness.Peer{Name: client.Name, Client: agentClient})
	}

	outcomes, err := server.AwaitClients(ctx, a.synchronizer, peers)
	report.Write(os.Stdout, "Client runs", outcomes)
	return err
}

func (a *agent) runClient(ctx context.Context) error {
	client, err := a.clientRole()
	if err != nil {
		return err
	}

	results, err := client.Run(ctx)
	a.report(results)

	lingerCtx, cancel := context.WithTimeout(ctx, a.linger)
	defer cancel()
	if ackErr := client.AwaitAcknowledged(lingerCtx); ackErr != nil {
		logrus.Warnf("Not every server acknowledged the run: %v", ackErr)
	}
	return err
}

func (a *agent) runLocal(ctx context.Context) error {
	server, err := a.serverRole()
	if err != nil {
		return err
	}
	client, err := a.clientRole()
	if err != nil {
		return err
	}

	results, err := roles.Local{Server: server, Client: client}.Run(ctx)
	a.report(results)
	return err
}

func (a *agent) report(results []roles.Result) {
	outcomes := make([]workflow.Outcome, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, result.Outcome)
		if !result.Succeeded() {
			continue
		}
		outputPath, err := a.run.SaveOutput(result.Peer, result.Output.Raw)
		if err != nil {
			logrus.Errorf("%v", err)
			continue
		}
		logrus.Infof("Output of workload against %q saved in %q", result.Peer, outputPath)
	}
	report.Write(os.Stdout, "Workload runs", outcomes)
}
