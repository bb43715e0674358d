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

package workload

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"text/template"
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/executor"
	"github.com/intelsdi-x/rendezvous/pkg/isolation"
	"github.com/intelsdi-x/rendezvous/pkg/state"
	"github.com/intelsdi-x/rendezvous/pkg/utils/err_collection"
	"github.com/intelsdi-x/rendezvous/pkg/utils/netutil"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Launcher starts the server side workload.
type Launcher interface {
	fmt.Stringer
	// Launch starts every server copy and returns once all of them listen.
	Launch(ctx context.Context) (*Servers, error)
}

// Instance is the template data of a single server copy.
type Instance struct {
	Index    int
	Port     int
	Affinity string
}

// ServerLauncher launches copies of a server workload on consecutive ports.
type ServerLauncher struct {
	exec     executor.Executor
	template *template.Template
	config   Config

	waitListening func(ctx context.Context, address string, timeout time.Duration) error // For mocking purposes.
}

var _ Launcher = (*ServerLauncher)(nil)

// NewServerLauncher returns ServerLauncher for config.ServerCmd.
func NewServerLauncher(exec executor.Executor, config Config) (*ServerLauncher, error) {
	tmpl, err := parseTemplate("server", config.ServerCmd)
	if err != nil {
		return nil, err
	}
	if config.ServerCopies < 1 {
		return nil, errors.Errorf("at least one server copy is required, got %d", config.ServerCopies)
	}
	if config.ServerPort <= 0 || config.ServerPort+config.ServerCopies-1 > 65535 {
		return nil, errors.Errorf("server ports %d..%d are out of range", config.ServerPort, config.ServerPort+config.ServerCopies-1)
	}
	if config.ServerTaskset {
		for _, affinity := range config.ServerAffinity {
			if _, err := isolation.ParseCPUList(affinity); err != nil {
				return nil, errors.Wrap(err, "invalid server affinity")
			}
		}
	}
	return &ServerLauncher{
		exec:          exec,
		template:      tmpl,
		config:        config,
		waitListening: netutil.WaitListening,
	}, nil
}

func (l *ServerLauncher) String() string {
	return fmt.Sprintf("%d server copies from port %d", l.config.ServerCopies, l.config.ServerPort)
}

// Instances returns the copies Launch starts.
func (l *ServerLauncher) Instances() []Instance {
	instances := make([]Instance, 0, l.config.ServerCopies)
	for i := 0; i < l.config.ServerCopies; i++ {
		instance := Instance{Index: i, Port: l.config.ServerPort + i}
		if len(l.config.ServerAffinity) > 0 {
			instance.Affinity = l.config.ServerAffinity[i%len(l.config.ServerAffinity)]
		}
		instances = append(instances, instance)
	}
	return instances
}

func (l *ServerLauncher) command(instance Instance) (string, error) {
	command, err := render(l.template, instance)
	if err != nil {
		return "", err
	}
	decorator, err := l.decorator(instance)
	if err != nil || decorator == nil {
		return command, err
	}
	return decorator.Decorate(command), nil
}

// decorator returns nil when the copy runs undecorated.
func (l *ServerLauncher) decorator(instance Instance) (isolation.Decorator, error) {
	if !l.config.ServerTaskset || instance.Affinity == "" {
		return nil, nil
	}
	return isolation.NewTaskset(instance.Affinity)
}

// Launch implements Launcher. Copies already started are stopped when any copy fails.
func (l *ServerLauncher) Launch(ctx context.Context) (*Servers, error) {
	servers := &Servers{}

	for _, instance := range l.Instances() {
		command, err := l.command(instance)
		if err != nil {
			servers.Stop()
			return nil, workflow.Permanent(err)
		}

		logrus.Infof("Launching server copy %d: %s", instance.Index, command)
		task, err := l.exec.Execute(command)
		if err != nil {
			servers.Stop()
			return nil, errors.Wrapf(err, "cannot launch server copy %d", instance.Index)
		}

		servers.Tasks = append(servers.Tasks, task)
		servers.Configuration.Instances = append(servers.Configuration.Instances, state.ServerInstance{
			Port:     instance.Port,
			Affinity: instance.Affinity,
		})
	}

	for i, instance := range servers.Configuration.Instances {
		address := net.JoinHostPort(l.config.ServerHost, strconv.Itoa(instance.Port))
		if err := l.waitListening(ctx, address, l.config.ServerListenTimeout); err != nil {
			executor.LogUnsuccessfulExecution(fmt.Sprintf("server copy %d", i), l.exec.Name(), servers.Tasks[i])
			servers.Stop()
			return nil, errors.Wrapf(err, "server copy %d is not listening", i)
		}
	}

	return servers, nil
}

// Servers are running server copies.
type Servers struct {
	Configuration state.ServerConfiguration
	Tasks         []executor.TaskHandle
}

// Stop stops every copy.
func (s *Servers) Stop() error {
	var errCollection errcollection.ErrorCollection
	for _, task := range s.Tasks {
		errCollection.Add(task.Stop())
		errCollection.Add(task.Clean())
	}
	return errCollection.GetErrIfAny()
}

// Wait blocks until any copy terminates or ctx is done.
// It returns true when a copy terminated.
func (s *Servers) Wait(ctx context.Context) bool {
	if len(s.Tasks) == 0 {
		return true
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminated := make(chan struct{}, len(s.Tasks))
	var wg sync.WaitGroup
	for _, task := range s.Tasks {
		wg.Add(1)
		go func(task executor.TaskHandle) {
			defer wg.Done()
			if executor.WaitContext(waitCtx, task) {
				terminated <- struct{}{}
			}
		}(task)
	}

	result := false
	select {
	case <-terminated:
		result = true
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	return result
}
