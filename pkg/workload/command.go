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
	"io"
	"text/template"

	"github.com/intelsdi-x/rendezvous/pkg/executor"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Command is a Runner executing a command line rendered from a template.
type Command struct {
	exec     executor.Executor
	template *template.Template
}

var _ Runner = (*Command)(nil)

// NewCommand returns Command running text rendered with Target through exec.
func NewCommand(exec executor.Executor, text string) (*Command, error) {
	tmpl, err := parseTemplate("workload", text)
	if err != nil {
		return nil, err
	}
	return &Command{exec: exec, template: tmpl}, nil
}

// Run implements Runner. The task is stopped when ctx is done.
// A command that cannot be rendered fails permanently. Output files of a
// failed command are left for inspection.
func (c *Command) Run(ctx context.Context, target Target) (Output, error) {
	output := Output{Target: target}

	command, err := render(c.template, target)
	if err != nil {
		return output, workflow.Permanent(err)
	}

	logrus.Infof("Running workload against %q: %s", target.Peer, command)
	task, err := c.exec.Execute(command)
	if err != nil {
		return output, errors.Wrapf(err, "cannot run workload against %q", target.Peer)
	}
	defer task.Clean()

	if !executor.WaitContext(ctx, task) {
		if err := task.Stop(); err != nil {
			logrus.Errorf("Cannot stop workload running against %q: %v", target.Peer, err)
		}
		return output, errors.Wrapf(ctx.Err(), "workload against %q interrupted", target.Peer)
	}

	exitCode, err := task.ExitCode()
	if err != nil {
		return output, errors.Wrapf(err, "cannot get exit code of workload against %q", target.Peer)
	}
	if exitCode != 0 {
		executor.LogUnsuccessfulExecution(command, c.exec.Name(), task)
		return output, errors.Errorf("workload against %q exited with code %d", target.Peer, exitCode)
	}

	raw, err := readStdout(task)
	if err != nil {
		return output, errors.Wrapf(err, "cannot read output of workload against %q", target.Peer)
	}
	output.Raw = string(raw)

	// Raw output is all that is kept of a successful run.
	if err := task.EraseOutput(); err != nil {
		logrus.Warnf("Cannot remove output files of workload against %q: %v", target.Peer, err)
	}
	return output, nil
}

func readStdout(task executor.TaskHandle) ([]byte, error) {
	stdout, err := task.StdoutFile()
	if err != nil {
		return nil, err
	}
	defer stdout.Close()
	return io.ReadAll(stdout)
}
