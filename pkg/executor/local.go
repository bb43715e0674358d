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

package executor

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// stopGracePeriod is how long Stop waits after SIGTERM before sending SIGKILL.
const stopGracePeriod = 5 * time.Second

// Local provisioning is responsible for providing the execution environment
// on local machine via exec.Command.
// It runs command as current user.
type Local struct {
	outputDir string
}

// NewLocal returns a Local instance writing task output under the current working directory.
func NewLocal() Local {
	return Local{}
}

// NewLocalIn returns a Local instance writing task output under outputDir.
func NewLocalIn(outputDir string) Local {
	return Local{outputDir: outputDir}
}

// Name returns user-friendly name of executor.
func (l Local) Name() string {
	return "Local Executor"
}

// Execute runs the command given as input.
// Returned Task is able to stop & monitor the provisioned process.
func (l Local) Execute(command string) (TaskHandle, error) {
	stdoutFile, stderrFile, err := createExecutorOutputFiles(l.outputDir, command, "local")
	if err != nil {
		return nil, err
	}

	logrus.Debug("Starting ", command)

	cmd := exec.Command("sh", "-c", command)
	// Separate process group lets Stop signal the shell and all its children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile

	if err := cmd.Start(); err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		return nil, errors.Wrapf(err, "command %q failed to start", command)
	}

	logrus.Debugf("Started %q with pid %d", command, cmd.Process.Pid)

	task := &localTaskHandle{
		command:    command,
		pid:        cmd.Process.Pid,
		stdoutPath: stdoutFile.Name(),
		stderrPath: stderrFile.Name(),
		done:       make(chan struct{}),
		exitCode:   -1,
	}

	// Wait for local task in goroutine.
	go func() {
		// Error is ignored, the exit status is read from the process state.
		cmd.Wait()

		status := cmd.ProcessState.Sys().(syscall.WaitStatus)
		exitCode := status.ExitStatus()
		if status.Signaled() {
			exitCode = 128 + int(status.Signal())
		}

		stdoutFile.Close()
		stderrFile.Close()

		logrus.Debugf("Ended %q with output in %q and exit code %d", command, filepath.Dir(task.stdoutPath), exitCode)

		task.mu.Lock()
		task.exitCode = exitCode
		task.mu.Unlock()
		close(task.done)
	}()

	return checkIfProcessFailedToExecute(command, l.Name(), task)
}

// localTaskHandle implements TaskHandle interface.
type localTaskHandle struct {
	command    string
	pid        int
	stdoutPath string
	stderrPath string

	done     chan struct{}
	mu       sync.Mutex
	exitCode int
}

func (t *localTaskHandle) isTerminated() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Stop terminates the process group with SIGTERM and escalates to SIGKILL after a grace period.
func (t *localTaskHandle) Stop() error {
	if t.isTerminated() {
		return nil
	}

	// The kill syscall interprets a negated PID as the process group it leads.
	logrus.Debugf("Sending SIGTERM to process group %d (%q)", t.pid, t.command)
	if err := syscall.Kill(-t.pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return errors.Wrapf(err, "cannot terminate %q", t.command)
	}

	if t.Wait(stopGracePeriod) {
		return nil
	}

	logrus.Warnf("%q did not stop within %s, sending SIGKILL", t.command, stopGracePeriod)
	if err := syscall.Kill(-t.pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return errors.Wrapf(err, "cannot kill %q", t.command)
	}
	<-t.done
	return nil
}

// Status returns a state of the task.
func (t *localTaskHandle) Status() TaskState {
	if t.isTerminated() {
		return TERMINATED
	}
	return RUNNING
}

// ExitCode returns the exit code, 128+N for tasks killed by signal N.
func (t *localTaskHandle) ExitCode() (int, error) {
	if !t.isTerminated() {
		return -1, errors.Errorf("task %q is not terminated", t.command)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode, nil
}

// StdoutFile returns a file handle for file to the task's stdout file.
func (t *localTaskHandle) StdoutFile() (*os.File, error) {
	return openOutputFile(t.stdoutPath)
}

// StderrFile returns a file handle for file to the task's stderr file.
func (t *localTaskHandle) StderrFile() (*os.File, error) {
	return openOutputFile(t.stderrPath)
}

func openOutputFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open output file %q", path)
	}
	return file, nil
}

// Wait blocks until process is terminated or timeout appeared.
// Returns true when process terminates before timeout, otherwise false.
func (t *localTaskHandle) Wait(timeout time.Duration) bool {
	if timeout == 0 {
		<-t.done
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Clean is a no-op for local tasks, output files are closed when the process ends.
func (t *localTaskHandle) Clean() error {
	return nil
}

// EraseOutput removes the task's output directory.
func (t *localTaskHandle) EraseOutput() error {
	if !t.isTerminated() {
		return errors.Errorf("cannot erase output of running task %q", t.command)
	}
	outputDir := filepath.Dir(t.stdoutPath)
	if err := os.RemoveAll(outputDir); err != nil {
		return errors.Wrapf(err, "cannot remove %q", outputDir)
	}
	return nil
}

// Address returns the address where the task runs.
func (t *localTaskHandle) Address() string {
	return "127.0.0.1"
}
