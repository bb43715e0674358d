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
	"bufio"
	"math/rand"
	"os"
	"strings"

	"github.com/intelsdi-x/rendezvous/pkg/utils/fs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// outputTailLines is the number of stdout and stderr lines logged for failed tasks.
const outputTailLines = 5

// checkIfProcessFailedToExecute should be checked in the end of Execute(cmd) method.
// It checks if command execution failed and returns nil handle and error.
// If task is still running or exit code is equal to 0, it returns the handle.
//
// Commands usually fail because wrong parameters or binary that should be executed is not installed properly.
func checkIfProcessFailedToExecute(command string, executorName string, handle TaskHandle) (TaskHandle, error) {
	if handle.Status() != TERMINATED {
		return handle, nil
	}

	exitCode, err := handle.ExitCode()
	if err != nil {
		LogUnsuccessfulExecution(command, executorName, handle)
		return nil, errors.Wrapf(err, "task %q launched on %q failed, cannot get exit code", command, executorName)
	}
	if exitCode != 0 {
		LogUnsuccessfulExecution(command, executorName, handle)
		return nil, errors.Errorf("task %q launched on %q failed with exit code %d", command, executorName, exitCode)
	}

	logrus.Debugf("task %q launched on %q has ended successfully", command, executorName)
	return handle, nil
}

// LogUnsuccessfulExecution logs output file names and their last lines for a failed task.
func LogUnsuccessfulExecution(whatWasExecuted string, whereWasExecuted string, handle TaskHandle) {
	id := rand.Intn(9999)
	logrus.Errorf("%4d Command %q might have ended prematurely on %q on address %q", id, whatWasExecuted, whereWasExecuted, handle.Address())

	for name, open := range map[string]func() (string, error){
		"stdout": fileName(handle.StdoutFile),
		"stderr": fileName(handle.StderrFile),
	} {
		path, err := open()
		if err != nil {
			logrus.Errorf("%4d Could not read %s file name: %v", id, name, err)
			continue
		}
		tail, err := fs.ReadTail(path, outputTailLines)
		if err != nil {
			tail = err.Error()
		}
		logrus.Errorf("%4d %s stored in %q, last %d lines:", id, name, path, outputTailLines)
		ErrorLogLines(tail, id)
	}

	if exitCode, err := handle.ExitCode(); err == nil {
		logrus.Errorf("%4d Exit code: %d", id, exitCode)
	}
}

func fileName(open func() (*os.File, error)) func() (string, error) {
	return func() (string, error) {
		file, err := open()
		if err != nil {
			return "", err
		}
		defer file.Close()
		return file.Name(), nil
	}
}

// ErrorLogLines logs every line of text separately prefixed with logID,
// since logrus does not support multi-line logs.
func ErrorLogLines(text string, logID int) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		logrus.Errorf("%4d %s", logID, scanner.Text())
	}
}
