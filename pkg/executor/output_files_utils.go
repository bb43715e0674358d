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
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

func getBinaryNameFromCommand(command string) (string, error) {
	argsSplit := strings.Fields(command)
	if len(argsSplit) == 0 {
		return "", errors.Errorf("failed to extract command name from %q", command)
	}
	return filepath.Base(argsSplit[0]), nil
}

// createExecutorOutputFiles creates <baseDir>/<prefix>_<binary>_<random>/{stdout,stderr}.
// Empty baseDir means the current working directory.
func createExecutorOutputFiles(baseDir, command, prefix string) (stdout, stderr *os.File, err error) {
	if len(strings.TrimSpace(command)) == 0 {
		return nil, nil, errors.New("empty command string")
	}

	commandName, err := getBinaryNameFromCommand(command)
	if err != nil {
		return nil, nil, err
	}

	if baseDir == "" {
		baseDir, err = os.Getwd()
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to get working directory")
		}
	}
	outputDir, err := os.MkdirTemp(baseDir, prefix+"_"+commandName+"_")
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create output directory for %q", commandName)
	}

	stdoutFileName := path.Join(outputDir, "stdout")
	stdout, err = os.Create(stdoutFileName)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create %q", stdoutFileName)
	}

	stderrFileName := path.Join(outputDir, "stderr")
	stderr, err = os.Create(stderrFileName)
	if err != nil {
		stdout.Close()
		os.Remove(stdoutFileName)
		return nil, nil, errors.Wrapf(err, "failed to create %q", stderrFileName)
	}

	return stdout, stderr, nil
}
