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

package runlog

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FlagsFile holds flag values of the run.
const FlagsFile = "flags.yaml"

// Run is a directory holding logs and outputs of one run.
type Run struct {
	ID      string
	Dir     string
	logFile *os.File
}

// CreateRunDir creates <baseDir>/<appName>_<runID>/ with <appName>.log inside.
func CreateRunDir(baseDir, appName, runID string) (*Run, error) {
	dir := path.Join(baseDir, fmt.Sprintf("%s_%s", appName, runID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create run directory %q", dir)
	}

	logFile, err := os.OpenFile(path.Join(dir, appName+".log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create log file in %q", dir)
	}

	return &Run{ID: runID, Dir: dir, logFile: logFile}, nil
}

// Initialize creates the run directory in the working directory and configures
// logrus to write to both the run log and stderr. Run ID is printed on stdout.
func Initialize(appName, runID string) (*Run, error) {
	pwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "cannot get working directory")
	}

	run, err := CreateRunDir(pwd, appName, runID)
	if err != nil {
		return nil, err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.100"})
	logrus.Infof("Run directory %q", run.Dir)
	logrus.SetOutput(io.MultiWriter(run.logFile, os.Stderr))

	logrus.Info("Starting ", appName, " run ", runID)
	fmt.Println(runID)
	return run, nil
}

// SaveOutput stores raw workload output of peer as <peer>.out in the run directory.
func (r *Run) SaveOutput(peer, raw string) (string, error) {
	name := strings.Map(func(c rune) rune {
		if c == filepath.Separator || c == ':' {
			return '_'
		}
		return c
	}, peer)
	outputPath := path.Join(r.Dir, name+".out")
	if err := os.WriteFile(outputPath, []byte(raw), 0644); err != nil {
		return "", errors.Wrapf(err, "cannot save output of %q", peer)
	}
	return outputPath, nil
}

// SaveFlags records flag values of the run in FlagsFile.
func (r *Run) SaveFlags(flags map[string]string) (string, error) {
	data, err := yaml.Marshal(flags)
	if err != nil {
		return "", errors.Wrap(err, "cannot encode flags")
	}
	flagsPath := path.Join(r.Dir, FlagsFile)
	if err := os.WriteFile(flagsPath, data, 0644); err != nil {
		return "", errors.Wrapf(err, "cannot save flags in %q", r.Dir)
	}
	return flagsPath, nil
}

// Close restores logging to stderr and closes the run log.
func (r *Run) Close() error {
	logrus.SetOutput(os.Stderr)
	return r.logFile.Close()
}
