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

package env

import (
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// PortVariable returns the name of the environment variable which overrides the API port
// of given agent, e.g. "server-01" gives "SERVER_01_PORT".
func PortVariable(agentName string) string {
	mapped := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return '_'
		}
		return unicode.ToUpper(r)
	}, agentName)
	return mapped + "_PORT"
}

// PortOverride returns the port set in the agent's port variable.
// The second value is false when the variable is not set.
func PortOverride(agentName string) (int, bool, error) {
	variable := PortVariable(agentName)
	value := os.Getenv(variable)
	if value == "" {
		return 0, false, nil
	}

	port, err := strconv.Atoi(value)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false, errors.Errorf("environment variable %s=%q is not a valid port", variable, value)
	}
	return port, true, nil
}
