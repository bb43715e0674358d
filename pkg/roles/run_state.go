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
	"github.com/intelsdi-x/rendezvous/pkg/state"
	"github.com/sirupsen/logrus"
)

const (
	// ServerRunStateKey holds ToolRunState of the server workload.
	ServerRunStateKey = "ServerRunState"
	// ClientRunStateKey holds ToolRunState of the client run.
	ClientRunStateKey = "ClientRunState"
)

// AcknowledgementKey is written by server agent on a client agent once it saw the client run stopped.
func AcknowledgementKey(server string) string {
	return ClientRunStateKey + "/ack/" + server
}

func publishRunState(store *state.Store, key string, runState state.ToolRunState) {
	payload, err := state.Encode(runState)
	if err != nil {
		logrus.Errorf("Cannot encode %s: %v", key, err)
		return
	}
	store.Put(key, payload)
}

func isStopped(payload []byte) (bool, error) {
	runState, err := state.DecodeToolRunState(payload)
	if err != nil {
		return false, err
	}
	return runState.Status == state.ToolStopped, nil
}
