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

package remote

import "time"

// Paths and headers of the agent API.
const (
	StatePathPrefix = "/api/state/"
	HeartbeatPath   = "/api/heartbeat"
	OnlinePath      = "/api/online"
	MetricsPath     = "/metrics"

	SecretHeader    = "X-Agent-Secret"
	CreatedHeader   = "X-State-Created"
	RequestIDHeader = "X-Request-ID"
)

// HeartbeatResponse is the body of a heartbeat reply. Peers only look at the status code.
type HeartbeatResponse struct {
	Agent string    `json:"agent"`
	Alive bool      `json:"alive"`
	Time  time.Time `json:"time"`
}

// OnlineResponse is the body of an online signal reply. Peers only look at the
// status code: 2xx when online.
type OnlineResponse struct {
	Online bool `json:"online"`
}
