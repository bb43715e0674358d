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

package readiness

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Phase of readiness synchronization.
type Phase int

const (
	// PhaseHeartbeat waits for the peer agent process.
	PhaseHeartbeat Phase = iota
	// PhaseOnline waits for the workload hosted by the peer.
	PhaseOnline
	// PhaseConfiguration waits for state published by the peer.
	PhaseConfiguration
	// PhaseState waits for a state document to reach an expected value or to disappear.
	PhaseState
	// PhaseRun waits for the workload run of a peer to finish.
	PhaseRun
)

func (p Phase) String() string {
	switch p {
	case PhaseHeartbeat:
		return "heartbeat"
	case PhaseOnline:
		return "online-signal"
	case PhaseConfiguration:
		return "configuration"
	case PhaseState:
		return "state"
	case PhaseRun:
		return "run"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ErrorKind tells why synchronization stopped.
type ErrorKind int

const (
	// TimedOut means the phase deadline passed. The workflow may retry.
	TimedOut ErrorKind = iota
	// Malformed means the peer answered with something unusable. Retrying cannot help.
	Malformed
	// Cancelled means the caller gave up.
	Cancelled
	// Rejected means the peer refused the request, e.g. because of a wrong secret.
	Rejected
)

func (k ErrorKind) String() string {
	switch k {
	case TimedOut:
		return "timed out"
	case Malformed:
		return "malformed response"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error names the peer and the phase synchronization stopped at.
type Error struct {
	Peer    string
	Phase   Phase
	Kind    ErrorKind
	Elapsed time.Duration
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("peer %q: %s phase %s after %s", e.Peer, e.Phase, e.Kind, e.Elapsed.Round(time.Millisecond))
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the last underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var readinessErr *Error
	if errors.As(err, &readinessErr) {
		return readinessErr.Kind, true
	}
	return 0, false
}
