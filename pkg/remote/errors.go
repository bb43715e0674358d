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

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies remote call failures. Callers decide whether to retry based on Kind.
type Kind int

const (
	// Unreachable means the agent could not be contacted (connection refused, DNS failure, reset).
	Unreachable Kind = iota
	// Timeout means the call did not complete within the per call timeout.
	Timeout
	// ServerError is a transient non success response (5xx, 429).
	ServerError
	// NotFound means the requested state key is absent.
	NotFound
	// Rejected is a non transient response: bad request, authorization failure, conflict.
	Rejected
	// Malformed means the agent answered with something that is not the agent protocol.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	case ServerError:
		return "server error"
	case NotFound:
		return "not found"
	case Rejected:
		return "rejected"
	case Malformed:
		return "malformed response"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every AgentClient call.
type Error struct {
	Op         string
	URL        string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Kind, true
	}
	return 0, false
}

// IsRetryable tells if a later call may succeed where this one failed.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case Unreachable, Timeout, ServerError, NotFound:
		return true
	}
	return false
}

// IsNotFound tells if err means the state key is absent.
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == NotFound
}

// IsConflict tells if err is a create of an already existing key.
func IsConflict(err error) bool {
	var remoteErr *Error
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusConflict
}

func transportError(op, url string, err error) *Error {
	kind := Unreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = Timeout
	}
	return &Error{Op: op, URL: url, Kind: kind, Err: err}
}

// nonTransientCodes are never retried by the transport, whatever the method.
var nonTransientCodes = map[int]bool{
	http.StatusBadRequest:                    true,
	http.StatusUnauthorized:                  true,
	http.StatusForbidden:                     true,
	http.StatusLocked:                        true,
	http.StatusHTTPVersionNotSupported:       true,
	http.StatusNetworkAuthenticationRequired: true,
}

// isNonTransient reports status codes which repeating the same request cannot fix.
func isNonTransient(method string, statusCode int) bool {
	if nonTransientCodes[statusCode] {
		return true
	}
	switch method {
	case http.MethodGet:
		return statusCode == http.StatusNotFound
	case http.MethodPut, http.MethodPost:
		return statusCode == http.StatusConflict
	}
	return false
}

// classifyStatus maps a non success status to Kind.
func classifyStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusNotFound:
		return NotFound
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusRequestTimeout:
		return ServerError
	case nonTransientCodes[statusCode], statusCode == http.StatusConflict:
		return Rejected
	case statusCode >= 500:
		return ServerError
	}
	return Rejected
}
