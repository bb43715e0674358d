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

package netutil

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

const retries = 30

// IsListeningFunction is a function type for checking if tcp endpoint is responding.
type IsListeningFunction func(ctx context.Context, address string, timeout time.Duration) bool

// IsListening tries to establish TCP connection to given address in a form of `ip:port`.
// It returns true when it was able to connect to given endpoint within timeout time
// or false when timeout elapsed or ctx was cancelled.
func IsListening(ctx context.Context, address string, timeout time.Duration) bool {
	return WaitListening(ctx, address, timeout) == nil
}

// WaitListening is IsListening which tells why the endpoint was not reached.
func WaitListening(ctx context.Context, address string, timeout time.Duration) error {
	sleepTime := timeout / retries
	dialer := net.Dialer{Timeout: sleepTime}

	var lastErr error
	for i := 0; i < retries; i++ {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for %q", address)
		case <-time.After(sleepTime):
		}
	}

	return errors.Wrapf(lastErr, "%q is not listening after %s", address, timeout)
}

// IsAddrLocal returns true when given address points to local machine.
func IsAddrLocal(addr string) bool {
	if addr == "localhost" {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}
