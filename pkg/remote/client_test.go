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
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func testConfig() Config {
	return Config{
		CallTimeout:  2 * time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}
}

// countingServer answers every request with handler and counts requests.
func countingServer(handler http.HandlerFunc) (*httptest.Server, *int32) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		handler(w, r)
	}))
	return server, &requests
}

func TestClientState(t *testing.T) {
	Convey("While reading state from a remote agent", t, func() {
		ctx := context.Background()

		Convey("Payload is returned byte for byte", func() {
			payload := []byte("{\"instances\":[{\"port\":6100}]}\n")
			var path string
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.Write(payload)
			})
			defer server.Close()

			got, err := NewClient("server", server.URL, testConfig()).GetState(ctx, "ServerConfiguration")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, payload)
			So(path, ShouldEqual, "/api/state/ServerConfiguration")
		})

		Convey("Missing key is NotFound and is not retried by the transport", func() {
			server, requests := countingServer(func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			})
			defer server.Close()

			_, err := NewClient("server", server.URL, testConfig()).GetState(ctx, "missing")
			So(IsNotFound(err), ShouldBeTrue)
			So(IsRetryable(err), ShouldBeTrue)
			So(atomic.LoadInt32(requests), ShouldEqual, 1)
		})

		Convey("Server errors are retried and then reported as ServerError", func() {
			server, requests := countingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})
			defer server.Close()

			_, err := NewClient("server", server.URL, testConfig()).GetState(ctx, "key")
			kind, ok := KindOf(err)
			So(ok, ShouldBeTrue)
			So(kind, ShouldEqual, ServerError)
			So(IsRetryable(err), ShouldBeTrue)
			So(atomic.LoadInt32(requests), ShouldEqual, 3)
		})

		Convey("Authorization failures are Rejected without retries", func() {
			server, requests := countingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})
			defer server.Close()

			_, err := NewClient("server", server.URL, testConfig()).GetState(ctx, "key")
			kind, _ := KindOf(err)
			So(kind, ShouldEqual, Rejected)
			So(IsRetryable(err), ShouldBeFalse)
			So(atomic.LoadInt32(requests), ShouldEqual, 1)
		})

		Convey("Stopped agent is Unreachable", func() {
			server := httptest.NewServer(http.NotFoundHandler())
			url := server.URL
			server.Close()

			_, err := NewClient("server", url, testConfig()).GetState(ctx, "key")
			kind, _ := KindOf(err)
			So(kind, ShouldEqual, Unreachable)
			So(IsRetryable(err), ShouldBeTrue)
		})

		Convey("Slow agent is Timeout", func() {
			release := make(chan struct{})
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer server.Close()
			defer close(release)

			config := testConfig()
			config.CallTimeout = 100 * time.Millisecond
			config.RetryMax = 0

			_, err := NewClient("server", server.URL, config).GetState(ctx, "key")
			kind, _ := KindOf(err)
			So(kind, ShouldEqual, Timeout)
		})
	})

	Convey("While writing state to a remote agent", t, func() {
		ctx := context.Background()

		Convey("PUT sends the payload and the secret", func() {
			var body []byte
			var secret, method string
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				method = r.Method
				body, _ = io.ReadAll(r.Body)
				secret = r.Header.Get(SecretHeader)
			})
			defer server.Close()

			config := testConfig()
			config.Secret = "s3cr3t"
			So(NewClient("server", server.URL, config).PutState(ctx, "key", []byte(`{"a":1}`)), ShouldBeNil)
			So(string(body), ShouldEqual, `{"a":1}`)
			So(secret, ShouldEqual, "s3cr3t")
			So(method, ShouldEqual, http.MethodPut)
		})

		Convey("DELETE of a missing key succeeds", func() {
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			})
			defer server.Close()

			So(NewClient("server", server.URL, testConfig()).DeleteState(ctx, "key"), ShouldBeNil)
		})

		Convey("Create of an existing key is a conflict and is not retried", func() {
			server, requests := countingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			})
			defer server.Close()

			err := NewClient("server", server.URL, testConfig()).CreateState(ctx, "key", []byte("v"))
			So(IsConflict(err), ShouldBeTrue)
			So(atomic.LoadInt32(requests), ShouldEqual, 1)
		})

		Convey("GetOrCreate creates a missing key", func() {
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					http.NotFound(w, r)
				case http.MethodPost:
					w.WriteHeader(http.StatusCreated)
				}
			})
			defer server.Close()

			got, err := NewClient("server", server.URL, testConfig()).GetOrCreateState(ctx, "key", []byte("mine"))
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "mine")
		})

		Convey("GetOrCreate returns the winner's payload after a conflict", func() {
			var gets int32
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					if atomic.AddInt32(&gets, 1) == 1 {
						http.NotFound(w, r)
						return
					}
					w.Write([]byte("theirs"))
				case http.MethodPost:
					w.WriteHeader(http.StatusConflict)
				}
			})
			defer server.Close()

			got, err := NewClient("server", server.URL, testConfig()).GetOrCreateState(ctx, "key", []byte("mine"))
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "theirs")
		})
	})
}

func TestClientReadinessCalls(t *testing.T) {
	Convey("While checking readiness of a remote agent", t, func() {
		ctx := context.Background()

		Convey("Heartbeat succeeds for an alive agent", func() {
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != HeartbeatPath {
					http.NotFound(w, r)
					return
				}
				w.Write([]byte(`{"agent":"server","alive":true}`))
			})
			defer server.Close()

			So(NewClient("server", server.URL, testConfig()).Heartbeat(ctx), ShouldBeNil)
		})

		Convey("Any success status is a heartbeat whatever the body", func() {
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			defer server.Close()

			So(NewClient("server", server.URL, testConfig()).Heartbeat(ctx), ShouldBeNil)
		})

		Convey("Heartbeat failing with a server error is retryable", func() {
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})
			defer server.Close()

			err := NewClient("server", server.URL, testConfig()).Heartbeat(ctx)
			So(err, ShouldNotBeNil)
			So(IsRetryable(err), ShouldBeTrue)
		})

		Convey("Online follows the status code", func() {
			var online int32
			server, calls := countingServer(func(w http.ResponseWriter, r *http.Request) {
				if atomic.LoadInt32(&online) == 1 {
					w.WriteHeader(http.StatusOK)
					return
				}
				w.WriteHeader(http.StatusServiceUnavailable)
			})
			defer server.Close()

			client := NewClient("server", server.URL, testConfig())
			isOnline, err := client.Online(ctx)
			So(err, ShouldBeNil)
			So(isOnline, ShouldBeFalse)

			Convey("An offline answer is not retried by the transport", func() {
				So(atomic.LoadInt32(calls), ShouldEqual, 1)
			})

			Convey("A bodiless success means online", func() {
				atomic.StoreInt32(&online, 1)
				isOnline, err = client.Online(ctx)
				So(err, ShouldBeNil)
				So(isOnline, ShouldBeTrue)
			})
		})

		Convey("Online refused for a wrong secret is an error", func() {
			server, _ := countingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			})
			defer server.Close()

			_, err := NewClient("server", server.URL, testConfig()).Online(ctx)
			kind, _ := KindOf(err)
			So(kind, ShouldEqual, Rejected)
		})
	})
}

func TestIsNonTransient(t *testing.T) {
	Convey("Per method non transient statuses", t, func() {
		So(isNonTransient(http.MethodGet, http.StatusNotFound), ShouldBeTrue)
		So(isNonTransient(http.MethodDelete, http.StatusNotFound), ShouldBeFalse)
		So(isNonTransient(http.MethodPut, http.StatusConflict), ShouldBeTrue)
		So(isNonTransient(http.MethodPost, http.StatusConflict), ShouldBeTrue)
		So(isNonTransient(http.MethodGet, http.StatusConflict), ShouldBeFalse)
		So(isNonTransient(http.MethodGet, http.StatusLocked), ShouldBeTrue)
		So(isNonTransient(http.MethodGet, http.StatusNetworkAuthenticationRequired), ShouldBeTrue)
		So(isNonTransient(http.MethodGet, http.StatusServiceUnavailable), ShouldBeFalse)
	})
}
