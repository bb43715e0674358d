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

package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/readiness"
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	. "github.com/smartystreets/goconvey/convey"
)

func timedOut(peer string) error {
	return &readiness.Error{Peer: peer, Phase: readiness.PhaseConfiguration, Kind: readiness.TimedOut, Elapsed: time.Second}
}

func malformed(peer string) error {
	return &readiness.Error{Peer: peer, Phase: readiness.PhaseHeartbeat, Kind: readiness.Malformed}
}

func newOrchestrator(attempts int) *Orchestrator {
	o, err := New(Config{Attempts: attempts}, nil)
	if err != nil {
		panic(err)
	}
	return o
}

func TestRun(t *testing.T) {
	Convey("While running a retried workflow", t, func() {
		ctx := context.Background()
		var attempts, workloadRuns int32

		Convey("Timeout in the first attempt is followed by exactly one workload run", func() {
			err := newOrchestrator(3).Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				if attempt == 1 {
					return timedOut("server01")
				}
				atomic.AddInt32(&workloadRuns, 1)
				return nil
			})

			So(err, ShouldBeNil)
			So(atomic.LoadInt32(&attempts), ShouldEqual, 2)
			So(atomic.LoadInt32(&workloadRuns), ShouldEqual, 1)
		})

		Convey("Malformed response is attempted once whatever the attempt budget", func() {
			err := newOrchestrator(5).Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				return malformed("server01")
			})

			So(atomic.LoadInt32(&attempts), ShouldEqual, 1)
			kind, ok := readiness.KindOf(err)
			So(ok, ShouldBeTrue)
			So(kind, ShouldEqual, readiness.Malformed)
		})

		Convey("Rejected remote call is attempted once", func() {
			err := newOrchestrator(3).Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				return &remote.Error{Op: "PutState", Kind: remote.Rejected, StatusCode: 403}
			})

			So(err, ShouldNotBeNil)
			So(atomic.LoadInt32(&attempts), ShouldEqual, 1)
		})

		Convey("Permanent errors are not retried", func() {
			err := newOrchestrator(3).Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				return Permanent(errors.New("bad workload command"))
			})

			So(IsPermanent(err), ShouldBeTrue)
			So(atomic.LoadInt32(&attempts), ShouldEqual, 1)
		})

		Convey("Exhausted attempts surface the last failure with its phase", func() {
			err := newOrchestrator(3).Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				return timedOut("server01")
			})

			So(atomic.LoadInt32(&attempts), ShouldEqual, 3)

			var workflowErr *Error
			So(errors.As(err, &workflowErr), ShouldBeTrue)
			So(workflowErr.Attempts, ShouldEqual, 3)
			So(workflowErr.Peer, ShouldEqual, "server01")

			var readinessErr *readiness.Error
			So(errors.As(err, &readinessErr), ShouldBeTrue)
			So(readinessErr.Phase, ShouldEqual, readiness.PhaseConfiguration)
			So(err.Error(), ShouldContainSubstring, "configuration phase timed out")
		})

		Convey("Cancellation stops further attempts", func() {
			ctx, cancel := context.WithCancel(ctx)
			err := newOrchestrator(3).Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				cancel()
				return &readiness.Error{Peer: "server01", Kind: readiness.Cancelled, Err: ctx.Err()}
			})

			So(atomic.LoadInt32(&attempts), ShouldEqual, 1)
			kind, _ := readiness.KindOf(err)
			So(kind, ShouldEqual, readiness.Cancelled)
		})

		Convey("Attempts are spaced by the retry delay", func() {
			o, err := New(Config{Attempts: 3, RetryDelay: 30 * time.Millisecond}, nil)
			So(err, ShouldBeNil)

			outcome := o.Outcome(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				return timedOut("server01")
			})

			So(outcome.Succeeded(), ShouldBeFalse)
			So(outcome.Attempts, ShouldEqual, 3)
			So(outcome.Elapsed, ShouldBeGreaterThanOrEqualTo, 60*time.Millisecond)
		})

		Convey("Nothing is attempted when the context is already done", func() {
			ctx, cancel := context.WithCancel(ctx)
			cancel()

			outcome := newOrchestrator(3).Outcome(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				return nil
			})

			So(atomic.LoadInt32(&attempts), ShouldEqual, 0)
			So(outcome.Attempts, ShouldEqual, 0)
			So(errors.Is(outcome.Err, context.Canceled), ShouldBeTrue)
		})

		Convey("Retry delay is interrupted by cancellation", func() {
			o, err := New(Config{Attempts: 3, RetryDelay: time.Hour}, nil)
			So(err, ShouldBeNil)

			ctx, cancel := context.WithCancel(ctx)
			start := time.Now()
			err = o.Run(ctx, "server01", func(ctx context.Context, attempt int) error {
				atomic.AddInt32(&attempts, 1)
				go func() {
					time.Sleep(20 * time.Millisecond)
					cancel()
				}()
				return timedOut("server01")
			})

			So(err, ShouldNotBeNil)
			So(time.Since(start), ShouldBeLessThan, 5*time.Second)
			So(atomic.LoadInt32(&attempts), ShouldEqual, 1)
			kind, _ := readiness.KindOf(err)
			So(kind, ShouldEqual, readiness.TimedOut)
		})
	})
}

func TestRunAll(t *testing.T) {
	Convey("While running workflows against many peers", t, func() {
		o := newOrchestrator(2)
		var fastDone time.Duration
		start := time.Now()

		outcomes, err := o.RunAll(context.Background(), []string{"slow", "fast"}, func(ctx context.Context, peer string, attempt int) error {
			if peer == "slow" {
				time.Sleep(200 * time.Millisecond)
				return timedOut(peer)
			}
			fastDone = time.Since(start)
			return nil
		})

		Convey("The successful peer does not wait for the failing one", func() {
			So(fastDone, ShouldBeLessThan, 200*time.Millisecond)
		})

		Convey("Every outcome is reported in peer order", func() {
			So(outcomes, ShouldHaveLength, 2)
			So(outcomes[0].Peer, ShouldEqual, "slow")
			So(outcomes[0].Succeeded(), ShouldBeFalse)
			So(outcomes[0].Attempts, ShouldEqual, 2)
			So(outcomes[1].Peer, ShouldEqual, "fast")
			So(outcomes[1].Succeeded(), ShouldBeTrue)
			So(outcomes[1].Attempts, ShouldEqual, 1)
		})

		Convey("The consolidated error names the failing peer", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, `"slow"`)
			So(err.Error(), ShouldNotContainSubstring, `"fast"`)
		})
	})

	Convey("No error is returned when every peer succeeds", t, func() {
		outcomes, err := newOrchestrator(1).RunAll(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, peer string, attempt int) error {
			return nil
		})
		So(err, ShouldBeNil)
		So(outcomes, ShouldHaveLength, 3)
	})
}

func TestRetryable(t *testing.T) {
	Convey("Retry decisions follow the error kind", t, func() {
		So(Retryable(timedOut("p")), ShouldBeTrue)
		So(Retryable(malformed("p")), ShouldBeFalse)
		So(Retryable(&readiness.Error{Kind: readiness.Rejected}), ShouldBeFalse)
		So(Retryable(&readiness.Error{Kind: readiness.Cancelled}), ShouldBeFalse)
		So(Retryable(&remote.Error{Kind: remote.Unreachable}), ShouldBeTrue)
		So(Retryable(&remote.Error{Kind: remote.Malformed}), ShouldBeFalse)
		So(Retryable(errors.New("workload exited with status 1")), ShouldBeTrue)
		So(Retryable(Permanent(errors.New("invalid template"))), ShouldBeFalse)
		So(Retryable(context.Canceled), ShouldBeFalse)
		So(Retryable(nil), ShouldBeFalse)
	})

	Convey("Invalid policies are rejected", t, func() {
		_, err := New(Config{Attempts: 0}, nil)
		So(err, ShouldNotBeNil)
		_, err = New(Config{Attempts: 1, RetryDelay: -time.Second}, nil)
		So(err, ShouldNotBeNil)
	})
}
