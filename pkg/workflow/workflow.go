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

// Package workflow retries a whole per peer workflow from scratch on failure.
// Attempts share no state: a failed attempt is abandoned and the next one starts over.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/intelsdi-x/rendezvous/pkg/conf"
	"github.com/intelsdi-x/rendezvous/pkg/metrics"
	"github.com/intelsdi-x/rendezvous/pkg/readiness"
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	"github.com/intelsdi-x/rendezvous/pkg/utils/err_collection"
	"github.com/intelsdi-x/rendezvous/pkg/utils/errutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config of the retry policy.
type Config struct {
	Attempts   int           `help:"Number of times a whole workflow is attempted against a peer." default:"3"`
	RetryDelay time.Duration `help:"Pause between two attempts of a workflow." default:"0s"`

	flagPrefix string
}

func init() {
	DefaultConfig()
}

// DefaultConfig returns configuration from flags, environment or defaults.
func DefaultConfig() Config {
	config := Config{flagPrefix: "workflow"}
	errutil.CheckWithContext(conf.Process(&config), "cannot register workflow flags")
	return config
}

// Func is one attempt of a workflow. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// PeerFunc is one attempt of a workflow against peer.
type PeerFunc func(ctx context.Context, peer string, attempt int) error

// Error is the failure of a workflow after its last attempt.
type Error struct {
	Peer     string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("workflow against peer %q failed after %d attempt(s): %v", e.Peer, e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e *Error) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that the workflow is not attempted again.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent tells if err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retryable tells if another attempt may succeed where err failed. Timeouts and
// transport failures are retried. Malformed responses, rejected requests,
// cancellation and errors marked Permanent are not.
func Retryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if kind, ok := readiness.KindOf(err); ok {
		return kind == readiness.TimedOut
	}
	if kind, ok := remote.KindOf(err); ok {
		return kind != remote.Malformed && kind != remote.Rejected
	}
	return true
}

// Outcome of a workflow against one peer.
type Outcome struct {
	Peer     string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Succeeded tells if the workflow eventually succeeded.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Orchestrator runs workflows under the retry policy.
type Orchestrator struct {
	config  Config
	metrics *metrics.Metrics
}

// New returns Orchestrator. Metrics are optional.
func New(config Config, m *metrics.Metrics) (*Orchestrator, error) {
	if config.Attempts < 1 {
		return nil, errors.Errorf("workflow attempts must be at least 1, got %d", config.Attempts)
	}
	if config.RetryDelay < 0 {
		return nil, errors.Errorf("workflow retry delay must not be negative, got %s", config.RetryDelay)
	}
	return &Orchestrator{config: config, metrics: m}, nil
}

// Run attempts fn until it succeeds, fails with an error that is not
// Retryable, attempts are exhausted or ctx is done. The last error is
// returned wrapped in *Error.
func (o *Orchestrator) Run(ctx context.Context, peer string, fn Func) error {
	outcome := o.run(ctx, peer, fn)
	return outcome.Err
}

// Outcome is Run reporting attempts and elapsed time along with the error.
func (o *Orchestrator) Outcome(ctx context.Context, peer string, fn Func) Outcome {
	return o.run(ctx, peer, fn)
}

func (o *Orchestrator) run(ctx context.Context, peer string, fn Func) Outcome {
	start := time.Now()
	log := logrus.WithField("peer", peer)

	attempt := 0
	var lastErr error
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if !Retryable(lastErr) {
			o.metrics.ObserveAttempt(peer, "aborted")
			log.Errorf("Workflow attempt %d/%d failed and will not be retried: %v", attempt, o.config.Attempts, lastErr)
			return backoff.Permanent(lastErr)
		}
		o.metrics.ObserveAttempt(peer, "failed")
		log.Warnf("Workflow attempt %d/%d failed: %v", attempt, o.config.Attempts, lastErr)
		return lastErr
	}

	err := backoff.Retry(operation, o.policy(ctx))
	if err == nil {
		o.metrics.ObserveAttempt(peer, "succeeded")
		log.Debugf("Workflow succeeded in attempt %d/%d", attempt, o.config.Attempts)
		return Outcome{Peer: peer, Attempts: attempt, Elapsed: time.Since(start)}
	}

	// Cancellation during the retry delay surfaces as ctx.Err(), the attempt's failure is more telling.
	if lastErr != nil {
		err = lastErr
	}
	return Outcome{
		Peer:     peer,
		Attempts: attempt,
		Elapsed:  time.Since(start),
		Err:      &Error{Peer: peer, Attempts: attempt, Err: err},
	}
}

// policy allows Attempts calls of the operation, RetryDelay apart, while ctx is not done.
func (o *Orchestrator) policy(ctx context.Context) backoff.BackOffContext {
	retries := backoff.WithMaxRetries(backoff.NewConstantBackOff(o.config.RetryDelay), uint64(o.config.Attempts-1))
	return backoff.WithContext(retries, ctx)
}

// RunAll runs one retried workflow per peer concurrently and waits for all of
// them. Outcomes are returned in peers order. The error consolidates every
// failed peer and is nil when all succeeded.
func (o *Orchestrator) RunAll(ctx context.Context, peers []string, fn PeerFunc) ([]Outcome, error) {
	outcomes := make([]Outcome, len(peers))

	var wg sync.WaitGroup
	for i, peer := range peers {
		wg.Add(1)
		go func(i int, peer string) {
			defer wg.Done()
			outcomes[i] = o.run(ctx, peer, func(ctx context.Context, attempt int) error {
				return fn(ctx, peer, attempt)
			})
		}(i, peer)
	}
	wg.Wait()

	var errCollection errcollection.ErrorCollection
	for _, outcome := range outcomes {
		errCollection.Add(outcome.Err)
	}
	return outcomes, errCollection.GetErrIfAny()
}
