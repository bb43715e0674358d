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

// Package readiness waits for a peer agent to become usable: agent alive,
// workload online, configuration published. Phases run in strict order and
// each one polls with its own timeout.
package readiness

import (
	"context"
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/metrics"
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Peer is an agent to synchronize with.
type Peer struct {
	Name   string
	Client remote.AgentClient
}

// Plan selects phases of Await. Every phase is optional.
type Plan struct {
	Heartbeat bool
	Online    bool
	// StateKey is polled until published when not empty.
	StateKey string
}

// Result of a successful Await.
type Result struct {
	Peer string
	// Payload of StateKey, nil when the plan had no configuration phase.
	Payload []byte
	// Phases completed, in order.
	Phases []Phase
}

// Synchronizer runs readiness poll loops. It is safe for concurrent use
// by many peers' workflows.
type Synchronizer struct {
	config  Config
	metrics *metrics.Metrics
}

// New returns Synchronizer. Metrics are optional.
func New(config Config, m *metrics.Metrics) (*Synchronizer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid readiness configuration")
	}
	return &Synchronizer{config: config, metrics: m}, nil
}

// Await runs phases selected by plan against peer.
func (s *Synchronizer) Await(ctx context.Context, peer Peer, plan Plan) (Result, error) {
	result := Result{Peer: peer.Name, Phases: []Phase{}}

	if plan.Heartbeat {
		if err := s.PollHeartbeat(ctx, peer); err != nil {
			return result, err
		}
		result.Phases = append(result.Phases, PhaseHeartbeat)
	}

	if plan.Online {
		if err := s.PollOnline(ctx, peer); err != nil {
			return result, err
		}
		result.Phases = append(result.Phases, PhaseOnline)
	}

	if plan.StateKey != "" {
		payload, err := s.PollState(ctx, peer, plan.StateKey)
		if err != nil {
			return result, err
		}
		result.Payload = payload
		result.Phases = append(result.Phases, PhaseConfiguration)
	}

	return result, nil
}

// PollHeartbeat waits until peer's agent answers heartbeats.
// Transport errors mean the agent is not up yet.
func (s *Synchronizer) PollHeartbeat(ctx context.Context, peer Peer) error {
	_, err := s.poll(ctx, peer, PhaseHeartbeat, s.config.HeartbeatTimeout, func(ctx context.Context) (bool, []byte, error) {
		if err := peer.Client.Heartbeat(ctx); err != nil {
			return false, nil, err
		}
		return true, nil, nil
	})
	return err
}

// PollOnline waits until peer's workload signals it is online.
func (s *Synchronizer) PollOnline(ctx context.Context, peer Peer) error {
	_, err := s.poll(ctx, peer, PhaseOnline, s.config.OnlineTimeout, func(ctx context.Context) (bool, []byte, error) {
		online, err := peer.Client.Online(ctx)
		return online, nil, err
	})
	return err
}

// PollState waits until peer publishes key and returns its payload.
// An absent key means not published yet.
func (s *Synchronizer) PollState(ctx context.Context, peer Peer, key string) ([]byte, error) {
	return s.poll(ctx, peer, PhaseConfiguration, s.config.StateTimeout, func(ctx context.Context) (bool, []byte, error) {
		payload, err := peer.Client.GetState(ctx, key)
		if err != nil {
			return false, nil, err
		}
		return true, payload, nil
	})
}

// AwaitState polls key until predicate accepts its payload. A predicate error
// is treated as a malformed payload and stops polling.
func (s *Synchronizer) AwaitState(ctx context.Context, peer Peer, key string, predicate func(payload []byte) (bool, error)) ([]byte, error) {
	return s.awaitState(ctx, peer, PhaseState, s.config.StateTimeout, key, predicate)
}

// AwaitRun is AwaitState bounded by the run timeout instead of the state timeout.
func (s *Synchronizer) AwaitRun(ctx context.Context, peer Peer, key string, predicate func(payload []byte) (bool, error)) ([]byte, error) {
	return s.awaitState(ctx, peer, PhaseRun, s.config.RunTimeout, key, predicate)
}

func (s *Synchronizer) awaitState(ctx context.Context, peer Peer, phase Phase, timeout time.Duration, key string, predicate func(payload []byte) (bool, error)) ([]byte, error) {
	return s.poll(ctx, peer, phase, timeout, func(ctx context.Context) (bool, []byte, error) {
		payload, err := peer.Client.GetState(ctx, key)
		if err != nil {
			return false, nil, err
		}
		ok, err := predicate(payload)
		if err != nil {
			return false, nil, errors.Wrapf(err, "state %q", key)
		}
		return ok, payload, nil
	})
}

// AwaitDeleted polls key until peer no longer has it.
func (s *Synchronizer) AwaitDeleted(ctx context.Context, peer Peer, key string) error {
	_, err := s.poll(ctx, peer, PhaseState, s.config.StateTimeout, func(ctx context.Context) (bool, []byte, error) {
		_, err := peer.Client.GetState(ctx, key)
		if remote.IsNotFound(err) {
			return true, nil, nil
		}
		return false, nil, err
	})
	return err
}

// check makes one poll. It returns true with optional payload when the phase is done.
type check func(ctx context.Context) (bool, []byte, error)

// poll calls check until it reports done, the phase deadline passes, check fails
// with a non retryable error or ctx is done. No poll starts after the deadline
// and every call is bounded by it. Zero timeout means no deadline.
func (s *Synchronizer) poll(ctx context.Context, peer Peer, phase Phase, timeout time.Duration, c check) ([]byte, error) {
	start := time.Now()
	bounded := timeout > 0
	deadline := start.Add(timeout)
	interval := s.config.PollInterval
	log := logrus.WithFields(logrus.Fields{"peer": peer.Name, "phase": phase.String()})

	fail := func(kind ErrorKind, err error) ([]byte, error) {
		elapsed := time.Since(start)
		s.metrics.ObservePhase(phase.String(), kind.String(), elapsed)
		log.Debugf("Giving up after %s: %s", elapsed.Round(time.Millisecond), kind)
		return nil, &Error{Peer: peer.Name, Phase: phase, Kind: kind, Elapsed: elapsed, Err: err}
	}

	if bounded {
		log.Debugf("Waiting up to %s", timeout)
	} else {
		log.Debug("Waiting until cancelled")
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fail(Cancelled, ctx.Err())
		}
		if bounded && attempt > 1 && !time.Now().Before(deadline) {
			if lastErr == nil {
				lastErr = errors.New("peer not ready")
			}
			return fail(TimedOut, lastErr)
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if bounded {
			callCtx, cancel = context.WithDeadline(ctx, deadline)
		}
		done, payload, err := c(callCtx)
		cancel()

		if ctx.Err() != nil {
			return fail(Cancelled, ctx.Err())
		}

		switch {
		case err == nil && done:
			s.metrics.ObservePoll(peer.Name, phase.String(), "ready")
			s.metrics.ObservePhase(phase.String(), "ready", time.Since(start))
			log.Debugf("Ready after %d poll(s)", attempt)
			return payload, nil
		case err == nil:
			s.metrics.ObservePoll(peer.Name, phase.String(), "not-ready")
			lastErr = nil
		case remote.IsRetryable(err):
			kind, _ := remote.KindOf(err)
			s.metrics.ObservePoll(peer.Name, phase.String(), kind.String())
			log.Debugf("Poll %d: %v", attempt, err)
			lastErr = err
		default:
			s.metrics.ObservePoll(peer.Name, phase.String(), "fatal")
			if kind, ok := remote.KindOf(err); ok && kind == remote.Rejected {
				return fail(Rejected, err)
			}
			return fail(Malformed, err)
		}

		wait := interval
		if remaining := time.Until(deadline); bounded && remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fail(Cancelled, ctx.Err())
			case <-timer.C:
			}
		}
		interval = s.config.nextInterval(interval)
	}
}
