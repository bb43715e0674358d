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

// Package metrics instruments the coordination protocol with Prometheus collectors.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rendezvous"

// Metrics holds all collectors of an agent.
type Metrics struct {
	PollAttempts     *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	WorkflowAttempts *prometheus.CounterVec
	APIRequests      *prometheus.CounterVec
	Online           prometheus.Gauge
}

// New creates collectors and registers them in reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_attempts_total",
				Help:      "Number of readiness polls by peer, phase and outcome",
			},
			[]string{"peer", "phase", "outcome"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Time spent waiting in a readiness phase",
				Buckets:   []float64{1, 5, 15, 30, 60, 300, 600, 1800, 3600},
			},
			[]string{"phase", "result"},
		),
		WorkflowAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_attempts_total",
				Help:      "Number of workflow attempts by peer and result",
			},
			[]string{"peer", "result"},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Number of agent API requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		Online: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "online",
				Help:      "1 when the hosted workload accepts load",
			},
		),
	}
}

// ObservePoll counts one poll of peer in phase.
func (m *Metrics) ObservePoll(peer, phase, outcome string) {
	if m == nil {
		return
	}
	m.PollAttempts.WithLabelValues(peer, phase, outcome).Inc()
}

// ObservePhase records how long a phase took to finish with result.
func (m *Metrics) ObservePhase(phase, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase, result).Observe(elapsed.Seconds())
}

// ObserveAttempt counts one workflow attempt against peer.
func (m *Metrics) ObserveAttempt(peer, result string) {
	if m == nil {
		return
	}
	m.WorkflowAttempts.WithLabelValues(peer, result).Inc()
}

// ObserveRequest counts one served API request.
func (m *Metrics) ObserveRequest(route, method string, code int) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// SetOnline mirrors the online signal.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.Online.Set(1)
	} else {
		m.Online.Set(0)
	}
}

// Handler exposes collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
