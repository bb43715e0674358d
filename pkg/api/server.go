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

// Package api serves the agent HTTP surface: the state store, heartbeat,
// online signal and metrics.
package api

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intelsdi-x/rendezvous/pkg/metrics"
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	"github.com/intelsdi-x/rendezvous/pkg/state"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Config of the agent API server.
type Config struct {
	// Name of the agent, reported in heartbeats.
	Name string
	// Address to listen on, e.g. ":4500".
	Address string
	// Secret required in the X-Agent-Secret header when not empty.
	Secret string
	// Store served under /api/state. A new one is created when nil.
	Store *state.Store
	// Metrics recorded for served requests. Optional.
	Metrics *metrics.Metrics
	// Gatherer exposed under /metrics. Metrics endpoint is disabled when nil.
	Gatherer prometheus.Gatherer
}

// Server is the agent API.
type Server struct {
	name     string
	store    *state.Store
	metrics  *metrics.Metrics
	online   atomic.Bool
	started  time.Time
	engine   *gin.Engine
	http     *http.Server
	listener net.Listener
}

// New builds the API server. It does not listen until Start is called.
func New(config Config) *Server {
	store := config.Store
	if store == nil {
		store = state.NewStore()
	}

	s := &Server{
		name:    config.Name,
		store:   store,
		metrics: config.Metrics,
		started: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Keys are path escaped by clients and may contain slashes.
	router.UseRawPath = true
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(requestMetrics(config.Metrics))
	s.registerRoutes(router, config.Secret, config.Gatherer)
	s.engine = router

	s.http = &http.Server{
		Addr:              config.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes(router *gin.Engine, secret string, gatherer prometheus.Gatherer) {
	router.GET(remote.HeartbeatPath, s.heartbeat)
	if gatherer != nil {
		router.GET(remote.MetricsPath, gin.WrapH(metrics.Handler(gatherer)))
	}

	protected := router.Group("/api")
	if secret != "" {
		protected.Use(authMiddleware(secret))
	}
	protected.GET("/online", s.getOnline)
	protected.GET("/state", s.listState)
	protected.GET("/state/:key", s.getState)
	protected.PUT("/state/:key", s.putState)
	protected.POST("/state/:key", s.createState)
	protected.DELETE("/state/:key", s.deleteState)
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store returns the local state store served by the API.
func (s *Server) Store() *state.Store {
	return s.store
}

// SetOnline sets the online signal reported to peers.
func (s *Server) SetOnline(online bool) {
	s.online.Store(online)
	s.metrics.SetOnline(online)
	logrus.Debugf("Agent %q online signal set to %v", s.name, online)
}

// IsOnline returns the current online signal.
func (s *Server) IsOnline() bool {
	return s.online.Load()
}

// Start binds the listen address and serves requests in background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %q", s.http.Addr)
	}
	s.listener = listener

	go func() {
		if err := s.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("Agent API on %s stopped: %v", listener.Addr(), err)
		}
	}()
	logrus.Infof("Agent API of %q listening on %s", s.name, listener.Addr())

	return nil
}

// Addr returns the bound address. It is nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
