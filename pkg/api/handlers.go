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

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intelsdi-x/rendezvous/pkg/remote"
	"github.com/intelsdi-x/rendezvous/pkg/state"
)

// maxPayloadSize limits the size of a state document.
const maxPayloadSize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type keysResponse struct {
	Keys []string `json:"keys"`
}

func (s *Server) heartbeat(c *gin.Context) {
	c.JSON(http.StatusOK, remote.HeartbeatResponse{
		Agent: s.name,
		Alive: true,
		Time:  time.Now().UTC(),
	})
}

// getOnline answers 200 once the workload accepts load and 503 before.
func (s *Server) getOnline(c *gin.Context) {
	online := s.IsOnline()
	status := http.StatusOK
	if !online {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, remote.OnlineResponse{Online: online})
}

func (s *Server) listState(c *gin.Context) {
	c.JSON(http.StatusOK, keysResponse{Keys: s.store.Keys()})
}

func (s *Server) getState(c *gin.Context) {
	doc, err := s.store.Get(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	writeMetadata(c, doc)
	c.Data(http.StatusOK, "application/json", doc.Payload)
}

func (s *Server) putState(c *gin.Context) {
	payload, ok := readPayload(c)
	if !ok {
		return
	}

	writeMetadata(c, s.store.Put(c.Param("key"), payload))
	c.Status(http.StatusOK)
}

func (s *Server) createState(c *gin.Context) {
	payload, ok := readPayload(c)
	if !ok {
		return
	}

	doc, err := s.store.Create(c.Param("key"), payload)
	if state.IsConflict(err) {
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	writeMetadata(c, doc)
	c.Status(http.StatusCreated)
}

func (s *Server) deleteState(c *gin.Context) {
	s.store.Delete(c.Param("key"))
	c.Status(http.StatusNoContent)
}

// readPayload reads a JSON request body. It writes 400 and returns false when
// the body is not JSON.
func readPayload(c *gin.Context) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, false
	}
	if !json.Valid(payload) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "state payload must be a JSON document"})
		return nil, false
	}
	return payload, true
}

func writeMetadata(c *gin.Context, doc state.Document) {
	c.Header(remote.CreatedHeader, doc.Created.UTC().Format(time.RFC3339Nano))
	c.Header("Last-Modified", doc.LastModified.UTC().Format(http.TimeFormat))
}
