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
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/intelsdi-x/rendezvous/pkg/utils/uuid"
	"github.com/pkg/errors"
)

// maxErrorBody limits how much of an error response body ends up in an error message.
const maxErrorBody = 256

// AgentClient is a handle to one remote agent.
type AgentClient interface {
	// GetState returns the payload stored under key or a NotFound error.
	GetState(ctx context.Context, key string) ([]byte, error)
	// PutState overwrites the document under key.
	PutState(ctx context.Context, key string, payload []byte) error
	// CreateState stores payload only if key is absent. IsConflict(err) is true otherwise.
	CreateState(ctx context.Context, key string, payload []byte) error
	// DeleteState removes key. Deleting an absent key succeeds.
	DeleteState(ctx context.Context, key string) error
	// GetOrCreateState returns the stored payload, creating it from payload when absent.
	GetOrCreateState(ctx context.Context, key string, payload []byte) ([]byte, error)
	// Heartbeat returns nil when the agent process is alive.
	Heartbeat(ctx context.Context) error
	// Online reports whether the workload hosted by the agent accepts load.
	Online(ctx context.Context) (bool, error)
	// BaseURL returns the agent API address.
	BaseURL() string
}

// Client is an AgentClient talking HTTP to the agent API.
type Client struct {
	name    string
	baseURL string
	secret  string
	timeout time.Duration
	http    *retryablehttp.Client
}

var _ AgentClient = &Client{}

// NewClient returns client for agent API listening at baseURL, e.g. http://10.0.0.2:4500.
func NewClient(name, baseURL string, config Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = config.RetryMax
	retryClient.RetryWaitMin = config.RetryWaitMin
	retryClient.RetryWaitMax = config.RetryWaitMax
	retryClient.Backoff = retryablehttp.LinearJitterBackoff
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = newLeveledLogger(name)

	return &Client{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  config.Secret,
		timeout: config.CallTimeout,
		http:    retryClient,
	}
}

// checkRetry retries transient failures only. Statuses that repeating the
// request cannot change are returned to the caller at once.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil && resp != nil && isNonTransient(resp.Request.Method, resp.StatusCode) {
		return false, nil
	}
	if err == nil && resp != nil && resp.Request.URL.Path == OnlinePath && resp.StatusCode == http.StatusServiceUnavailable {
		// Offline is an answer, the caller polls again.
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// BaseURL implements AgentClient.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type response struct {
	body []byte
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	var rawBody interface{}
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build %s request to %s", op, target)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}
	req.Header.Set(RequestIDHeader, uuid.Short())

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, transportError(op, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(op, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:         op,
			URL:        target,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorBody(data)),
		}
	}

	return &response{body: data}, nil
}

func errorBody(data []byte) string {
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return "empty response"
	}
	return text
}

func statePath(key string) string {
	return StatePathPrefix + url.PathEscape(key)
}

// GetState implements AgentClient.
func (c *Client) GetState(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.do(ctx, "GetState", http.MethodGet, statePath(key), nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// PutState implements AgentClient.
func (c *Client) PutState(ctx context.Context, key string, payload []byte) error {
	_, err := c.do(ctx, "PutState", http.MethodPut, statePath(key), nonNil(payload))
	return err
}

// CreateState implements AgentClient.
func (c *Client) CreateState(ctx context.Context, key string, payload []byte) error {
	_, err := c.do(ctx, "CreateState", http.MethodPost, statePath(key), nonNil(payload))
	return err
}

// DeleteState implements AgentClient.
func (c *Client) DeleteState(ctx context.Context, key string) error {
	_, err := c.do(ctx, "DeleteState", http.MethodDelete, statePath(key), nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// GetOrCreateState implements AgentClient.
func (c *Client) GetOrCreateState(ctx context.Context, key string, payload []byte) ([]byte, error) {
	existing, err := c.GetState(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	err = c.CreateState(ctx, key, payload)
	if err == nil {
		return append([]byte{}, payload...), nil
	}
	if !IsConflict(err) {
		return nil, err
	}

	// Somebody else created it in the meantime.
	return c.GetState(ctx, key)
}

// Heartbeat implements AgentClient. Any success status means the agent is alive.
func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.do(ctx, "Heartbeat", http.MethodGet, HeartbeatPath, nil)
	return err
}

// Online implements AgentClient. A success status means online. Any other
// status means not online yet, except a rejected request which is returned
// as error.
func (c *Client) Online(ctx context.Context) (bool, error) {
	_, err := c.do(ctx, "Online", http.MethodGet, OnlinePath, nil)
	if err == nil {
		return true, nil
	}

	var remoteErr *Error
	if errors.As(err, &remoteErr) && remoteErr.StatusCode != 0 && !isAuthFailure(remoteErr.StatusCode) {
		return false, nil
	}
	return false, err
}

func isAuthFailure(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

func nonNil(payload []byte) []byte {
	if payload == nil {
		return []byte{}
	}
	return payload
}
