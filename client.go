// client.go: shared HTTP plumbing for the Consul API client
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/sirupsen/logrus"
)

// Resource limit constants for DoS prevention. These bound what a
// misbehaving or compromised agent can do to the process hosting this
// client.
const (
	// Maximum allowed response size from Consul (10MB)
	maxResponseSize = 10 * 1024 * 1024

	// Default timeout for Consul requests (30 seconds)
	defaultRequestTimeout = 30 * time.Second

	// Maximum concurrent requests per client instance
	maxConcurrentRequests = 50

	// Maximum number of active watch operations per client
	maxActiveWatches = 10

	// Maximum time to wait for watch channel sends (prevents deadlock)
	watchChannelTimeout = 5 * time.Second
)

// apiVersion is the path prefix of the Consul HTTP API.
const apiVersion = "/v1"

// QueryOptions customizes a single read operation. The zero value uses
// the client-wide defaults from Config.
type QueryOptions struct {
	// Datacenter overrides Config.Datacenter for this call.
	Datacenter string

	// Token overrides Config.Token for this call.
	Token string

	// WaitIndex, when non-zero, turns the call into a blocking query:
	// the agent holds the response until its index for the watched
	// resource exceeds WaitIndex, or WaitTime elapses.
	WaitIndex uint64

	// WaitTime bounds a blocking query. Zero uses Config.WaitTime, and
	// failing that the agent's default of 5 minutes.
	WaitTime time.Duration

	// Consistent requests strongly consistent reads (leader-verified).
	Consistent bool

	// Stale allows any server to answer, trading consistency for
	// throughput.
	Stale bool
}

// WriteOptions customizes a single write operation.
type WriteOptions struct {
	// Datacenter overrides Config.Datacenter for this call.
	Datacenter string

	// Token overrides Config.Token for this call.
	Token string
}

// QueryMeta is returned with every read and carries the consistency
// metadata Consul reports in response headers.
type QueryMeta struct {
	// LastIndex is the index the resource was last modified at. Feed
	// it back as QueryOptions.WaitIndex to block for the next change.
	LastIndex uint64

	// LastContact is how long ago the answering server was in contact
	// with the leader.
	LastContact time.Duration

	// KnownLeader reports whether there was a known leader at the time
	// of the request.
	KnownLeader bool

	// RequestTime is the client-observed round-trip duration.
	RequestTime time.Duration
}

// Client is the entry point for interacting with the Consul HTTP API.
//
// A Client is safe for concurrent use: the configuration is read-only
// after construction and the sub-clients carry no state of their own.
// Each operation is exactly one HTTP round trip; there are no internal
// retries, caches, or cross-call state machines.
type Client struct {
	config *Config
	http   *http.Client
	logger *logrus.Logger

	// closed tracks whether Close was called, to fail fast instead of
	// leaking requests into a torn-down transport.
	closed atomic.Bool

	// Resource tracking (thread-safe with atomic operations).
	currentReqs atomic.Int32
	watchCount  atomic.Int32
}

// NewClient creates a Client from the given configuration. A nil
// config is equivalent to DefaultConfig(). The only failure mode is a
// malformed configuration; with a valid Config construction cannot
// fail and owns no network resources until the first call.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	// Copy so later caller mutations cannot race in-flight requests.
	cfg := *config
	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}

	// The timeout is enforced per request in doRequest rather than on
	// the http.Client, so blocking queries can wait longer than the
	// plain-call timeout.
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: cfg.newTransport()}
	}

	return &Client{
		config: &cfg,
		http:   httpClient,
		logger: cfg.Logger,
	}, nil
}

// Agent returns a handle to the local-agent endpoints.
func (c *Client) Agent() *Agent { return &Agent{c} }

// Catalog returns a handle to the catalog endpoints.
func (c *Client) Catalog() *Catalog { return &Catalog{c} }

// Health returns a handle to the health endpoints.
func (c *Client) Health() *Health { return &Health{c} }

// KV returns a handle to the key/value store endpoints.
func (c *Client) KV() *KV { return &KV{c} }

// Session returns a handle to the session endpoints.
func (c *Client) Session() *Session { return &Session{c} }

// ACL returns a handle to the ACL endpoints.
func (c *Client) ACL() *ACL { return &ACL{c} }

// Connect returns a handle to the Connect certificate authority
// endpoints.
func (c *Client) Connect() *ConnectCA { return &ConnectCA{c} }

// Status returns a handle to the status endpoints.
func (c *Client) Status() *Status { return &Status{c} }

// Close releases idle connections and marks the client unusable.
// Close is idempotent; operations after Close fail with
// CONSUL_CLIENT_CLOSED.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

// checkLimits validates client state and resource usage before a
// request is made.
func (c *Client) checkLimits() error {
	if c.closed.Load() {
		return errors.New(ErrCodeClientClosed, "consul client has been closed")
	}
	if current := c.currentReqs.Load(); current >= maxConcurrentRequests {
		return errors.New(ErrCodeResourceLimit,
			fmt.Sprintf("maximum concurrent requests exceeded: %d/%d",
				current, maxConcurrentRequests))
	}
	return nil
}

// request is a Consul HTTP request under construction.
type request struct {
	method string
	path   string
	params url.Values
	body   interface{}
	// rawBody overrides JSON encoding of body when set (KV values are
	// written verbatim, not as JSON).
	rawBody []byte
	header  http.Header
}

// newRequest creates a request for a path below the /v1 prefix.
func (c *Client) newRequest(method, path string) *request {
	r := &request{
		method: method,
		path:   apiVersion + path,
		params: url.Values{},
		header: http.Header{},
	}
	if c.config.Datacenter != "" {
		r.params.Set("dc", c.config.Datacenter)
	}
	if c.config.Token != "" {
		r.header.Set("X-Consul-Token", c.config.Token)
	}
	return r
}

// setQueryOptions applies per-call read options to the request.
func (r *request) setQueryOptions(q *QueryOptions) {
	if q == nil {
		return
	}
	if q.Datacenter != "" {
		r.params.Set("dc", q.Datacenter)
	}
	if q.Token != "" {
		r.header.Set("X-Consul-Token", q.Token)
	}
	if q.WaitIndex != 0 {
		r.params.Set("index", strconv.FormatUint(q.WaitIndex, 10))
	}
	if q.WaitTime != 0 {
		r.params.Set("wait", durationToConsul(q.WaitTime))
	}
	if q.Consistent {
		r.params.Set("consistent", "")
	}
	if q.Stale {
		r.params.Set("stale", "")
	}
}

// setWriteOptions applies per-call write options to the request.
func (r *request) setWriteOptions(w *WriteOptions) {
	if w == nil {
		return
	}
	if w.Datacenter != "" {
		r.params.Set("dc", w.Datacenter)
	}
	if w.Token != "" {
		r.header.Set("X-Consul-Token", w.Token)
	}
}

// durationToConsul renders a duration in the "10s"/"5m" form Consul
// expects for wait and TTL parameters.
func durationToConsul(d time.Duration) string {
	if d%time.Minute == 0 {
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	}
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return strconv.FormatInt(int64(d/time.Millisecond), 10) + "ms"
}

// doRequest performs one round trip. The response body it returns is
// fully buffered (bounded by maxResponseSize), so the connection is
// already back in the pool and callers may read it at leisure.
func (c *Client) doRequest(ctx context.Context, r *request) (time.Duration, *http.Response, error) {
	if err := c.checkLimits(); err != nil {
		return 0, nil, err
	}
	c.currentReqs.Add(1)
	defer c.currentReqs.Add(-1)

	// Blocking queries legitimately outwait the plain-call timeout;
	// they are bounded by the wait parameter and the caller's context.
	if c.config.Timeout > 0 && r.params.Get("index") == "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var body io.Reader
	switch {
	case r.rawBody != nil:
		body = bytes.NewReader(r.rawBody)
	case r.body != nil:
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, errors.Wrap(err, ErrCodeInvalidConfig,
				"failed to encode request body")
		}
		body = bytes.NewReader(encoded)
		r.header.Set("Content-Type", "application/json")
	}

	u := url.URL{
		Scheme:   c.config.Scheme,
		Host:     c.config.Address,
		Path:     r.path,
		RawQuery: r.params.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return 0, nil, errors.Wrap(err, ErrCodeInvalidConfig,
			"failed to build request")
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	if c.config.HTTPAuth != nil {
		req.SetBasicAuth(c.config.HTTPAuth.Username, c.config.HTTPAuth.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logRequest(r, 0, elapsed)
		return elapsed, nil, errors.Wrap(err, ErrCodeTransport,
			fmt.Sprintf("request to Consul agent at %s failed", c.config.Address))
	}

	// Buffer the body so the timeout context above can be released and
	// the response size bounded in one place.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	_ = resp.Body.Close()
	if err != nil {
		c.logRequest(r, resp.StatusCode, elapsed)
		return elapsed, nil, errors.Wrap(err, ErrCodeTransport,
			"failed to read response from Consul agent")
	}
	if len(raw) > maxResponseSize {
		c.logRequest(r, resp.StatusCode, elapsed)
		return elapsed, nil, errors.New(ErrCodeResourceLimit,
			fmt.Sprintf("consul response too large (max %d bytes)", maxResponseSize))
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	c.logRequest(r, resp.StatusCode, elapsed)
	return elapsed, resp, nil
}

// logRequest emits one debug entry per round trip when a logger is
// configured.
func (c *Client) logRequest(r *request, status int, elapsed time.Duration) {
	if c.logger == nil {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"method":   r.method,
		"path":     r.path,
		"status":   status,
		"duration": elapsed,
	}).Debug("consul request")
}

// requireOK turns a non-2xx response into a *APIError carrying the
// exact status code and body. The response body is consumed either way.
func (c *Client) requireOK(r *request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	closeResponseBody(resp)
	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
		Method:     r.method,
		Path:       r.path,
	}
}

// decodeBody decodes the (already buffered) response body into out.
func (c *Client) decodeBody(resp *http.Response, out interface{}) error {
	defer closeResponseBody(resp)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, ErrCodeTransport,
			"failed to read response from Consul agent")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, ErrCodeDecode,
			"failed to decode JSON response from Consul agent")
	}
	return nil
}

// closeResponseBody drains and closes the body so the underlying
// connection returns to the pool.
func closeResponseBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
}

// parseQueryMeta extracts consistency metadata from response headers.
func parseQueryMeta(resp *http.Response, elapsed time.Duration) (*QueryMeta, error) {
	meta := &QueryMeta{RequestTime: elapsed}
	header := resp.Header

	if indexStr := header.Get("X-Consul-Index"); indexStr != "" {
		index, err := strconv.ParseUint(indexStr, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeDecode,
				"failed to parse X-Consul-Index")
		}
		meta.LastIndex = index
	}

	if lastContact := header.Get("X-Consul-Lastcontact"); lastContact != "" {
		last, err := strconv.ParseUint(lastContact, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeDecode,
				"failed to parse X-Consul-LastContact")
		}
		meta.LastContact = time.Duration(last) * time.Millisecond
	}

	meta.KnownLeader = header.Get("X-Consul-Knownleader") == "true"
	return meta, nil
}

// query performs a GET and decodes the response into out. It is the
// shared path for every read endpoint.
func (c *Client) query(ctx context.Context, path string, q *QueryOptions, out interface{}) (*QueryMeta, error) {
	r := c.newRequest(http.MethodGet, path)
	r.setQueryOptions(q)
	if q != nil && q.WaitIndex != 0 && q.WaitTime == 0 && c.config.WaitTime != 0 {
		r.params.Set("wait", durationToConsul(c.config.WaitTime))
	}
	elapsed, resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := c.requireOK(r, resp); err != nil {
		return nil, err
	}
	meta, err := parseQueryMeta(resp, elapsed)
	if err != nil {
		closeResponseBody(resp)
		return nil, err
	}
	if err := c.decodeBody(resp, out); err != nil {
		return nil, err
	}
	return meta, nil
}

// write performs a modifying request (PUT, POST or DELETE), decoding
// the response into out when out is non-nil.
func (c *Client) write(ctx context.Context, method, path string, body interface{}, w *WriteOptions, out interface{}) error {
	r := c.newRequest(method, path)
	r.setWriteOptions(w)
	r.body = body
	_, resp, err := c.doRequest(ctx, r)
	if err != nil {
		return err
	}
	if err := c.requireOK(r, resp); err != nil {
		return err
	}
	if out == nil {
		closeResponseBody(resp)
		return nil
	}
	return c.decodeBody(resp, out)
}
