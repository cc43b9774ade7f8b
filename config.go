// config.go: client configuration, environment loading and address handling
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/sirupsen/logrus"
)

// Environment variables recognized by ConfigFromEnv. The names follow
// Consul's own CLI/SDK conventions so the same environment works for
// both.
const (
	// EnvHTTPAddr is the address of the Consul agent, with or without
	// scheme ("127.0.0.1:8500", "https://consul.internal:8501").
	EnvHTTPAddr = "CONSUL_HTTP_ADDR"

	// EnvHTTPToken is the ACL token sent with every request.
	EnvHTTPToken = "CONSUL_HTTP_TOKEN"

	// EnvHTTPAuth holds HTTP Basic Auth credentials as "user:pass".
	EnvHTTPAuth = "CONSUL_HTTP_AUTH"

	// EnvHTTPSSL enables HTTPS when set to a boolean true value.
	EnvHTTPSSL = "CONSUL_HTTP_SSL"

	// EnvHTTPSSLVerify disables certificate verification when set to a
	// boolean false value.
	EnvHTTPSSLVerify = "CONSUL_HTTP_SSL_VERIFY"

	// EnvDatacenter is the datacenter to which requests are routed.
	EnvDatacenter = "CONSUL_DATACENTER"

	// EnvHTTPTimeout is the per-request timeout as a Go duration
	// ("30s", "1m").
	EnvHTTPTimeout = "CONSUL_HTTP_TIMEOUT"
)

// defaultAddress is used when no address is configured. Consul agents
// listen on port 8500 by default.
const defaultAddress = "127.0.0.1:8500"

// HTTPBasicAuth holds credentials for HTTP Basic Authentication, used
// when Consul sits behind an authenticating proxy.
type HTTPBasicAuth struct {
	Username string
	Password string
}

// Config holds the transport configuration shared by every sub-client.
// It is read once at construction and never mutated afterwards, which
// is what makes concurrent use of a single Client safe without locks.
type Config struct {
	// Address is the host:port of the Consul agent. A missing port
	// defaults to 8500; bare IPv6 addresses are bracketed.
	Address string

	// Scheme is "http" or "https". Defaults to "http".
	Scheme string

	// Datacenter, when set, is appended as the dc query parameter to
	// every request. Defaults to the agent's own datacenter.
	Datacenter string

	// Token is the ACL token sent in the X-Consul-Token header when
	// set. Per-call QueryOptions/WriteOptions tokens take precedence.
	Token string

	// HTTPAuth configures HTTP Basic Authentication.
	HTTPAuth *HTTPBasicAuth

	// Timeout bounds each request end to end. Zero means the default
	// of 30 seconds. Callers needing finer-grained cancellation pass a
	// context to the individual operation.
	Timeout time.Duration

	// WaitTime is the default wait used by blocking queries when
	// QueryOptions.WaitTime is zero.
	WaitTime time.Duration

	// TLSSkipVerify disables certificate verification. Only for
	// development against self-signed agents.
	TLSSkipVerify bool

	// HTTPClient, when set, replaces the client built from the fields
	// above. The caller then owns transport tuning and TLS entirely.
	HTTPClient *http.Client

	// Logger, when set, receives a debug entry per request with
	// method, path, status and duration. Nil keeps the client silent.
	Logger *logrus.Logger
}

// DefaultConfig returns a Config pointing at a local agent with the
// default timeout. The result is ready for NewClient as-is.
func DefaultConfig() *Config {
	return &Config{
		Address: defaultAddress,
		Scheme:  "http",
		Timeout: defaultRequestTimeout,
	}
}

// ConfigFromEnv builds a Config from the CONSUL_* environment
// variables, starting from DefaultConfig for anything unset.
//
// A Config built here and one built by filling the same fields
// explicitly behave identically. Malformed values (bad timeout, bad
// auth spec, unparsable booleans) fail immediately with
// CONSUL_INVALID_CONFIG rather than being silently defaulted.
func ConfigFromEnv() (*Config, error) {
	config := DefaultConfig()

	if addr := os.Getenv(EnvHTTPAddr); addr != "" {
		scheme, host, err := splitAddress(addr)
		if err != nil {
			return nil, err
		}
		if scheme != "" {
			config.Scheme = scheme
		}
		config.Address = host
	}

	if token := os.Getenv(EnvHTTPToken); token != "" {
		config.Token = token
	}

	if auth := os.Getenv(EnvHTTPAuth); auth != "" {
		username, password, found := strings.Cut(auth, ":")
		if !found || username == "" {
			return nil, errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("%s must be in user:pass form", EnvHTTPAuth))
		}
		config.HTTPAuth = &HTTPBasicAuth{Username: username, Password: password}
	}

	if ssl := os.Getenv(EnvHTTPSSL); ssl != "" {
		enabled, err := strconv.ParseBool(ssl)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig,
				fmt.Sprintf("%s is not a boolean", EnvHTTPSSL))
		}
		if enabled {
			config.Scheme = "https"
		}
	}

	if verify := os.Getenv(EnvHTTPSSLVerify); verify != "" {
		enabled, err := strconv.ParseBool(verify)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig,
				fmt.Sprintf("%s is not a boolean", EnvHTTPSSLVerify))
		}
		config.TLSSkipVerify = !enabled
	}

	if dc := os.Getenv(EnvDatacenter); dc != "" {
		config.Datacenter = dc
	}

	if timeout := os.Getenv(EnvHTTPTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return nil, errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("%s is not a positive duration: %q", EnvHTTPTimeout, timeout))
		}
		config.Timeout = d
	}

	return config, nil
}

// splitAddress splits an optional scheme prefix off an agent address.
// "https://host:8501" yields ("https", "host:8501"); a bare "host:8500"
// yields ("", "host:8500").
func splitAddress(addr string) (scheme, host string, err error) {
	if !strings.Contains(addr, "://") {
		return "", addr, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", errors.Wrap(err, ErrCodeInvalidConfig,
			"invalid Consul address")
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return "", "", errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported scheme %q in Consul address", u.Scheme))
	}
	if u.Host == "" {
		return "", "", errors.New(ErrCodeInvalidConfig,
			"missing host in Consul address")
	}
	return u.Scheme, u.Host, nil
}

// normalizeAddress normalizes an agent address by adding the default
// port when missing.
//
// Both IPv4 and IPv6 forms are supported:
//
//	"localhost"       → "localhost:8500"
//	"10.0.0.2:8501"   → "10.0.0.2:8501" (unchanged)
//	"::1"             → "[::1]:8500"
//	"[::1]"           → "[::1]:8500"
//	"[::1]:8501"      → "[::1]:8501" (unchanged)
//	""                → "127.0.0.1:8500"
//
// IPv6 bracket notation is enforced so the port separator is never
// ambiguous with the colons of the address itself (RFC 3986).
func normalizeAddress(address string) string {
	if address == "" {
		return defaultAddress
	}

	// IPv6 with brackets, with or without port.
	if strings.HasPrefix(address, "[") {
		if strings.Contains(address, "]:") {
			return address
		}
		return address + ":8500"
	}

	// Bare IPv6 addresses contain more than one colon.
	colons := strings.Count(address, ":")
	if colons > 1 {
		return "[" + address + "]:8500"
	}

	// host:port already complete.
	if colons == 1 {
		return address
	}

	return address + ":8500"
}

// validate checks the configuration before any request is made. It is
// called once by NewClient.
func (c *Config) validate() error {
	switch c.Scheme {
	case "", "http", "https":
	default:
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("scheme must be http or https, got %q", c.Scheme))
	}

	address := normalizeAddress(c.Address)
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("invalid Consul address %q", c.Address))
	}
	if _, err := strconv.Atoi(port); err != nil {
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("invalid port in Consul address %q", c.Address))
	}

	if c.Timeout < 0 {
		return errors.New(ErrCodeInvalidConfig, "timeout must not be negative")
	}
	if c.WaitTime < 0 {
		return errors.New(ErrCodeInvalidConfig, "wait time must not be negative")
	}
	return nil
}

// secureCipherSuites restricts TLS 1.2 connections to suites providing
// forward secrecy and AEAD encryption.
var secureCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// newTransport builds the pooled HTTP transport shared by every
// sub-client. TLS settings only apply when the scheme is https.
func (c *Config) newTransport() *http.Transport {
	transport := &http.Transport{
		MaxIdleConns:          maxConcurrentRequests,
		MaxIdleConnsPerHost:   maxConcurrentRequests / 2,
		MaxConnsPerHost:       maxConcurrentRequests,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if c.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			CipherSuites:       secureCipherSuites,
			InsecureSkipVerify: c.TLSSkipVerify,
		}
	}

	return transport
}
