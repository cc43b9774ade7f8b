// config_test.go
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"empty defaults to local agent", "", "127.0.0.1:8500"},
		{"bare hostname", "localhost", "localhost:8500"},
		{"host with port unchanged", "10.0.0.2:8501", "10.0.0.2:8501"},
		{"bare ipv6", "::1", "[::1]:8500"},
		{"bracketed ipv6 without port", "[::1]", "[::1]:8500"},
		{"bracketed ipv6 with port unchanged", "[::1]:8501", "[::1]:8501"},
		{"full ipv6", "2001:db8::42", "[2001:db8::42]:8500"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeAddress(tc.in))
		})
	}
}

func TestSplitAddress(t *testing.T) {
	testCases := []struct {
		name       string
		in         string
		wantScheme string
		wantHost   string
		wantErr    bool
	}{
		{"bare host passes through", "consul.internal:8500", "", "consul.internal:8500", false},
		{"http prefix", "http://localhost:8500", "http", "localhost:8500", false},
		{"https prefix", "https://consul.internal:8501", "https", "consul.internal:8501", false},
		{"unsupported scheme", "ftp://host:21", "", "", true},
		{"scheme without host", "http://", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			scheme, host, err := splitAddress(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantScheme, scheme)
			assert.Equal(t, tc.wantHost, host)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults are valid", *DefaultConfig(), false},
		{"bare host normalized", Config{Address: "consul.internal"}, false},
		{"https scheme", Config{Address: "localhost:8501", Scheme: "https"}, false},
		{"bad scheme", Config{Address: "localhost:8500", Scheme: "gopher"}, true},
		{"bad port", Config{Address: "localhost:http"}, true},
		{"negative timeout", Config{Address: "localhost:8500", Timeout: -1}, true},
		{"negative wait time", Config{Address: "localhost:8500", WaitTime: -1}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvHTTPAddr, "https://consul.internal:8501")
	t.Setenv(EnvHTTPToken, "env-token")
	t.Setenv(EnvHTTPAuth, "user:pass")
	t.Setenv(EnvDatacenter, "dc-west")
	t.Setenv(EnvHTTPTimeout, "45s")

	config, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https", config.Scheme)
	assert.Equal(t, "consul.internal:8501", config.Address)
	assert.Equal(t, "env-token", config.Token)
	require.NotNil(t, config.HTTPAuth)
	assert.Equal(t, "user", config.HTTPAuth.Username)
	assert.Equal(t, "pass", config.HTTPAuth.Password)
	assert.Equal(t, "dc-west", config.Datacenter)
	assert.Equal(t, 45*time.Second, config.Timeout)
}

// A Config built from the environment must behave identically to one
// built by filling the same fields by hand.
func TestConfigFromEnv_MatchesExplicit(t *testing.T) {
	t.Setenv(EnvHTTPAddr, "consul.internal:8501")
	t.Setenv(EnvHTTPToken, "token")
	t.Setenv(EnvDatacenter, "dc1")

	fromEnv, err := ConfigFromEnv()
	require.NoError(t, err)

	explicit := DefaultConfig()
	explicit.Address = "consul.internal:8501"
	explicit.Token = "token"
	explicit.Datacenter = "dc1"

	assert.Equal(t, explicit, fromEnv)
}

func TestConfigFromEnv_SSLFlags(t *testing.T) {
	t.Setenv(EnvHTTPSSL, "true")
	t.Setenv(EnvHTTPSSLVerify, "false")

	config, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https", config.Scheme)
	assert.True(t, config.TLSSkipVerify)
}

func TestConfigFromEnv_MalformedValues(t *testing.T) {
	testCases := []struct {
		name  string
		env   string
		value string
	}{
		{"bad timeout", EnvHTTPTimeout, "soon"},
		{"negative timeout", EnvHTTPTimeout, "-5s"},
		{"bad ssl boolean", EnvHTTPSSL, "yes please"},
		{"bad verify boolean", EnvHTTPSSLVerify, "maybe"},
		{"auth without separator", EnvHTTPAuth, "justauser"},
		{"bad address scheme", EnvHTTPAddr, "gopher://host:70"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			_, err := ConfigFromEnv()
			require.Error(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "127.0.0.1:8500", config.Address)
	assert.Equal(t, "http", config.Scheme)
	assert.Equal(t, defaultRequestTimeout, config.Timeout)
	assert.Nil(t, config.HTTPClient)
	assert.Nil(t, config.Logger)
}
