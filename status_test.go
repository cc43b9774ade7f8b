// status_test.go
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Leader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/status/leader", r.URL.Path)
		writeJSONRaw(w, "10.0.0.1:8300")
	}))

	leader, err := client.Status().Leader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8300", leader)
}

func TestStatus_Peers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/status/peers", r.URL.Path)
		writeJSONRaw(w, []string{"10.0.0.1:8300", "10.0.0.2:8300", "10.0.0.3:8300"})
	}))

	peers, err := client.Status().Peers(context.Background())
	require.NoError(t, err)
	assert.Len(t, peers, 3)
}

func TestClient_HealthCheck(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONRaw(w, "10.0.0.1:8300")
	}))

	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheckNoLeader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONRaw(w, "")
	}))

	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no leader")
}

func TestClient_HealthCheckUnreachable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent stopping", http.StatusInternalServerError)
	}))

	require.Error(t, client.HealthCheck(context.Background()))
}
