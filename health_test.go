// health_test.go
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

func TestHealth_Service(t *testing.T) {
	var gotTag, gotPassing string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health/service/web", r.URL.Path)
		gotTag = r.URL.Query().Get("tag")
		gotPassing = r.URL.Query().Get("passing")
		w.Header().Set("X-Consul-Index", "8")
		writeJSONRaw(w, []*ServiceEntry{
			{
				Node:    &Node{Node: "node-1", Address: "10.0.0.1"},
				Service: &HealthService{ID: "web-1", Service: "web", Port: 8080},
				Checks: []*HealthCheck{
					{CheckID: "service:web-1", Status: HealthPassing},
				},
			},
		})
	}))

	entries, meta, err := client.Health().Service(context.Background(), "web", "primary", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", gotTag)
	assert.Equal(t, "1", gotPassing)
	require.Len(t, entries, 1)
	assert.Equal(t, "node-1", entries[0].Node.Node)
	assert.Equal(t, 8080, entries[0].Service.Port)
	require.Len(t, entries[0].Checks, 1)
	assert.Equal(t, HealthPassing, entries[0].Checks[0].Status)
	assert.Equal(t, uint64(8), meta.LastIndex)
}

func TestHealth_ServiceOmitsOptionalParams(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		_, hasTag := query["tag"]
		_, hasPassing := query["passing"]
		assert.False(t, hasTag)
		assert.False(t, hasPassing)
		writeJSONRaw(w, []*ServiceEntry{})
	}))

	_, _, err := client.Health().Service(context.Background(), "web", "", false, nil)
	require.NoError(t, err)
}

func TestHealth_Checks(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health/checks/web", r.URL.Path)
		writeJSONRaw(w, []*HealthCheck{
			{Node: "node-1", CheckID: "service:web-1", ServiceName: "web", Status: HealthWarning},
		})
	}))

	checks, _, err := client.Health().Checks(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, HealthWarning, checks[0].Status)
}

func TestHealth_Node(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health/node/node-1", r.URL.Path)
		writeJSONRaw(w, []*HealthCheck{
			{Node: "node-1", CheckID: "serfHealth", Status: HealthPassing},
		})
	}))

	checks, _, err := client.Health().Node(context.Background(), "node-1", nil)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "serfHealth", checks[0].CheckID)
}

func TestHealth_State(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health/state/critical", r.URL.Path)
		writeJSONRaw(w, []*HealthCheck{
			{CheckID: "service:db-1", Status: HealthCritical},
		})
	}))

	checks, _, err := client.Health().State(context.Background(), HealthCritical, nil)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, HealthCritical, checks[0].Status)
}

func TestHealth_StateValidation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ctx := context.Background()

	_, _, err := client.Health().State(ctx, "broken", nil)
	require.Error(t, err)

	// "maintenance" is a check status but not a queryable state filter.
	_, _, err = client.Health().State(ctx, HealthMaint, nil)
	require.Error(t, err)
}

func TestHealth_EmptyNamesRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ctx := context.Background()

	_, _, err := client.Health().Service(ctx, "", "", false, nil)
	require.Error(t, err)
	_, _, err = client.Health().Checks(ctx, "", nil)
	require.Error(t, err)
	_, _, err = client.Health().Node(ctx, "", nil)
	require.Error(t, err)
}
