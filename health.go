// health.go: health-check query endpoints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"fmt"
	"net/url"

	"github.com/agilira/go-errors"
)

// Health check states as reported by Consul.
const (
	HealthAny      = "any"
	HealthPassing  = "passing"
	HealthWarning  = "warning"
	HealthCritical = "critical"
	HealthMaint    = "maintenance"
)

// Health exposes the /health endpoints, the cluster-wide view of
// check states (contrast Agent.Checks, which is local).
type Health struct {
	c *Client
}

// HealthCheck is a check associated with a node or service.
type HealthCheck struct {
	Node        string   `json:"Node"`
	CheckID     string   `json:"CheckID"`
	Name        string   `json:"Name"`
	Status      string   `json:"Status"`
	Notes       string   `json:"Notes"`
	Output      string   `json:"Output"`
	ServiceID   string   `json:"ServiceID"`
	ServiceName string   `json:"ServiceName"`
	ServiceTags []string `json:"ServiceTags"`
	Type        string   `json:"Type"`
	CreateIndex uint64   `json:"CreateIndex"`
	ModifyIndex uint64   `json:"ModifyIndex"`
}

// HealthService is the service definition embedded in a ServiceEntry.
type HealthService struct {
	ID                string                   `json:"ID"`
	Service           string                   `json:"Service"`
	Tags              []string                 `json:"Tags"`
	Address           string                   `json:"Address"`
	TaggedAddresses   map[string]TaggedAddress `json:"TaggedAddresses"`
	Meta              map[string]string        `json:"Meta"`
	Port              int                      `json:"Port"`
	Weights           Weights                  `json:"Weights"`
	EnableTagOverride bool                     `json:"EnableTagOverride"`
	CreateIndex       uint64                   `json:"CreateIndex"`
	ModifyIndex       uint64                   `json:"ModifyIndex"`
}

// ServiceEntry is one instance of a service: the node it runs on, the
// service definition, and the checks covering both.
type ServiceEntry struct {
	Node    *Node          `json:"Node"`
	Service *HealthService `json:"Service"`
	Checks  []*HealthCheck `json:"Checks"`
}

// Node lists the checks specific to the named node.
func (h *Health) Node(ctx context.Context, nodeName string, q *QueryOptions) ([]*HealthCheck, *QueryMeta, error) {
	if nodeName == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "node name must not be empty")
	}
	var out []*HealthCheck
	meta, err := h.c.query(ctx, "/health/node/"+url.PathEscape(nodeName), q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Checks lists the checks associated with the named service across
// the datacenter.
func (h *Health) Checks(ctx context.Context, serviceName string, q *QueryOptions) ([]*HealthCheck, *QueryMeta, error) {
	if serviceName == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "service name must not be empty")
	}
	var out []*HealthCheck
	meta, err := h.c.query(ctx, "/health/checks/"+url.PathEscape(serviceName), q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Service lists the instances providing the named service. When tag is
// non-empty only instances carrying that tag are returned; when
// passingOnly is true, instances with any non-passing check are
// excluded, which is the usual input to client-side load balancing.
func (h *Health) Service(ctx context.Context, serviceName, tag string, passingOnly bool, q *QueryOptions) ([]*ServiceEntry, *QueryMeta, error) {
	if serviceName == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "service name must not be empty")
	}
	path := "/health/service/" + url.PathEscape(serviceName)
	r := h.c.newRequest("GET", path)
	r.setQueryOptions(q)
	if tag != "" {
		r.params.Set("tag", tag)
	}
	if passingOnly {
		r.params.Set("passing", "1")
	}

	elapsed, resp, err := h.c.doRequest(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	if err := h.c.requireOK(r, resp); err != nil {
		return nil, nil, err
	}
	meta, err := parseQueryMeta(resp, elapsed)
	if err != nil {
		closeResponseBody(resp)
		return nil, nil, err
	}
	var out []*ServiceEntry
	if err := h.c.decodeBody(resp, &out); err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// State lists the checks in the given state across the datacenter.
// State must be one of HealthAny, HealthPassing, HealthWarning or
// HealthCritical.
func (h *Health) State(ctx context.Context, state string, q *QueryOptions) ([]*HealthCheck, *QueryMeta, error) {
	switch state {
	case HealthAny, HealthPassing, HealthWarning, HealthCritical:
	default:
		return nil, nil, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("invalid health state %q", state))
	}
	var out []*HealthCheck
	meta, err := h.c.query(ctx, "/health/state/"+state, q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}
