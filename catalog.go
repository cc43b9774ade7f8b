// catalog.go: cluster-wide catalog endpoints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/agilira/go-errors"
)

// Catalog exposes the /catalog endpoints. Unlike the Agent endpoints,
// these reflect the cluster-wide view maintained by the Consul
// servers.
type Catalog struct {
	c *Client
}

// CatalogService is a node providing a service, as returned by
// Service and ConnectService. The Service* fields describe the service
// instance, the remaining fields the node hosting it.
type CatalogService struct {
	ID                       string                   `json:"ID"`
	Node                     string                   `json:"Node"`
	Address                  string                   `json:"Address"`
	Datacenter               string                   `json:"Datacenter"`
	TaggedAddresses          map[string]string        `json:"TaggedAddresses"`
	NodeMeta                 map[string]string        `json:"NodeMeta"`
	ServiceID                string                   `json:"ServiceID"`
	ServiceName              string                   `json:"ServiceName"`
	ServiceAddress           string                   `json:"ServiceAddress"`
	ServiceTaggedAddresses   map[string]TaggedAddress `json:"ServiceTaggedAddresses"`
	ServiceTags              []string                 `json:"ServiceTags"`
	ServiceMeta              map[string]string        `json:"ServiceMeta"`
	ServicePort              int                      `json:"ServicePort"`
	ServiceWeights           Weights                  `json:"ServiceWeights"`
	ServiceEnableTagOverride bool                     `json:"ServiceEnableTagOverride"`
	ServiceProxy             *ServiceProxy            `json:"ServiceProxy,omitempty"`
	CreateIndex              uint64                   `json:"CreateIndex"`
	ModifyIndex              uint64                   `json:"ModifyIndex"`
}

// ServiceProxy is the proxy configuration of a Connect proxy service.
// Config and Upstreams are opaque, provider-defined documents.
type ServiceProxy struct {
	DestinationServiceName string          `json:"DestinationServiceName"`
	DestinationServiceID   string          `json:"DestinationServiceID"`
	LocalServiceAddress    string          `json:"LocalServiceAddress"`
	LocalServicePort       int             `json:"LocalServicePort"`
	Config                 json.RawMessage `json:"Config,omitempty"`
	Upstreams              json.RawMessage `json:"Upstreams,omitempty"`
}

// CatalogNodeService is one service in a node's service map.
type CatalogNodeService struct {
	ID                string                   `json:"ID"`
	Service           string                   `json:"Service"`
	Tags              []string                 `json:"Tags"`
	Meta              map[string]string        `json:"Meta"`
	Address           string                   `json:"Address"`
	TaggedAddresses   map[string]TaggedAddress `json:"TaggedAddresses"`
	Port              int                      `json:"Port"`
	Weights           Weights                  `json:"Weights"`
	EnableTagOverride bool                     `json:"EnableTagOverride"`
	CreateIndex       uint64                   `json:"CreateIndex"`
	ModifyIndex       uint64                   `json:"ModifyIndex"`
}

// CatalogNode is a node together with its registered services, keyed
// by service ID.
type CatalogNode struct {
	Node     *Node                          `json:"Node"`
	Services map[string]*CatalogNodeService `json:"Services"`
}

// Datacenters lists all known datacenters, sorted by estimated median
// round-trip time from the local servers.
func (cat *Catalog) Datacenters(ctx context.Context) ([]string, error) {
	var out []string
	if _, err := cat.c.query(ctx, "/catalog/datacenters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Nodes lists the nodes registered in the datacenter.
func (cat *Catalog) Nodes(ctx context.Context, q *QueryOptions) ([]*Node, *QueryMeta, error) {
	var out []*Node
	meta, err := cat.c.query(ctx, "/catalog/nodes", q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Services lists the services registered in the datacenter, mapping
// service name to its known tags.
func (cat *Catalog) Services(ctx context.Context, q *QueryOptions) (map[string][]string, *QueryMeta, error) {
	var out map[string][]string
	meta, err := cat.c.query(ctx, "/catalog/services", q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Service lists the nodes providing the named service.
func (cat *Catalog) Service(ctx context.Context, serviceName string, q *QueryOptions) ([]*CatalogService, *QueryMeta, error) {
	return cat.serviceNodes(ctx, "/catalog/service/", serviceName, q)
}

// ConnectService lists the nodes providing Connect-capable instances
// of the named service, including both proxies and native
// integrations.
func (cat *Catalog) ConnectService(ctx context.Context, serviceName string, q *QueryOptions) ([]*CatalogService, *QueryMeta, error) {
	return cat.serviceNodes(ctx, "/catalog/connect/", serviceName, q)
}

func (cat *Catalog) serviceNodes(ctx context.Context, prefix, serviceName string, q *QueryOptions) ([]*CatalogService, *QueryMeta, error) {
	if serviceName == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "service name must not be empty")
	}
	var out []*CatalogService
	meta, err := cat.c.query(ctx, prefix+url.PathEscape(serviceName), q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Node returns the named node and a map of its registered services.
// A nil result with a nil error means the node is not in the catalog.
func (cat *Catalog) Node(ctx context.Context, nodeName string, q *QueryOptions) (*CatalogNode, *QueryMeta, error) {
	if nodeName == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "node name must not be empty")
	}
	var out *CatalogNode
	meta, err := cat.c.query(ctx, "/catalog/node/"+url.PathEscape(nodeName), q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}
