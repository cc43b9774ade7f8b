// Package consul is a typed client for the HashiCorp Consul HTTP API.
//
// # Overview
//
// This package maps Consul's REST endpoints (agent registration,
// catalog queries, health checks, key/value store, sessions, ACLs,
// Connect CA) onto typed Go methods. Each operation is exactly one
// HTTP round trip: there is no internal retry, caching, batching or
// cross-call state. Response schemas mirror Consul's documented JSON
// verbatim; field names are not renamed.
//
// A Client is configured once and then shared freely: configuration is
// read-only after construction and the per-area sub-clients carry no
// state, so arbitrarily many operations may run concurrently without
// locking. The only shared resource is the HTTP connection pool, whose
// lifecycle belongs to the underlying transport.
//
// # Key Features
//
//   - Typed Endpoints: one method per REST endpoint across Agent,
//     Catalog, Health, KV, Session, ACL, Connect and Status
//   - Blocking-Query Watch: KV watching via Consul's native blocking
//     queries, with exponential backoff and jitter on failures
//   - Multi-Datacenter Support: client-wide or per-call datacenter
//     routing
//   - ACL Token Authentication: client-wide or per-call tokens via the
//     X-Consul-Token header
//   - TLS Connections: hardened defaults (TLS 1.2+, PFS cipher suites)
//   - Resource Limits: response size, concurrent request and active
//     watch caps to bound what a misbehaving agent can cost the caller
//   - Structured Logging: optional per-request debug logging through
//     logrus
//
// # Configuration
//
// Construct a Config explicitly or from the standard CONSUL_*
// environment variables:
//
//	config, err := consul.ConfigFromEnv() // CONSUL_HTTP_ADDR, CONSUL_HTTP_TOKEN, ...
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := consul.NewClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Examples
//
// Service registration and discovery:
//
//	err = client.Agent().ServiceRegister(ctx, &consul.AgentServiceRegistration{
//	    Name: "web",
//	    Port: 8080,
//	    Check: &consul.AgentServiceCheck{
//	        HTTP:     "http://127.0.0.1:8080/ping",
//	        Interval: "5s",
//	        Timeout:  "2s",
//	    },
//	})
//
//	entries, _, err := client.Health().Service(ctx, "web", "", true, nil)
//
// Key/value round trip:
//
//	_, err = client.KV().Put(ctx, &consul.KVPair{Key: "config/app", Value: data}, nil)
//	pair, _, err := client.KV().Get(ctx, "config/app", nil)
//	if pair == nil {
//	    // key does not exist; a miss is an outcome, not an error
//	}
//
// Watching a key for changes:
//
//	updates, err := client.KV().Watch(ctx, "config/app", nil)
//	for pair := range updates {
//	    // pair is nil when the key was deleted
//	}
//
// # Errors
//
// Failures are typed, never swallowed and never retried internally
// (the watch loop's backoff is the one documented exception). Non-2xx
// responses surface as *APIError carrying the exact status code and
// body; transport, decode and configuration failures carry stable
// error codes from github.com/agilira/go-errors. See errors.go.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0
package consul
