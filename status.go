// status.go: cluster status endpoints and connectivity health check
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"

	"github.com/agilira/go-errors"
)

// Status exposes the /status endpoints reporting Raft leadership.
type Status struct {
	c *Client
}

// Leader returns the address of the current Raft leader, or an empty
// string when no leader is elected.
func (s *Status) Leader(ctx context.Context) (string, error) {
	var out string
	if _, err := s.c.query(ctx, "/status/leader", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Peers returns the addresses of the Raft peers in the datacenter.
func (s *Status) Peers(ctx context.Context) ([]string, error) {
	var out []string
	if _, err := s.c.query(ctx, "/status/peers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HealthCheck verifies connectivity with the agent and that the
// cluster has an elected leader, which KV writes require. Useful for
// startup validation and load-balancer health probes.
func (c *Client) HealthCheck(ctx context.Context) error {
	leader, err := c.Status().Leader(ctx)
	if err != nil {
		return errors.Wrap(err, ErrCodeTransport,
			"consul health check failed: cannot reach agent")
	}
	if leader == "" {
		return errors.New(ErrCodeTransport,
			"consul health check failed: no leader elected")
	}
	return nil
}
