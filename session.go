// session.go: session endpoints used for distributed locking
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agilira/go-errors"
)

// Session behaviors controlling what happens to held locks when a
// session is invalidated.
const (
	// SessionBehaviorRelease releases held locks (the default).
	SessionBehaviorRelease = "release"

	// SessionBehaviorDelete deletes the locked keys outright.
	SessionBehaviorDelete = "delete"
)

// Session exposes the /session endpoints. Sessions bind health checks
// to KV locks and power Consul's leader-election recipes.
type Session struct {
	c *Client
}

// SessionEntry describes a session, both as the Create payload and in
// read responses.
type SessionEntry struct {
	ID          string   `json:"ID,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Node        string   `json:"Node,omitempty"`
	LockDelay   string   `json:"LockDelay,omitempty"`
	Behavior    string   `json:"Behavior,omitempty"`
	TTL         string   `json:"TTL,omitempty"`
	Checks      []string `json:"Checks,omitempty"`
	CreateIndex uint64   `json:"CreateIndex,omitempty"`
	ModifyIndex uint64   `json:"ModifyIndex,omitempty"`
}

// Create initializes a new session on the local agent's node and
// returns its ID. A nil entry creates a session with server defaults.
func (s *Session) Create(ctx context.Context, entry *SessionEntry, w *WriteOptions) (string, error) {
	if entry == nil {
		entry = &SessionEntry{}
	}
	if entry.Behavior != "" &&
		entry.Behavior != SessionBehaviorRelease && entry.Behavior != SessionBehaviorDelete {
		return "", errors.New(ErrCodeInvalidConfig,
			"session behavior must be release or delete")
	}
	var out struct {
		ID string `json:"ID"`
	}
	if err := s.c.write(ctx, http.MethodPut, "/session/create", entry, w, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Destroy invalidates the given session. Destroying an expired or
// unknown session still succeeds; the operation is idempotent.
func (s *Session) Destroy(ctx context.Context, sessionID string, w *WriteOptions) error {
	if sessionID == "" {
		return errors.New(ErrCodeInvalidConfig, "session ID must not be empty")
	}
	return s.c.write(ctx, http.MethodPut,
		"/session/destroy/"+url.PathEscape(sessionID), nil, w, nil)
}

// Info returns the named session, or nil when it does not exist or has
// expired.
func (s *Session) Info(ctx context.Context, sessionID string, q *QueryOptions) (*SessionEntry, *QueryMeta, error) {
	if sessionID == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "session ID must not be empty")
	}
	var out []*SessionEntry
	meta, err := s.c.query(ctx, "/session/info/"+url.PathEscape(sessionID), q, &out)
	if err != nil {
		return nil, nil, err
	}
	if len(out) == 0 {
		return nil, meta, nil
	}
	return out[0], meta, nil
}

// List returns all active sessions in the datacenter.
func (s *Session) List(ctx context.Context, q *QueryOptions) ([]*SessionEntry, *QueryMeta, error) {
	var out []*SessionEntry
	meta, err := s.c.query(ctx, "/session/list", q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Node returns the active sessions for the named node.
func (s *Session) Node(ctx context.Context, nodeName string, q *QueryOptions) ([]*SessionEntry, *QueryMeta, error) {
	if nodeName == "" {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "node name must not be empty")
	}
	var out []*SessionEntry
	meta, err := s.c.query(ctx, "/session/node/"+url.PathEscape(nodeName), q, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Renew extends a TTL session by its TTL and returns the refreshed
// entry, or nil when the session no longer exists.
func (s *Session) Renew(ctx context.Context, sessionID string, w *WriteOptions) (*SessionEntry, error) {
	if sessionID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "session ID must not be empty")
	}
	r := s.c.newRequest(http.MethodPut, "/session/renew/"+url.PathEscape(sessionID))
	r.setWriteOptions(w)
	_, resp, err := s.c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		closeResponseBody(resp)
		return nil, nil
	}
	if err := s.c.requireOK(r, resp); err != nil {
		return nil, err
	}
	var out []*SessionEntry
	if err := s.c.decodeBody(resp, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}
