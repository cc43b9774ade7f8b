// connect.go: Connect certificate authority endpoints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agilira/go-errors"
)

// ConnectCA exposes the /connect/ca endpoints for interacting with
// Connect's certificate authority.
type ConnectCA struct {
	c *Client
}

// CAConfig is the certificate authority configuration. Config is an
// opaque, provider-specific document.
type CAConfig struct {
	Provider    string          `json:"Provider"`
	Config      json.RawMessage `json:"Config"`
	CreateIndex uint64          `json:"CreateIndex,omitempty"`
	ModifyIndex uint64          `json:"ModifyIndex,omitempty"`
}

// CARoot is one trusted root certificate in the cluster.
type CARoot struct {
	ID          string `json:"ID"`
	Name        string `json:"Name"`
	RootCert    string `json:"RootCert"`
	Active      bool   `json:"Active"`
	CreateIndex uint64 `json:"CreateIndex"`
	ModifyIndex uint64 `json:"ModifyIndex"`
}

// CARootList is the current set of trusted roots together with the
// cluster's trust domain.
type CARootList struct {
	ActiveRootID string    `json:"ActiveRootID"`
	TrustDomain  string    `json:"TrustDomain"`
	Roots        []*CARoot `json:"Roots"`
}

// CARoots returns the current list of trusted CA root certificates.
func (cc *ConnectCA) CARoots(ctx context.Context, q *QueryOptions) (*CARootList, *QueryMeta, error) {
	var out CARootList
	meta, err := cc.c.query(ctx, "/connect/ca/roots", q, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, meta, nil
}

// CAGetConfig returns the current CA configuration.
func (cc *ConnectCA) CAGetConfig(ctx context.Context, q *QueryOptions) (*CAConfig, error) {
	var out CAConfig
	if _, err := cc.c.query(ctx, "/connect/ca/configuration", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CASetConfig updates the CA configuration, potentially triggering a
// root rotation.
func (cc *ConnectCA) CASetConfig(ctx context.Context, conf *CAConfig, w *WriteOptions) error {
	if conf == nil || conf.Provider == "" {
		return errors.New(ErrCodeInvalidConfig, "CA provider must not be empty")
	}
	return cc.c.write(ctx, http.MethodPut, "/connect/ca/configuration", conf, w, nil)
}
