// acl.go: access-control endpoints (bootstrap, tokens, policies)
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

// ACL exposes the /acl endpoints.
type ACL struct {
	c *Client
}

// ACLPolicyLink references a policy from a token, by ID, name or both.
type ACLPolicyLink struct {
	ID   string `json:"ID,omitempty"`
	Name string `json:"Name,omitempty"`
}

// ACLRoleLink references a role from a token.
type ACLRoleLink struct {
	ID   string `json:"ID,omitempty"`
	Name string `json:"Name,omitempty"`
}

// ACLServiceIdentity generates a service policy for the token it is
// attached to.
type ACLServiceIdentity struct {
	ServiceName string   `json:"ServiceName"`
	Datacenters []string `json:"Datacenters,omitempty"`
}

// ACLToken is an access token together with the policies stored on it.
type ACLToken struct {
	AccessorID        string               `json:"AccessorID"`
	SecretID          string               `json:"SecretID"`
	Description       string               `json:"Description"`
	Policies          []ACLPolicyLink      `json:"Policies"`
	Roles             []ACLRoleLink        `json:"Roles,omitempty"`
	ServiceIdentities []ACLServiceIdentity `json:"ServiceIdentities,omitempty"`
	Local             bool                 `json:"Local"`
	ExpirationTime    string               `json:"ExpirationTime,omitempty"`
	CreateTime        string               `json:"CreateTime"`
	Hash              string               `json:"Hash"`
	CreateIndex       uint64               `json:"CreateIndex"`
	ModifyIndex       uint64               `json:"ModifyIndex"`
}

// ACLTokenCreate is the payload for TokenCreate and TokenUpdate.
// Unset IDs are generated by the server.
type ACLTokenCreate struct {
	AccessorID        string               `json:"AccessorID,omitempty"`
	SecretID          string               `json:"SecretID,omitempty"`
	Description       string               `json:"Description,omitempty"`
	Policies          []ACLPolicyLink      `json:"Policies,omitempty"`
	Roles             []ACLRoleLink        `json:"Roles,omitempty"`
	ServiceIdentities []ACLServiceIdentity `json:"ServiceIdentities,omitempty"`
	Local             bool                 `json:"Local,omitempty"`
	ExpirationTime    string               `json:"ExpirationTime,omitempty"`
	ExpirationTTL     string               `json:"ExpirationTTL,omitempty"`
}

// ACLPolicy is a named set of ACL rules.
type ACLPolicy struct {
	ID          string   `json:"ID"`
	Name        string   `json:"Name"`
	Description string   `json:"Description"`
	Rules       string   `json:"Rules"`
	Datacenters []string `json:"Datacenters"`
	Hash        string   `json:"Hash"`
	CreateIndex uint64   `json:"CreateIndex"`
	ModifyIndex uint64   `json:"ModifyIndex"`
}

// ACLPolicyCreate is the payload for PolicyCreate and PolicyUpdate.
type ACLPolicyCreate struct {
	Name        string   `json:"Name"`
	Description string   `json:"Description,omitempty"`
	Rules       string   `json:"Rules,omitempty"`
	Datacenters []string `json:"Datacenters,omitempty"`
}

// ACLReplication is the ACL replication state of a datacenter.
type ACLReplication struct {
	Enabled              bool   `json:"Enabled"`
	Running              bool   `json:"Running"`
	SourceDatacenter     string `json:"SourceDatacenter"`
	ReplicationType      string `json:"ReplicationType"`
	ReplicatedIndex      uint64 `json:"ReplicatedIndex"`
	ReplicatedTokenIndex uint64 `json:"ReplicatedTokenIndex"`
	LastSuccess          string `json:"LastSuccess"`
	LastError            string `json:"LastError"`
	LastErrorMessage     string `json:"LastErrorMessage"`
}

// ACLLoginParams is the payload for Login.
type ACLLoginParams struct {
	AuthMethod  string            `json:"AuthMethod"`
	BearerToken string            `json:"BearerToken"`
	Meta        map[string]string `json:"Meta,omitempty"`
}

// Bootstrap performs the one-time bootstrap of the ACL system and
// returns the initial management token. Consul answers 403 once the
// cluster has already been bootstrapped.
func (a *ACL) Bootstrap(ctx context.Context) (*ACLToken, error) {
	var out ACLToken
	if err := a.c.write(ctx, http.MethodPut, "/acl/bootstrap", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Replication returns the ACL replication state of the datacenter.
func (a *ACL) Replication(ctx context.Context, q *QueryOptions) (*ACLReplication, error) {
	var out ACLReplication
	if _, err := a.c.query(ctx, "/acl/replication", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges an auth-method bearer token for a newly minted ACL
// token.
func (a *ACL) Login(ctx context.Context, params *ACLLoginParams, w *WriteOptions) (*ACLToken, error) {
	if params == nil || params.AuthMethod == "" || params.BearerToken == "" {
		return nil, errors.New(ErrCodeInvalidConfig,
			"login requires an auth method and a bearer token")
	}
	var out ACLToken
	if err := a.c.write(ctx, http.MethodPost, "/acl/login", params, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout destroys the token the request was authenticated with.
func (a *ACL) Logout(ctx context.Context, w *WriteOptions) error {
	return a.c.write(ctx, http.MethodPost, "/acl/logout", nil, w, nil)
}

// TokenCreate mints a new ACL token.
func (a *ACL) TokenCreate(ctx context.Context, token *ACLTokenCreate, w *WriteOptions) (*ACLToken, error) {
	if token == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "token must not be nil")
	}
	var out ACLToken
	if err := a.c.write(ctx, http.MethodPut, "/acl/token", token, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenRead returns the token with the given accessor ID.
func (a *ACL) TokenRead(ctx context.Context, accessorID string, q *QueryOptions) (*ACLToken, error) {
	if accessorID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "accessor ID must not be empty")
	}
	var out ACLToken
	if _, err := a.c.query(ctx, "/acl/token/"+url.PathEscape(accessorID), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenReadSelf returns the token the request was authenticated with.
func (a *ACL) TokenReadSelf(ctx context.Context, q *QueryOptions) (*ACLToken, error) {
	var out ACLToken
	if _, err := a.c.query(ctx, "/acl/token/self", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenUpdate modifies an existing token in place.
func (a *ACL) TokenUpdate(ctx context.Context, accessorID string, token *ACLTokenCreate, w *WriteOptions) (*ACLToken, error) {
	if accessorID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "accessor ID must not be empty")
	}
	if token == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "token must not be nil")
	}
	var out ACLToken
	if err := a.c.write(ctx, http.MethodPut,
		"/acl/token/"+url.PathEscape(accessorID), token, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenClone copies an existing token under a fresh pair of IDs.
func (a *ACL) TokenClone(ctx context.Context, accessorID, description string, w *WriteOptions) (*ACLToken, error) {
	if accessorID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "accessor ID must not be empty")
	}
	body := map[string]string{}
	if description != "" {
		body["Description"] = description
	}
	var out ACLToken
	if err := a.c.write(ctx, http.MethodPut,
		"/acl/token/"+url.PathEscape(accessorID)+"/clone", body, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenDelete destroys the token with the given accessor ID.
func (a *ACL) TokenDelete(ctx context.Context, accessorID string, w *WriteOptions) error {
	if accessorID == "" {
		return errors.New(ErrCodeInvalidConfig, "accessor ID must not be empty")
	}
	return a.c.write(ctx, http.MethodDelete,
		"/acl/token/"+url.PathEscape(accessorID), nil, w, nil)
}

// TokenList lists all tokens. Secret IDs are redacted by the server
// unless the requesting token has acl:write.
func (a *ACL) TokenList(ctx context.Context, q *QueryOptions) ([]*ACLToken, error) {
	var out []*ACLToken
	if _, err := a.c.query(ctx, "/acl/tokens", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PolicyCreate creates a new ACL policy.
func (a *ACL) PolicyCreate(ctx context.Context, policy *ACLPolicyCreate, w *WriteOptions) (*ACLPolicy, error) {
	if policy == nil || policy.Name == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "policy name must not be empty")
	}
	var out ACLPolicy
	if err := a.c.write(ctx, http.MethodPut, "/acl/policy", policy, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PolicyRead returns the policy with the given ID.
func (a *ACL) PolicyRead(ctx context.Context, policyID string, q *QueryOptions) (*ACLPolicy, error) {
	if policyID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "policy ID must not be empty")
	}
	var out ACLPolicy
	if _, err := a.c.query(ctx, "/acl/policy/"+url.PathEscape(policyID), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PolicyUpdate modifies an existing policy.
func (a *ACL) PolicyUpdate(ctx context.Context, policyID string, policy *ACLPolicyCreate, w *WriteOptions) (*ACLPolicy, error) {
	if policyID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "policy ID must not be empty")
	}
	if policy == nil || policy.Name == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "policy name must not be empty")
	}
	var out ACLPolicy
	if err := a.c.write(ctx, http.MethodPut,
		"/acl/policy/"+url.PathEscape(policyID), policy, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PolicyDelete destroys the policy with the given ID.
func (a *ACL) PolicyDelete(ctx context.Context, policyID string, w *WriteOptions) error {
	if policyID == "" {
		return errors.New(ErrCodeInvalidConfig, "policy ID must not be empty")
	}
	return a.c.write(ctx, http.MethodDelete,
		"/acl/policy/"+url.PathEscape(policyID), nil, w, nil)
}

// PolicyList lists all ACL policies.
func (a *ACL) PolicyList(ctx context.Context, q *QueryOptions) ([]*ACLPolicy, error) {
	var out []*ACLPolicy
	if _, err := a.c.query(ctx, "/acl/policies", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
