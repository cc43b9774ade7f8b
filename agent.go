// agent.go: local-agent endpoints (services, checks, TTL updates)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/agilira/go-errors"
)

// Agent exposes the /agent endpoints. These act on the local agent the
// client is connected to, as opposed to the cluster-wide catalog.
type Agent struct {
	c *Client
}

// AgentService is a service registered with the local agent, either
// through configuration files or dynamically via this API.
type AgentService struct {
	Kind              string                   `json:"Kind,omitempty"`
	ID                string                   `json:"ID"`
	Service           string                   `json:"Service"`
	Tags              []string                 `json:"Tags"`
	Meta              map[string]string        `json:"Meta"`
	Address           string                   `json:"Address"`
	TaggedAddresses   map[string]TaggedAddress `json:"TaggedAddresses,omitempty"`
	Port              int                      `json:"Port"`
	EnableTagOverride bool                     `json:"EnableTagOverride"`
	Weights           Weights                  `json:"Weights"`
	ContentHash       string                   `json:"ContentHash,omitempty"`
}

// AgentCheck is a health check registered with the local agent.
type AgentCheck struct {
	Node        string `json:"Node"`
	CheckID     string `json:"CheckID"`
	Name        string `json:"Name"`
	Status      string `json:"Status"`
	Notes       string `json:"Notes"`
	Output      string `json:"Output"`
	ServiceID   string `json:"ServiceID"`
	ServiceName string `json:"ServiceName"`
	Type        string `json:"Type"`
}

// AgentServiceCheck describes a check attached to a service
// registration. Exactly one of the probe fields (HTTP, TCP, Args, TTL,
// GRPC) should be set.
type AgentServiceCheck struct {
	CheckID                        string              `json:"CheckID,omitempty"`
	Name                           string              `json:"Name,omitempty"`
	Notes                          string              `json:"Notes,omitempty"`
	Args                           []string            `json:"Args,omitempty"`
	Interval                       string              `json:"Interval,omitempty"`
	Timeout                        string              `json:"Timeout,omitempty"`
	HTTP                           string              `json:"HTTP,omitempty"`
	Method                         string              `json:"Method,omitempty"`
	Header                         map[string][]string `json:"Header,omitempty"`
	Body                           string              `json:"Body,omitempty"`
	TCP                            string              `json:"TCP,omitempty"`
	GRPC                           string              `json:"GRPC,omitempty"`
	TTL                            string              `json:"TTL,omitempty"`
	TLSSkipVerify                  bool                `json:"TLSSkipVerify,omitempty"`
	DeregisterCriticalServiceAfter string              `json:"DeregisterCriticalServiceAfter,omitempty"`
	Status                         string              `json:"Status,omitempty"`
}

// AgentServiceRegistration is the payload for ServiceRegister.
type AgentServiceRegistration struct {
	Kind              string                   `json:"Kind,omitempty"`
	ID                string                   `json:"ID,omitempty"`
	Name              string                   `json:"Name"`
	Tags              []string                 `json:"Tags,omitempty"`
	Meta              map[string]string        `json:"Meta,omitempty"`
	Address           string                   `json:"Address,omitempty"`
	TaggedAddresses   map[string]TaggedAddress `json:"TaggedAddresses,omitempty"`
	Port              int                      `json:"Port,omitempty"`
	EnableTagOverride bool                     `json:"EnableTagOverride,omitempty"`
	Weights           *Weights                 `json:"Weights,omitempty"`
	Check             *AgentServiceCheck       `json:"Check,omitempty"`
	Checks            []*AgentServiceCheck     `json:"Checks,omitempty"`
}

// AgentCheckRegistration is the payload for CheckRegister. The check
// may be bound to a service via ServiceID.
type AgentCheckRegistration struct {
	ID        string `json:"ID,omitempty"`
	Name      string `json:"Name"`
	Notes     string `json:"Notes,omitempty"`
	ServiceID string `json:"ServiceID,omitempty"`
	AgentServiceCheck
}

// Self returns the local agent's configuration and member information
// as reported by /agent/self.
func (a *Agent) Self(ctx context.Context) (map[string]map[string]interface{}, error) {
	var out map[string]map[string]interface{}
	if _, err := a.c.query(ctx, "/agent/self", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Services lists the services registered with the local agent, keyed
// by service ID.
func (a *Agent) Services(ctx context.Context) (map[string]*AgentService, error) {
	var out map[string]*AgentService
	if _, err := a.c.query(ctx, "/agent/services", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Service returns the full definition of a single service instance
// registered with the local agent.
func (a *Agent) Service(ctx context.Context, serviceID string) (*AgentService, error) {
	if serviceID == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "service ID must not be empty")
	}
	var out AgentService
	if _, err := a.c.query(ctx, "/agent/service/"+url.PathEscape(serviceID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServiceRegister adds a new service, with optional health checks, to
// the local agent.
func (a *Agent) ServiceRegister(ctx context.Context, reg *AgentServiceRegistration) error {
	if reg == nil || reg.Name == "" {
		return errors.New(ErrCodeInvalidConfig, "service name must not be empty")
	}
	return a.c.write(ctx, http.MethodPut, "/agent/service/register", reg, nil, nil)
}

// ServiceDeregister removes a service from the local agent. The agent
// takes care of deregistering it from the catalog.
func (a *Agent) ServiceDeregister(ctx context.Context, serviceID string) error {
	if serviceID == "" {
		return errors.New(ErrCodeInvalidConfig, "service ID must not be empty")
	}
	return a.c.write(ctx, http.MethodPut,
		"/agent/service/deregister/"+url.PathEscape(serviceID), nil, nil, nil)
}

// ServiceHealth returns the aggregated health state ("passing",
// "warning", "critical") of all local instances of the named service,
// along with their definitions.
func (a *Agent) ServiceHealth(ctx context.Context, serviceName string) (string, []*AgentService, error) {
	if serviceName == "" {
		return "", nil, errors.New(ErrCodeInvalidConfig, "service name must not be empty")
	}
	return a.serviceHealth(ctx, "/agent/health/service/name/"+url.PathEscape(serviceName))
}

// ServiceHealthByID returns the health state of one service instance
// on the local agent, by ID.
func (a *Agent) ServiceHealthByID(ctx context.Context, serviceID string) (string, *AgentService, error) {
	if serviceID == "" {
		return "", nil, errors.New(ErrCodeInvalidConfig, "service ID must not be empty")
	}
	var out struct {
		AggregatedStatus string        `json:"AggregatedStatus"`
		Service          *AgentService `json:"Service"`
	}
	status, err := a.c.healthQuery(ctx, "/agent/health/service/id/"+url.PathEscape(serviceID), &out)
	if err != nil {
		return "", nil, err
	}
	if status != "" {
		return status, out.Service, nil
	}
	return out.AggregatedStatus, out.Service, nil
}

func (a *Agent) serviceHealth(ctx context.Context, path string) (string, []*AgentService, error) {
	var out []struct {
		AggregatedStatus string        `json:"AggregatedStatus"`
		Service          *AgentService `json:"Service"`
	}
	status, err := a.c.healthQuery(ctx, path, &out)
	if err != nil {
		return "", nil, err
	}
	services := make([]*AgentService, 0, len(out))
	aggregated := status
	for _, entry := range out {
		services = append(services, entry.Service)
		if aggregated == "" {
			aggregated = entry.AggregatedStatus
		}
	}
	return aggregated, services, nil
}

// healthQuery handles the /agent/health endpoints, which report state
// through the status code (429 for warning, 503 for critical) as well
// as the body.
func (c *Client) healthQuery(ctx context.Context, path string, out interface{}) (string, error) {
	r := c.newRequest(http.MethodGet, path)
	_, resp, err := c.doRequest(ctx, r)
	if err != nil {
		return "", err
	}
	var status string
	switch resp.StatusCode {
	case http.StatusOK:
		status = HealthPassing
	case http.StatusTooManyRequests:
		status = HealthWarning
	case http.StatusServiceUnavailable:
		status = HealthCritical
	default:
		return "", c.requireOK(r, resp)
	}
	if err := c.decodeBody(resp, out); err != nil {
		return "", err
	}
	return status, nil
}

// Checks lists the checks registered with the local agent, keyed by
// check ID.
func (a *Agent) Checks(ctx context.Context) (map[string]*AgentCheck, error) {
	var out map[string]*AgentCheck
	if _, err := a.c.query(ctx, "/agent/checks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckRegister registers a new check with the local agent.
func (a *Agent) CheckRegister(ctx context.Context, reg *AgentCheckRegistration) error {
	if reg == nil || reg.Name == "" {
		return errors.New(ErrCodeInvalidConfig, "check name must not be empty")
	}
	return a.c.write(ctx, http.MethodPut, "/agent/check/register", reg, nil, nil)
}

// CheckDeregister removes a check from the local agent.
func (a *Agent) CheckDeregister(ctx context.Context, checkID string) error {
	if checkID == "" {
		return errors.New(ErrCodeInvalidConfig, "check ID must not be empty")
	}
	return a.c.write(ctx, http.MethodPut,
		"/agent/check/deregister/"+url.PathEscape(checkID), nil, nil, nil)
}

// UpdateTTL reports the status of a TTL check, resetting its clock.
// Status must be one of HealthPassing, HealthWarning or HealthCritical;
// output is free-form text stored with the check.
func (a *Agent) UpdateTTL(ctx context.Context, checkID, output, status string) error {
	if checkID == "" {
		return errors.New(ErrCodeInvalidConfig, "check ID must not be empty")
	}
	switch status {
	case HealthPassing, HealthWarning, HealthCritical:
	default:
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("invalid TTL check status %q", status))
	}
	body := map[string]string{
		"Status": status,
		"Output": output,
	}
	return a.c.write(ctx, http.MethodPut,
		"/agent/check/update/"+url.PathEscape(checkID), body, nil, nil)
}

// PassTTL marks a TTL check as passing.
func (a *Agent) PassTTL(ctx context.Context, checkID, output string) error {
	return a.UpdateTTL(ctx, checkID, output, HealthPassing)
}

// WarnTTL marks a TTL check as warning.
func (a *Agent) WarnTTL(ctx context.Context, checkID, output string) error {
	return a.UpdateTTL(ctx, checkID, output, HealthWarning)
}

// FailTTL marks a TTL check as critical.
func (a *Agent) FailTTL(ctx context.Context, checkID, output string) error {
	return a.UpdateTTL(ctx, checkID, output, HealthCritical)
}
