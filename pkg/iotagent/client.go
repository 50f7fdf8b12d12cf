// Package iotagent forwards provisioning requests to the upstream IoT
// Agent. The agent scopes everything by tenant headers rather than
// credentials, so the client stamps the configured Fiware-Service and
// Fiware-ServicePath on every call and otherwise passes payloads through
// untouched.
//
// Failures are normalized exactly like Keyrock failures: transport errors
// become upstream_unavailable, statuses go through the shared mapping.
package iotagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/telemetry"
)

const (
	httpTimeout         = 30 * time.Second
	maxResponseBodySize = 1 << 20

	serviceHeader     = "Fiware-Service"
	servicePathHeader = "Fiware-ServicePath"
)

// Config holds the IoT Agent connection settings.
type Config struct {
	// BaseURL is the root of the IoT Agent north port, e.g. http://iot-agent:4041.
	BaseURL string

	// Service and ServicePath identify the tenant scope stamped on every
	// request.
	Service     string
	ServicePath string
}

// Client talks to the IoT Agent's provisioning API.
type Client struct {
	baseURL     string
	service     string
	servicePath string
	http        *http.Client
}

// NewClient creates an IoT Agent client. If httpClient is nil a default
// client with a 30s timeout is used.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("iot agent base URL is required")
	}
	if cfg.Service == "" {
		cfg.Service = "openiot"
	}
	if cfg.ServicePath == "" {
		cfg.ServicePath = "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpTimeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		service:     cfg.Service,
		servicePath: cfg.ServicePath,
		http:        httpClient,
	}, nil
}

// forward relays one request to the agent and returns the raw response
// document. The agent's payloads are protocol-specific and the gateway has
// no opinion on them, so they pass through as JSON.
func (c *Client) forward(ctx context.Context, op, method, path string, body json.RawMessage, query url.Values) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(serviceHeader, c.service)
	req.Header.Set(servicePathHeader, c.servicePath)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	telemetry.ObserveUpstream("iot-agent", op, err, time.Since(start))
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError("iot agent unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError("failed to read iot agent response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.FromStatus(resp.StatusCode, agentErrorMessage(respBody))
	}
	if len(respBody) == 0 {
		return nil, nil
	}
	return respBody, nil
}

// agentErrorMessage extracts the agent's message field, falling back to a
// generic phrase so raw bodies never leak.
func agentErrorMessage(body []byte) string {
	var parsed struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return "iot agent request failed"
}

// CreateServiceGroup provisions a service group.
func (c *Client) CreateServiceGroup(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.forward(ctx, "create_service_group", http.MethodPost, "/iot/services", body, nil)
}

// ListServiceGroups returns the tenant's service groups.
func (c *Client) ListServiceGroups(ctx context.Context) (json.RawMessage, error) {
	return c.forward(ctx, "list_service_groups", http.MethodGet, "/iot/services", nil, nil)
}

// UpdateServiceGroup updates the service group selected by query params
// (resource and apikey).
func (c *Client) UpdateServiceGroup(ctx context.Context, body json.RawMessage, query url.Values) (json.RawMessage, error) {
	return c.forward(ctx, "update_service_group", http.MethodPut, "/iot/services", body, query)
}

// DeleteServiceGroup removes the service group selected by query params.
func (c *Client) DeleteServiceGroup(ctx context.Context, query url.Values) error {
	_, err := c.forward(ctx, "delete_service_group", http.MethodDelete, "/iot/services", nil, query)
	return err
}

// CreateDevices registers one or more device entities with the agent.
func (c *Client) CreateDevices(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.forward(ctx, "create_devices", http.MethodPost, "/iot/devices", body, nil)
}

// ListDevices returns the tenant's device registrations.
func (c *Client) ListDevices(ctx context.Context) (json.RawMessage, error) {
	return c.forward(ctx, "list_devices", http.MethodGet, "/iot/devices", nil, nil)
}

// GetDevice returns one device registration.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (json.RawMessage, error) {
	return c.forward(ctx, "get_device", http.MethodGet, "/iot/devices/"+url.PathEscape(deviceID), nil, nil)
}

// UpdateDevice updates one device registration.
func (c *Client) UpdateDevice(ctx context.Context, deviceID string, body json.RawMessage) (json.RawMessage, error) {
	return c.forward(ctx, "update_device", http.MethodPut, "/iot/devices/"+url.PathEscape(deviceID), body, nil)
}

// DeleteDevice removes one device registration.
func (c *Client) DeleteDevice(ctx context.Context, deviceID string) error {
	_, err := c.forward(ctx, "delete_device", http.MethodDelete, "/iot/devices/"+url.PathEscape(deviceID), nil, nil)
	return err
}
