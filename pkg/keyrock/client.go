// Package keyrock is the HTTP client for the upstream Keyrock identity
// authority. It covers the token exchange used at login, introspection,
// IoT device-account management under the gateway's Keyrock application,
// and the pass-through user/role/permission administration APIs.
//
// Every failure leaves this package as a normalized *errors.Error: a
// transport failure becomes upstream_unavailable, a non-2xx status goes
// through the single status mapping in pkg/errors. Raw upstream bodies
// never escape.
package keyrock

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

	backoff "github.com/cenkalti/backoff/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/telemetry"
)

const (
	// httpTimeout is the timeout for outgoing HTTP requests
	httpTimeout = 30 * time.Second

	// maxResponseBodySize is the maximum size for reading response bodies (1 MB)
	maxResponseBodySize = 1 << 20

	// maxGetRetries bounds retries of idempotent reads on transport failure,
	// including the initial attempt.
	maxGetRetries = 3

	// authTokenHeader carries the management credential on privileged calls.
	authTokenHeader = "X-Auth-Token" // #nosec G101 -- header name, not a credential

	// subjectTokenHeader carries the token under inspection and, on a token
	// exchange response, the freshly issued management credential.
	subjectTokenHeader = "X-Subject-Token" // #nosec G101 -- header name, not a credential
)

// Config holds the Keyrock connection settings.
type Config struct {
	// BaseURL is the root of the Keyrock API, e.g. http://keyrock:3005.
	BaseURL string

	// AppID is the Keyrock application owning roles, permissions and
	// device accounts managed by this gateway.
	AppID string

	// ClientID and ClientSecret identify the gateway's OAuth2 client,
	// used only for device trust-token issuance.
	ClientID     string
	ClientSecret string
}

// Client talks to a Keyrock instance.
type Client struct {
	baseURL      string
	appID        string
	clientID     string
	clientSecret string
	http         *http.Client
}

// NewClient creates a Keyrock client. If httpClient is nil a default
// client with a 30s timeout is used.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("keyrock base URL is required")
	}
	if cfg.AppID == "" {
		return nil, fmt.Errorf("keyrock application ID is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpTimeout}
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		appID:        cfg.AppID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         httpClient,
	}, nil
}

// AppID returns the Keyrock application this client manages.
func (c *Client) AppID() string {
	return c.appID
}

// do performs a single request against Keyrock. op is the metric label for
// the operation (route template, never raw IDs). A non-empty token is sent
// as the X-Auth-Token management credential. The response body is read
// fully (bounded) and returned alongside the response so callers can map
// the status exactly once.
func (c *Client) do(ctx context.Context, op, method, path, token string, body any, query url.Values) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(authTokenHeader, token)
	}

	return c.doRequest(req, op)
}

// doRequest executes a prepared request, records telemetry and drains the
// bounded response body. Transport failures become upstream_unavailable.
func (c *Client) doRequest(req *http.Request, op string) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	telemetry.ObserveUpstream("keyrock", op, err, time.Since(start))
	if err != nil {
		return nil, nil, errors.NewUpstreamUnavailableError("keyrock unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, nil, errors.NewUpstreamUnavailableError("failed to read keyrock response", err)
	}
	return resp, respBody, nil
}

// doRetry wraps do with exponential backoff for idempotent reads: only
// transport failures are retried, any upstream answer is final.
func (c *Client) doRetry(ctx context.Context, op, method, path, token string, query url.Values) (*http.Response, []byte, error) {
	type result struct {
		resp *http.Response
		body []byte
	}
	operation := func() (result, error) {
		resp, body, err := c.do(ctx, op, method, path, token, nil, query)
		if err != nil {
			if errors.IsUpstreamUnavailable(err) {
				return result{}, err
			}
			return result{}, backoff.Permanent(err)
		}
		return result{resp, body}, nil
	}
	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxGetRetries),
	)
	if err != nil {
		return nil, nil, err
	}
	return res.resp, res.body, nil
}

// errorMessage extracts the human message from a Keyrock error body.
// Keyrock answers either {"error": {"message": "..."}} or {"error": "..."}.
func errorMessage(body []byte, fallback string) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}
	return fallback
}

// statusError maps a non-2xx management-credential response through the
// shared status table.
func statusError(resp *http.Response, body []byte, fallback string) error {
	return errors.FromStatus(resp.StatusCode, errorMessage(body, fallback))
}

// credentialError maps a non-2xx response on a call site where the caller
// presented a primary credential directly.
func credentialError(resp *http.Response, body []byte, fallback string) error {
	return errors.FromCredentialStatus(resp.StatusCode, errorMessage(body, fallback))
}

func inconsistentExchange() error {
	return errors.NewUpstreamInconsistentError("identity authority accepted the exchange but returned no token", nil)
}

func inconsistentIntrospection(cause error) error {
	return errors.NewUpstreamInconsistentError("identity authority returned an unusable introspection response", cause)
}

// inconsistentRecord reports a 2xx answer whose body did not contain the
// record it was supposed to.
func inconsistentRecord(what string, cause error) error {
	return errors.NewUpstreamInconsistentError(fmt.Sprintf("identity authority returned an unusable %s response", what), cause)
}

func is2xx(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
