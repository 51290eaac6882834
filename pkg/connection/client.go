// Package connection talks to the remote collection service. It owns the
// authenticated, proxy aware HTTP session and implements registration,
// connectivity diagnostics and archive upload on top of it.
//
// A Client is built once per invocation and used sequentially; it is not
// safe for concurrent use.
package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/identity"
	"github.com/insights-client/insights-client/pkg/satellite"
	"github.com/pkg/errors"
)

// maxResponseBytes caps how much of a response body is read into memory.
const maxResponseBytes = 1 << 20

// IdentityStore is the local persisted state the connection layer reads
// and mutates.
type IdentityStore interface {
	MachineID(regenerate bool) (string, error)
	WriteRegistered() error
	DeleteRegistered() error
	WriteUnregistered(unregisteredAt string) error
	DeleteUnregistered() error
	State() (identity.State, string, error)
}

// Resolver is the subset of net.Resolver used for hostname validation.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Option func(*Client)

// WithResolver overrides the resolver used to validate hostnames.
func WithResolver(r Resolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithHostname overrides how the registered hostname is determined.
func WithHostname(fn func() string) Option {
	return func(c *Client) {
		c.hostname = fn
	}
}

// WithSystemIDPath overrides the location of the legacy satellite identity file.
func WithSystemIDPath(path string) Option {
	return func(c *Client) {
		c.systemIDPath = path
	}
}

// Client is the per-invocation connection context: configuration, the
// built session, a logger and the identity store, passed by reference to
// every operation.
type Client struct {
	logger       log.Logger
	config       *Config
	session      *http.Client
	identity     IdentityStore
	resolver     Resolver
	hostname     func() string
	systemIDPath string

	dnsFailures []*DNSResolutionError
}

// New validates the configured endpoints and builds the session. DNS
// failures are logged and kept for diagnostics; malformed endpoints fail
// with a ConfigurationError.
func New(ctx context.Context, logger log.Logger, cfg *Config, ids IdentityStore, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, NewConfigurationError("missing connection configuration", nil)
	}

	c := &Client{
		logger:       log.With(logger, "component", "connection"),
		config:       cfg,
		identity:     ids,
		resolver:     net.DefaultResolver,
		hostname:     identity.Hostname,
		systemIDPath: satellite.DefaultSystemIDPath,
	}

	for _, opt := range opts {
		opt(c)
	}

	dnsFailures, err := c.ValidateHostnames(ctx)
	if err != nil {
		return nil, err
	}
	c.dnsFailures = dnsFailures

	session, err := buildSession(cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.session = session

	return c, nil
}

// Config returns the configuration the session was built from.
func (c *Client) Config() *Config {
	return c.config
}

// DNSFailures returns the hostnames that failed to resolve at construction.
func (c *Client) DNSFailures() []*DNSResolutionError {
	return c.dnsFailures
}

// do issues a request with the session and reads the (bounded) body. The
// whole exchange must finish within the configured timeout. Transport level
// failures come back as a ConnectivityError.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	return c.send(ctx, method, url, body, contentType)
}

// send is do without the overall deadline. Only the transport's own
// timeouts and ctx apply.
func (c *Client) send(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, NewConfigurationError("creating request for "+url, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return nil, nil, &ConnectivityError{URL: url, err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, &ConnectivityError{URL: url, err: errors.Wrap(err, "reading response body")}
	}

	return resp, respBody, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload interface{}) (*http.Response, []byte, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, errors.Wrap(err, "marshaling request body")
		}
		level.Debug(c.logger).Log("msg", "request body", "url", url, "body", string(raw))
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, url, body, contentType)
}

// handleFailure classifies any response with status >= 400. A 412 carries
// the server side deregistration time, which is persisted before the error
// is returned. Responses below 400 return nil.
func (c *Client) handleFailure(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	url := resp.Request.URL.String()
	level.Error(c.logger).Log("msg", "request failed", "url", url)
	level.Info(c.logger).Log("msg", "http status", "status_code", resp.StatusCode, "status", http.StatusText(resp.StatusCode))
	level.Debug(c.logger).Log("msg", "http response", "body", string(body))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		level.Error(c.logger).Log("msg", "authorization required, please ensure correct credentials in the configuration file")
		return &AuthenticationError{URL: url}

	case http.StatusPreconditionFailed:
		unregisteredAt := "412, but no unreg_date"
		var payload struct {
			UnregisteredAt *string `json:"unregistered_at"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.UnregisteredAt != nil {
			unregisteredAt = *payload.UnregisteredAt
		}
		if err := c.identity.WriteUnregistered(unregisteredAt); err != nil {
			return errors.Wrap(err, "recording deregistration")
		}
		return &DeregisteredError{UnregisteredAt: unregisteredAt}

	default:
		return newServerError(resp, body)
	}
}
