package connection

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// probePaths returns the path variants tried against a base URL. The
// remote topology (direct or reverse proxied) is not known ahead of time.
func probePaths(path string) []string {
	return []string{path + "/", "", "/rs", "/rs/telemetry"}
}

// TestURLs probes the path variants of rawURL with method (GET or POST)
// until one answers 200 or 201. If none does, the returned
// ConnectivityError wraps the last connection error, or the last
// unexpected status when every variant answered.
func (c *Client) TestURLs(ctx context.Context, rawURL, method string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return NewConfigurationError("invalid url "+rawURL, err)
	}
	base := u.Scheme + "://" + u.Host

	var lastConnErr, lastStatusErr error
	for _, ext := range probePaths(u.Path) {
		target := base + ext
		level.Info(c.logger).Log("msg", "testing", "url", target)

		resp, body, err := c.probe(ctx, target, method)
		if err != nil {
			level.Error(c.logger).Log("msg", "could not successfully connect", "url", target, "err", err)
			lastConnErr = err
			continue
		}

		level.Info(c.logger).Log("msg", "http status", "status_code", resp.StatusCode, "status", http.StatusText(resp.StatusCode))
		level.Debug(c.logger).Log("msg", "http response", "body", string(body))

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			level.Info(c.logger).Log("msg", "successfully connected", "url", target)
			return nil
		}

		level.Info(c.logger).Log("msg", "connection failed", "url", target)
		lastStatusErr = &ConnectivityError{URL: target, err: errors.Errorf("unexpected status %s", resp.Status)}
	}

	if lastConnErr != nil {
		return lastConnErr
	}
	return lastStatusErr
}

func (c *Client) probe(ctx context.Context, target, method string) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	switch method {
	case http.MethodGet:
		return c.do(ctx, http.MethodGet, target, nil, "")

	case http.MethodPost:
		payload := &bytes.Buffer{}
		mw := multipart.NewWriter(payload)
		part, err := mw.CreateFormFile("file", "test")
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating test payload")
		}
		if _, err := part.Write([]byte("test")); err != nil {
			return nil, nil, errors.Wrap(err, "writing test payload")
		}
		if err := mw.Close(); err != nil {
			return nil, nil, errors.Wrap(err, "closing test payload")
		}
		return c.do(ctx, http.MethodPost, target, payload, mw.FormDataContentType())

	default:
		return nil, nil, fmt.Errorf("unsupported probe method %s", method)
	}
}

// TestConnection probes the upload endpoint with POST and the API endpoint
// with GET. Any failure is a connectivity failure.
func (c *Client) TestConnection(ctx context.Context) error {
	level.Info(c.logger).Log(
		"msg", "connection test config",
		"proxy", redactedProxy(c.config.Proxy),
		"cert_verify", c.config.CertVerify.String(),
	)

	level.Info(c.logger).Log("msg", "testing upload_url connection", "url", c.config.UploadURL)
	if err := c.TestURLs(ctx, c.config.UploadURL, http.MethodPost); err != nil {
		return errors.Wrap(err, "testing upload_url")
	}
	level.Info(c.logger).Log("msg", "upload_url test success")

	level.Info(c.logger).Log("msg", "testing api_url connection", "url", c.config.APIURL)
	if err := c.TestURLs(ctx, c.config.APIURL, http.MethodGet); err != nil {
		return errors.Wrap(err, "testing api_url")
	}
	level.Info(c.logger).Log("msg", "api_url test success")

	level.Info(c.logger).Log("msg", "connectivity tests completed successfully")
	return nil
}
