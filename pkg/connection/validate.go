package connection

import (
	"context"
	"net/url"
	"time"

	"github.com/go-kit/kit/log/level"
)

const lookupTimeout = 5 * time.Second

// ValidateHostnames checks the upload endpoint and the proxy, if any. A
// missing scheme or host is a ConfigurationError. Names that do not resolve
// are logged and returned, but do not fail validation: the real request
// will surface the problem.
func (c *Client) ValidateHostnames(ctx context.Context) ([]*DNSResolutionError, error) {
	var failures []*DNSResolutionError

	uploadURL, err := url.Parse(c.config.UploadURL)
	if err != nil || uploadURL.Scheme == "" || uploadURL.Host == "" {
		return nil, NewConfigurationError(
			"invalid upload path "+c.config.UploadURL+": be sure to include a protocol (e.g. https://) and a fully qualified domain name",
			err,
		)
	}
	if dnsErr := c.resolve(ctx, uploadURL); dnsErr != nil {
		level.Error(c.logger).Log("msg", "could not resolve hostname", "url", uploadURL.String(), "err", dnsErr)
		failures = append(failures, dnsErr)
	}

	if c.config.Proxy != nil {
		proxy := c.config.Proxy
		if proxy.Scheme == "" || proxy.Host == "" {
			return nil, NewConfigurationError("invalid proxy, please verify the proxy setting", nil)
		}
		if dnsErr := c.resolve(ctx, proxy); dnsErr != nil {
			level.Error(c.logger).Log("msg", "could not resolve proxy", "proxy", redactedProxy(proxy), "err", dnsErr)
			failures = append(failures, dnsErr)
		}
	}

	return failures, nil
}

func (c *Client) resolve(ctx context.Context, u *url.URL) *DNSResolutionError {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	host := u.Hostname()
	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return &DNSResolutionError{Host: host, err: err}
	}

	level.Debug(c.logger).Log("msg", "resolved hostname", "hostname", u.Host, "addrs", addrs)
	return nil
}
