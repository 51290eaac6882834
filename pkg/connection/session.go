package connection

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// buildSession assembles the HTTP client shared by every call made during
// one invocation. Auth, TLS policy and proxy are all fixed here.
func buildSession(cfg *Config, logger log.Logger) (*http.Client, error) {
	tlsConfig, err := makeTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: proxyFunc(cfg.Proxy),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}

	if cfg.ProxyAuth != "" {
		applyProxyAuth(transport, cfg.ProxyAuth)
		level.Debug(logger).Log("msg", "attached proxy authorization", "proxy", redactedProxy(cfg.Proxy))
	}

	// Deadlines are per request, see do and UploadArchive.
	return &http.Client{
		Transport: &sessionTransport{
			base:       transport,
			userAgent:  cfg.UserAgent,
			authMethod: cfg.AuthMethod,
			username:   cfg.Username,
			password:   cfg.Password,
		},
	}, nil
}

// proxyFunc maps only the https scheme to the proxy.
func proxyFunc(proxy *url.URL) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if proxy == nil || req.URL.Scheme != "https" {
			return nil, nil
		}
		return proxy, nil
	}
}

func makeTLSConfig(cfg *Config) (*tls.Config, error) {
	conf := &tls.Config{
		InsecureSkipVerify: !cfg.CertVerify.Enabled, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CertVerify.Enabled && cfg.CertVerify.CABundle != "" {
		pem, err := os.ReadFile(cfg.CertVerify.CABundle)
		if err != nil {
			return nil, NewConfigurationError("reading CA bundle "+cfg.CertVerify.CABundle, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, NewConfigurationError("no certificates found in CA bundle "+cfg.CertVerify.CABundle, nil)
		}
		conf.RootCAs = pool
	}

	if cfg.AuthMethod == AuthCert {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, NewConfigurationError("loading client certificate", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	return conf, nil
}

// sessionTransport stamps the session wide headers and, for BASIC auth,
// the credentials onto every outgoing request.
type sessionTransport struct {
	base       http.RoundTripper
	userAgent  string
	authMethod AuthMethod
	username   string
	password   string
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	if t.authMethod == AuthBasic {
		r.SetBasicAuth(t.username, t.password)
	}
	return t.base.RoundTrip(r)
}
