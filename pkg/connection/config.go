package connection

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// AuthMethod selects which credential is attached to the session.
type AuthMethod string

const (
	AuthBasic AuthMethod = "BASIC"
	AuthCert  AuthMethod = "CERT"
)

const (
	// DefaultTimeout bounds each API call, and how long an upload may go
	// without progress.
	DefaultTimeout = 120 * time.Second
	// ProbeTimeout bounds each connectivity probe.
	ProbeTimeout = 10 * time.Second

	DefaultCertPath = "/etc/pki/consumer/cert.pem"
	DefaultKeyPath  = "/etc/pki/consumer/key.pem"
)

// CertVerify is the TLS verification policy. When Enabled is set and
// CABundle is non-empty, only the bundle's roots are trusted.
type CertVerify struct {
	Enabled  bool
	CABundle string
}

func (c CertVerify) String() string {
	switch {
	case !c.Enabled:
		return "False"
	case c.CABundle != "":
		return c.CABundle
	default:
		return "True"
	}
}

// ParseCertVerify accepts "true", "false" (any case) or a path to a CA bundle.
func ParseCertVerify(raw string) CertVerify {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "true":
		return CertVerify{Enabled: true}
	case "false":
		return CertVerify{Enabled: false}
	default:
		return CertVerify{Enabled: true, CABundle: raw}
	}
}

// Settings is the raw, string typed input to NewConfig.
type Settings struct {
	Username      string
	Password      string
	AuthMethod    string
	UploadURL     string
	APIURL        string
	BranchInfoURL string
	CertVerify    string
	// Proxy is the configured proxy. It wins over the environment.
	Proxy string
	// EnvProxy overrides the HTTPS_PROXY lookup. Leave empty to read the
	// process environment.
	EnvProxy    string
	CertPath    string
	KeyPath     string
	DisplayName string
	UserAgent   string
	Timeout     time.Duration
}

// Config is the validated connection configuration. It is not modified
// after the session is built.
type Config struct {
	Username      string
	Password      string
	AuthMethod    AuthMethod
	UploadURL     string
	APIURL        string
	BranchInfoURL string
	CertVerify    CertVerify
	Proxy         *url.URL
	ProxyAuth     string
	CertPath      string
	KeyPath       string
	DisplayName   string
	UserAgent     string
	Timeout       time.Duration
	ProbeTimeout  time.Duration
}

// NewConfig normalizes and validates settings.
func NewConfig(s Settings) (*Config, error) {
	cfg := &Config{
		Username:      s.Username,
		Password:      s.Password,
		UploadURL:     strings.TrimSpace(s.UploadURL),
		APIURL:        strings.TrimSuffix(strings.TrimSpace(s.APIURL), "/"),
		BranchInfoURL: strings.TrimSpace(s.BranchInfoURL),
		CertVerify:    ParseCertVerify(s.CertVerify),
		CertPath:      s.CertPath,
		KeyPath:       s.KeyPath,
		DisplayName:   s.DisplayName,
		UserAgent:     s.UserAgent,
		Timeout:       s.Timeout,
		ProbeTimeout:  ProbeTimeout,
	}

	switch AuthMethod(strings.ToUpper(strings.TrimSpace(s.AuthMethod))) {
	case "", AuthBasic:
		cfg.AuthMethod = AuthBasic
	case AuthCert:
		cfg.AuthMethod = AuthCert
	default:
		return nil, NewConfigurationError("unknown auth method "+s.AuthMethod, nil)
	}

	if cfg.CertPath == "" {
		cfg.CertPath = DefaultCertPath
	}
	if cfg.KeyPath == "" {
		cfg.KeyPath = DefaultKeyPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "insights-client"
	}

	if cfg.UploadURL == "" {
		return nil, NewConfigurationError("upload_url is required", nil)
	}
	if cfg.APIURL == "" {
		return nil, NewConfigurationError("api_url is required", nil)
	}

	for name, raw := range map[string]string{
		"upload_url":      cfg.UploadURL,
		"api_url":         cfg.APIURL,
		"branch_info_url": cfg.BranchInfoURL,
	} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return nil, NewConfigurationError("invalid "+name, err)
		}
	}

	if err := requireSchemeAndHost("api_url", cfg.APIURL); err != nil {
		return nil, err
	}

	envProxy := s.EnvProxy
	if envProxy == "" {
		envProxy = httpproxy.FromEnvironment().HTTPSProxy
	}

	proxyURL, proxyAuth, err := ResolveProxy(envProxy, s.Proxy)
	if err != nil {
		return nil, err
	}
	cfg.Proxy = proxyURL
	cfg.ProxyAuth = proxyAuth

	return cfg, nil
}

func requireSchemeAndHost(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return NewConfigurationError("invalid "+name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return NewConfigurationError(
			"invalid "+name+" "+raw+": be sure to include a protocol (e.g. https://) and a fully qualified domain name",
			nil,
		)
	}
	return nil
}
