package connection

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError indicates a malformed URL, an unparseable proxy or a
// missing required setting. It is fatal for the invoking workflow.
type ConfigurationError struct {
	msg string
	err error
}

func NewConfigurationError(msg string, err error) *ConfigurationError {
	return &ConfigurationError{msg: msg, err: err}
}

func (e *ConfigurationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("configuration error: %s: %s", e.msg, e.err)
	}
	return fmt.Sprintf("configuration error: %s", e.msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.err
}

// DNSResolutionError records a hostname that could not be resolved. These
// are logged and never abort anything; the real request fails later.
type DNSResolutionError struct {
	Host string
	err  error
}

func (e *DNSResolutionError) Error() string {
	return fmt.Sprintf("could not resolve hostname %s: %s", e.Host, e.err)
}

func (e *DNSResolutionError) Unwrap() error {
	return e.err
}

// ConnectivityError covers refused connections, timeouts and TLS failures.
type ConnectivityError struct {
	URL string
	err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not connect to %s: %s", e.URL, e.err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.err
}

// AuthenticationError is returned on HTTP 401. It is never retried.
type AuthenticationError struct {
	URL string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authorization required for %s, check the configured credentials", e.URL)
}

// DeregisteredError is returned when the service answers 412. By the time
// the caller sees it the unregistered marker has already been written.
type DeregisteredError struct {
	UnregisteredAt string
}

func (e *DeregisteredError) Error() string {
	return fmt.Sprintf("system was unregistered at %s", e.UnregisteredAt)
}

// ServerError is any other 4xx/5xx answer.
type ServerError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %s", e.Status)
}

func newServerError(resp *http.Response, body []byte) *ServerError {
	return &ServerError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsConnectivityError(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

func IsDeregisteredError(err error) bool {
	var target *DeregisteredError
	return errors.As(err, &target)
}

func IsServerError(err error) bool {
	var target *ServerError
	return errors.As(err, &target)
}
