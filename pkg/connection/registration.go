package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// NoGroup is the group label reported when registering without a group.
const NoGroup = "None"

// RemoteStatus is what the API reports about this machine.
type RemoteStatus int

const (
	// RemoteNotFound means the machine was never registered.
	RemoteNotFound RemoteStatus = iota
	RemoteRegistered
	RemoteUnregistered
)

func (s RemoteStatus) String() string {
	switch s {
	case RemoteRegistered:
		return "registered"
	case RemoteUnregistered:
		return "unregistered"
	default:
		return "not found"
	}
}

// SystemInfo is the result of a registration check.
type SystemInfo struct {
	Status         RemoteStatus
	UnregisteredAt string
	Raw            map[string]interface{}
}

func (c *Client) systemsURL() string {
	return c.config.APIURL + "/v1/systems"
}

func (c *Client) systemURL(machineID string) string {
	return c.systemsURL() + "/" + url.PathEscape(machineID)
}

// CheckRegistration asks the API about this machine. A 200 carrying
// unregistered_at moves the local state to unregistered; a 404 leaves
// local state untouched.
func (c *Client) CheckRegistration(ctx context.Context) (*SystemInfo, error) {
	machineID, err := c.identity.MachineID(false)
	if err != nil {
		return nil, err
	}

	registrationURL := c.systemURL(machineID)
	level.Debug(c.logger).Log("msg", "checking registration status", "url", registrationURL)

	resp, body, err := c.do(ctx, http.MethodGet, registrationURL, nil, "")
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &SystemInfo{Status: RemoteNotFound}, nil
	case http.StatusOK:
	default:
		if err := c.handleFailure(resp, body); err != nil {
			return nil, errors.Wrap(err, "checking registration")
		}
		return nil, errors.Wrap(newServerError(resp, body), "checking registration")
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding system info")
	}
	level.Debug(c.logger).Log("msg", "system info", "body", string(body))

	unregisteredAt := deregistrationTime(raw["unregistered_at"])
	if unregisteredAt == "" {
		level.Debug(c.logger).Log("msg", "this machine is registered")
		return &SystemInfo{Status: RemoteRegistered, Raw: raw}, nil
	}

	if err := c.identity.WriteUnregistered(unregisteredAt); err != nil {
		return nil, errors.Wrap(err, "recording deregistration")
	}
	return &SystemInfo{Status: RemoteUnregistered, UnregisteredAt: unregisteredAt, Raw: raw}, nil
}

type createSystemRequest struct {
	MachineID   string `json:"machine_id"`
	Hostname    string `json:"hostname"`
	DisplayName string `json:"display_name,omitempty"`
}

// CreateSystem posts this machine to the API, regenerating the machine id
// first when asked to. Any status >= 400 is returned classified; a 409
// comes back as a *ServerError so the caller can retry with a fresh id.
func (c *Client) CreateSystem(ctx context.Context, regenerateID bool) (map[string]interface{}, error) {
	machineID, err := c.identity.MachineID(regenerateID)
	if err != nil {
		return nil, err
	}

	payload := createSystemRequest{
		MachineID:   machineID,
		Hostname:    c.hostname(),
		DisplayName: c.config.DisplayName,
	}

	level.Debug(c.logger).Log("msg", "POST system", "url", c.systemsURL())
	resp, body, err := c.doJSON(ctx, http.MethodPost, c.systemsURL(), payload)
	if err != nil {
		return nil, err
	}
	level.Debug(c.logger).Log("msg", "POST system status", "status_code", resp.StatusCode)

	if resp.StatusCode == http.StatusConflict {
		return nil, newServerError(resp, body)
	}
	if err := c.handleFailure(resp, body); err != nil {
		return nil, err
	}

	system := map[string]interface{}{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &system); err != nil {
			level.Debug(c.logger).Log("msg", "could not decode system", "err", err)
		}
	}
	return system, nil
}

// Register registers this machine, optionally placing it in a group. It
// returns the registered hostname and the group label, NoGroup if none.
func (c *Client) Register(ctx context.Context, group string) (string, string, error) {
	if err := c.identity.DeleteUnregistered(); err != nil {
		return "", "", err
	}

	hostname := c.hostname()

	level.Debug(c.logger).Log("msg", "API: create system")
	system, err := c.CreateSystem(ctx, false)
	if isConflict(err) {
		level.Info(c.logger).Log("msg", "machine id conflict, retrying with a new machine id")
		system, err = c.CreateSystem(ctx, true)
	}
	if err != nil {
		return "", "", errors.Wrap(err, "creating system")
	}
	level.Debug(c.logger).Log("msg", "system created", "system", fmt.Sprintf("%v", system))

	if group != "" {
		if err := c.DoGroup(ctx, group); err != nil {
			return "", "", errors.Wrapf(err, "adding system to group %s", group)
		}
	}

	if err := c.identity.WriteRegistered(); err != nil {
		return "", "", err
	}

	if group == "" {
		return hostname, NoGroup, nil
	}
	return hostname, group, nil
}

// Unregister removes this machine from the service and records the
// deregistration locally.
func (c *Client) Unregister(ctx context.Context) error {
	machineID, err := c.identity.MachineID(false)
	if err != nil {
		return err
	}

	unregisterURL := c.systemURL(machineID)
	level.Debug(c.logger).Log("msg", "DELETE system", "url", unregisterURL)

	resp, body, err := c.do(ctx, http.MethodDelete, unregisterURL, nil, "")
	if err != nil {
		return err
	}
	if err := c.handleFailure(resp, body); err != nil {
		return errors.Wrap(err, "unregistering")
	}

	if err := c.identity.WriteUnregistered(""); err != nil {
		return err
	}

	level.Info(c.logger).Log("msg", "successfully unregistered from the service")
	return nil
}

func isConflict(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusConflict
}

// deregistrationTime returns unregistered_at when it carries a timestamp.
// null, false, 0 and any other non-string value mean registered.
func deregistrationTime(v interface{}) string {
	ts, ok := v.(string)
	if !ok {
		return ""
	}
	return ts
}
