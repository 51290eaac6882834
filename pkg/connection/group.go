package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

type groupResponse struct {
	ID json.RawMessage `json:"id"`
}

// DoGroup places this machine in the group with the given display name,
// creating the group first if it does not exist. Calling it repeatedly
// with the same group converges on the same membership.
func (c *Client) DoGroup(ctx context.Context, group string) error {
	groupsURL := c.config.APIURL + "/v1/groups"
	lookupURL := groupsURL + "?display_name=" + url.QueryEscape(group)

	level.Debug(c.logger).Log("msg", "GET group", "url", lookupURL)
	resp, body, err := c.do(ctx, http.MethodGet, lookupURL, nil, "")
	if err != nil {
		return err
	}
	level.Debug(c.logger).Log("msg", "GET group status", "status_code", resp.StatusCode)

	var groupID string
	switch resp.StatusCode {
	case http.StatusOK:
		if groupID, err = decodeGroupID(body); err != nil {
			return err
		}

	case http.StatusNotFound:
		level.Debug(c.logger).Log("msg", "POST group", "url", groupsURL)
		resp, body, err = c.doJSON(ctx, http.MethodPost, groupsURL, map[string]string{"display_name": group})
		if err != nil {
			return err
		}
		level.Debug(c.logger).Log("msg", "POST group status", "status_code", resp.StatusCode, "body", string(body))
		if err := c.handleFailure(resp, body); err != nil {
			return errors.Wrap(err, "creating group")
		}
		if groupID, err = decodeGroupID(body); err != nil {
			return err
		}

	default:
		if err := c.handleFailure(resp, body); err != nil {
			return errors.Wrap(err, "looking up group")
		}
		return errors.Wrap(newServerError(resp, body), "looking up group")
	}

	machineID, err := c.identity.MachineID(false)
	if err != nil {
		return err
	}

	membershipURL := groupsURL + "/" + url.PathEscape(groupID) + "/systems"
	level.Debug(c.logger).Log("msg", "PUT group", "url", membershipURL)
	resp, body, err = c.doJSON(ctx, http.MethodPut, membershipURL, map[string]string{"machine_id": machineID})
	if err != nil {
		return err
	}
	level.Debug(c.logger).Log("msg", "PUT group status", "status_code", resp.StatusCode, "body", string(body))

	return errors.Wrap(c.handleFailure(resp, body), "adding system to group")
}

// decodeGroupID accepts either a numeric or a string id.
func decodeGroupID(body []byte) (string, error) {
	var group groupResponse
	if err := json.Unmarshal(body, &group); err != nil {
		return "", errors.Wrap(err, "decoding group")
	}

	raw := bytes.TrimSpace(group.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("group response did not include an id")
	}

	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", errors.Wrap(err, "decoding group id")
		}
		return id, nil
	}
	return string(raw), nil
}
