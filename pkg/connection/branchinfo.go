package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/satellite"
	"github.com/pkg/errors"
)

// ErrIncompleteBranchInfo is returned when the branch info response lacks
// remote_branch or remote_leaf.
var ErrIncompleteBranchInfo = errors.New("could not determine branch information")

// BranchInfo describes where this host sits in the management topology.
// RemoteBranch and RemoteLeaf both -1 means a direct connection; a branch
// without a leaf means a legacy satellite, whose leaf id is recovered from
// the local systemid file into SatelliteLeafID.
type BranchInfo struct {
	RemoteBranch    int
	RemoteLeaf      int
	SatelliteLeafID string
}

// NoBranchInfo is assumed when branch info cannot be fetched in offline mode.
var NoBranchInfo = BranchInfo{RemoteBranch: -1, RemoteLeaf: -1}

func (b BranchInfo) Direct() bool {
	return b.RemoteBranch == -1 && b.RemoteLeaf == -1
}

func (b BranchInfo) LegacySatellite() bool {
	return b.RemoteBranch != -1 && b.RemoteLeaf == -1
}

// MarshalJSON emits the branch_info document packed into archives. The
// recovered satellite leaf id replaces remote_leaf when present.
func (b BranchInfo) MarshalJSON() ([]byte, error) {
	var leaf interface{} = b.RemoteLeaf
	if b.SatelliteLeafID != "" {
		leaf = b.SatelliteLeafID
	}
	return json.Marshal(map[string]interface{}{
		"remote_branch": b.RemoteBranch,
		"remote_leaf":   leaf,
	})
}

type branchInfoResponse struct {
	RemoteBranch *int `json:"remote_branch"`
	RemoteLeaf   *int `json:"remote_leaf"`
}

// BranchInfo fetches the remote branch and leaf for this host.
func (c *Client) BranchInfo(ctx context.Context) (*BranchInfo, error) {
	if c.config.BranchInfoURL == "" {
		return nil, NewConfigurationError("branch_info_url is not set", nil)
	}

	level.Debug(c.logger).Log("msg", "obtaining branch information", "url", c.config.BranchInfoURL)
	resp, body, err := c.do(ctx, http.MethodGet, c.config.BranchInfoURL, nil, "")
	if err != nil {
		return nil, err
	}
	level.Debug(c.logger).Log("msg", "GET branch_info status", "status_code", resp.StatusCode, "body", string(body))

	if err := c.handleFailure(resp, body); err != nil {
		return nil, errors.Wrap(err, "fetching branch info")
	}

	var parsed branchInfoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(ErrIncompleteBranchInfo, err.Error())
	}
	if parsed.RemoteBranch == nil || parsed.RemoteLeaf == nil {
		return nil, ErrIncompleteBranchInfo
	}

	info := &BranchInfo{
		RemoteBranch: *parsed.RemoteBranch,
		RemoteLeaf:   *parsed.RemoteLeaf,
	}

	if info.LegacySatellite() {
		if err := c.satelliteLeaf(info); err != nil {
			return nil, err
		}
	}

	return info, nil
}

func (c *Client) satelliteLeaf(info *BranchInfo) error {
	level.Debug(c.logger).Log("msg", "remote branch set but remote leaf is -1, looking for legacy satellite identity")

	if _, err := os.Stat(c.systemIDPath); err != nil {
		level.Debug(c.logger).Log("msg", "no systemid file found", "path", c.systemIDPath)
		return nil
	}

	leaf, err := satellite.LeafIDFromFile(c.systemIDPath)
	if err != nil {
		return NewConfigurationError("could not determine leaf id from "+c.systemIDPath, err)
	}

	level.Debug(c.logger).Log("msg", "found leaf id", "leaf_id", leaf)
	info.SatelliteLeafID = leaf
	return nil
}

// IsIncompleteBranchInfo reports whether err came from a malformed branch info response.
func IsIncompleteBranchInfo(err error) bool {
	return errors.Is(err, ErrIncompleteBranchInfo)
}
