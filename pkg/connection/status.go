package connection

import (
	"context"

	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/identity"
	"github.com/pkg/errors"
)

// StatusReport combines the local markers with what the API says.
type StatusReport struct {
	LocalState identity.State
	// LocalTimestamp is the content of the marker backing LocalState.
	LocalTimestamp string
	// Remote is nil when the API could not be reached or answered with an error.
	Remote *SystemInfo
	// RemoteErr is why Remote is nil.
	RemoteErr error
}

// Registered reports whether the API considers this machine registered,
// falling back to the local markers when the API is unreachable.
func (r *StatusReport) Registered() bool {
	if r.Remote != nil {
		return r.Remote.Status == RemoteRegistered
	}
	return r.LocalState == identity.StateRegistered
}

// Messages renders the report for humans.
func (r *StatusReport) Messages() []string {
	var msgs []string

	switch r.LocalState {
	case identity.StateRegistered:
		msgs = append(msgs, "System is registered locally via .registered file. Registered at "+r.LocalTimestamp)
	case identity.StateUnregistered:
		msgs = append(msgs, "System is NOT registered locally via .registered file. Unregistered at "+r.LocalTimestamp)
	default:
		msgs = append(msgs, "System is NOT registered locally via .registered file.")
	}

	switch {
	case r.Remote == nil:
		msgs = append(msgs, "Could not reach the API to check registration status.")
	case r.Remote.Status == RemoteRegistered:
		msgs = append(msgs, "Insights API confirms registration.")
	case r.Remote.Status == RemoteUnregistered:
		msgs = append(msgs, "Insights API says this machine was unregistered at "+r.Remote.UnregisteredAt)
	default:
		msgs = append(msgs, "Insights API says this machine is NOT registered.")
	}

	return msgs
}

// RegistrationStatus reads the local markers and asks the API. Remote
// failures other than deregistration are reported in the result rather
// than returned. CheckRegistration may update the markers, so they are
// read after the remote check.
func (c *Client) RegistrationStatus(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{}

	var deregistered *DeregisteredError
	info, err := c.CheckRegistration(ctx)
	switch {
	case err == nil:
		report.Remote = info
	case errors.As(err, &deregistered):
		report.Remote = &SystemInfo{Status: RemoteUnregistered, UnregisteredAt: deregistered.UnregisteredAt}
	default:
		level.Info(c.logger).Log("msg", "could not check registration with the API", "err", err)
		report.RemoteErr = err
	}

	state, ts, err := c.identity.State()
	if err != nil {
		return nil, err
	}
	report.LocalState = state
	report.LocalTimestamp = ts

	return report, nil
}
