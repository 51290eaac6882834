package insights

import (
	"time"

	"github.com/kolide/kit/version"
)

const (
	// AppName is the INI section and the user agent product.
	AppName = "insights-client"

	// DefaultBaseURL is host[:port]/path; the endpoint URLs derive from it.
	DefaultBaseURL = "cert-api.access.redhat.com:443/r/insights"

	// SleepTime is the default pause between upload attempts.
	SleepTime = 300 * time.Second
)

// UserAgent identifies this build to the service.
func UserAgent() string {
	return AppName + "/" + version.Version().Version
}
