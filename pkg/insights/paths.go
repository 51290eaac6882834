package insights

import (
	"path/filepath"

	"github.com/insights-client/insights-client/pkg/identity"
)

const (
	DefaultStateDirectory = "/etc/insights-client"
	DefaultConfigFilePath = "/etc/insights-client/insights-client.conf"
	DefaultLogFilePath    = "/var/log/insights-client/insights-client.log"
	DefaultDatabasePath   = "/var/lib/insights-client/insights-client.db"
)

// IdentityPaths returns the machine id and marker file locations under dir.
func IdentityPaths(dir string) identity.Paths {
	return identity.Paths{
		MachineID:    filepath.Join(dir, "machine-id"),
		Registered:   filepath.Join(dir, ".registered"),
		Unregistered: filepath.Join(dir, ".unregistered"),
		LastUpload:   filepath.Join(dir, ".lastupload"),
	}
}
