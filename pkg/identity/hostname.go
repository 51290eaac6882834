package identity

import (
	"net"
	"os"
	"strings"

	"github.com/shirou/gopsutil/host"
)

// Hostname determines the name this host registers under. It prefers the
// fully qualified name when the short name resolves to one.
func Hostname() string {
	name := ""
	if info, err := host.Info(); err == nil && info != nil {
		name = info.Hostname
	}
	if name == "" {
		h, err := os.Hostname()
		if err != nil {
			return "localhost"
		}
		name = h
	}

	if strings.Contains(name, ".") {
		return name
	}

	if fqdn := lookupFQDN(name); fqdn != "" {
		return fqdn
	}

	return name
}

func lookupFQDN(name string) string {
	addrs, err := net.LookupHost(name)
	if err != nil || len(addrs) == 0 {
		return ""
	}

	names, err := net.LookupAddr(addrs[0])
	if err != nil || len(names) == 0 {
		return ""
	}

	fqdn := strings.TrimSuffix(names[0], ".")
	if !strings.HasPrefix(fqdn, name+".") {
		return ""
	}
	return fqdn
}
