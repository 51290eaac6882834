// Package satellite reads the identity file left behind by legacy
// satellite registration.
package satellite

import (
	"os"
	"strings"

	"github.com/clbanning/mxj"
	"github.com/pkg/errors"
)

// DefaultSystemIDPath is where legacy satellite clients store the host identity.
const DefaultSystemIDPath = "/etc/sysconfig/rhn/systemid"

const (
	systemIDMember = "system_id"
	leafIDPrefix   = "ID-"
)

// ErrNoLeafID is returned when the identity file parses but carries no system_id.
var ErrNoLeafID = errors.New("could not determine leaf id from systemid")

// LeafIDFromFile reads the systemid file and returns the numeric leaf id.
func LeafIDFromFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "reading systemid")
	}
	return LeafID(raw)
}

// LeafID extracts the leaf id from an XML-RPC style systemid document. The
// relevant member looks like:
//
//	<member><name>system_id</name><value><string>ID-1000010000</string></value></member>
func LeafID(raw []byte) (string, error) {
	mv, err := mxj.NewMapXml(raw)
	if err != nil {
		return "", errors.Wrap(err, "mxj parse")
	}

	members, err := mv.ValuesForKey("member")
	if err != nil {
		return "", errors.Wrap(err, "finding members")
	}

	for _, m := range flatten(members) {
		member, ok := m.(map[string]interface{})
		if !ok {
			continue
		}

		name, _ := member["name"].(string)
		if strings.TrimSpace(name) != systemIDMember {
			continue
		}

		value, ok := member["value"].(map[string]interface{})
		if !ok {
			continue
		}
		str, _ := value["string"].(string)

		parts := strings.SplitN(strings.TrimSpace(str), leafIDPrefix, 2)
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		return parts[1], nil
	}

	return "", ErrNoLeafID
}

// flatten expands nested lists, since repeated elements may surface either
// as separate values or as a single slice.
func flatten(values []interface{}) []interface{} {
	var out []interface{}
	for _, v := range values {
		if list, ok := v.([]interface{}); ok {
			out = append(out, flatten(list)...)
			continue
		}
		out = append(out, v)
	}
	return out
}
