package satellite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemIDDoc = `<?xml version="1.0"?>
<params>
<param>
<value><struct>
<member>
<name>username</name>
<value><string>admin</string></value>
</member>
<member>
<name>operating_system</name>
<value><string>redhat-release-server</string></value>
</member>
<member>
<name>system_id</name>
<value><string>ID-1000010000</string></value>
</member>
</struct></value>
</param>
</params>
`

const noSystemIDDoc = `<?xml version="1.0"?>
<params>
<param>
<value><struct>
<member>
<name>username</name>
<value><string>admin</string></value>
</member>
</struct></value>
</param>
</params>
`

func TestLeafID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		doc         string
		expected    string
		expectedErr bool
	}{
		{
			name:     "system id present",
			doc:      systemIDDoc,
			expected: "1000010000",
		},
		{
			name:        "no system id member",
			doc:         noSystemIDDoc,
			expectedErr: true,
		},
		{
			name:        "not xml",
			doc:         "this is not xml",
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			leaf, err := LeafID([]byte(tt.doc))
			if tt.expectedErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, leaf)
		})
	}
}

func TestLeafIDFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "systemid")
	require.NoError(t, os.WriteFile(path, []byte(systemIDDoc), 0600))

	leaf, err := LeafIDFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1000010000", leaf)

	_, err = LeafIDFromFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
