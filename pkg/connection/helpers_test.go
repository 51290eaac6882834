package connection

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/insights-client/insights-client/pkg/identity"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testHostname = "test-host.example.com"

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	args := m.Called(ctx, host)
	addrs, _ := args.Get(0).([]string)
	return addrs, args.Error(1)
}

func resolvingResolver() *mockResolver {
	r := &mockResolver{}
	r.On("LookupHost", mock.Anything, mock.Anything).Return([]string{"127.0.0.1"}, nil)
	return r
}

// testSettings points every endpoint at serverURL. The environment proxy
// is disabled so the host's HTTPS_PROXY cannot leak into tests.
func testSettings(serverURL string) Settings {
	return Settings{
		Username:      "user",
		Password:      "pass",
		AuthMethod:    "BASIC",
		UploadURL:     serverURL + "/r/insights/uploads",
		APIURL:        serverURL + "/r/insights",
		BranchInfoURL: serverURL + "/r/insights/v1/branch_info",
		CertVerify:    "False",
		EnvProxy:      noneValue,
		UserAgent:     "insights-client/test",
	}
}

type testEnv struct {
	client   *Client
	identity *identity.Store
	dir      string
}

func newTestEnv(t *testing.T, settings Settings, opts ...Option) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg, err := NewConfig(settings)
	require.NoError(t, err)

	ids := newIdentity(dir)

	defaults := []Option{
		WithResolver(resolvingResolver()),
		WithHostname(func() string { return testHostname }),
		WithSystemIDPath(filepath.Join(dir, "systemid")),
	}

	c, err := New(context.Background(), log.NewNopLogger(), cfg, ids, append(defaults, opts...)...)
	require.NoError(t, err)

	return &testEnv{client: c, identity: ids, dir: dir}
}

// writeKeyPair writes a throwaway self signed client certificate and key.
func writeKeyPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "consumer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))

	return certPath, keyPath
}

func newIdentity(dir string) *identity.Store {
	return identity.New(log.NewNopLogger(), identity.Paths{
		MachineID:    filepath.Join(dir, "machine-id"),
		Registered:   filepath.Join(dir, ".registered"),
		Unregistered: filepath.Join(dir, ".unregistered"),
		LastUpload:   filepath.Join(dir, ".lastupload"),
	})
}
