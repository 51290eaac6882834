package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeRecorder answers probes with a scripted sequence of statuses.
type probeRecorder struct {
	mu       sync.Mutex
	statuses []int
	paths    []string
	methods  []string
	files    []string
}

func (p *probeRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paths = append(p.paths, r.URL.Path)
	p.methods = append(p.methods, r.Method)

	if r.Method == http.MethodPost {
		if f, header, err := r.FormFile("file"); err == nil {
			f.Close()
			p.files = append(p.files, header.Filename)
		}
	}

	status := http.StatusNotFound
	if i := len(p.paths) - 1; i < len(p.statuses) {
		status = p.statuses[i]
	}
	w.WriteHeader(status)
}

func (p *probeRecorder) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

func TestTestURLsStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	recorder := &probeRecorder{statuses: []int{http.StatusNotFound, http.StatusNotFound, http.StatusOK}}
	srv := httptest.NewServer(recorder)
	defer srv.Close()

	env := newTestEnv(t, testSettings(srv.URL))

	require.NoError(t, env.client.TestURLs(context.Background(), srv.URL+"/r/insights", http.MethodGet))

	assert.Equal(t, 3, recorder.calls())
	assert.Equal(t, []string{"/r/insights/", "/", "/rs"}, recorder.paths)
}

func TestTestURLsAcceptsCreated(t *testing.T) {
	t.Parallel()

	recorder := &probeRecorder{statuses: []int{http.StatusCreated}}
	srv := httptest.NewServer(recorder)
	defer srv.Close()

	env := newTestEnv(t, testSettings(srv.URL))

	require.NoError(t, env.client.TestURLs(context.Background(), srv.URL+"/r/insights/uploads", http.MethodPost))

	assert.Equal(t, 1, recorder.calls())
	assert.Equal(t, []string{http.MethodPost}, recorder.methods)
	assert.Equal(t, []string{"test"}, recorder.files)
}

func TestTestURLsAllFail(t *testing.T) {
	t.Parallel()

	recorder := &probeRecorder{statuses: []int{
		http.StatusNotFound,
		http.StatusServiceUnavailable,
		http.StatusNotFound,
		http.StatusBadGateway,
	}}
	srv := httptest.NewServer(recorder)
	defer srv.Close()

	env := newTestEnv(t, testSettings(srv.URL))

	err := env.client.TestURLs(context.Background(), srv.URL+"/r/insights", http.MethodGet)
	require.Error(t, err)
	assert.True(t, IsConnectivityError(err))
	assert.Contains(t, err.Error(), "502", "the last unexpected status is reported")
	assert.Equal(t, []string{"/r/insights/", "/", "/rs", "/rs/telemetry"}, recorder.paths)
}

func TestTestURLsConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	env := newTestEnv(t, testSettings(deadURL))

	err := env.client.TestURLs(context.Background(), deadURL+"/r/insights", http.MethodGet)
	require.Error(t, err)
	assert.True(t, IsConnectivityError(err))
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		expectErr bool
	}{
		{
			name: "both endpoints answer",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.WriteHeader(http.StatusCreated)
					return
				}
				w.WriteHeader(http.StatusOK)
			},
		},
		{
			name: "api unreachable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.WriteHeader(http.StatusCreated)
					return
				}
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectErr: true,
		},
		{
			name: "upload unreachable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			env := newTestEnv(t, testSettings(srv.URL))

			err := env.client.TestConnection(context.Background())
			if tt.expectErr {
				require.Error(t, err)
				assert.True(t, IsConnectivityError(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
