package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/fleetsync/internal/client/config"
	"github.com/mkravets/fleetsync/internal/client/models"
)

func TestInitDatabaseMigrationsAndReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "fleet.db")

	repos, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)

	s1, err := repos.Events.Insert(ctx, "trips.save", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	require.NoError(t, repos.Blobs.Put(ctx, "k1", []byte("photo")))
	require.NoError(t, repos.SyncState.Set(ctx, "snapshot:trips", []byte(`[]`)))
	require.NoError(t, repos.Close())

	// the queue and its ordering survive a reopen of the same file
	repos, err = InitDatabase(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	s2, err := repos.Events.Insert(ctx, "trips.save", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	assert.Greater(t, s2, s1)

	queued, err := repos.Events.GetAllPending(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, s1, queued[0].Seq)

	b, err := repos.Blobs.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("photo"), b)
}

// fakeServer is a minimal remote store whose health endpoint can be flipped.
type fakeServer struct {
	mu      sync.Mutex
	healthy bool
	created int
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /drivers", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.created++
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		m["id"] = "srv-1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m)
	})
	mux.HandleFunc("GET /uploads/presign", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "http://127.0.0.1:1/unused"})
	})
	return mux
}

func (f *fakeServer) setHealthy(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = v
}

func TestProbeDrainsQueueWhenBackOnline(t *testing.T) {
	ctx := context.Background()

	srv := &fakeServer{}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	cfg := config.LoadConfig()
	cfg.APIBaseURL = ts.URL
	cfg.DatabasePath = filepath.Join(t.TempDir(), "fleet.db")

	a, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	// capture an edit while unreachable
	a.probe(ctx)
	require.False(t, a.Fleet.Online())

	_, _, err = a.Fleet.SaveDrivers(ctx, []models.Driver{
		{ID: models.NewPendingIdentity(), Name: "Ana"},
	})
	require.NoError(t, err)

	n, err := a.Fleet.Queue().Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// connectivity returns; the probe flips online and drains the queue
	srv.setHealthy(true)
	a.probe(ctx)
	require.True(t, a.Fleet.Online())

	n, err = a.Fleet.Queue().Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.created)
}
