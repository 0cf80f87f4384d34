package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"wilayah-api/internal/config"
	"wilayah-api/internal/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWiresSQLiteAndRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provinces.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"31","name":"DKI JAKARTA"}]`))
	}))
	defer srv.Close()

	cfg := config.Config{
		StoreDriver:    "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "wilayah.db"),
		RemoteMode:     "proxy",
		RemoteProxyURL: srv.URL,
		WidthVillages:  4,
	}
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{srv.URL}, a.Remote.Origins())
	assert.Equal(t, 4, a.Sync.Widths().Villages)
	assert.Equal(t, 6, a.Sync.Widths().Regencies)

	got := a.Resolver.Resolve(context.Background(), region.Province, "")
	require.Len(t, got, 1)
	assert.Equal(t, "DKI JAKARTA", got[0].Name)
	n, err := a.Store.Count(context.Background(), region.Province)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	_, err := Build(context.Background(), config.Config{StoreDriver: "mongo"})
	assert.ErrorContains(t, err, "unknown store driver")
}
