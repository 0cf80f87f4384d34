package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wilayah-api/internal/bulksync"
	"wilayah-api/internal/region"
	"wilayah-api/internal/resolver"
	"wilayah-api/internal/store"
	"wilayah-api/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapRemote：按端点返回固定响应，记录调用次数
type mapRemote struct {
	mu    sync.Mutex
	data  map[string]string
	calls map[string]int
	block chan struct{} // 非空时 provinces.json 阻塞直到关闭
}

func (m *mapRemote) Fetch(_ context.Context, endpoint string) ([]byte, bool) {
	if m.block != nil && endpoint == "provinces.json" {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[endpoint]++
	b, ok := m.data[endpoint]
	if !ok {
		return nil, false
	}
	return []byte(b), true
}

func (m *mapRemote) count(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[endpoint]
}

type fixture struct {
	h      http.Handler
	res    *resolver.Resolver
	sync   *bulksync.Synchronizer
	cache  ResponseCache
	remote *mapRemote
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := utils.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	st, err := store.Open(context.Background(), db, store.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	remote := &mapRemote{calls: map[string]int{}, data: map[string]string{
		"provinces.json":       `[{"id":"51","name":"BALI"},{"id":"11","name":"ACEH"}]`,
		"regencies/11.json":    `[{"id":"1101","province_id":"11","name":"KABUPATEN SIMEULUE"}]`,
		"regencies/51.json":    `[{"id":"5171","province_id":"51","name":"KOTA DENPASAR"}]`,
		"districts/1101.json":  `[{"id":"110101","regency_id":"1101","name":"TEUPAH SELATAN"}]`,
		"districts/5171.json":  `[{"id":"517101","regency_id":"5171","name":"DENPASAR SELATAN"}]`,
		"villages/110101.json": `[{"id":"1101012001","district_id":"110101","name":"LATIUNG"}]`,
		"villages/517101.json": `[{"id":"5171011001","district_id":"517101","name":"SESETAN"}]`,
	}}
	res := resolver.New(st, remote, resolver.WithFallback(nil))
	cache := NewMemCache(time.Minute)
	sy := bulksync.New(res, bulksync.WithFinishHook(func(error) { cache.Flush(context.Background()) }))
	return &fixture{h: BuildRoutes(res, sy, cache, "secret"), res: res, sync: sy, cache: cache, remote: remote}
}

func (f *fixture) do(method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func TestProvincesSortedAndCached(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/provinces.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("content-type"))
	assert.JSONEq(t, `[{"id":"11","name":"ACEH"},{"id":"51","name":"BALI"}]`, rec.Body.String())

	_, ok := f.cache.Get(context.Background(), "provinces.json")
	assert.True(t, ok)

	again := f.do(http.MethodGet, "/provinces", nil)
	assert.Equal(t, rec.Body.String(), again.Body.String())
	assert.Equal(t, 1, f.remote.count("provinces.json"))
}

func TestChildScopeWithAndWithoutSuffix(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{"/regencies/11.json", "/regencies/11"} {
		rec := f.do(http.MethodGet, p, nil)
		require.Equal(t, http.StatusOK, rec.Code, p)
		assert.JSONEq(t, `[{"id":"1101","province_id":"11","name":"KABUPATEN SIMEULUE"}]`, rec.Body.String())
	}
	assert.Equal(t, 1, f.remote.count("regencies/11.json"))
}

func TestEmptyScopeIsNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/villages/999999.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
	_, ok := f.cache.Get(context.Background(), "villages/999999.json")
	assert.False(t, ok, "empty responses are not cached")

	rec = f.do(http.MethodGet, "/districts/undefined", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, f.remote.count("districts/undefined.json"))
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/provinces.json", nil)
	f.do(http.MethodGet, "/regencies/51.json", nil)

	rec := f.do(http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st resolver.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, resolver.Stats{Provinces: 2, Regencies: 1}, st)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/sync", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/cache", map[string]string{"x-admin-token": "wrong"}).Code)
	assert.False(t, f.sync.Running())

	open := BuildRoutes(f.res, f.sync, nil, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/cache", nil)
	req.Header.Set("x-admin-token", "anything")
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "no configured token disables admin routes")
}

func TestSyncThroughAPI(t *testing.T) {
	f := newFixture(t)
	auth := map[string]string{"x-admin-token": "secret"}

	f.do(http.MethodGet, "/provinces.json", nil)
	rec := f.do(http.MethodPost, "/sync", auth)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		var st bulksync.Status
		r := f.do(http.MethodGet, "/sync", nil)
		return json.Unmarshal(r.Body.Bytes(), &st) == nil && !st.Running && st.FinishedAt != nil
	}, 10*time.Second, 5*time.Millisecond)

	st := f.sync.Status()
	assert.Equal(t, 100, st.Percent)
	assert.Empty(t, st.Error)
	assert.Equal(t, resolver.Stats{Provinces: 2, Regencies: 2, Districts: 2, Villages: 2}, f.res.Stats(context.Background()))

	_, ok := f.cache.Get(context.Background(), "provinces.json")
	assert.False(t, ok, "finished sync flushes the response cache")
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/provinces.json", nil)
	f.do(http.MethodGet, "/regencies/11.json", nil)

	rec := f.do(http.MethodDelete, "/cache", map[string]string{"x-admin-token": "secret"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, resolver.Stats{}, f.res.Stats(context.Background()))
	_, ok := f.cache.Get(context.Background(), "regencies/11.json")
	assert.False(t, ok)

	// 清空后再次请求重新回源
	f.do(http.MethodGet, "/regencies/11.json", nil)
	assert.Equal(t, 2, f.remote.count("regencies/11.json"))
}

func TestClearRejectedWhileSyncRuns(t *testing.T) {
	f := newFixture(t)
	auth := map[string]string{"x-admin-token": "secret"}
	f.remote.block = make(chan struct{})

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/sync", auth).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/sync", auth).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodDelete, "/cache", auth).Code)

	close(f.remote.block)
	require.Eventually(t, func() bool { return !f.sync.Running() }, 10*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.res.Stats(context.Background()).Villages)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/cache", auth).Code)
}

func TestMemCacheRoundTrip(t *testing.T) {
	c := NewMemCache(time.Minute)
	ctx := context.Background()
	_, ok := c.Get(ctx, region.Province.Endpoint(""))
	assert.False(t, ok)
	c.Set(ctx, "provinces.json", []byte(`[]`))
	b, ok := c.Get(ctx, "provinces.json")
	require.True(t, ok)
	assert.Equal(t, "[]", string(b))
	c.Flush(ctx)
	_, ok = c.Get(ctx, "provinces.json")
	assert.False(t, ok)
}
