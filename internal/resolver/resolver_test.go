package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"wilayah-api/internal/region"
	"wilayah-api/internal/store"
	"wilayah-api/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote：按端点返回固定响应体，记录调用
type fakeRemote struct {
	mu    sync.Mutex
	data  map[string]string
	calls []string
}

func (f *fakeRemote) Fetch(_ context.Context, endpoint string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	b, ok := f.data[endpoint]
	if !ok {
		return nil, false
	}
	return []byte(b), true
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := utils.OpenSQLite(filepath.Join(t.TempDir(), "wilayah.db"))
	require.NoError(t, err)
	st, err := store.Open(context.Background(), db, store.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFetchProvincesFromRemoteThenCache(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{data: map[string]string{
		"provinces.json": `[{"id":"12","name":"Sumatera Utara"},{"id":"11","name":"Aceh"}]`,
	}}
	r := New(newTestStore(t), remote)

	first := r.FetchProvinces(ctx)
	assert.Equal(t, []region.ProvinceEntity{{ID: "11", Name: "Aceh"}, {ID: "12", Name: "Sumatera Utara"}}, first)
	assert.Equal(t, 2, r.Stats(ctx).Provinces)
	assert.Equal(t, 1, remote.callCount())

	second := r.FetchProvinces(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, remote.callCount(), "second read must be served from the store")
}

func TestFetchRegenciesNotFound(t *testing.T) {
	r := New(newTestStore(t), &fakeRemote{data: map[string]string{}})
	got := r.FetchRegencies(context.Background(), "99")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEmptyOrUndefinedParentSkipsNetwork(t *testing.T) {
	remote := &fakeRemote{data: map[string]string{}}
	r := New(newTestStore(t), remote)
	ctx := context.Background()

	assert.Empty(t, r.FetchDistricts(ctx, ""))
	assert.Empty(t, r.FetchVillages(ctx, "undefined"))
	assert.Empty(t, r.FetchRegencies(ctx, ""))
	assert.Zero(t, remote.callCount())
}

func TestResolveStaysInScope(t *testing.T) {
	remote := &fakeRemote{data: map[string]string{
		"districts/3273.json": `[
			{"id":"3273010","regency_id":"3273","name":"SUKASARI"},
			{"id":"3273020","name":"COBLONG"},
			{"id":"3201010","regency_id":"3201","name":"NANGGUNG"}
		]`,
	}}
	st := newTestStore(t)
	r := New(st, remote)
	got := r.Resolve(context.Background(), region.District, "3273")
	require.Len(t, got, 2)
	for _, rec := range got {
		assert.Equal(t, "3273", rec.ParentID)
	}
	assert.Equal(t, "COBLONG", got[0].Name)

	n, err := st.Count(context.Background(), region.District)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResolveLocalDataWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.PutBulk(ctx, region.Village, []region.Record{{ID: "1", ParentID: "d1", Name: "Only One"}}))
	remote := &fakeRemote{data: map[string]string{
		"villages/d1.json": `[{"id":"1","district_id":"d1","name":"Only One"},{"id":"2","district_id":"d1","name":"Another"}]`,
	}}
	r := New(st, remote)
	got := r.FetchVillages(ctx, "d1")
	assert.Equal(t, []region.VillageEntity{{ID: "1", DistrictID: "d1", Name: "Only One"}}, got)
	assert.Zero(t, remote.callCount())
}

func TestResolveSortsByName(t *testing.T) {
	remote := &fakeRemote{data: map[string]string{
		"villages/d1.json": `[{"id":"3","district_id":"d1","name":"Zebra"},{"id":"1","district_id":"d1","name":"apel"},{"id":"2","district_id":"d1","name":"Mangga"}]`,
	}}
	r := New(newTestStore(t), remote)
	got := r.Resolve(context.Background(), region.Village, "d1")
	assert.True(t, region.IsSorted(got))
	assert.Equal(t, "apel", got[0].Name)
}

func TestResolveDecodeFailureIsEmpty(t *testing.T) {
	remote := &fakeRemote{data: map[string]string{"regencies/11.json": `{"error":"nope"}`}}
	r := New(newTestStore(t), remote)
	assert.Empty(t, r.FetchRegencies(context.Background(), "11"))
}

func TestProvinceFallback(t *testing.T) {
	ctx := context.Background()
	for name, data := range map[string]map[string]string{
		"no response": {},
		"empty array": {"provinces.json": `[]`},
		"bad body":    {"provinces.json": `{}`},
	} {
		t.Run(name, func(t *testing.T) {
			st := newTestStore(t)
			r := New(st, &fakeRemote{data: data})
			got := r.FetchProvinces(ctx)
			assert.Len(t, got, len(region.FallbackProvinces()))
			assert.True(t, region.IsSorted(r.Resolve(ctx, region.Province, "")))
			n, err := st.Count(ctx, region.Province)
			require.NoError(t, err)
			assert.Equal(t, len(got), n)
		})
	}
}

func TestFallbackOnlyAtRoot(t *testing.T) {
	r := New(newTestStore(t), &fakeRemote{data: map[string]string{}},
		WithFallback(func() []region.Record { return []region.Record{{ID: "x", Name: "X"}} }))
	assert.Empty(t, r.FetchRegencies(context.Background(), "11"))
	assert.Equal(t, []region.ProvinceEntity{{ID: "x", Name: "X"}}, r.FetchProvinces(context.Background()))
}

// brokenStore：所有操作均失败
type brokenStore struct{}

var errBroken = errors.New("disk on fire")

func (brokenStore) All(context.Context, region.Level) ([]region.Record, error) { return nil, errBroken }
func (brokenStore) ByParent(context.Context, region.Level, string) ([]region.Record, error) {
	return nil, errBroken
}
func (brokenStore) PutBulk(context.Context, region.Level, []region.Record) error { return errBroken }
func (brokenStore) Count(context.Context, region.Level) (int, error)            { return 0, errBroken }
func (brokenStore) ClearAll(context.Context) error                               { return errBroken }

func TestStoreFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{data: map[string]string{
		"regencies/11.json": `[{"id":"1101","province_id":"11","name":"SIMEULUE"}]`,
	}}
	r := New(brokenStore{}, remote)

	// 读失败视为未命中，写失败仍返回内存数据
	got := r.FetchRegencies(ctx, "11")
	assert.Equal(t, []region.RegencyEntity{{ID: "1101", ProvinceID: "11", Name: "SIMEULUE"}}, got)
	assert.Equal(t, Stats{}, r.Stats(ctx))
	assert.ErrorIs(t, r.ClearAll(ctx), errBroken)
}

func TestClearAllThenRefetch(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{data: map[string]string{"provinces.json": `[{"id":"11","name":"Aceh"}]`}}
	r := New(newTestStore(t), remote)
	r.FetchProvinces(ctx)
	require.NoError(t, r.ClearAll(ctx))
	assert.Equal(t, Stats{}, r.Stats(ctx))
	r.FetchProvinces(ctx)
	assert.Equal(t, 2, remote.callCount())
}

func TestStatsOf(t *testing.T) {
	s := Stats{Provinces: 1, Regencies: 2, Districts: 3, Villages: 4}
	for i, l := range region.Levels {
		assert.Equal(t, i+1, s.Of(l))
	}
}
