package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelMapping(t *testing.T) {
	assert.Equal(t, "provinces.json", Province.Endpoint(""))
	assert.Equal(t, "regencies/32.json", Regency.Endpoint("32"))
	assert.Equal(t, "districts/3273.json", District.Endpoint("3273"))
	assert.Equal(t, "villages/3273060.json", Village.Endpoint("3273060"))

	assert.Equal(t, "", Province.ParentColumn())
	assert.Equal(t, "province_id", Regency.ParentColumn())
	assert.Equal(t, "regency_id", District.ParentColumn())
	assert.Equal(t, "district_id", Village.ParentColumn())

	assert.Equal(t, Province, Regency.Parent())
	assert.Equal(t, District, Village.Parent())
	assert.False(t, Province.HasParent())

	l, err := ParseLevel("districts")
	require.NoError(t, err)
	assert.Equal(t, District, l)
	l, err = ParseLevel("village")
	require.NoError(t, err)
	assert.Equal(t, Village, l)
	_, err = ParseLevel("country")
	assert.Error(t, err)
}

func TestDecodePicksParentField(t *testing.T) {
	body := []byte(`[{"id":"1101","province_id":"11","name":"KABUPATEN SIMEULUE"}]`)
	recs, err := Decode(Regency, body)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, Record{ID: "1101", ParentID: "11", Name: "KABUPATEN SIMEULUE"}, recs[0])

	recs, err = Decode(Village, []byte(`[{"id":"1101010001","district_id":"1101010","name":"LATIUNG"}]`))
	require.NoError(t, err)
	assert.Equal(t, "1101010", recs[0].ParentID)
}

func TestDecodeRejectsNonArray(t *testing.T) {
	_, err := Decode(Province, []byte(`{"id":"11"}`))
	assert.Error(t, err)
	_, err = Decode(Province, []byte(`<html>`))
	assert.Error(t, err)
}

func TestEncodeKeepsWireShape(t *testing.T) {
	b, err := Encode(District, []Record{{ID: "3273010", ParentID: "3273", Name: "SUKASARI"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"3273010","regency_id":"3273","name":"SUKASARI"}]`, string(b))

	b, err = Encode(Province, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	b, err = Encode(Province, []Record{{ID: "11", Name: "Aceh"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"11","name":"Aceh"}]`, string(b))
}

func TestSortByNameIsLocaleAware(t *testing.T) {
	recs := []Record{
		{ID: "3", Name: "Sumatera Utara"},
		{ID: "2", Name: "bali"},
		{ID: "1", Name: "Aceh"},
	}
	SortByName(recs)
	assert.Equal(t, []string{"Aceh", "bali", "Sumatera Utara"}, names(recs))
	assert.True(t, IsSorted(recs))
}

func TestSortByNameIsStable(t *testing.T) {
	recs := []Record{{ID: "b", Name: "SUKAMAJU"}, {ID: "a", Name: "SUKAMAJU"}, {ID: "c", Name: "CIBEUREUM"}}
	SortByName(recs)
	assert.Equal(t, []string{"c", "b", "a"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestFallbackProvinces(t *testing.T) {
	recs := FallbackProvinces()
	require.NotEmpty(t, recs)
	seen := map[string]bool{}
	for _, r := range recs {
		assert.NotEmpty(t, r.ID)
		assert.NotEmpty(t, r.Name)
		assert.Empty(t, r.ParentID)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	// 每次返回独立切片
	recs[0].Name = "changed"
	assert.NotEqual(t, "changed", FallbackProvinces()[0].Name)
}

func TestTypedViews(t *testing.T) {
	recs := []Record{{ID: "1101", ParentID: "11", Name: "SIMEULUE"}}
	assert.Equal(t, []RegencyEntity{{ID: "1101", ProvinceID: "11", Name: "SIMEULUE"}}, Regencies(recs))
	assert.Equal(t, []ProvinceEntity{{ID: "1101", Name: "SIMEULUE"}}, Provinces(recs))
	assert.Equal(t, []DistrictEntity{{ID: "1101", RegencyID: "11", Name: "SIMEULUE"}}, Districts(recs))
	assert.Equal(t, []VillageEntity{{ID: "1101", DistrictID: "11", Name: "SIMEULUE"}}, Villages(recs))
}

func names(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}
