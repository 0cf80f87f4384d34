// 包 region：行政区四级树的层级枚举、实体结构与线上 JSON 编解码
package region

import (
	"encoding/json"
	"fmt"
)

// Level：行政层级，封闭枚举；表名/父字段/端点均由此静态映射得到
type Level int

const (
	Province Level = iota
	Regency
	District
	Village
)

// Levels：自根向叶的全部层级
var Levels = [...]Level{Province, Regency, District, Village}

type levelInfo struct {
	name      string
	table     string
	parentCol string
	prefix    string
}

var levelTable = [...]levelInfo{
	Province: {name: "province", table: "provinces", parentCol: "", prefix: "provinces"},
	Regency:  {name: "regency", table: "regencies", parentCol: "province_id", prefix: "regencies"},
	District: {name: "district", table: "districts", parentCol: "regency_id", prefix: "districts"},
	Village:  {name: "village", table: "villages", parentCol: "district_id", prefix: "villages"},
}

func (l Level) Valid() bool { return l >= Province && l <= Village }

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelTable[l].name
}

// Table：本地存储中的集合名
func (l Level) Table() string { return levelTable[l].table }

// ParentColumn：父级外键字段名；根层级返回空串
func (l Level) ParentColumn() string { return levelTable[l].parentCol }

// HasParent：是否存在父层级（根层级省份为 false）
func (l Level) HasParent() bool { return l != Province }

// Parent：父层级；根层级返回自身
func (l Level) Parent() Level {
	if l == Province {
		return Province
	}
	return l - 1
}

// Endpoint：远端资源路径，根层级为 provinces.json，其余为 {level}/{parentID}.json
func (l Level) Endpoint(parentID string) string {
	if l == Province {
		return "provinces.json"
	}
	return levelTable[l].prefix + "/" + parentID + ".json"
}

// ParseLevel：按名称或集合名解析层级
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if s == levelTable[l].name || s == levelTable[l].table {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Record：与层级无关的存储行；根层级 ParentID 恒为空
type Record struct {
	ID       string
	ParentID string
	Name     string
}

type ProvinceEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RegencyEntity struct {
	ID         string `json:"id"`
	ProvinceID string `json:"province_id"`
	Name       string `json:"name"`
}

type DistrictEntity struct {
	ID        string `json:"id"`
	RegencyID string `json:"regency_id"`
	Name      string `json:"name"`
}

type VillageEntity struct {
	ID         string `json:"id"`
	DistrictID string `json:"district_id"`
	Name       string `json:"name"`
}

// wireRecord：线上扁平对象，父字段按层级取其一
type wireRecord struct {
	ID         string `json:"id"`
	ProvinceID string `json:"province_id,omitempty"`
	RegencyID  string `json:"regency_id,omitempty"`
	DistrictID string `json:"district_id,omitempty"`
	Name       string `json:"name"`
}

func (w wireRecord) parent(l Level) string {
	switch l {
	case Regency:
		return w.ProvinceID
	case District:
		return w.RegencyID
	case Village:
		return w.DistrictID
	}
	return ""
}

func toWire(l Level, r Record) wireRecord {
	w := wireRecord{ID: r.ID, Name: r.Name}
	switch l {
	case Regency:
		w.ProvinceID = r.ParentID
	case District:
		w.RegencyID = r.ParentID
	case Village:
		w.DistrictID = r.ParentID
	}
	return w
}

// 文档注释：解码远端响应体
// 约束：仅接受 JSON 数组；对象或标量返回错误，由调用方按“无数据”降级。
func Decode(l Level, body []byte) ([]Record, error) {
	var ws []wireRecord
	if err := json.Unmarshal(body, &ws); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.Table(), err)
	}
	out := make([]Record, 0, len(ws))
	for _, w := range ws {
		out = append(out, Record{ID: w.ID, ParentID: w.parent(l), Name: w.Name})
	}
	return out, nil
}

// Encode：按线上契约序列化，空集合输出 []
func Encode(l Level, recs []Record) ([]byte, error) {
	ws := make([]wireRecord, 0, len(recs))
	for _, r := range recs {
		ws = append(ws, toWire(l, r))
	}
	return json.Marshal(ws)
}

func Provinces(recs []Record) []ProvinceEntity {
	out := make([]ProvinceEntity, 0, len(recs))
	for _, r := range recs {
		out = append(out, ProvinceEntity{ID: r.ID, Name: r.Name})
	}
	return out
}

func Regencies(recs []Record) []RegencyEntity {
	out := make([]RegencyEntity, 0, len(recs))
	for _, r := range recs {
		out = append(out, RegencyEntity{ID: r.ID, ProvinceID: r.ParentID, Name: r.Name})
	}
	return out
}

func Districts(recs []Record) []DistrictEntity {
	out := make([]DistrictEntity, 0, len(recs))
	for _, r := range recs {
		out = append(out, DistrictEntity{ID: r.ID, RegencyID: r.ParentID, Name: r.Name})
	}
	return out
}

func Villages(recs []Record) []VillageEntity {
	out := make([]VillageEntity, 0, len(recs))
	for _, r := range recs {
		out = append(out, VillageEntity{ID: r.ID, DistrictID: r.ParentID, Name: r.Name})
	}
	return out
}
