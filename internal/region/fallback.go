package region

import (
	_ "embed"
)

//go:embed data/provinces.json
var fallbackProvinces []byte

// 文档注释：内置省份静态数据
// 背景：所有镜像均不可用时根层级的最后兜底，保证选择器顶层永不为空。
// 约束：每次返回新切片，调用方可自由排序与修改。
func FallbackProvinces() []Record {
	recs, err := Decode(Province, fallbackProvinces)
	if err != nil {
		panic("region: embedded provinces are malformed: " + err.Error())
	}
	return recs
}
