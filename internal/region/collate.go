package region

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collate.Collator 内部持有缓冲区，不可并发复用，故按需从池中取用
var collators = sync.Pool{
	New: func() any { return collate.New(language.Indonesian) },
}

// CompareNames：按印尼语区域规则比较名称，返回 -1/0/1
func CompareNames(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// 文档注释：按名称的区域规则升序排序（原地、稳定）
// 约束：该顺序是对调用方的契约，存储层与解析层返回前都必须经过此处。
func SortByName(recs []Record) []Record {
	if len(recs) < 2 {
		return recs
	}
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	sort.SliceStable(recs, func(i, j int) bool {
		return c.CompareString(recs[i].Name, recs[j].Name) < 0
	})
	return recs
}

// IsSorted：检查记录是否按名称非递减
func IsSorted(recs []Record) bool {
	for i := 1; i < len(recs); i++ {
		if CompareNames(recs[i-1].Name, recs[i].Name) > 0 {
			return false
		}
	}
	return true
}
