// 包 pool：有界并发的滑动窗口任务池
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// 文档注释：以滑动窗口方式执行任务
// 背景：任一任务完成即放入下一个，在途数量恒不超过 limit，而非按固定批次齐步推进。
// 约束：任务自行吸收失败，池不重试也不中断；onDone 串行调用，completed 严格递增，完成顺序不保证与提交顺序一致。
func Run[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T), onDone func(completed, total int)) {
	if limit <= 0 {
		limit = 1
	}
	total := len(items)
	var (
		g         errgroup.Group
		mu        sync.Mutex
		completed int
	)
	g.SetLimit(limit)
	for _, it := range items {
		g.Go(func() error {
			fn(ctx, it)
			mu.Lock()
			completed++
			if onDone != nil {
				onDone(completed, total)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}
