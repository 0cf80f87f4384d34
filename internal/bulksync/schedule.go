package bulksync

import (
	"context"
	"errors"
	"time"
	"wilayah-api/internal/logger"
)

// nextWeekdayAt：下一次指定星期与整点的时刻，严格晚于 now
func nextWeekdayAt(now time.Time, day time.Weekday, hour int) time.Time {
	for i := 0; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		if d.Weekday() != day {
			continue
		}
		t := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
		if t.After(now) {
			return t
		}
	}
	d := now.AddDate(0, 0, 7)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
}

// 文档注释：每周定时全量同步（后台协程）
// 约束：loc 为空时使用 Asia/Jakarta；已有同步在运行时跳过本次；ctx 取消后停止调度，但不打断正在进行的同步。
func StartWeekly(ctx context.Context, s *Synchronizer, loc *time.Location, day time.Weekday, hour int) {
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation("Asia/Jakarta"); err != nil {
			loc = time.UTC
		}
	}
	l := logger.L()
	next := nextWeekdayAt(time.Now().In(loc), day, hour)
	l.Info("sync_schedule", "next", next)
	go func() {
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				l.Info("sync_schedule_stop")
				return
			case <-timer.C:
			}
			l.Info("sync_scheduled_start", "at", next)
			err := s.Run(context.WithoutCancel(ctx), nil)
			switch {
			case errors.Is(err, ErrInProgress):
				l.Warn("sync_scheduled_skip", "reason", "in_progress")
			case err != nil:
				l.Error("sync_scheduled_error", "err", err)
			}
			next = nextWeekdayAt(time.Now().In(loc), day, hour)
		}
	}()
}
