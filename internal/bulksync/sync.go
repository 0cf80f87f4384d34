// 包 bulksync：全树批量同步，逐层有界并发拉取并汇报进度
package bulksync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/metrics"
	"wilayah-api/internal/pool"
	"wilayah-api/internal/region"
	"wilayah-api/internal/resolver"
)

// Progress：进度回调，percent 取值 0..100 且不递减
type Progress func(message string, percent int)

// ErrInProgress：已有一次全量同步在运行
var ErrInProgress = errors.New("bulk synchronization already in progress")

// SyncError：阶段性致命错误，中止整个同步
type SyncError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sync %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("sync %s: %s", e.Stage, e.Reason)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Widths：各扇出阶段的并发宽度
type Widths struct {
	Regencies int
	Districts int
	Villages  int
}

var DefaultWidths = Widths{Regencies: 6, Districts: 12, Villages: 20}

// Status：最近一次同步的快照，供状态接口轮询
type Status struct {
	Running    bool       `json:"running"`
	Message    string     `json:"message"`
	Percent    int        `json:"percent"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Synchronizer struct {
	res      *resolver.Resolver
	widths   Widths
	onFinish func(err error)

	gate sync.Mutex // 同一时刻仅允许一次运行

	mu     sync.RWMutex
	status Status
}

type Option func(*Synchronizer)

// WithWidths：覆盖并发宽度，非正值沿用默认
func WithWidths(w Widths) Option {
	return func(s *Synchronizer) {
		if w.Regencies > 0 {
			s.widths.Regencies = w.Regencies
		}
		if w.Districts > 0 {
			s.widths.Districts = w.Districts
		}
		if w.Villages > 0 {
			s.widths.Villages = w.Villages
		}
	}
}

// WithFinishHook：每次运行结束后回调（成功时 err 为空），用于刷新下游缓存
func WithFinishHook(f func(err error)) Option {
	return func(s *Synchronizer) { s.onFinish = f }
}

func New(res *resolver.Resolver, opts ...Option) *Synchronizer {
	s := &Synchronizer{res: res, widths: DefaultWidths}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Synchronizer) Widths() Widths { return s.widths }

// Running：是否有同步在运行
func (s *Synchronizer) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Running
}

// Status：返回快照副本
func (s *Synchronizer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// 文档注释：清空本地库并自根向叶重建整棵树
// 背景：provinces → regencies → districts → villages 逐层推进；每层扇出结束后从本地库重读整个集合作为下一层输入，
// 反映真实落盘的数据而非内存结果。
// 约束：不支持中途取消；并发调用直接返回 ErrInProgress；仅在阶段检查点以 *SyncError 中止，单个作用域失败只贡献空结果。
func (s *Synchronizer) Run(ctx context.Context, onProgress Progress) error {
	if !s.gate.TryLock() {
		metrics.SyncRunsTotal.WithLabelValues("busy").Inc()
		return ErrInProgress
	}
	defer s.gate.Unlock()
	return s.execute(ctx, onProgress)
}

// Start：后台启动一次同步；占用检查同步完成，已在运行时立即返回 ErrInProgress
func (s *Synchronizer) Start(ctx context.Context, onProgress Progress) error {
	if !s.gate.TryLock() {
		metrics.SyncRunsTotal.WithLabelValues("busy").Inc()
		return ErrInProgress
	}
	now := time.Now()
	s.mu.Lock()
	s.status = Status{Running: true, StartedAt: &now}
	s.mu.Unlock()
	go func() {
		defer s.gate.Unlock()
		_ = s.execute(ctx, onProgress)
	}()
	return nil
}

// Clear：与同步共用占用锁清空本地库；同步进行中返回 ErrInProgress
func (s *Synchronizer) Clear(ctx context.Context) error {
	if !s.gate.TryLock() {
		return ErrInProgress
	}
	defer s.gate.Unlock()
	return s.res.ClearAll(ctx)
}

func (s *Synchronizer) execute(ctx context.Context, onProgress Progress) error {
	now := time.Now()
	s.mu.Lock()
	s.status = Status{Running: true, StartedAt: &now}
	s.mu.Unlock()

	report := func(msg string, pct int) {
		s.mu.Lock()
		s.status.Message = msg
		s.status.Percent = pct
		s.mu.Unlock()
		metrics.SyncProgress.Set(float64(pct))
		logger.L().Debug("sync_progress", "percent", pct, "message", msg)
		if onProgress != nil {
			onProgress(msg, pct)
		}
	}

	logger.L().Info("sync_start", "widths", fmt.Sprintf("%d/%d/%d", s.widths.Regencies, s.widths.Districts, s.widths.Villages))
	err := s.run(ctx, report)

	end := time.Now()
	s.mu.Lock()
	s.status.Running = false
	s.status.FinishedAt = &end
	if err != nil {
		s.status.Error = err.Error()
	}
	s.mu.Unlock()
	if s.onFinish != nil {
		s.onFinish(err)
	}
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("fatal").Inc()
		logger.L().Error("sync_failed", "err", err, "duration_ms", end.Sub(now).Milliseconds())
		return err
	}
	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	logger.L().Info("sync_done", "duration_ms", end.Sub(now).Milliseconds())
	return nil
}

func (s *Synchronizer) run(ctx context.Context, report Progress) error {
	report("Clearing local database...", 0)
	if err := s.res.ClearAll(ctx); err != nil {
		return &SyncError{Stage: "clear", Reason: "could not clear local database", Err: err}
	}

	t0 := time.Now()
	report("Downloading provinces...", 2)
	var provinces []region.Record
	for _, p := range s.res.Resolve(ctx, region.Province, "") {
		if p.ID != "" {
			provinces = append(provinces, p)
		}
	}
	metrics.SyncStageDurationMs.WithLabelValues("provinces").Observe(float64(time.Since(t0).Milliseconds()))
	report(fmt.Sprintf("Found %d provinces.", len(provinces)), 5)

	regencies, err := s.stage(ctx, report, region.Regency, provinces, s.widths.Regencies, 5, 10,
		"failed to download regencies, check the network connection")
	if err != nil {
		return err
	}
	districts, err := s.stage(ctx, report, region.District, regencies, s.widths.Districts, 15, 25,
		"failed to download districts")
	if err != nil {
		return err
	}
	if err := s.lastStage(ctx, report, region.Village, districts, s.widths.Villages, 40, 59,
		"failed to download villages"); err != nil {
		return err
	}

	report("Finalizing database...", 99)
	stats := s.res.Stats(ctx)
	if stats.Villages == 0 {
		return &SyncError{Stage: "finalize", Reason: "finished but village data is empty"}
	}
	logger.L().Info("sync_stats", "provinces", stats.Provinces, "regencies", stats.Regencies, "districts", stats.Districts, "villages", stats.Villages)
	report("Done! Database synchronized.", 100)
	return nil
}

// 文档注释：单层扇出
// 约束：进度 = base + round(done/total*span)；阶段结束后重读整个集合，为空则返回致命错误。
func (s *Synchronizer) stage(ctx context.Context, report Progress, child region.Level, parents []region.Record, width, base, span int, reason string) ([]region.Record, error) {
	s.fanOut(ctx, report, child, parents, width, base, span)
	all, err := s.res.Store().All(ctx, child)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("read").Inc()
		logger.L().Error("sync_reread_error", "level", child.String(), "err", err)
		all = nil
	}
	logger.L().Info("sync_stage_done", "level", child.String(), "parents", len(parents), "records", len(all))
	if len(all) == 0 {
		return nil, &SyncError{Stage: child.Table(), Reason: reason, Err: err}
	}
	return all, nil
}

// lastStage：叶层无下一层输入，只按计数判断是否为空
func (s *Synchronizer) lastStage(ctx context.Context, report Progress, child region.Level, parents []region.Record, width, base, span int, reason string) error {
	s.fanOut(ctx, report, child, parents, width, base, span)
	n, err := s.res.Store().Count(ctx, child)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("count").Inc()
		logger.L().Error("sync_recount_error", "level", child.String(), "err", err)
		n = 0
	}
	logger.L().Info("sync_stage_done", "level", child.String(), "parents", len(parents), "records", n)
	if n == 0 {
		return &SyncError{Stage: child.Table(), Reason: reason, Err: err}
	}
	return nil
}

func (s *Synchronizer) fanOut(ctx context.Context, report Progress, child region.Level, parents []region.Record, width, base, span int) {
	t0 := time.Now()
	label := child.Table()
	pool.Run(ctx, width, parents, func(ctx context.Context, p region.Record) {
		s.res.Resolve(ctx, child, p.ID)
	}, func(done, total int) {
		pct := base + int(math.Round(float64(done)/float64(total)*float64(span)))
		report(fmt.Sprintf("Downloading %s (%d/%d)...", label, done, total), pct)
	})
	metrics.SyncStageDurationMs.WithLabelValues(label).Observe(float64(time.Since(t0).Milliseconds()))
}
