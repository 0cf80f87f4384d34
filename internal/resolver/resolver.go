// 包 resolver：缓存优先的层级读取路径，组合本地存储与远端数据源
package resolver

import (
	"context"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/metrics"
	"wilayah-api/internal/region"
)

// Store：解析层依赖的本地存储能力
type Store interface {
	All(ctx context.Context, l region.Level) ([]region.Record, error)
	ByParent(ctx context.Context, l region.Level, parentID string) ([]region.Record, error)
	PutBulk(ctx context.Context, l region.Level, recs []region.Record) error
	Count(ctx context.Context, l region.Level) (int, error)
	ClearAll(ctx context.Context) error
}

// Fetcher：远端拉取能力；无数据返回 (nil, false)
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, bool)
}

// Stats：四个集合的记录数
type Stats struct {
	Provinces int `json:"provinces"`
	Regencies int `json:"regencies"`
	Districts int `json:"districts"`
	Villages  int `json:"villages"`
}

func (s Stats) Of(l region.Level) int {
	switch l {
	case region.Province:
		return s.Provinces
	case region.Regency:
		return s.Regencies
	case region.District:
		return s.Districts
	case region.Village:
		return s.Villages
	}
	return 0
}

type Resolver struct {
	store    Store
	remote   Fetcher
	fallback func() []region.Record
}

type Option func(*Resolver)

// WithFallback：替换根层级的静态兜底数据；传 nil 关闭兜底
func WithFallback(f func() []region.Record) Option { return func(r *Resolver) { r.fallback = f } }

func New(st Store, remote Fetcher, opts ...Option) *Resolver {
	r := &Resolver{store: st, remote: remote, fallback: region.FallbackProvinces}
	for _, o := range opts {
		o(r)
	}
	return r
}

// invalidParent：空串或前端未就绪时的 "undefined" 占位
func invalidParent(id string) bool { return id == "" || id == "undefined" }

// 文档注释：缓存优先解析一个作用域
// 背景：本地只要存在该作用域的任何数据即直接返回，即便已知不完整也不再访问远端（无失效策略）。
// 约束：存储与网络错误在此层吸收并降级为空结果，永不向调用方返回错误；结果按名称区域规则排序。
func (r *Resolver) Resolve(ctx context.Context, l region.Level, parentID string) []region.Record {
	if l.HasParent() && invalidParent(parentID) {
		return []region.Record{}
	}
	log := logger.L().With("level", l.String(), "parent", parentID)

	var (
		local []region.Record
		err   error
	)
	if l.HasParent() {
		local, err = r.store.ByParent(ctx, l, parentID)
	} else {
		local, err = r.store.All(ctx, l)
	}
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("read").Inc()
		log.Error("store_read_error", "err", err)
		local = nil
	}
	if len(local) > 0 {
		metrics.CacheHitsTotal.WithLabelValues(l.String()).Inc()
		return region.SortByName(local)
	}
	metrics.CacheMissesTotal.WithLabelValues(l.String()).Inc()

	recs := r.fetchRemote(ctx, l, parentID)
	if len(recs) == 0 && !l.HasParent() && r.fallback != nil {
		recs = r.fallback()
		metrics.FallbackTotal.Inc()
		log.Warn("province_fallback", "count", len(recs))
	}
	if len(recs) == 0 {
		return []region.Record{}
	}
	if err := r.store.PutBulk(ctx, l, recs); err != nil {
		// 写入失败仍返回内存数据
		metrics.StoreErrorsTotal.WithLabelValues("write").Inc()
		log.Error("store_write_error", "err", err, "count", len(recs))
	}
	return region.SortByName(recs)
}

// fetchRemote：拉取并解码；父字段为空的记录继承请求作用域，指向其它父级的记录丢弃
func (r *Resolver) fetchRemote(ctx context.Context, l region.Level, parentID string) []region.Record {
	if r.remote == nil {
		return nil
	}
	endpoint := l.Endpoint(parentID)
	body, ok := r.remote.Fetch(ctx, endpoint)
	if !ok {
		return nil
	}
	recs, err := region.Decode(l, body)
	if err != nil {
		logger.L().Warn("remote_decode_error", "endpoint", endpoint, "err", err)
		return nil
	}
	if !l.HasParent() {
		return recs
	}
	out := recs[:0]
	dropped := 0
	for _, rec := range recs {
		if rec.ParentID == "" {
			rec.ParentID = parentID
		}
		if rec.ParentID != parentID {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	if dropped > 0 {
		logger.L().Warn("remote_scope_mismatch", "endpoint", endpoint, "dropped", dropped)
	}
	return out
}

func (r *Resolver) FetchProvinces(ctx context.Context) []region.ProvinceEntity {
	return region.Provinces(r.Resolve(ctx, region.Province, ""))
}

func (r *Resolver) FetchRegencies(ctx context.Context, provinceID string) []region.RegencyEntity {
	return region.Regencies(r.Resolve(ctx, region.Regency, provinceID))
}

func (r *Resolver) FetchDistricts(ctx context.Context, regencyID string) []region.DistrictEntity {
	return region.Districts(r.Resolve(ctx, region.District, regencyID))
}

func (r *Resolver) FetchVillages(ctx context.Context, districtID string) []region.VillageEntity {
	return region.Villages(r.Resolve(ctx, region.Village, districtID))
}

// Stats：读取失败的集合按 0 计
func (r *Resolver) Stats(ctx context.Context) Stats {
	var s Stats
	for _, l := range region.Levels {
		n, err := r.store.Count(ctx, l)
		if err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("count").Inc()
			logger.L().Error("store_count_error", "level", l.String(), "err", err)
			continue
		}
		switch l {
		case region.Province:
			s.Provinces = n
		case region.Regency:
			s.Regencies = n
		case region.District:
			s.Districts = n
		case region.Village:
			s.Villages = n
		}
	}
	return s
}

// ClearAll：清空本地四个集合；与读路径不同，失败会返回给调用方
func (r *Resolver) ClearAll(ctx context.Context) error {
	if err := r.store.ClearAll(ctx); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("clear").Inc()
		return err
	}
	return nil
}

// Store：暴露底层存储，供批量同步读取整个集合
func (r *Resolver) Store() Store { return r.store }
