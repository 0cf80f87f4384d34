// 包 api：集中注册 HTTP 路由；数据端点沿用远端线上契约，可作为其它部署的镜像源
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"wilayah-api/internal/bulksync"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/metrics"
	"wilayah-api/internal/region"
	"wilayah-api/internal/resolver"
)

type server struct {
	res        *resolver.Resolver
	sync       *bulksync.Synchronizer
	cache      ResponseCache
	adminToken string
}

// 文档注释：构建 API 路由
// 约束：返回独立 ServeMux，由主入口挂载到 API_BASE 前缀下；cache 为空时不缓存。
func BuildRoutes(res *resolver.Resolver, sy *bulksync.Synchronizer, cache ResponseCache, adminToken string) *http.ServeMux {
	s := &server{res: res, sync: sy, cache: cache, adminToken: adminToken}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /provinces.json", s.level(region.Province))
	mux.HandleFunc("GET /provinces", s.level(region.Province))
	mux.HandleFunc("GET /regencies/{id}", s.level(region.Regency))
	mux.HandleFunc("GET /districts/{id}", s.level(region.District))
	mux.HandleFunc("GET /villages/{id}", s.level(region.Village))
	mux.HandleFunc("GET /stats", s.stats)
	mux.HandleFunc("GET /sync", s.syncStatus)
	mux.HandleFunc("POST /sync", s.admin(s.syncStart))
	mux.HandleFunc("DELETE /cache", s.admin(s.clear))
	return mux
}

func writeJSON(w http.ResponseWriter, code int, body []byte, cacheable bool) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	if cacheable {
		w.Header().Set("cache-control", "public, max-age=86400")
	} else {
		w.Header().Set("cache-control", "no-store")
	}
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeValue(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, code, b, false)
}

// 文档注释：层级数据端点
// 约束：空作用域返回 404 与 []，与远端契约一致；仅非空响应进入缓存，避免把暂时的缺失固化。
func (s *server) level(l region.Level) http.HandlerFunc {
	route := l.Table()
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRequestsTotal.WithLabelValues(route).Inc()
		ctx := r.Context()
		parent := strings.TrimSuffix(r.PathValue("id"), ".json")
		key := l.Endpoint(parent)
		if s.cache != nil {
			if b, ok := s.cache.Get(ctx, key); ok {
				writeJSON(w, http.StatusOK, b, true)
				return
			}
		}
		recs := s.res.Resolve(ctx, l, parent)
		body, err := region.Encode(l, recs)
		if err != nil {
			logger.L().Error("api_encode_error", "level", l.String(), "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if len(recs) == 0 {
			writeJSON(w, http.StatusNotFound, body, false)
			return
		}
		if s.cache != nil {
			s.cache.Set(ctx, key, body)
		}
		writeJSON(w, http.StatusOK, body, true)
	}
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("stats").Inc()
	writeValue(w, http.StatusOK, s.res.Stats(r.Context()))
}

func (s *server) syncStatus(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("sync_status").Inc()
	writeValue(w, http.StatusOK, s.sync.Status())
}

// syncStart：后台启动，不绑定请求上下文，请求结束后同步继续
func (s *server) syncStart(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("sync_start").Inc()
	err := s.sync.Start(context.WithoutCancel(r.Context()), nil)
	if errors.Is(err, bulksync.ErrInProgress) {
		writeValue(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	logger.L().Info("sync_requested", "ip", r.RemoteAddr)
	writeValue(w, http.StatusAccepted, s.sync.Status())
}

func (s *server) clear(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("clear").Inc()
	err := s.sync.Clear(r.Context())
	if errors.Is(err, bulksync.ErrInProgress) {
		writeValue(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logger.L().Error("api_clear_error", "err", err)
		writeValue(w, http.StatusInternalServerError, map[string]string{"error": "clear failed"})
		return
	}
	if s.cache != nil {
		s.cache.Flush(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// admin：x-admin-token 校验；未配置令牌时拒绝所有写操作
func (s *server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := r.Header.Get("x-admin-token")
		if t == "" || s.adminToken == "" || t != s.adminToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
