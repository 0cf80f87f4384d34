// 包 remote：远端行政区数据源客户端，按候选源顺序故障转移
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/metrics"
)

// DefaultMirrors：公开镜像，按稳定性排序
var DefaultMirrors = []string{
	"https://emsifa.github.io/api-wilayah-indonesia/api",
	"https://wahyupulse.github.io/api-wilayah-indonesia/api",
	"https://kanglerian.github.io/api-wilayah-indonesia/api",
}

const (
	DefaultTimeout = 15 * time.Second
	// DefaultIdleConnsPerHost：与最宽的同步并发度一致，整轮同步复用连接
	DefaultIdleConnsPerHost = 20
	maxBodyBytes            = 64 << 20
)

var (
	errNotFound = errors.New("not found")
	errNotJSON  = errors.New("response is not json")
)

// Client：多源故障转移客户端；候选源为镜像列表或单一代理源
type Client struct {
	origins   []string
	http      *http.Client
	timeout   time.Duration
	cacheBust bool
	idleConns int
	now       func() time.Time
}

type Option func(*Client)

// WithHTTPClient：注入共享 HTTP 客户端
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout：单次请求超时，非正值忽略
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIdleConnsPerHost：每个源保留的空闲连接数，应不小于对同一源的最大并发；注入 HTTP 客户端时不生效
func WithIdleConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.idleConns = n
		}
	}
}

// WithCacheBust：是否追加 time 查询参数绕过中间代理缓存的 404
func WithCacheBust(on bool) Option { return func(c *Client) { c.cacheBust = on } }

// 文档注释：创建客户端
// 约束：候选源去除尾部斜杠与空项；为空时使用 DefaultMirrors。
func New(origins []string, opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout, cacheBust: true, idleConns: DefaultIdleConnsPerHost, now: time.Now}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			c.origins = append(c.origins, o)
		}
	}
	if len(c.origins) == 0 {
		c.origins = append(c.origins, DefaultMirrors...)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConnsPerHost = c.idleConns
		if tr.MaxIdleConns < c.idleConns*len(c.origins) {
			tr.MaxIdleConns = c.idleConns * len(c.origins)
		}
		c.http = &http.Client{Transport: tr}
	}
	return c
}

// NewProxy：单一代理源模式
func NewProxy(origin string, opts ...Option) *Client {
	return New([]string{origin}, opts...)
}

func (c *Client) Origins() []string { return append([]string(nil), c.origins...) }

// 文档注释：拉取单个端点
// 背景：逐个候选源尝试，超时/服务端错误/非 JSON 记录后继续；404 视为该源确实缺少资源，直接换下一个。
// 返回：首个通过校验的响应体；全部失败返回 (nil, false)，不返回错误，调用方按“无数据”处理。
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]byte, bool) {
	endpoint = strings.TrimLeft(endpoint, "/")
	var errs []error
	for _, origin := range c.origins {
		body, err := c.fetchOne(ctx, origin, endpoint)
		if err == nil {
			return body, true
		}
		if errors.Is(err, errNotFound) {
			logger.L().Warn("remote_not_found", "origin", origin, "endpoint", endpoint)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", origin, err))
		if ctx.Err() != nil {
			break
		}
	}
	metrics.RemoteExhaustedTotal.Inc()
	if len(errs) > 0 {
		logger.L().Warn("remote_failover_exhausted", "endpoint", endpoint, "err", errors.Join(errs...))
	} else {
		logger.L().Debug("remote_absent", "endpoint", endpoint)
	}
	return nil, false
}

func (c *Client) buildURL(origin, endpoint string) string {
	u := origin + "/" + endpoint
	if c.cacheBust {
		q := url.Values{}
		q.Set("time", strconv.FormatInt(c.now().UnixMilli(), 10))
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) fetchOne(ctx context.Context, origin, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(origin, endpoint), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	t0 := time.Now()
	metrics.RemoteRequestsTotal.WithLabelValues(origin).Inc()
	logger.L().Debug("remote_req", "origin", origin, "endpoint", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		reason := "transport"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.RemoteFailTotal.WithLabelValues(origin, reason).Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		metrics.RemoteNotFoundTotal.WithLabelValues(origin).Inc()
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RemoteFailTotal.WithLabelValues(origin, "status").Inc()
		return nil, fmt.Errorf("server error %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		reason := "transport"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.RemoteFailTotal.WithLabelValues(origin, reason).Inc()
		return nil, err
	}
	if !looksJSON(resp.Header.Get("content-type"), body) {
		metrics.RemoteFailTotal.WithLabelValues(origin, "invalid").Inc()
		return nil, errNotJSON
	}
	dur := time.Since(t0).Milliseconds()
	metrics.RemoteDurationMs.Observe(float64(dur))
	logger.L().Debug("remote_resp", "origin", origin, "endpoint", endpoint, "bytes", len(body), "duration_ms", dur)
	return body, nil
}

// looksJSON：先看 content-type，不确定时窥探首个非空白字符
func looksJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return true
	}
	t := bytes.TrimSpace(body)
	return len(t) > 0 && (t[0] == '[' || t[0] == '{')
}
