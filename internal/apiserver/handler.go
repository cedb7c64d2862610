// Package apiserver 提供安置引擎的 HTTP API
//
// 本包实现外部调度器调用的 RESTful 接口，包括：
//   - 安置能力查询（eligible）接口
//   - 执行槽开通（place）接口
//   - 主机容量快照（hosts）接口
//   - 安置审计查询（placements）接口
//   - WebSocket 容量实时推送
//
// 文件组织：
//   - handler.go: 通用工具函数、Handler 定义与路由
//   - monitor_ws.go: WebSocket 容量监控推送
package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buildpool/internal/apiserver/auth"
	"buildpool/internal/eventbus"
	"buildpool/internal/history"
	"buildpool/internal/label"
	"buildpool/internal/pool"
	"buildpool/pkg/logging"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到对应的处理函数
//   - 把标签表达式文本解析后交给安置引擎
//   - 写安置审计记录（配置了审计存储时）
type Handler struct {
	placer   *pool.Placer
	store    *history.Store             // 可选，nil 时禁用审计接口
	bus      eventbus.PlacementEventBus // 可选，nil 时禁用事件查询接口
	authCfg  auth.Config
	registry *prometheus.Registry // 可选，nil 时 /metrics 用默认注册表
	logger   *logging.Logger      // 可选，nil 时不记请求日志
}

// NewHandler 创建 Handler 实例
func NewHandler(placer *pool.Placer, store *history.Store, authCfg auth.Config) *Handler {
	return &Handler{placer: placer, store: store, authCfg: authCfg}
}

// SetRegistry 指定 /metrics 端点暴露的指标注册表
func (h *Handler) SetRegistry(reg *prometheus.Registry) {
	h.registry = reg
}

// SetEventBus 启用安置事件查询接口
func (h *Handler) SetEventBus(bus eventbus.PlacementEventBus) {
	h.bus = bus
}

// SetLogger 启用 HTTP 请求日志与错误日志（带池名标注）
func (h *Handler) SetLogger(logger *logging.Logger) {
	h.logger = logger.WithPool(h.placer.Settings().Name)
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
// 返回 {"status": "ok"} 表示服务正常运行。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// placeRequest 安置/能力查询请求体
type placeRequest struct {
	Label string `json:"label"` // 标签表达式文本，空串表示任务无标签限制
}

// parseLabelExpr 读取请求体并解析标签表达式
//
// 表达式语法错误返回 400；空表达式返回 (nil, true)，
// 由安置引擎按"无标签限制"处理。
func parseLabelExpr(w http.ResponseWriter, r *http.Request) (label.Expression, bool) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}

	expr, err := label.Parse(req.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid label expression: "+err.Error())
		return nil, false
	}
	return expr, true
}

// Eligible 安置能力查询接口
//
// 路由: POST /api/v1/eligible
//
// 外部调度器在分发任务前调用，判断本池能否满足任务的标签表达式。
// 只做候选匹配，不触碰任何主机。
func (h *Handler) Eligible(w http.ResponseWriter, r *http.Request) {
	expr, ok := parseLabelExpr(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool":     h.placer.Settings().Name,
		"eligible": h.placer.CanPlace(expr),
	})
}

// placeResponse 安置结果响应体
type placeResponse struct {
	Pool   string      `json:"pool"`
	Result string      `json:"result"` // provisioned, no_capacity, not_applicable
	Slave  *pool.Slave `json:"slave,omitempty"`
}

// Place 执行槽开通接口
//
// 路由: POST /api/v1/place
//
// 同步执行整次安置并返回三态结果。安置耗时取决于主机探测与
// 容器创建，调用方应设置充裕的请求超时。
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	expr, ok := parseLabelExpr(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result := h.placer.Place(r.Context(), expr)
	h.appendHistory(r, expr, result, time.Since(start))

	writeJSON(w, http.StatusOK, placeResponse{
		Pool:   h.placer.Settings().Name,
		Result: string(result.Kind),
		Slave:  result.Slave,
	})
}

// appendHistory 写安置审计记录（失败只记日志，不影响响应）
func (h *Handler) appendHistory(r *http.Request, expr label.Expression, result pool.Result, duration time.Duration) {
	if h.store == nil {
		return
	}

	rec := &history.Record{
		Pool:       h.placer.Settings().Name,
		Result:     string(result.Kind),
		DurationMS: duration.Milliseconds(),
	}
	if expr != nil {
		rec.Label = expr.String()
	}
	if result.Slave != nil {
		rec.Image = result.Slave.Image
		rec.Host = result.Slave.HostAddr
		rec.Slave = result.Slave.Name
	}

	if err := h.store.Append(r.Context(), rec); err != nil {
		h.logError(err, "placement audit write failed")
	}
}

// logError 记录处理器内部错误（配置了结构化日志时带池名标注）
func (h *Handler) logError(err error, msg string) {
	if h.logger != nil {
		h.logger.WithError(err).Error(msg)
		return
	}
	log.Printf("[apiserver.error] pool=%s msg=%s error=%v", h.placer.Settings().Name, msg, err)
}

// Hosts 主机容量快照接口
//
// 路由: GET /api/v1/hosts
//
// 返回当前可用主机及其剩余容量，按剩余容量降序排列。
// 每次调用触发一轮活性探测，不适合高频轮询（高频场景用 /ws/monitor）。
func (h *Handler) Hosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool":          h.placer.Settings().Name,
		"max_executors": h.placer.Settings().MaxExecutors,
		"hosts":         h.placer.HostCapacities(r.Context()),
	})
}

// Placements 安置审计查询接口
//
// 路由: GET /api/v1/placements?limit=50
//
// 按时间倒序返回最近的安置审计记录。未配置审计存储时返回 404。
func (h *Handler) Placements(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "placement history not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logError(err, "placement history query failed")
		writeError(w, http.StatusInternalServerError, "query placement history failed")
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"placements": records})
}

// Events 安置事件查询接口
//
// 路由: GET /api/v1/events?limit=50
//
// 从事件总线读取最近发布的安置事件（新到旧）。事件经由 Redis 流
// 对外广播，本接口是它的只读回看视图。未配置事件总线时返回 404。
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusNotFound, "placement event bus not configured")
		return
	}

	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.bus.Recent(r.Context(), limit)
	if err != nil {
		h.logError(err, "placement event query failed")
		writeError(w, http.StatusInternalServerError, "query placement events failed")
		return
	}
	if events == nil {
		events = []*eventbus.PlacementEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// metricsHandler 返回 Prometheus 指标端点
func (h *Handler) metricsHandler() http.Handler {
	if h.registry != nil {
		return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 安置接口:
//   - POST /api/v1/eligible   - 安置能力查询
//   - POST /api/v1/place      - 执行槽开通
//
// 观测接口:
//   - GET /api/v1/hosts       - 主机容量快照
//   - GET /api/v1/placements  - 安置审计查询
//   - GET /api/v1/events      - 安置事件查询
//   - GET /metrics            - Prometheus 指标
//
// WebSocket:
//   - GET /ws/monitor         - 容量实时推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", h.metricsHandler())

	// 安置接口
	mux.HandleFunc("POST /api/v1/eligible", h.Eligible)
	mux.HandleFunc("POST /api/v1/place", h.Place)

	// 观测接口
	mux.HandleFunc("GET /api/v1/hosts", h.Hosts)
	mux.HandleFunc("GET /api/v1/placements", h.Placements)
	mux.HandleFunc("GET /api/v1/events", h.Events)

	// 应用认证中间件
	authedHandler := auth.Middleware(h.authCfg)(mux)

	// 应用请求日志中间件
	loggedHandler := h.requestLogMiddleware(authedHandler)

	// 应用 CORS 中间件
	corsHandler := corsMiddleware(loggedHandler)

	// 顶层路由，WebSocket 绕过普通中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	monitorWS := NewMonitorWSHandler(h.placer)
	topMux.HandleFunc("GET /ws/monitor", monitorWS.HandleWebSocket)
	topMux.Handle("/", corsHandler)

	return topMux
}

// statusRecorder 捕获响应状态码供请求日志使用
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogMiddleware 记录请求方法、路径、状态码和耗时
func (h *Handler) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.logger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.HTTPRequestLog(r.Method, r.URL.Path, rec.status, time.Since(start), r.RemoteAddr)
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
