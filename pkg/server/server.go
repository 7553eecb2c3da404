package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/metrics"
)

const defaultShutdownTimeout = 5 * time.Second

// HealthSource 提供各实例最近一次服务检查结果
type HealthSource interface {
	ServiceChecks() []metrics.ServiceCheckResult
}

// Trigger 立即执行一轮检查
type Trigger interface {
	CollectAll(ctx context.Context) error
}

// Server HTTP服务实例，封装核心依赖和配置
type Server struct {
	cfg      *config.ServerConfig
	server   *http.Server
	registry *prometheus.Registry
	health   HealthSource
	trigger  Trigger
	limiter  *rate.Limiter
	mux      *customMux
	listener net.Listener
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// customMux 自定义Mux，记录已注册路由
type customMux struct {
	http.ServeMux
	routes []string
	mu     sync.Mutex
}

// Handle 注册路由时记录路径（重复注册只记录一次）
func (m *customMux) Handle(pattern string, handler http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, route := range m.routes {
		if route == pattern {
			m.ServeMux.Handle(pattern, handler)
			return
		}
	}
	m.routes = append(m.routes, pattern)
	m.ServeMux.Handle(pattern, handler)
}

// HandleFunc 注册处理函数
func (m *customMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.Handle(pattern, http.HandlerFunc(handler))
}

// NewHTTPServer 创建HTTP服务实例
func NewHTTPServer(cfg *config.ServerConfig, registry *prometheus.Registry, health HealthSource, trigger Trigger) *Server {
	srv := &Server{
		cfg:      cfg,
		registry: registry,
		health:   health,
		trigger:  trigger,
		limiter:  rate.NewLimiter(rate.Limit(cfg.CheckRate), cfg.CheckBurst),
		mux:      &customMux{},
	}
	srv.registerEndpoints()

	srv.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return srv
}

// Handler 返回带日志中间件的路由
func (s *Server) Handler() http.Handler {
	return s.logMiddleware(s.mux)
}

// logMiddleware 统一日志记录
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info(
			"HTTP request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

const indexHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
	<meta charset="UTF-8">
	<title>RethinkDB Agent</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		h1 { color: #333; }
		a { display: block; margin: 8px 0; font-size: 18px; }
	</style>
</head>
<body>
	<h1>RethinkDB Agent</h1>
	<p>Service is running.</p>
	<h2>Available Endpoints:</h2>
	<a href="/health">/health - 各实例连通性</a>
	<a href="/metrics">/metrics - Prometheus 指标暴露</a>
	<p><code>POST /check</code> - 立即执行一轮检查</p>
</body>
</html>
`

// registerEndpoints 注册核心路由
func (s *Server) registerEndpoints() {
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(indexHTML))
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger.GetGlobalLogger()),
	}))

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/check", s.handleCheck)
}

// healthResponse /health 与 /check 的响应体
type healthResponse struct {
	Status string                       `json:"status"`
	Error  string                       `json:"error,omitempty"`
	Checks []metrics.ServiceCheckResult `json:"checks"`
}

// healthStatus 汇总服务检查结果；没有结果或任一实例非 OK 时返回 503
func (s *Server) healthStatus() (int, healthResponse) {
	checks := s.health.ServiceChecks()
	resp := healthResponse{Status: "ok", Checks: checks}
	if len(checks) == 0 {
		resp.Status = "unknown"
		return http.StatusServiceUnavailable, resp
	}
	for _, c := range checks {
		if !c.OK() {
			resp.Status = "degraded"
			return http.StatusServiceUnavailable, resp
		}
	}
	return http.StatusOK, resp
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	code, resp := s.healthStatus()
	writeJSON(w, code, resp)
}

// handleCheck 手动触发一轮检查（仅 POST，按 server.check_rate 限流）
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "too many check requests", http.StatusTooManyRequests)
		return
	}

	err := s.trigger.CollectAll(r.Context())
	code, resp := s.healthStatus()
	if err != nil {
		resp.Error = err.Error()
		logger.Warn("triggered check failed", zap.Error(err))
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", zap.Error(err))
	}
}

// Start 监听端口并启动HTTP服务（非阻塞）；端口占用等错误直接返回
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	logger.Info(
		"starting HTTP server",
		zap.String("listen_addr", ln.Addr().String()),
		zap.Strings("handle_funcs", s.mux.routes),
	)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr 实际监听地址（Start 之后有效）
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("shutdown timeout exceeded")
			return nil
		}
		logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("HTTP server shutdown successfully")
	return nil
}
