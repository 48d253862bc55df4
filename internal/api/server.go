package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"walrus-agent/internal/agent"
	"walrus-agent/internal/chat"
	"walrus-agent/internal/config"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/observability/metrics"
	"walrus-agent/pkg/logger"
)

// Agent 是 HTTP 层依赖的智能体能力，按线程执行一轮对话。
type Agent interface {
	Stream(ctx context.Context, threadID, prompt string) iter.Seq2[agent.Chunk, error]
}

// ChatRequest 是两个聊天接口共用的请求体。
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse 是 /chat 的响应体。
type ChatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Server 负责暴露聊天接口，供前端驱动智能体。
type Server struct {
	cfg            config.ServerConfig
	agent          Agent
	defaultSession string
	limiter        *rate.Limiter
	router         chi.Router
}

// NewServer 构造 API 服务实例，defaultSession 为未指定 session_id 时使用的线程。
func NewServer(cfg config.ServerConfig, ag Agent, defaultSession string) *Server {
	s := &Server{
		cfg:            cfg,
		agent:          ag,
		defaultSession: defaultSession,
	}
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}
	s.router = s.routes()
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(observe)
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
	})
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           withContext(ctx, s.router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Component("api").Info("http server listening", slog.String("address", s.cfg.Address))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleChat 执行一轮对话并返回拼接后的完整回复。
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	text, err := chat.Collect(r.Context(), s.session(req), req.Prompt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: text})
}

// handleChatStream 以 SSE 的形式逐个推送片段。
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "不支持流式响应", Code: string(xerrors.CodeUnknown)})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk, err := range s.session(req).Stream(r.Context(), req.Prompt) {
		if err != nil {
			s.logFailure(r, err)
			_ = writeEvent(w, "error", err.Error())
			flusher.Flush()
			return
		}
		if err := writeEvent(w, "", chunk.Content); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "请求体解析失败", Code: string(xerrors.CodeInvalidArgument)})
		return req, false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt 不能为空", Code: string(xerrors.CodeInvalidArgument)})
		return req, false
	}
	if len(strings.TrimSpace(req.SessionID)) > agent.MaxThreadIDLength {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id 过长", Code: string(xerrors.CodeInvalidArgument)})
		return req, false
	}
	if s.agent == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Agent 未初始化", Code: string(xerrors.CodeInitializationFailure)})
		return req, false
	}
	return req, true
}

func (s *Server) session(req ChatRequest) chat.Streamer {
	threadID := strings.TrimSpace(req.SessionID)
	if threadID == "" {
		threadID = s.defaultSession
	}
	return threadStreamer{agent: s.agent, threadID: threadID}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logFailure(r, err)
	code := xerrors.CodeOf(err)
	writeJSON(w, statusFor(code), errorResponse{Error: err.Error(), Code: string(code), Retryable: xerrors.RetryableError(err)})
}

func (s *Server) logFailure(r *http.Request, err error) {
	logger.Component("api").Log(r.Context(), xerrors.SeverityOf(err).Level(), "chat failed",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.String("error", err.Error()))
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "请求过于频繁", Code: string(xerrors.CodeUnknown)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type threadStreamer struct {
	agent    Agent
	threadID string
}

func (t threadStreamer) Stream(ctx context.Context, prompt string) iter.Seq2[agent.Chunk, error] {
	return t.agent.Stream(ctx, t.threadID, prompt)
}

// statusFor 将错误码映射为 HTTP 状态码。
func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, xerrors.CodeUnsupportedNetwork:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeStepLimit:
		return http.StatusUnprocessableEntity
	case xerrors.CodeLLMFailure, xerrors.CodeWalletFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
