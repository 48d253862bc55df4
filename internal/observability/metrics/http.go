package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walrus"

type collectorSet struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpErrors    *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	toolLatency   *prometheus.HistogramVec
	llmCalls      *prometheus.CounterVec
	llmLatency    prometheus.Histogram
	streamedChunk *prometheus.CounterVec
}

var (
	once   sync.Once
	global *collectorSet
)

func set() *collectorSet {
	once.Do(func() {
		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		global = &collectorSet{
			registry: prometheus.NewRegistry(),
			httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			}, []string{"handler", "method", "code"}),
			httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_request_errors_total",
				Help:      "Total number of HTTP requests that resulted in a server error.",
			}, []string{"handler", "method"}),
			httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   buckets,
			}, []string{"handler", "method"}),
			toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_invocations_total",
				Help:      "Total number of action invocations requested by the agent.",
			}, []string{"action", "outcome"}),
			toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_invocation_duration_seconds",
				Help:      "Action invocation duration in seconds.",
				Buckets:   buckets,
			}, []string{"action"}),
			llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Total number of language model calls.",
			}, []string{"outcome"}),
			llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_call_duration_seconds",
				Help:      "Language model call duration in seconds.",
				Buckets:   buckets,
			}),
			streamedChunk: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_chunks_total",
				Help:      "Total number of response fragments produced by the agent.",
			}, []string{"node"}),
		}
		global.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			global.httpRequests,
			global.httpErrors,
			global.httpLatency,
			global.toolCalls,
			global.toolLatency,
			global.llmCalls,
			global.llmLatency,
			global.streamedChunk,
		)
	})
	return global
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	s := set()
	s.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		s.httpErrors.WithLabelValues(handler, method).Inc()
	}
	s.httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveToolInvocation records one action invocation.
func ObserveToolInvocation(action string, err error, duration time.Duration) {
	s := set()
	s.toolCalls.WithLabelValues(action, outcome(err)).Inc()
	s.toolLatency.WithLabelValues(action).Observe(duration.Seconds())
}

// ObserveLLMCall records one language model round trip.
func ObserveLLMCall(err error, duration time.Duration) {
	s := set()
	s.llmCalls.WithLabelValues(outcome(err)).Inc()
	s.llmLatency.Observe(duration.Seconds())
}

// ObserveChunk counts a fragment emitted by the given graph node.
func ObserveChunk(node string) {
	set().streamedChunk.WithLabelValues(node).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(set().registry, promhttp.HandlerOpts{})
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
