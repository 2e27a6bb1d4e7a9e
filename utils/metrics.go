package utils

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "app_request_duration_seconds",
			Help: "Request duration seconds",
		},
		[]string{"method", "path"},
	)

	// handler is the endpoint, type is the error kind
	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_errors_total",
			Help: "Total app errors",
		},
		[]string{"handler", "type"},
	)

	TasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_tasks_completed_total",
			Help: "Completed tasks by type and difficulty",
		},
		[]string{"task_type", "difficulty"},
	)

	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_level_ups_total",
			Help: "Level ups granted",
		},
	)

	Purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_purchases_total",
			Help: "Shop purchase attempts by result",
		},
		[]string{"result"},
	)

	AgentRoutes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_agent_routes_total",
			Help: "Agent messages by delegated intent",
		},
		[]string{"intent"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_llm_calls_total",
			Help: "Completion calls by status",
		},
		[]string{"status"},
	)

	LLMLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "app_llm_latency_seconds",
			Help:    "Completion call latency",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ReqCount, ReqDuration, ErrorCount,
			TasksCompleted, LevelUps, Purchases,
			AgentRoutes, LLMCalls, LLMLatency,
		)
	})
}
