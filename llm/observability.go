package llm

import (
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

// CallEvent records metadata about a single completion call.
type CallEvent struct {
	Task      TaskType
	Model     string
	Latency   time.Duration
	Attempts  int
	Success   bool
	ErrorCode string
}

type Observer interface {
	OnCallComplete(event CallEvent)
}

// ZapObserver logs each call and feeds the Prometheus counters.
type ZapObserver struct {
	logger *zap.Logger
}

func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) OnCallComplete(event CallEvent) {
	status := "ok"
	if !event.Success {
		status = event.ErrorCode
	}
	utils.LLMCalls.WithLabelValues(status).Inc()
	utils.LLMLatency.Observe(event.Latency.Seconds())

	fields := []zap.Field{
		zap.String("task", string(event.Task)),
		zap.String("model", event.Model),
		zap.Duration("latency", event.Latency),
		zap.Int("attempts", event.Attempts),
	}
	if event.Success {
		o.logger.Info("llm_call", fields...)
		return
	}
	o.logger.Warn("llm_call_failed", append(fields, zap.String("error_code", event.ErrorCode))...)
}

type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}
