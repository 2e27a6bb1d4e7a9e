package llm

import "github.com/Bekzhanizb/LifeQuestBackend/config"

// TaskType identifies why a completion is requested. It selects the
// generation parameters and labels metrics.
type TaskType string

const (
	TaskClassify TaskType = "classify"
	TaskChat     TaskType = "chat"
	TaskRoutine  TaskType = "routine"
	TaskSyllabus TaskType = "syllabus"
)

type TaskConfig struct {
	Temperature float64
	MaxTokens   int
	TimeoutMs   int // overrides the global timeout if > 0
}

type Config struct {
	APIKey     string
	Model      string
	Endpoint   string
	TimeoutMs  int
	MaxRetries int
	Tasks      map[TaskType]TaskConfig
}

func DefaultConfig() Config {
	return Config{
		Model:      "gemini-1.5-flash",
		Endpoint:   "https://generativelanguage.googleapis.com/v1beta",
		TimeoutMs:  30000,
		MaxRetries: 1,
		Tasks: map[TaskType]TaskConfig{
			TaskClassify: {Temperature: 0.0, MaxTokens: 512, TimeoutMs: 10000},
			TaskChat:     {Temperature: 0.7, MaxTokens: 1024},
			TaskRoutine:  {Temperature: 0.4, MaxTokens: 2048},
			TaskSyllabus: {Temperature: 0.1, MaxTokens: 4096, TimeoutMs: 60000},
		},
	}
}

// FromAppConfig overlays the application's Gemini settings on the defaults.
func FromAppConfig(c config.GeminiConfig) Config {
	cfg := DefaultConfig()
	cfg.APIKey = c.APIKey
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	if c.TimeoutMs > 0 {
		cfg.TimeoutMs = c.TimeoutMs
	}
	return cfg
}

func (c Config) TaskTimeout(task TaskType) int {
	if tc, ok := c.Tasks[task]; ok && tc.TimeoutMs > 0 {
		return tc.TimeoutMs
	}
	return c.TimeoutMs
}
