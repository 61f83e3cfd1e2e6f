package model

// ================ Config ================
type ThreadConfig struct {
	TTL     string `envconfig:"THREAD_TTL" default:"30m"`
	History struct {
		MaxTurns int `envconfig:"THREAD_HISTORY_MAX_TURNS" default:"5"`
	}
}

type GenerationModelConfig struct {
	Model             string  `envconfig:"GENERATION_MODEL" default:"gemini-2.5-flash"`
	MaxTokens         int     `envconfig:"GENERATION_MAX_TOKENS" default:"2000"`
	Temperature       float32 `envconfig:"GENERATION_TEMPERATURE" default:"0"`
	MaxRetries        int     `envconfig:"GENERATION_MAX_RETRIES" default:"3"`
	MaxToolIterations int     `envconfig:"GENERATION_MAX_TOOL_ITERATIONS" default:"5"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}
