package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port     int
	LogLevel string
	APIToken string

	LLMProvider     string
	GeminiAPIKey    string
	ChatModel       string
	ReportModel     string
	TTSModel        string
	AnthropicAPIKey string
	AnthropicModel  string
	ChatTemperature float64

	StoreBackend string
	StorePath    string
	DatabaseURL  string
	RedisURL     string

	NatsURL       string
	NatsToken     string
	SlackBotToken string
	SlackChannel  string

	RubricPath      string
	SpeechEnabled   bool
	SpeechCacheSize int
}

func Load() Config {
	return Config{
		Port:     envInt("REHEARSE_PORT", 8760),
		LogLevel: envStr("LOG_LEVEL", "info"),
		APIToken: envStr("REHEARSE_API_TOKEN", ""),

		LLMProvider:     envStr("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		ChatModel:       envStr("REHEARSE_CHAT_MODEL", "gemini-2.5-flash"),
		ReportModel:     envStr("REHEARSE_REPORT_MODEL", "gemini-2.5-flash"),
		TTSModel:        envStr("REHEARSE_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		ChatTemperature: envFloat("REHEARSE_CHAT_TEMPERATURE", 0.9),

		StoreBackend: envStr("STORE_BACKEND", "file"),
		StorePath:    envStr("STORE_PATH", "~/.rehearse/store.json"),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		RedisURL:     envStr("REDIS_URL", "redis://localhost:6379/0"),

		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_REPORTS_CHANNEL", ""),

		RubricPath:      envStr("RUBRIC_PATH", ""),
		SpeechEnabled:   envBool("SPEECH_ENABLED", true),
		SpeechCacheSize: envInt("SPEECH_CACHE_SIZE", 256),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
