package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMRequestsPerSec  float64 // 0 = unlimited
	MaxContentChars    int
	FetchTimeout       time.Duration

	DatabaseURL string // postgres; empty = SQLite at SQLitePath
	SQLitePath  string

	RedisURL             string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	OpenAIAPIKey string // remote speech synthesis; empty = disabled
	TTSModel     string

	JWTSecret string
	JWTIssuer string

	FollowUps bool

	HTTPClient *http.Client
	LLMClient  *llm.Client // nil = LLM calls fail with ErrLLMUnavailable
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// llmLimiter throttles outbound completions; nil means unlimited.
var llmLimiter *rate.Limiter

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
	if c.LLMRequestsPerSec > 0 {
		burst := int(c.LLMRequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		llmLimiter = rate.NewLimiter(rate.Limit(c.LLMRequestsPerSec), burst)
	} else {
		llmLimiter = nil
	}
}
