// go_interview: AI mock interview MCP server with a browser interview bridge.
//
// Exposes interview_create, interview_get, interview_list, answer_submit,
// answer_followup, answer_list, answer_attach_clip, interview_report and
// resume_extract as MCP tools, and serves the live interview orchestrator
// over a WebSocket at /ws/interview/{mockId}.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/anatolykoptev/go_interview/internal/bridge"
	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/anatolykoptev/go_interview/internal/engine/interview"
	"github.com/anatolykoptev/go_interview/internal/interviewserver"
	"github.com/anatolykoptev/go_interview/internal/toolutil"
	"github.com/anatolykoptev/go_interview/internal/tts"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8891")
	wsPort  = env.Str("WS_PORT", "8892")
)

func main() {
	logger, closer := engine.NewLogger(env.Str("LOG_LEVEL", "info"), env.Str("LOG_FILE", ""))
	slog.SetDefault(logger)
	defer closeQuietly(closer)

	c := initEngine()

	store, err := openStore(c)
	if err != nil {
		slog.Error("store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeQuietly(store)

	svc := interview.NewService(interview.NewClient(), store, initClips(c, store), c.FollowUps)
	verifier := auth.NewVerifier(c.JWTSecret, c.JWTIssuer)
	if c.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, every authenticated call will be rejected")
	}

	slog.Info("starting go_interview",
		slog.String("mcp_port", mcpPort),
		slog.String("ws_port", wsPort),
		slog.Bool("followups", c.FollowUps),
	)

	bridgeSrv := bridge.NewServer(svc, verifier, bridgeOptions(c)...)
	ws := &http.Server{
		Addr:              ":" + wsPort,
		Handler:           bridgeSrv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := ws.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("bridge server failed", slog.Any("error", err))
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_interview",
		Version: version,
	}, nil)

	caller := toolutil.Caller{Verifier: verifier}
	if email := env.Str("LOCAL_USER_EMAIL", ""); email != "" {
		caller.Fallback = &auth.Identity{UserID: "local", Email: strings.ToLower(email)}
		slog.Warn("tool calls without a bearer token run as local user", slog.String("email", email))
	}
	interviewserver.RegisterTools(server, svc, caller)
	slog.Info("tools registered", slog.Int("count", interviewserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_interview",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ws.Shutdown(ctx); err != nil {
		slog.Warn("bridge shutdown", slog.Any("error", err))
	}
	if err := bridgeSrv.Shutdown(ctx); err != nil {
		slog.Warn("clip uploads still pending at exit", slog.Any("error", err))
	}
}

func initEngine() engine.Config {
	c := engine.Config{
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 8192),
		LLMRequestsPerSec:    env.Float("LLM_RPS", 0),
		MaxContentChars:      env.Int("MAX_CONTENT_CHARS", 6000),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 10*time.Second),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		SQLitePath:           env.Str("SQLITE_PATH", "go_interview.db"),
		RedisURL:             env.Str("REDIS_URL", ""),
		CacheTTL:             env.Duration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		S3Bucket:             env.Str("S3_BUCKET", ""),
		S3Region:             env.Str("S3_REGION", "us-east-1"),
		S3Endpoint:           env.Str("S3_ENDPOINT", ""),
		S3AccessKey:          env.Str("S3_ACCESS_KEY", ""),
		S3SecretKey:          env.Str("S3_SECRET_KEY", ""),
		S3PublicBaseURL:      env.Str("S3_PUBLIC_BASE_URL", ""),
		OpenAIAPIKey:         env.Str("OPENAI_API_KEY", ""),
		TTSModel:             env.Str("TTS_MODEL", ""),
		JWTSecret:            env.Str("JWT_SECRET", ""),
		JWTIssuer:            env.Str("JWT_ISSUER", ""),
		FollowUps:            parseSwitch(env.Str("FOLLOWUPS", "on")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
		)
	} else {
		slog.Warn("LLM_API_KEY not set, question generation and scoring are unavailable")
	}

	engine.Init(c)
	engine.InitCache(c.RedisURL, c.CacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	return c
}

func openStore(c engine.Config) (interview.Store, error) {
	if c.DatabaseURL != "" {
		pg, err := interview.ConnectPostgres(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("postgres store initialized")
		return pg, nil
	}
	lite, err := interview.OpenSQLite(c.SQLitePath)
	if err != nil {
		return nil, err
	}
	slog.Info("sqlite store initialized", slog.String("path", c.SQLitePath))
	return lite, nil
}

func initClips(c engine.Config, store interview.Store) *interview.ClipLinker {
	if c.S3Bucket == "" {
		slog.Info("S3_BUCKET not set, interview recordings are not stored")
		return nil
	}
	s3, err := interview.NewS3Storage(interview.S3Config{
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		Endpoint:      c.S3Endpoint,
		AccessKey:     c.S3AccessKey,
		SecretKey:     c.S3SecretKey,
		PublicBaseURL: c.S3PublicBaseURL,
	})
	if err != nil {
		slog.Warn("clip storage init failed", slog.Any("error", err))
		return nil
	}
	slog.Info("clip storage initialized", slog.String("bucket", c.S3Bucket))
	return interview.NewClipLinker(s3, store)
}

func bridgeOptions(c engine.Config) []bridge.Option {
	var opts []bridge.Option
	if origins := env.List("ALLOWED_ORIGINS", ""); len(origins) > 0 {
		opts = append(opts, bridge.WithAllowedOrigins(origins))
	}
	synth, err := tts.New(tts.Config{APIKey: c.OpenAIAPIKey, Model: c.TTSModel})
	switch {
	case errors.Is(err, tts.ErrDisabled):
		slog.Info("OPENAI_API_KEY not set, questions are spoken with device voices only")
	case err != nil:
		slog.Warn("tts init failed", slog.Any("error", err))
	default:
		opts = append(opts, bridge.WithRemoteVoice(synth))
	}
	return opts
}

func parseSwitch(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "false", "0", "no":
		return false
	}
	return true
}

func closeQuietly(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Debug("close", slog.Any("error", err))
	}
}
