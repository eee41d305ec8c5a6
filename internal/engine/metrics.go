package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	InterviewsCreated  atomic.Int64
	AnswersScored      atomic.Int64
	ScoringErrors      atomic.Int64
	FollowUpsGenerated atomic.Int64
	FollowUpErrors     atomic.Int64
	ClipUploads        atomic.Int64
	ClipUploadErrors   atomic.Int64
	TTSRequests        atomic.Int64
	BridgeSessions     atomic.Int64
	FetchRequests      atomic.Int64
	FetchErrors        atomic.Int64
	ToolErrors         atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"interviews_created":  metrics.InterviewsCreated.Load(),
		"answers_scored":      metrics.AnswersScored.Load(),
		"scoring_errors":      metrics.ScoringErrors.Load(),
		"followups_generated": metrics.FollowUpsGenerated.Load(),
		"followup_errors":     metrics.FollowUpErrors.Load(),
		"clip_uploads":        metrics.ClipUploads.Load(),
		"clip_upload_errors":  metrics.ClipUploadErrors.Load(),
		"tts_requests":        metrics.TTSRequests.Load(),
		"bridge_sessions":     metrics.BridgeSessions.Load(),
		"fetch_requests":      metrics.FetchRequests.Load(),
		"fetch_errors":        metrics.FetchErrors.Load(),
		"tool_errors":         metrics.ToolErrors.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"llm_calls", "llm_errors",
		"interviews_created", "answers_scored", "scoring_errors",
		"followups_generated", "followup_errors",
		"clip_uploads", "clip_upload_errors",
		"tts_requests", "bridge_sessions",
		"fetch_requests", "fetch_errors",
		"tool_errors",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrInterviewsCreated()  { metrics.InterviewsCreated.Add(1) }
func IncrAnswersScored()      { metrics.AnswersScored.Add(1) }
func IncrScoringErrors()      { metrics.ScoringErrors.Add(1) }
func IncrFollowUpsGenerated() { metrics.FollowUpsGenerated.Add(1) }
func IncrFollowUpErrors()     { metrics.FollowUpErrors.Add(1) }
func IncrClipUploads()        { metrics.ClipUploads.Add(1) }
func IncrClipUploadErrors()   { metrics.ClipUploadErrors.Add(1) }
func IncrTTSRequests()        { metrics.TTSRequests.Add(1) }
func IncrBridgeSessions()     { metrics.BridgeSessions.Add(1) }
func IncrToolErrors()         { metrics.ToolErrors.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
