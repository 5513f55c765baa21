// Package observability provides hooks for instrumenting pipeline runs.
//
// Hooks are process-wide and default to no-ops. A binary registers its own
// implementations at startup; libraries report events through [Pipeline] and
// [Cache] without depending on any backend.
//
//	func main() {
//	    observability.SetPipelineHooks(observability.NewLogHooks(logger))
//	    // ... run application
//	}
//
// Libraries call hooks around each stage:
//
//	observability.Pipeline().OnStageStart(ctx, observability.RunSync, observability.StageResolve)
//	// ... resolve ...
//	observability.Pipeline().OnStageComplete(ctx, observability.RunSync, observability.StageResolve, n, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Runs.
const (
	RunSync     = "sync"
	RunValidate = "validate"
	RunIndex    = "index"
)

// Stages.
const (
	StageIndex    = "index"
	StageResolve  = "resolve"
	StageMerge    = "merge"
	StageGraph    = "graph"
	StageValidate = "validate"
)

// =============================================================================
// Hook Interfaces
// =============================================================================

// PipelineHooks receives stage events from pipeline runs. items is the stage
// output size: modules indexed, packages resolved, entries changed, graph
// nodes or issues found.
type PipelineHooks interface {
	OnStageStart(ctx context.Context, run, stage string)
	OnStageComplete(ctx context.Context, run, stage string, items int, duration time.Duration, err error)
}

// CacheHooks receives events from cache lookups.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, string, string) {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Log Implementation
// =============================================================================

// LogHooks reports stage completions and cache traffic at debug level.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks logging to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{Logger: logger}
}

func (h *LogHooks) OnStageStart(_ context.Context, run, stage string) {
	h.Logger.Debug("stage started", "run", run, "stage", stage)
}

func (h *LogHooks) OnStageComplete(_ context.Context, run, stage string, items int, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("stage failed", "run", run, "stage", stage, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("stage complete", "run", run, "stage", stage, "items", items, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers pipeline hooks. A nil h is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores the no-op hooks.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
}
