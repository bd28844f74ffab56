// Package logging provides config-driven categorized logging for pagegen.
// All categories share one zap core; each category gets a named child logger.
// Until Initialize is called every logger is a no-op.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Boot/initialization
	CategoryAPI        Category = "api"        // LLM API calls
	CategoryAudit      Category = "audit"      // Verifier/refiner loop
	CategoryGeneration Category = "generation" // Page generation and chat edits
	CategoryComponents Category = "components" // Component discovery and metadata
	CategoryStore      Category = "store"      // Metadata/workspace persistence
	CategoryServer     Category = "server"     // HTTP surface
	CategoryTasks      Category = "tasks"      // Background task registry
)

// Config mirrors config.LoggingConfig to avoid circular imports.
type Config struct {
	Level      string          `yaml:"level"`
	Format     string          `yaml:"format"` // "json" or "console"
	OutputPath string          `yaml:"output_path"`
	Categories map[string]bool `yaml:"categories"`
}

var (
	mu         sync.RWMutex
	root       *zap.Logger
	categories map[string]bool
	cache      = make(map[Category]*zap.SugaredLogger)
	nop        = zap.NewNop().Sugar()
)

// Initialize builds the shared zap logger from cfg.
// Should be called once at startup; calling again replaces the logger.
func Initialize(cfg Config) error {
	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Format, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.OutputPath != "" {
		zcfg.OutputPaths = []string{cfg.OutputPath}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetLogger(logger, cfg.Categories)
	Get(CategoryBoot).Infow("logging initialized", "level", level.String(), "format", defaultString(cfg.Format, "json"))
	return nil
}

// SetLogger installs an existing zap logger, e.g. the CLI root logger or
// zaptest loggers in tests. A nil enabled map enables all categories.
func SetLogger(logger *zap.Logger, enabled map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	root = logger
	categories = enabled
	cache = make(map[Category]*zap.SugaredLogger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if root == nil {
		return false
	}
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is not initialized or the category is disabled.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := cache[category]; ok {
		mu.RUnlock()
		return l
	}
	enabled := categoryEnabledLocked(category)
	mu.RUnlock()

	if !enabled {
		return nop
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := cache[category]; ok {
		return l
	}
	if root == nil {
		return nop
	}
	l := root.Named(string(category)).Sugar()
	cache[category] = l
	return l
}

// Sync flushes buffered entries. Safe to call when uninitialized.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

// WithRequestID creates a request-scoped logger carrying a correlation ID.
func WithRequestID(category Category, requestID string) *zap.SugaredLogger {
	return Get(category).With("req", requestID)
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Errorf(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Infof(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debugf(format, args...)
}

// APIWarn logs warning to the api category
func APIWarn(format string, args ...interface{}) {
	Get(CategoryAPI).Warnf(format, args...)
}

// Audit logs to the audit category
func Audit(format string, args ...interface{}) {
	Get(CategoryAudit).Infof(format, args...)
}

// AuditDebug logs debug to the audit category
func AuditDebug(format string, args ...interface{}) {
	Get(CategoryAudit).Debugf(format, args...)
}

// AuditWarn logs warning to the audit category
func AuditWarn(format string, args ...interface{}) {
	Get(CategoryAudit).Warnf(format, args...)
}

// Generation logs to the generation category
func Generation(format string, args ...interface{}) {
	Get(CategoryGeneration).Infof(format, args...)
}

// GenerationWarn logs warning to the generation category
func GenerationWarn(format string, args ...interface{}) {
	Get(CategoryGeneration).Warnf(format, args...)
}

// GenerationError logs error to the generation category
func GenerationError(format string, args ...interface{}) {
	Get(CategoryGeneration).Errorf(format, args...)
}

// Components logs to the components category
func Components(format string, args ...interface{}) {
	Get(CategoryComponents).Infof(format, args...)
}

// ComponentsDebug logs debug to the components category
func ComponentsDebug(format string, args ...interface{}) {
	Get(CategoryComponents).Debugf(format, args...)
}

// ComponentsWarn logs warning to the components category
func ComponentsWarn(format string, args ...interface{}) {
	Get(CategoryComponents).Warnf(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Infof(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debugf(format, args...)
}

// StoreWarn logs warning to the store category
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warnf(format, args...)
}

// Server logs to the server category
func Server(format string, args ...interface{}) {
	Get(CategoryServer).Infof(format, args...)
}

// ServerError logs error to the server category
func ServerError(format string, args ...interface{}) {
	Get(CategoryServer).Errorf(format, args...)
}

// Tasks logs to the tasks category
func Tasks(format string, args ...interface{}) {
	Get(CategoryTasks).Infof(format, args...)
}

// TasksDebug logs debug to the tasks category
func TasksDebug(format string, args ...interface{}) {
	Get(CategoryTasks).Debugf(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnf("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
