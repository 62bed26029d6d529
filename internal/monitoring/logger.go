package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides structured JSON logging with domain-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// PredictionLogger logs a served prediction
func (l *Logger) PredictionLogger(prediction int, probability float64, riskLevel string, duration time.Duration) {
	l.Info("Prediction Served",
		"prediction", prediction,
		"probability", probability,
		"risk_level", riskLevel,
		"duration_ms", duration.Milliseconds(),
	)
}

// ExplanationLogger logs a served explanation
func (l *Logger) ExplanationLogger(method string, prediction int, probability float64, duration time.Duration, cacheHit bool) {
	l.Info("Explanation Served",
		"attribution_method", method,
		"prediction", prediction,
		"probability", probability,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// StartupLogger logs artifact loading outcomes during boot
func (l *Logger) StartupLogger(resource string, ok bool, err error) {
	if ok {
		l.Info("Artifact loaded", "resource", resource)
		return
	}
	l.Error("Artifact unavailable", "resource", resource, "error", err)
}
