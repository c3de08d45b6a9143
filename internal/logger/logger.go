// Package logger builds the zap logger and carries a request-scoped copy in context.
package logger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

type ctxKey struct{}

// New returns a production logger at the given level, or a development logger
// with stack traces on errors when development is true.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func FromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if lg, ok := v.(*zap.Logger); ok {
			return lg
		}
	}

	return zap.L()
}

// LogDomainAware logs caller-side failures at warn and everything else at error.
func LogDomainAware(ctx context.Context, err error, msg string, fields ...zap.Field) {
	log := FromContext(ctx)

	if errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrAuthentication) ||
		errors.Is(err, domain.ErrNotFound) {
		log.Warn(msg, append(fields, zap.Error(err))...)
		return
	}

	log.Error(msg, append(fields, zap.Error(err))...)
}

// Middleware attaches a request logger to the context and logs every finished request.
func Middleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := base.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(WithContext(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			reqLogger.Info("request finished",
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
			)
		})
	}
}
