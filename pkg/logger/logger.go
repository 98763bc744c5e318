package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var log = logrus.New()

// Init configures the shared logger. Unknown levels fall back to info.
func Init(level, format string) {
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func L() *logrus.Logger {
	return log
}

// WithRequestID stores the request id used by WithContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(log)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

func WithComponent(name string) *logrus.Entry {
	return log.WithField("component", name)
}
