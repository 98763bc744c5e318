package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"codentor-backend/pkg/logger"
)

// ErrNoProvider is returned when no LLM backend is configured.
var ErrNoProvider = errors.New("no AI provider available")

// FallbackService tries each provider in order and returns the first answer.
type FallbackService struct {
	providers []ChatProvider
}

func NewFallbackService(providers ...ChatProvider) *FallbackService {
	kept := make([]ChatProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &FallbackService{providers: kept}
}

func (f *FallbackService) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *FallbackService) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if len(f.providers) == 0 {
		return "", ErrNoProvider
	}

	log := logger.WithComponent("AI")
	var errs []error
	for i, p := range f.providers {
		result, err := p.Chat(ctx, messages, opts)
		if err == nil {
			if i > 0 {
				log.WithField("provider", p.Name()).Info("[AI] Fallback provider answered")
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		entry := log.WithError(err).WithField("provider", p.Name())
		switch {
		case isQuotaError(err):
			entry.Warn("[AI] Provider quota exhausted, trying next")
		case isConnectionError(err):
			entry.Warn("[AI] Provider unreachable, trying next")
		default:
			entry.Warn("[AI] Provider failed, trying next")
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", errors.Join(errs...)
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAny(err.Error(),
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	)
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
	)
}

func containsAny(s string, indicators ...string) bool {
	s = strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(s, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}
