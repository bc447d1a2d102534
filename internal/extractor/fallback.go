package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// provider is one extractor in the fallback chain. After a rate limit it cools
// down and is skipped until the provider's retry window has passed.
type provider struct {
	name      string
	extractor port.Extractor

	mu        sync.RWMutex
	coolUntil time.Time
}

func (p *provider) cooling(now time.Time) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.coolUntil, now.Before(p.coolUntil)
}

func (p *provider) coolDown(until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coolUntil = until
}

// ProviderFailure is one provider's reason for not reading a document.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ExhaustedError means every available provider was tried and at least one
// failed for a reason other than rate limiting.
type ExhaustedError struct {
	Kind     domain.DocumentKind
	Failures []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Provider + ": " + f.Err.Error()
	}
	return fmt.Sprintf("all extractors failed for %s: %s", e.Kind.Label(), strings.Join(parts, "; "))
}

// Unwrap exposes the failures that were not rate limits, so a mixed outcome
// is never reported as a plain rate limit.
func (e *ExhaustedError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failures {
		var rlErr *RateLimitError
		if !errors.As(f.Err, &rlErr) {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// FallbackExtractor tries providers in order, skipping those cooling down
// after a rate limit. It implements port.Extractor.
type FallbackExtractor struct {
	providers []*provider
	now       func() time.Time
}

// NewFallbackExtractor creates a FallbackExtractor from an ordered list of
// extractors and their names.
func NewFallbackExtractor(extractors []port.Extractor, names []string) *FallbackExtractor {
	providers := make([]*provider, len(extractors))
	for i, x := range extractors {
		providers[i] = &provider{name: names[i], extractor: x}
	}
	return &FallbackExtractor{providers: providers, now: time.Now}
}

func (f *FallbackExtractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	now := f.now()
	var (
		failures    []ProviderFailure
		earliest    time.Time
		rateLimited = true
	)
	noteReset := func(at time.Time) {
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}

	for _, p := range f.providers {
		if until, cooling := p.cooling(now); cooling {
			log.Printf("extractor.FallbackExtractor: skipping %s for %s (cooling down until %s)",
				p.name, input.Kind, until.Format(time.RFC3339))
			noteReset(until)
			continue
		}

		out, err := p.extractor.Extract(ctx, input)
		if err == nil {
			if len(failures) > 0 {
				log.Printf("extractor.FallbackExtractor: %s read %s after %d failed provider(s)", p.name, input.Kind, len(failures))
			}
			return out, nil
		}

		log.Printf("extractor.FallbackExtractor: %s failed on %s: %v", p.name, input.Kind, err)
		failures = append(failures, ProviderFailure{Provider: p.name, Err: err})

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			until := now.Add(rlErr.RetryAfter)
			p.coolDown(until)
			noteReset(until)
			continue
		}
		rateLimited = false
		if ctx.Err() != nil {
			break
		}
	}

	if rateLimited {
		retryAfter := earliest.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all",
			fmt.Errorf("all extractors rate limited for %s", input.Kind.Label()), int(retryAfter.Seconds()))
	}
	return nil, &ExhaustedError{Kind: input.Kind, Failures: failures}
}
