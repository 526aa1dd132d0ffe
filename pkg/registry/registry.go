// Package registry selects the extractor that handles an input URL.
package registry

import (
	"errors"
	"sync"

	"github.com/samber/lo"

	"m3u8-resolver/pkg/interfaces"
)

var _ interfaces.Registry[interfaces.Extractor] = (*ExtractorRegistry)(nil)

// ExtractorRegistry holds the extractors in match order. The first one whose
// CanExtract accepts a URL wins; the fallback takes anything left over.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors []interfaces.Extractor
	fallback   interfaces.Extractor
}

func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{}
}

// Register appends extractor to the match order.
func (r *ExtractorRegistry) Register(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, extractor)
}

// SetFallback sets the extractor used when nothing else matches. It may
// also be registered.
func (r *ExtractorRegistry) SetFallback(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = extractor
}

// Get returns the extractor for url, the fallback, or nil.
func (r *ExtractorRegistry) Get(url string) interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := lo.Find(r.extractors, func(e interfaces.Extractor) bool {
		return e.CanExtract(url)
	}); ok {
		return e
	}
	return r.fallback
}

// All returns the registered extractors in match order, fallback excluded.
func (r *ExtractorRegistry) All() []interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]interfaces.Extractor(nil), r.extractors...)
}

// Names lists every extractor name, the fallback last.
func (r *ExtractorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.distinct(), func(e interfaces.Extractor, _ int) string {
		return e.Name()
	})
}

// Close closes each extractor once, even one that is also the fallback.
func (r *ExtractorRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.distinct() {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}

func (r *ExtractorRegistry) distinct() []interfaces.Extractor {
	all := append([]interfaces.Extractor(nil), r.extractors...)
	if r.fallback != nil {
		all = append(all, r.fallback)
	}
	return lo.Uniq(all)
}
