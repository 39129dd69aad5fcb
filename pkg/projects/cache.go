package projects

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached project documents.
const DefaultCacheSize = 128

// CachingProvider wraps a Provider with an LRU cache of parsed project
// metadata. Callers that need fresh metadata (use_cached_project_metadata
// disabled) read through Fresh().
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, *Project]
}

// NewCachingProvider creates a caching wrapper. size <= 0 uses
// DefaultCacheSize.
func NewCachingProvider(inner Provider, size int) (*CachingProvider, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Project](size)
	if err != nil {
		return nil, err
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

// Themes delegates to the wrapped provider; theme listings are not cached.
func (p *CachingProvider) Themes(ctx context.Context) ([]string, error) {
	return p.inner.Themes(ctx)
}

// ProjectMetadata returns the cached metadata for a theme, reading through
// on a miss.
func (p *CachingProvider) ProjectMetadata(ctx context.Context, theme string) (*Project, error) {
	if project, ok := p.cache.Get(theme); ok {
		return project, nil
	}
	project, err := p.inner.ProjectMetadata(ctx, theme)
	if err != nil {
		return nil, err
	}
	p.cache.Add(theme, project)
	return project, nil
}

// Fresh returns a view of the provider that bypasses the cache but still
// refreshes it, for runs requesting uncached metadata.
func (p *CachingProvider) Fresh() Provider {
	return freshView{p}
}

// Invalidate drops the cached entry for a theme.
func (p *CachingProvider) Invalidate(theme string) {
	p.cache.Remove(theme)
}

// Purge drops all cached entries.
func (p *CachingProvider) Purge() {
	p.cache.Purge()
}

type freshView struct {
	p *CachingProvider
}

func (v freshView) Themes(ctx context.Context) ([]string, error) {
	return v.p.inner.Themes(ctx)
}

func (v freshView) ProjectMetadata(ctx context.Context, theme string) (*Project, error) {
	project, err := v.p.inner.ProjectMetadata(ctx, theme)
	if err != nil {
		return nil, err
	}
	v.p.cache.Add(theme, project)
	return project, nil
}
