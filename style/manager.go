// Package style ties the CSS generator to the style cache: it answers
// "give me the stylesheet for this theme and these preferences" from cache
// whenever it can, and collapses concurrent compiles of the same
// stylesheet into one.
package style

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/streamweave/stylist/cache"
	"github.com/streamweave/stylist/css"
	"github.com/streamweave/stylist/theme"
)

// ErrUnknownTheme is returned for a theme id the library does not know.
var ErrUnknownTheme = errors.New("style: unknown theme")

// Manager serves compiled stylesheets through the cache.
type Manager struct {
	cache *cache.Cache
	lib   *theme.Library
	ttl   time.Duration
	log   cache.Logger
	group singleflight.Group
}

// NewManager wires a cache and a theme library together. ttl is the cache
// lifetime for generated stylesheets; zero means entries never expire and
// are only replaced by explicit invalidation.
func NewManager(c *cache.Cache, lib *theme.Library, ttl time.Duration, log cache.Logger) *Manager {
	return &Manager{cache: c, lib: lib, ttl: ttl, log: log}
}

// StylesheetFor looks up the theme by id and returns its stylesheet.
func (m *Manager) StylesheetFor(ctx context.Context, themeID string, prefs theme.Preferences) (string, error) {
	t, ok := m.lib.Get(themeID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTheme, themeID)
	}
	return m.Stylesheet(ctx, t, prefs)
}

// Stylesheet returns the compiled stylesheet for a theme and preferences,
// generating and caching it on a miss. Concurrent misses for the same key
// compile once.
func (m *Manager) Stylesheet(ctx context.Context, t theme.Theme, prefs theme.Preferences) (string, error) {
	if err := prefs.Validate(); err != nil {
		return "", err
	}
	key := m.cache.GenerateKey(t, prefs)
	if sheet, ok := m.cache.Get(ctx, key); ok {
		return sheet, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// Another caller may have filled the cache while we queued.
		if sheet, ok := m.cache.Get(ctx, key); ok {
			return sheet, nil
		}
		sheet := css.Build(t, prefs)
		m.cache.Set(ctx, key, sheet, m.ttl)
		m.log.Debugf("style: compiled stylesheet for theme %s", t.ID)
		return sheet, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops every cached stylesheet, forcing recompilation on the
// next request. Called when themes change.
func (m *Manager) Invalidate(ctx context.Context) {
	m.cache.ClearAll(ctx)
	m.log.Debugf("style: cache invalidated")
}

// Cleanup sweeps stale cache entries and returns the number removed.
func (m *Manager) Cleanup(ctx context.Context) int {
	return m.cache.Cleanup(ctx)
}

// Statistics reports the underlying cache statistics.
func (m *Manager) Statistics() cache.Statistics {
	return m.cache.Statistics()
}
