package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/feed-sync/app/feed"
)

// Registry owns every open feed view, keyed by (viewer, variant). It is the
// process-wide entry point the HTTP layer and the background scheduler go
// through; views never outlive it.
type Registry struct {
	deps     Deps
	variants *feed.VariantCache

	mu        sync.Mutex
	feeds     map[string]*Feed
	opens     int
	closes    int
	evictions int
}

func NewRegistry(deps Deps, variants *feed.VariantCache) *Registry {
	return &Registry{
		deps:     deps,
		variants: variants,
		feeds:    make(map[string]*Feed),
	}
}

func viewKey(viewerID string, variant feed.Variant) string {
	return viewerID + "/" + string(variant)
}

// Open returns the view for the viewer and variant, creating and hydrating
// it on first use. The second return reports whether a new view was
// created. An unknown variant is an error.
func (r *Registry) Open(ctx context.Context, viewerID string, variant feed.Variant) (*Feed, bool, error) {
	config, err := r.variants.GetConfig(variant)
	if err != nil {
		return nil, false, err
	}

	key := viewKey(viewerID, variant)

	r.mu.Lock()
	if existing, ok := r.feeds[key]; ok {
		r.mu.Unlock()
		existing.Touch()
		return existing, false, nil
	}

	f := newFeed(viewerID, config, r.deps)
	r.feeds[key] = f
	r.opens++
	r.mu.Unlock()

	f.open(ctx, r.deps.Notifier)
	slog.Debug("Feed view opened", "viewer", viewerID, "variant", variant)

	return f, true, nil
}

// Get returns the open view for the viewer and variant, if any.
func (r *Registry) Get(viewerID string, variant feed.Variant) (*Feed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.feeds[viewKey(viewerID, variant)]
	return f, ok
}

// Close tears down the view for the viewer and variant. Reports whether a
// view was open.
func (r *Registry) Close(viewerID string, variant feed.Variant) bool {
	key := viewKey(viewerID, variant)

	r.mu.Lock()
	f, ok := r.feeds[key]
	if ok {
		delete(r.feeds, key)
		r.closes++
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	f.Close()
	slog.Debug("Feed view closed", "viewer", viewerID, "variant", variant)
	return true
}

// CloseAll tears down every open view. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	feeds := make([]*Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		feeds = append(feeds, f)
	}
	r.feeds = make(map[string]*Feed)
	r.closes += len(feeds)
	r.mu.Unlock()

	for _, f := range feeds {
		f.Close()
	}
}

// Feeds returns the open views. The scheduler enumerates these to fan out
// reconcile tasks.
func (r *Registry) Feeds() []*Feed {
	r.mu.Lock()
	defer r.mu.Unlock()

	feeds := make([]*Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		feeds = append(feeds, f)
	}
	return feeds
}

// EvictIdle closes views untouched for longer than maxIdle, the server-side
// rendition of a UI that vanished without closing its view. Returns the
// number of views evicted.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	var idle []*Feed
	for key, f := range r.feeds {
		if f.IdleFor() > maxIdle {
			delete(r.feeds, key)
			idle = append(idle, f)
		}
	}
	r.evictions += len(idle)
	r.closes += len(idle)
	r.mu.Unlock()

	for _, f := range idle {
		f.Close()
		slog.Debug("Idle feed view evicted", "viewer", f.ViewerID(), "variant", f.Variant(), "idle", f.IdleFor().Round(time.Second))
	}

	return len(idle)
}

// Stats is a point-in-time summary for the stats endpoint.
type Stats struct {
	OpenFeeds int `json:"open_feeds"`
	Opens     int `json:"opens"`
	Closes    int `json:"closes"`
	Evictions int `json:"evictions"`
	Merges    int `json:"merges"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	feeds := make([]*Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		feeds = append(feeds, f)
	}
	stats := Stats{
		OpenFeeds: len(feeds),
		Opens:     r.opens,
		Closes:    r.closes,
		Evictions: r.evictions,
	}
	r.mu.Unlock()

	for _, f := range feeds {
		stats.Merges += f.Merges()
	}
	return stats
}
