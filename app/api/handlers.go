package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/feed-sync/app/cfg"
	"github.com/lysyi3m/feed-sync/app/database"
	"github.com/lysyi3m/feed-sync/app/engine"
	"github.com/lysyi3m/feed-sync/app/feed"
)

func NewHandler(registry *engine.Registry, variants *feed.VariantCache, postRepo database.PostRepository) *Handler {
	return &Handler{
		registry:  registry,
		variants:  variants,
		postRepo:  postRepo,
		startedAt: time.Now(),
	}
}

// viewerID is the authenticated viewer, empty when the request is
// anonymous. Authentication itself is an upstream concern; this service
// trusts the header.
func viewerID(c *gin.Context) string {
	return c.GetHeader("X-Viewer-ID")
}

// OpenFeed activates the view for a viewer and variant: it hydrates from
// the session cache for an instant first paint and kicks off the initial
// page load in the background.
func (h *Handler) OpenFeed(c *gin.Context) {
	variant := feed.Variant(c.Param("variant"))

	f, created, err := h.registry.Open(c.Request.Context(), viewerID(c), variant)
	if err != nil {
		slog.Error("Feed variant not found", "variant", variant, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed variant"})
		return
	}

	if created {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			f.LoadMore(ctx)
		}()
	}

	c.JSON(http.StatusOK, feedResponse(f))
}

// GetFeed returns the current snapshot of an open view.
func (h *Handler) GetFeed(c *gin.Context) {
	f, ok := h.openView(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, feedResponse(f))
}

// LoadMore fetches and merges the next page, then returns the snapshot.
// A failed load leaves pagination state untouched and reports the error in
// the snapshot so the client can retry.
func (h *Handler) LoadMore(c *gin.Context) {
	f, ok := h.openView(c)
	if !ok {
		return
	}

	if err := f.LoadMore(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, feedResponse(f))
		return
	}

	c.JSON(http.StatusOK, feedResponse(f))
}

// ResetFeed drops the view back to its cold-start state (explicit refresh).
func (h *Handler) ResetFeed(c *gin.Context) {
	f, ok := h.openView(c)
	if !ok {
		return
	}

	f.Reset(c.Request.Context())
	c.JSON(http.StatusOK, feedResponse(f))
}

// CloseFeed tears the view down (view unmount).
func (h *Handler) CloseFeed(c *gin.Context) {
	variant := feed.Variant(c.Param("variant"))

	closed := h.registry.Close(viewerID(c), variant)
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

func (h *Handler) openView(c *gin.Context) (*engine.Feed, bool) {
	variant := feed.Variant(c.Param("variant"))

	f, ok := h.registry.Get(viewerID(c), variant)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed view not open"})
		return nil, false
	}

	f.Touch()
	return f, true
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	health["open_feeds"] = h.registry.Stats().OpenFeeds
	health["loaded_variants"] = h.variants.GetConfigCount()

	if postCount, err := h.postRepo.GetPostCount(c.Request.Context()); err == nil {
		health["posts"] = postCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"version":   cfg.GetVersion(),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"engine":    h.registry.Stats(),
		"variants":  h.variants.GetConfigCount(),
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if postCount, err := h.postRepo.GetPostCount(c.Request.Context()); err == nil {
		stats["posts"] = postCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds := h.registry.Feeds()

	views := make([]map[string]interface{}, 0, len(feeds))
	for _, f := range feeds {
		snap := f.Snapshot()
		views = append(views, map[string]interface{}{
			"viewer":    f.ViewerID(),
			"variant":   f.Variant(),
			"items":     len(snap.Items),
			"cursor":    f.Cursor(),
			"has_more":  snap.HasMore,
			"merges":    f.Merges(),
			"hydrated":  f.HydratedFromCache(),
			"last_seen": f.LastSeen(),
			"idle":      f.IdleFor().Round(time.Second).String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"count": len(views), "feeds": views})
}

func (h *Handler) APIListVariants(c *gin.Context) {
	configs := h.variants.GetConfigs()

	variants := make([]map[string]interface{}, 0, len(configs))
	for _, config := range configs {
		variants = append(variants, map[string]interface{}{
			"name":            config.Name,
			"filter":          config.Filter,
			"ranked":          config.Ranked,
			"first_page_size": config.FirstPageSize,
			"page_size":       config.PageSize,
			"poll_limit":      config.PollLimit,
		})
	}

	c.JSON(http.StatusOK, gin.H{"count": len(variants), "variants": variants})
}

// APIReloadVariant re-reads one variant's tuning file. Already-open views
// keep the configuration they were created with.
func (h *Handler) APIReloadVariant(c *gin.Context) {
	name := feed.Variant(c.Param("variant"))

	config, err := h.variants.LoadConfig(name)
	if err != nil {
		slog.Error("Variant reload failed", "variant", name, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"variant":   config.Name,
		"filter":    config.Filter,
		"ranked":    config.Ranked,
		"page_size": config.PageSize,
	})
}
