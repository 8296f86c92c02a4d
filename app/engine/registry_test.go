package engine

import (
	"context"
	"testing"
	"time"

	"github.com/lysyi3m/feed-sync/app/feed"
)

func testRegistry(t *testing.T, posts *mockPosts) *Registry {
	t.Helper()

	variants := feed.NewVariantCache("./does-not-exist")
	if err := variants.Run(); err != nil {
		t.Fatalf("Failed to seed variant cache: %v", err)
	}

	deps, _, _ := testDeps(posts)
	return NewRegistry(deps, variants)
}

func TestRegistry_OpenReturnsExistingView(t *testing.T) {
	r := testRegistry(t, &mockPosts{})
	defer r.CloseAll()

	first, created, err := r.Open(context.Background(), "viewer-1", feed.VariantForYou)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !created {
		t.Error("Expected first open to create the view")
	}

	second, created, err := r.Open(context.Background(), "viewer-1", feed.VariantForYou)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	if created {
		t.Error("Expected second open to reuse the view")
	}
	if first != second {
		t.Error("Expected the same view instance")
	}

	// Different variant and different viewer get their own views
	_, created, _ = r.Open(context.Background(), "viewer-1", feed.VariantFollowing)
	if !created {
		t.Error("Expected a separate view per variant")
	}
	_, created, _ = r.Open(context.Background(), "viewer-2", feed.VariantForYou)
	if !created {
		t.Error("Expected a separate view per viewer")
	}

	stats := r.Stats()
	if stats.OpenFeeds != 3 || stats.Opens != 3 {
		t.Errorf("Expected 3 open views, got %+v", stats)
	}
}

func TestRegistry_OpenUnknownVariant(t *testing.T) {
	r := testRegistry(t, &mockPosts{})

	if _, _, err := r.Open(context.Background(), "viewer-1", feed.Variant("trending")); err == nil {
		t.Error("Expected error for unknown variant")
	}
}

func TestRegistry_Close(t *testing.T) {
	r := testRegistry(t, &mockPosts{})

	r.Open(context.Background(), "viewer-1", feed.VariantForYou)

	if !r.Close("viewer-1", feed.VariantForYou) {
		t.Error("Expected close to report an open view")
	}
	if r.Close("viewer-1", feed.VariantForYou) {
		t.Error("Expected second close to report no view")
	}
	if _, ok := r.Get("viewer-1", feed.VariantForYou); ok {
		t.Error("Expected view removed after close")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := testRegistry(t, &mockPosts{})

	r.Open(context.Background(), "viewer-1", feed.VariantForYou)
	r.Open(context.Background(), "viewer-2", feed.VariantForYou)

	r.CloseAll()

	if got := len(r.Feeds()); got != 0 {
		t.Errorf("Expected no open views, got %d", got)
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	r := testRegistry(t, &mockPosts{})
	defer r.CloseAll()

	idle, _, _ := r.Open(context.Background(), "viewer-1", feed.VariantForYou)
	active, _, _ := r.Open(context.Background(), "viewer-2", feed.VariantForYou)

	idle.mu.Lock()
	idle.lastTouched = time.Now().Add(-time.Hour)
	idle.mu.Unlock()
	active.Touch()

	if evicted := r.EvictIdle(30 * time.Minute); evicted != 1 {
		t.Fatalf("Expected 1 eviction, got %d", evicted)
	}

	if _, ok := r.Get("viewer-1", feed.VariantForYou); ok {
		t.Error("Expected idle view evicted")
	}
	if _, ok := r.Get("viewer-2", feed.VariantForYou); !ok {
		t.Error("Expected active view kept")
	}
	if r.Stats().Evictions != 1 {
		t.Errorf("Expected 1 recorded eviction, got %d", r.Stats().Evictions)
	}
}
