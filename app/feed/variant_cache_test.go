package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVariantCacheSeedsBuiltins(t *testing.T) {
	cache := NewVariantCache("./does-not-exist")

	// A missing variants directory is not an error
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	if cache.GetConfigCount() != 2 {
		t.Errorf("Expected 2 builtin variants, got %d", cache.GetConfigCount())
	}

	forYou, err := cache.GetConfig(VariantForYou)
	if err != nil {
		t.Fatal(err)
	}
	if !forYou.Ranked {
		t.Error("Expected for-you variant to be ranked")
	}
	if forYou.Filter != FilterNone {
		t.Errorf("Expected filter '%s', got '%s'", FilterNone, forYou.Filter)
	}
	if forYou.FirstPageSize != 50 || forYou.PageSize != 20 || forYou.PollLimit != 20 {
		t.Errorf("Unexpected default sizes: %d/%d/%d", forYou.FirstPageSize, forYou.PageSize, forYou.PollLimit)
	}

	following, err := cache.GetConfig(VariantFollowing)
	if err != nil {
		t.Fatal(err)
	}
	if following.Ranked {
		t.Error("Expected following variant to be unranked")
	}
	if following.Filter != FilterFollowing {
		t.Errorf("Expected filter '%s', got '%s'", FilterFollowing, following.Filter)
	}
}

func TestVariantCacheLoadOverlayFile(t *testing.T) {
	tempDir := t.TempDir()

	content := `
ranked: true
first_page_size: 30
page_size: 10
poll_limit: 5
`
	err := os.WriteFile(filepath.Join(tempDir, "for-you.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cache := NewVariantCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	config, err := cache.GetConfig(VariantForYou)
	if err != nil {
		t.Fatal(err)
	}

	if config.FirstPageSize != 30 {
		t.Errorf("Expected first page size 30, got %d", config.FirstPageSize)
	}
	if config.PageSize != 10 {
		t.Errorf("Expected page size 10, got %d", config.PageSize)
	}
	if config.PollLimit != 5 {
		t.Errorf("Expected poll limit 5, got %d", config.PollLimit)
	}
	// Untouched fields keep their defaults
	if !config.Ranked {
		t.Error("Expected ranked to survive the overlay")
	}
	if config.RankWeights.Retweets != 2 {
		t.Errorf("Expected default retweet weight 2, got %v", config.RankWeights.Retweets)
	}
}

func TestVariantCacheLoadAdditionalVariant(t *testing.T) {
	tempDir := t.TempDir()

	content := `
filter: "following"
ranked: true
page_size: 15
`
	err := os.WriteFile(filepath.Join(tempDir, "trending.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cache := NewVariantCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	// Builtins plus the file-defined variant
	if cache.GetConfigCount() != 3 {
		t.Errorf("Expected 3 variants, got %d", cache.GetConfigCount())
	}

	config, err := cache.GetConfig(Variant("trending"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Name != Variant("trending") {
		t.Errorf("Expected name 'trending', got '%s'", config.Name)
	}
	if config.Filter != FilterFollowing || !config.Ranked || config.PageSize != 15 {
		t.Errorf("Unexpected config: %+v", config)
	}
}

func TestVariantCacheRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad filter", "filter: \"friends-of-friends\"\n"},
		{"zero page size", "page_size: 0\n"},
		{"negative poll limit", "poll_limit: -1\n"},
	}

	for _, test := range tests {
		tempDir := t.TempDir()
		err := os.WriteFile(filepath.Join(tempDir, "broken.yml"), []byte(test.content), 0644)
		if err != nil {
			t.Fatal(err)
		}

		cache := NewVariantCache(tempDir)
		if err := cache.Run(); err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}
}

func TestVariantCacheGetUnknownVariant(t *testing.T) {
	cache := NewVariantCache("./does-not-exist")
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.GetConfig(Variant("nope")); err == nil {
		t.Error("Expected error for unknown variant")
	}
}
