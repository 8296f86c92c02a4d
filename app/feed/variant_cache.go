package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// VariantCache holds the tuning configuration for each feed variant. The
// two builtin variants are always present; YAML files in the variants
// directory override their defaults or define additional variants.
type VariantCache struct {
	variantsDir string
	cache       map[Variant]*VariantConfig
	mu          sync.RWMutex
}

func NewVariantCache(variantsDir string) *VariantCache {
	return &VariantCache{
		variantsDir: variantsDir,
		cache:       make(map[Variant]*VariantConfig),
	}
}

func defaultConfig(name Variant) *VariantConfig {
	cfg := &VariantConfig{
		Name:          name,
		Filter:        FilterNone,
		FirstPageSize: 50,
		PageSize:      20,
		PollLimit:     20,
		RankWeights:   RankWeights{Likes: 1, Retweets: 2, Replies: 1.5},
	}

	switch name {
	case VariantForYou:
		cfg.Ranked = true
	case VariantFollowing:
		cfg.Filter = FilterFollowing
	}

	return cfg
}

// Run seeds the builtin variants and overlays any tuning files found in the
// variants directory. A missing directory is not an error.
func (vc *VariantCache) Run() error {
	vc.mu.Lock()
	vc.cache[VariantForYou] = defaultConfig(VariantForYou)
	vc.cache[VariantFollowing] = defaultConfig(VariantFollowing)
	vc.mu.Unlock()

	if _, err := os.Stat(vc.variantsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(vc.variantsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find variant files: %w", err)
	}

	for _, file := range files {
		// Derive variant name from filename (remove .yml extension)
		fileName := filepath.Base(file)
		name := Variant(fileName[:len(fileName)-4])

		config, err := vc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Variant configuration loaded", "variant", name, "filter", config.Filter, "ranked", config.Ranked, "page_size", config.PageSize)
	}

	return nil
}

// LoadConfig reads one variant tuning file, starting from that variant's
// defaults, and stores the result in the cache.
func (vc *VariantCache) LoadConfig(name Variant) (*VariantConfig, error) {
	configFile := filepath.Join(vc.variantsDir, string(name)+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	config := defaultConfig(name)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.Name = name

	if err := vc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.cache[name] = config

	return config, nil
}

func (vc *VariantCache) GetConfig(name Variant) (*VariantConfig, error) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	config, ok := vc.cache[name]
	if !ok {
		return nil, fmt.Errorf("feed variant '%s' not found", name)
	}
	return config, nil
}

func (vc *VariantCache) GetConfigs() map[Variant]*VariantConfig {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	configsCopy := make(map[Variant]*VariantConfig, len(vc.cache))
	for k, v := range vc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (vc *VariantCache) GetConfigCount() int {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return len(vc.cache)
}

func (vc *VariantCache) validateConfig(config *VariantConfig) error {
	if config.Name == "" {
		return fmt.Errorf("variant name is required")
	}

	if config.Filter != FilterNone && config.Filter != FilterFollowing {
		return fmt.Errorf("invalid filter '%s': must be '%s' or '%s'", config.Filter, FilterNone, FilterFollowing)
	}

	positiveFields := map[string]int{
		"first page size": config.FirstPageSize,
		"page size":       config.PageSize,
		"poll limit":      config.PollLimit,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	return nil
}
