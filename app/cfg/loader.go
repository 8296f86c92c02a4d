package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"feed_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"feed_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"feed_sync" description:"Database name"`

	// Redis configuration
	RedisAddr       string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for session cache and change notifications"`
	RedisDB         int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	RealtimeChannel string `long:"realtime-channel" env:"REALTIME_CHANNEL" default:"feedsync:posts" description:"Redis pub/sub channel carrying post-created events"`

	// Application configuration
	VariantsDir  string `long:"variants-dir" env:"VARIANTS_DIR" default:"./variants" description:"Directory containing feed variant tuning files (optional)"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for reconciliation tasks"`
	PollInterval int    `long:"poll-interval" env:"POLL_INTERVAL" default:"10" description:"Polling reconciler interval in seconds"`
	SessionTTL   int    `long:"session-ttl" env:"SESSION_TTL" default:"120" description:"Session cache TTL in seconds"`
	IdleTimeout  int    `long:"idle-timeout" env:"IDLE_TIMEOUT" default:"300" description:"Seconds before an untouched feed view is evicted"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the management endpoints (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:          raw.DBHost,
		DBPort:          raw.DBPort,
		DBUser:          raw.DBUser,
		DBPassword:      raw.DBPassword,
		DBName:          raw.DBName,
		RedisAddr:       raw.RedisAddr,
		RedisDB:         raw.RedisDB,
		RealtimeChannel: raw.RealtimeChannel,
		VariantsDir:     raw.VariantsDir,
		Port:            raw.Port,
		WorkerCount:     raw.WorkerCount,
		PollInterval:    raw.PollInterval,
		SessionTTL:      raw.SessionTTL,
		IdleTimeout:     raw.IdleTimeout,
		APIAccessKey:    raw.APIAccessKey,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
