package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration (session cache + change notifications)
	RedisAddr       string
	RedisDB         int
	RealtimeChannel string

	// Application configuration
	VariantsDir  string
	Port         string
	WorkerCount  int
	PollInterval int
	SessionTTL   int
	IdleTimeout  int
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
