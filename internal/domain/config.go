package domain

import "time"

// Config holds the complete FuelGuard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure choices
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Detection thresholds
	Rules RulesConfig `json:"rules"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// RulesConfig carries the caller-overridable detection thresholds.
// Every numeric default mirrors the embedded literals the rules were
// originally tuned with.
type RulesConfig struct {
	// MaxTransactionsPerDay is the per-vehicle daily ceiling before the
	// frequency rule fires.
	MaxTransactionsPerDay int `json:"maxTransactionsPerDay"`

	// PriceAnomalyThresholdPercent is the deviation from the market
	// average that counts as a price anomaly.
	PriceAnomalyThresholdPercent float64 `json:"priceAnomalyThresholdPercent"`

	// DoubleDipWindowMinutes is the lookback window for repeat fueling.
	DoubleDipWindowMinutes int `json:"doubleDipWindowMinutes"`

	// GeofenceBufferKm is the allowance added to a project's radius.
	GeofenceBufferKm float64 `json:"geofenceBufferKm"`

	// MaxSpeedKmh is the highest plausible travel speed between
	// consecutive fueling stops.
	MaxSpeedKmh float64 `json:"maxSpeedKmh"`

	// DefaultMarketPrice (SEK/L) is used when no live market average is
	// supplied. No caller currently supplies one.
	DefaultMarketPrice float64 `json:"defaultMarketPrice"`

	// Holidays are exact dates treated as non-working days.
	Holidays []time.Time `json:"holidays,omitempty"`
}

// DefaultRulesConfig returns the standard detection thresholds.
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		MaxTransactionsPerDay:        3,
		PriceAnomalyThresholdPercent: 20.0,
		DoubleDipWindowMinutes:       30,
		GeofenceBufferKm:             15.0,
		MaxSpeedKmh:                  120.0,
		DefaultMarketPrice:           18.0,
	}
}

// DoubleDipWindow returns the lookback window as a duration.
func (c RulesConfig) DoubleDipWindow() time.Duration {
	return time.Duration(c.DoubleDipWindowMinutes) * time.Minute
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// RateLimitPerMinute caps requests per company. 0 disables limiting.
	RateLimitPerMinute int `json:"rateLimitPerMinute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        30,
			WriteTimeout:       30,
			RateLimitPerMinute: 60,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fuelguard.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Rules: DefaultRulesConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fuelguard",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fuelguard",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
