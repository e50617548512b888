package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/interval"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Backend    BackendConfig
	Probe      ProbeConfig
	Mimir      MimirConfig
	Scheduler  SchedulerConfig
	Cache      CacheConfig
	Auth       AuthConfig
	Thresholds checks.Thresholds
	Plans      map[string]PlanConfig
	Regions    []string
	LogLevel   string
}

type ServerConfig struct {
	Port        string
	Mode        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	// URL is empty for single process mode: the queue and cache stay in
	// memory.
	URL       string
	QueueName string
	CacheKey  string
}

// BackendConfig points at the monitoring microservice. An empty URL makes
// the worker fall back to the local probe.
type BackendConfig struct {
	URL               string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type ProbeConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	DNSServer    string
	UserAgent    string
}

type MimirConfig struct {
	URL           string
	TenantHeader  string
	TenantID      string
	BatchSize     int
	FlushInterval time.Duration
	AuthToken     string
}

type SchedulerConfig struct {
	WorkerCount     int
	TickInterval    time.Duration
	PopTimeout      time.Duration
	CheckTimeout    time.Duration
	DefaultInterval time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

// AuthConfig enables HS256 bearer tokens on the API when Secret is set.
type AuthConfig struct {
	Secret string
	Issuer string
}

type PlanConfig struct {
	MinInterval time.Duration
}

// PlanFloors converts the plan table into interval floors in seconds.
func (c *Config) PlanFloors() interval.Plans {
	plans := make(interval.Plans, len(c.Plans))
	for name, p := range c.Plans {
		plans[strings.ToLower(name)] = int64(p.MinInterval / time.Second)
	}
	return plans
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.corsorigins", []string{"*"})
	v.SetDefault("database.url", "sqlite://uptime.db")
	// Empty defaults make the keys visible to AutomaticEnv.
	v.SetDefault("redis.url", "")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.apikey", "")
	v.SetDefault("mimir.url", "")
	v.SetDefault("mimir.authtoken", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("redis.queuename", "site_checks")
	v.SetDefault("redis.cachekey", "uptime:cache:")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.requestspersecond", 5)
	v.SetDefault("backend.burst", 10)
	v.SetDefault("probe.timeout", "30s")
	v.SetDefault("probe.maxredirects", 10)
	v.SetDefault("probe.dnsserver", "8.8.8.8:53")
	v.SetDefault("probe.useragent", "UptimeDashboard/1.0")
	v.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	v.SetDefault("mimir.tenantid", "uptime-dashboard")
	v.SetDefault("mimir.batchsize", 1000)
	v.SetDefault("mimir.flushinterval", "10s")
	v.SetDefault("scheduler.workercount", 10)
	v.SetDefault("scheduler.tickinterval", "10s")
	v.SetDefault("scheduler.poptimeout", "5s")
	v.SetDefault("scheduler.checktimeout", "60s")
	v.SetDefault("scheduler.defaultinterval", "5m")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("loglevel", "info")
}

// Load reads config.yaml from the working directory or ./config, then
// UPTIME_ prefixed environment variables. A .env file is loaded first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return load(v)
}

// LoadFile reads an explicit config file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("UPTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if key := os.Getenv("MONITOR_API_KEY"); key != "" {
		cfg.Backend.APIKey = key
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Mimir.AuthToken = token
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}

	cfg.Thresholds = cfg.Thresholds.WithDefaults()

	// Default plans if not configured
	if len(cfg.Plans) == 0 {
		cfg.Plans = map[string]PlanConfig{
			"free":       {MinInterval: 5 * time.Minute},
			"pro":        {MinInterval: time.Minute},
			"enterprise": {MinInterval: time.Minute},
		}
	}

	// Default regions if not configured
	if len(cfg.Regions) == 0 {
		cfg.Regions = []string{"us-east", "eu-west", "asia-pac"}
	}

	return &cfg, nil
}
