package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Transform TransformConfig `mapstructure:"transform"`
	Settings  CaptureSettings `mapstructure:"-"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Admin API request limit per client IP; zero disables it.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Type     string `mapstructure:"type"` // memory, sqlite, postgres, oracle, mongodb, couchbase, redis
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Path     string `mapstructure:"path"` // sqlite only
	Pool     struct {
		MaxConns int `mapstructure:"max_conns"`
		MinConns int `mapstructure:"min_conns"`
	} `mapstructure:"pool"`
}

// CaptureConfig controls how matched calls are turned into records.
type CaptureConfig struct {
	Async          bool           `mapstructure:"async"`
	Workers        int            `mapstructure:"workers"`
	BufferSize     int            `mapstructure:"buffer_size"`
	PersistTimeout time.Duration  `mapstructure:"persist_timeout"`
	MaxBodyBytes   int64          `mapstructure:"max_body_bytes"`
	DumpFormat     string         `mapstructure:"dump_format"` // export, spew
	RedactHeaders  []string       `mapstructure:"redact_headers"`
	Throttle       ThrottleConfig `mapstructure:"throttle"`
}

// ThrottleConfig caps the number of records a single host may produce per window.
type ThrottleConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Storage  string        `mapstructure:"storage"` // memory, redis
	Redis    RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TransformConfig represents the record scrubbing scripts
type TransformConfig struct {
	// Directory containing scrubbing scripts
	ScriptsDir string          `mapstructure:"scripts_dir"`
	Rules      []TransformRule `mapstructure:"rules"`
}

// TransformRule binds a script to every record whose URL contains Match.
type TransformRule struct {
	Match  string `mapstructure:"match"`
	Script string `mapstructure:"script"`
}

const (
	EnvPrefix   = "GOZCU"
	SettingsKey = "api_log_settings"
)

// DefaultPatterns is used when no pattern list has been stored yet. Patterns
// are case-insensitive substrings, so "license" also matches unrelated URLs
// such as https://example.com/licenses.
var DefaultPatterns = []string{"license"}

// DefaultRedactHeaders are masked in every captured copy of a call.
var DefaultRedactHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
	"X-Api-Key",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.requests_per_minute", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("db.type", "sqlite")
	v.SetDefault("db.path", "data/gozcu.db")
	v.SetDefault("db.pool.max_conns", 10)
	v.SetDefault("db.pool.min_conns", 1)

	v.SetDefault("capture.async", true)
	v.SetDefault("capture.workers", 4)
	v.SetDefault("capture.buffer_size", 1000)
	v.SetDefault("capture.persist_timeout", 5*time.Second)
	v.SetDefault("capture.max_body_bytes", 1<<20)
	v.SetDefault("capture.dump_format", "export")
	v.SetDefault("capture.redact_headers", DefaultRedactHeaders)
	v.SetDefault("capture.throttle.enabled", false)
	v.SetDefault("capture.throttle.requests", 100)
	v.SetDefault("capture.throttle.window", time.Minute)
	v.SetDefault("capture.throttle.storage", "memory")
	v.SetDefault("capture.throttle.redis.port", 6379)
	v.SetDefault("capture.throttle.redis.timeout", 2*time.Second)

	v.SetDefault(SettingsKey+".urls", DefaultPatterns)
}

// New returns a viper instance with gozcu defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configPath (when set) on top of the defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return Decode(v)
}

// Decode unmarshals v into a Config and sanitizes the capture settings.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Settings = SettingsFrom(v.Get(SettingsKey + ".urls"))
	return &config, nil
}
