package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cogscreen-go/internal/archive"
	"cogscreen-go/internal/recording"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Archive    archive.Config   `mapstructure:"archive"`
	Speech     ServiceConfig    `mapstructure:"speech"`
	Prediction ServiceConfig    `mapstructure:"prediction"`
	Auth       AuthConfig       `mapstructure:"auth"`
	TMT        TMTConfig        `mapstructure:"tmt"`
	Recording  recording.Config `mapstructure:"recording"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	SessionSecret string        `mapstructure:"session_secret"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EventRate     float64       `mapstructure:"event_rate"`
	EventBurst    int           `mapstructure:"event_burst"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	User      string        `mapstructure:"user"`
	Password  string        `mapstructure:"password"`
	DBName    string        `mapstructure:"dbname"`
	SlowQuery time.Duration `mapstructure:"slow_query"` // statements slower than this log at warn
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port)
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory    string `mapstructure:"directory"`
	ConsoleLevel string `mapstructure:"console_level"`
	MaxSize      int    `mapstructure:"max_size"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAge       int    `mapstructure:"max_age"`
	Compress     bool   `mapstructure:"compress"`
}

// StorageConfig selects where per-participant results live.
type StorageConfig struct {
	Backend  string `mapstructure:"backend"` // bolt or redis
	BoltPath string `mapstructure:"bolt_path"`
}

// RedisConfig holds settings for the shared results store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServiceConfig points at a downstream HTTP service.
type ServiceConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TMTConfig points at the trail making variant catalog.
type TMTConfig struct {
	VariantsFile string `mapstructure:"variants_file"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "change-me-session-secret")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.idle_timeout", 30*time.Minute)
	v.SetDefault("server.event_rate", 240.0) // pointer events per second
	v.SetDefault("server.event_burst", 120)

	// Database defaults
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "cogscreen-db")
	v.SetDefault("database.slow_query", 200*time.Millisecond)

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.console_level", "debug")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Result storage defaults
	v.SetDefault("storage.backend", "bolt")
	v.SetDefault("storage.bolt_path", filepath.Join("data", "results.db"))
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	// Segment archive defaults
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.dir", filepath.Join("data", "recordings"))

	// Downstream services
	v.SetDefault("speech.url", "http://localhost:3000")
	v.SetDefault("speech.timeout", 30*time.Second)
	v.SetDefault("prediction.url", "http://localhost:3000")
	v.SetDefault("prediction.timeout", 15*time.Second)

	v.SetDefault("auth.jwt_secret", "change-me-jwt-secret")
	v.SetDefault("tmt.variants_file", filepath.Join("config", "variants.yaml"))

	// Recording defaults
	rec := recording.DefaultConfig()
	v.SetDefault("recording.segment_length", rec.SegmentLength)
	v.SetDefault("recording.countdown", rec.Countdown)
	v.SetDefault("recording.drain_interval", rec.DrainInterval)
	v.SetDefault("recording.encodings", rec.Encodings)
}

// Init initializes the configuration with Viper.
func Init(projectRoot string, log *zap.Logger) error {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config")) // Search for config file in the current directory
	v.SetConfigName("config")                             // Name of config file (without extension)
	v.SetConfigType("yaml")                               // Type of config file

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("COGSCREEN") // e.g., COGSCREEN_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the initial configuration from the file.
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into our global Conf variable
	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	resolvePaths(Conf, projectRoot)

	// Set up a watch for configuration changes for hot-reloading
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := v.Unmarshal(&Conf); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		resolvePaths(Conf, projectRoot)
	})

	log.Info("Configuration loaded successfully")
	return nil
}

// resolvePaths anchors relative file locations at the project root.
func resolvePaths(c *Config, projectRoot string) {
	if c == nil {
		return
	}
	for _, p := range []*string{&c.Logging.Directory, &c.Storage.BoltPath, &c.Archive.Dir, &c.TMT.VariantsFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(projectRoot, *p)
		}
	}
}
