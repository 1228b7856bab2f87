package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RemoteType identifies the catalog backend
type RemoteType string

const (
	RemoteTypeHTTP  RemoteType = "http"
	RemoteTypeLocal RemoteType = "local"
)

const (
	envPrefix = "MARQUEE"

	defaultChunkSize         = 2 << 20
	defaultMaxSize     int64 = 5 << 30
	defaultTimeout           = 60 * time.Second
	defaultFetchTimeout      = 30 * time.Second
)

// Config holds all application configuration
type Config struct {
	Remote   RemoteConfig   `mapstructure:"remote"`
	Identity IdentityConfig `mapstructure:"identity"`
	Local    LocalConfig    `mapstructure:"local"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// path the config was loaded from, used by Save
	path string
}

// RemoteConfig selects and addresses the catalog backend
type RemoteConfig struct {
	Type    RemoteType    `mapstructure:"type"`
	URL     string        `mapstructure:"url"`      // http only
	Timeout time.Duration `mapstructure:"timeout"`  // per request
	DataDir string        `mapstructure:"data_dir"` // local only
}

// IdentityConfig holds the persisted login
type IdentityConfig struct {
	Principal string `mapstructure:"principal"` // empty means no identity
}

// LocalConfig configures the embedded backend
type LocalConfig struct {
	Admins []string `mapstructure:"admins"`
}

// UploadConfig holds the client-side upload policy
type UploadConfig struct {
	ChunkSize    int   `mapstructure:"chunk_size"`
	MaxVideoSize int64 `mapstructure:"max_video_size"`
	MaxImageSize int64 `mapstructure:"max_image_size"`
}

// CacheConfig bounds cache fetches
type CacheConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Type:    RemoteTypeLocal,
			Timeout: defaultTimeout,
			DataDir: defaultDataPath(),
		},
		Upload: UploadConfig{
			ChunkSize:    defaultChunkSize,
			MaxVideoSize: defaultMaxSize,
			MaxImageSize: defaultMaxSize,
		},
		Cache: CacheConfig{
			FetchTimeout: defaultFetchTimeout,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "marquee", "marquee.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "marquee", "marquee.log")
	}
}

// defaultDataPath returns the local backend directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "marquee", "catalog")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "marquee", "catalog")
	}
}

// DefaultPath returns the default config file path for the current OS
func DefaultPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "marquee", "config.yaml")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "marquee", "config.yaml")
	}
}

// newViper returns an instance with every key defaulted so env overrides bind
func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("remote.type", string(d.Remote.Type))
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.data_dir", d.Remote.DataDir)
	v.SetDefault("identity.principal", "")
	v.SetDefault("local.admins", []string{})
	v.SetDefault("upload.chunk_size", d.Upload.ChunkSize)
	v.SetDefault("upload.max_video_size", d.Upload.MaxVideoSize)
	v.SetDefault("upload.max_image_size", d.Upload.MaxImageSize)
	v.SetDefault("cache.fetch_timeout", d.Cache.FetchTimeout)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path (DefaultPath when empty) with
// MARQUEE_* environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with
func (c *Config) Validate() error {
	switch c.Remote.Type {
	case RemoteTypeLocal:
		if c.Remote.DataDir == "" {
			return errors.New("remote.data_dir is required for the local backend")
		}
	case RemoteTypeHTTP:
		if c.Remote.URL == "" {
			return errors.New("remote.url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown remote.type %q (want %q or %q)", c.Remote.Type, RemoteTypeHTTP, RemoteTypeLocal)
	}
	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("upload.chunk_size must be positive, got %d", c.Upload.ChunkSize)
	}
	if c.Upload.MaxVideoSize <= 0 || c.Upload.MaxImageSize <= 0 {
		return errors.New("upload.max_video_size and upload.max_image_size must be positive")
	}
	if c.Remote.Timeout <= 0 {
		return errors.New("remote.timeout must be positive")
	}
	return nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultPath()
	}
	return c.path
}

// Save writes the configuration to the file it was loaded from
func (c *Config) Save() error {
	path := c.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to keep snake_case key names
	v := viper.New()
	v.Set("remote.type", string(c.Remote.Type))
	v.Set("remote.url", c.Remote.URL)
	v.Set("remote.timeout", c.Remote.Timeout.String())
	v.Set("remote.data_dir", c.Remote.DataDir)
	v.Set("identity.principal", c.Identity.Principal)
	v.Set("local.admins", c.Local.Admins)
	v.Set("upload.chunk_size", c.Upload.ChunkSize)
	v.Set("upload.max_video_size", c.Upload.MaxVideoSize)
	v.Set("upload.max_image_size", c.Upload.MaxImageSize)
	v.Set("cache.fetch_timeout", c.Cache.FetchTimeout.String())
	v.Set("logging.file", c.Logging.File)
	v.Set("logging.level", c.Logging.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// HasIdentity reports whether a principal is configured
func (c *Config) HasIdentity() bool {
	return strings.TrimSpace(c.Identity.Principal) != ""
}
