package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/rentshelf/internal/reader"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	// Environment variables with RENTSHELF_ prefix: RENTSHELF_SERVER_PORT etc.
	v.SetEnvPrefix("RENTSHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rentshelf")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf key so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.url", d.Server.URL)

	v.SetDefault("defra.container_name", d.Defra.ContainerName)
	v.SetDefault("defra.image", d.Defra.Image)
	v.SetDefault("defra.port", d.Defra.Port)
	v.SetDefault("defra.url", d.Defra.URL)

	v.SetDefault("reader.canvas_radius", d.Reader.CanvasRadius)
	v.SetDefault("reader.text_radius", d.Reader.TextRadius)
	v.SetDefault("reader.zoom_debounce_ms", d.Reader.ZoomDebounceMS)
	v.SetDefault("reader.fast_scroll_idle_ms", d.Reader.FastScrollIdleMS)
	v.SetDefault("reader.restore_delay_ms", d.Reader.RestoreDelayMS)
	v.SetDefault("reader.base_scale", d.Reader.BaseScale)
	v.SetDefault("reader.max_pixel_ratio", d.Reader.MaxPixelRatio)
	v.SetDefault("reader.min_visible_ratio", d.Reader.MinVisibleRatio)
	v.SetDefault("reader.enable_bookmarks", d.Reader.EnableBookmarks)
	v.SetDefault("reader.enable_quotes", d.Reader.EnableQuotes)
	v.SetDefault("reader.enable_last_position", d.Reader.EnableLastPosition)

	v.SetDefault("rentals.default_days", d.Rentals.DefaultDays)
	v.SetDefault("rentals.user", d.Rentals.User)

	v.SetDefault("storage.max_upload_mb", d.Storage.MaxUploadMB)
}

// load parses the current viper state into a Config struct. Sections a
// config file only partly sets keep their defaults for the rest.
func (cm *Manager) load() (*Config, error) {
	cfg := DefaultConfig()
	if err := cm.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := cfg.ReaderSettings(); err != nil {
		return nil, fmt.Errorf("invalid reader config: %w", err)
	}
	return cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A file that fails to
// parse or validate leaves the previous config in place.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// DefraURL returns the external DefraDB URL with env references resolved,
// or "" when rentshelf should manage its own container.
func (c *Config) DefraURL() string {
	return ResolveEnvVars(c.Defra.URL)
}

// ReaderSettings converts the reader section into a validated session config.
func (c *Config) ReaderSettings() (reader.Config, error) {
	r := c.Reader
	cfg := reader.DefaultConfig()
	cfg.CanvasRadius = r.CanvasRadius
	cfg.TextRadius = r.TextRadius
	cfg.ZoomDebounce = time.Duration(r.ZoomDebounceMS) * time.Millisecond
	cfg.FastScrollIdle = time.Duration(r.FastScrollIdleMS) * time.Millisecond
	cfg.RestoreDelay = time.Duration(r.RestoreDelayMS) * time.Millisecond
	cfg.BaseScale = r.BaseScale
	cfg.MaxPixelRatio = r.MaxPixelRatio
	cfg.MinVisibleRatio = r.MinVisibleRatio
	if err := cfg.Validate(); err != nil {
		return reader.Config{}, err
	}
	return cfg, nil
}

// OpenOptions returns the feature flags for a new session. readOnly comes
// from the rental state, not from configuration.
func (c *Config) OpenOptions(readOnly bool) reader.OpenOptions {
	return reader.OpenOptions{
		ReadOnly:           readOnly,
		EnableBookmarks:    c.Reader.EnableBookmarks,
		EnableQuotes:       c.Reader.EnableQuotes,
		EnableLastPosition: c.Reader.EnableLastPosition,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# rentshelf configuration
# defra.url may use ${ENV_VAR} syntax to point at an existing DefraDB.
# reader.* settings apply to documents opened after the file changes.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
