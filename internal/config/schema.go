package config

// Config holds rentshelf configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Defra   DefraConfig   `mapstructure:"defra" yaml:"defra"`
	Reader  ReaderConfig  `mapstructure:"reader" yaml:"reader"`
	Rentals RentalsConfig `mapstructure:"rentals" yaml:"rentals"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	// URL is where CLI clients reach the server.
	URL string `mapstructure:"url" yaml:"url"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name (default: rentshelf-defra)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
	// URL points at an externally managed DefraDB. When set, no container is
	// started. Supports ${ENV_VAR} syntax.
	URL string `mapstructure:"url" yaml:"url"`
}

// ReaderConfig tunes reading sessions. Changes apply to sessions opened
// after the reload.
type ReaderConfig struct {
	CanvasRadius     int     `mapstructure:"canvas_radius" yaml:"canvas_radius"`
	TextRadius       int     `mapstructure:"text_radius" yaml:"text_radius"`
	ZoomDebounceMS   int     `mapstructure:"zoom_debounce_ms" yaml:"zoom_debounce_ms"`
	FastScrollIdleMS int     `mapstructure:"fast_scroll_idle_ms" yaml:"fast_scroll_idle_ms"`
	RestoreDelayMS   int     `mapstructure:"restore_delay_ms" yaml:"restore_delay_ms"`
	BaseScale        float64 `mapstructure:"base_scale" yaml:"base_scale"`
	MaxPixelRatio    float64 `mapstructure:"max_pixel_ratio" yaml:"max_pixel_ratio"`
	MinVisibleRatio  float64 `mapstructure:"min_visible_ratio" yaml:"min_visible_ratio"`

	EnableBookmarks    bool `mapstructure:"enable_bookmarks" yaml:"enable_bookmarks"`
	EnableQuotes       bool `mapstructure:"enable_quotes" yaml:"enable_quotes"`
	EnableLastPosition bool `mapstructure:"enable_last_position" yaml:"enable_last_position"`
}

// RentalsConfig holds rental defaults.
type RentalsConfig struct {
	// DefaultDays is the rental length when a request does not name one.
	DefaultDays int `mapstructure:"default_days" yaml:"default_days"`
	// User is the identity CLI commands send (X-Rentshelf-User).
	User string `mapstructure:"user" yaml:"user"`
}

// StorageConfig limits stored documents.
type StorageConfig struct {
	MaxUploadMB int `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
			URL:  "http://localhost:8080",
		},
		Defra: DefraConfig{
			ContainerName: "rentshelf-defra",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
		Reader: ReaderConfig{
			CanvasRadius:       3,
			TextRadius:         1,
			ZoomDebounceMS:     140,
			FastScrollIdleMS:   200,
			RestoreDelayMS:     120,
			BaseScale:          1.25,
			MaxPixelRatio:      2,
			MinVisibleRatio:    0.1,
			EnableBookmarks:    true,
			EnableQuotes:       true,
			EnableLastPosition: true,
		},
		Rentals: RentalsConfig{
			DefaultDays: 14,
			User:        "reader",
		},
		Storage: StorageConfig{
			MaxUploadMB: 200,
		},
	}
}
