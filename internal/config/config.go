package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FormatOption represents an output format selectable by clients
type FormatOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Config represents the main configuration structure
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Compression CompressionConfig `mapstructure:"compression"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
	Metadata    MetadataConfig    `mapstructure:"metadata"`
	Client      ClientConfig      `mapstructure:"client"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"` // bytes
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
}

// CompressionConfig contains defaults applied when a request omits an option
type CompressionConfig struct {
	MaxWidth          int      `mapstructure:"max_width"`
	MaxHeight         int      `mapstructure:"max_height"`
	Quality           int      `mapstructure:"quality"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	Workers           int      `mapstructure:"workers"`
}

// StorageConfig selects where uploads and compressed outputs are kept
type StorageConfig struct {
	Backend       string      `mapstructure:"backend"` // local, minio
	UploadDir     string      `mapstructure:"upload_dir"`
	CompressedDir string      `mapstructure:"compressed_dir"`
	MinIO         MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig contains object storage settings
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CleanupConfig contains stale file removal settings
type CleanupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// MetadataConfig contains EXIF stamping settings
type MetadataConfig struct {
	TagOutput bool   `mapstructure:"tag_output"`
	Software  string `mapstructure:"software"`
}

// ClientConfig contains settings of the compress command
type ClientConfig struct {
	ServerURL   string `mapstructure:"server_url"`
	MaxPreviews int    `mapstructure:"max_previews"`
	NoColor     bool   `mapstructure:"no_color"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// GetAvailableFormats returns all output format options
func GetAvailableFormats() []FormatOption {
	return []FormatOption{
		{ID: "original", Name: "Original", Description: "Keep the format of the uploaded file"},
		{ID: "jpeg", Name: "JPEG", Description: "Lossy, honours the quality setting"},
		{ID: "png", Name: "PNG", Description: "Lossless, best compression level"},
		{ID: "gif", Name: "GIF", Description: "Palette based, 256 colours"},
		{ID: "bmp", Name: "BMP", Description: "Uncompressed bitmap"},
		{ID: "tiff", Name: "TIFF", Description: "Tagged image file"},
		{ID: "webp", Name: "WebP", Description: "Lossy, honours the quality setting"},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          5000,
			MaxUploadSize: 16 << 20,
			ReadTimeout:   60 * time.Second,
			WriteTimeout:  120 * time.Second,
			IdleTimeout:   120 * time.Second,
		},
		Compression: CompressionConfig{
			MaxWidth:  1280,
			MaxHeight: 1280,
			Quality:   85,
			AllowedExtensions: []string{
				".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp",
			},
			Workers: 4,
		},
		Storage: StorageConfig{
			Backend:       "local",
			UploadDir:     "uploads",
			CompressedDir: "compressed",
			MinIO: MinIOConfig{
				Endpoint: "localhost:9000",
				Bucket:   "imgcompress",
			},
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Interval: time.Hour,
			MaxAge:   5 * time.Minute,
		},
		Metadata: MetadataConfig{
			TagOutput: false,
			Software:  "imgcompress",
		},
		Client: ClientConfig{
			ServerURL:   "http://localhost:5000",
			MaxPreviews: 6,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "imgcompress.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.imgcompress")
		v.AddConfigPath("/etc/imgcompress")
	}

	v.SetEnvPrefix("IMGCOMPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers the keys that are most often overridden from the
// environment, since AutomaticEnv only applies to keys viper already knows.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.port",
		"storage.backend",
		"storage.minio.endpoint",
		"storage.minio.access_key",
		"storage.minio.secret_key",
		"storage.minio.bucket",
		"storage.minio.use_ssl",
		"client.server_url",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 16 << 20
	}

	if c.Compression.MaxWidth <= 0 {
		c.Compression.MaxWidth = 1280
	}
	if c.Compression.MaxHeight <= 0 {
		c.Compression.MaxHeight = 1280
	}
	if c.Compression.Quality < 0 || c.Compression.Quality > 100 {
		return fmt.Errorf("invalid quality: %d (valid: 0-100)", c.Compression.Quality)
	}
	if c.Compression.Workers <= 0 {
		c.Compression.Workers = 4
	}
	c.Compression.AllowedExtensions = normalizeExtensions(c.Compression.AllowedExtensions)

	validBackends := map[string]bool{
		"local": true,
		"minio": true,
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s (valid: local, minio)", c.Storage.Backend)
	}
	if c.Storage.Backend == "local" && (c.Storage.UploadDir == "" || c.Storage.CompressedDir == "") {
		return fmt.Errorf("upload_dir and compressed_dir are required for local storage")
	}
	if c.Storage.Backend == "minio" {
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("minio endpoint and bucket are required")
		}
		c.Storage.MinIO.Endpoint = strings.TrimPrefix(strings.TrimPrefix(c.Storage.MinIO.Endpoint, "https://"), "http://")
	}

	if c.Cleanup.Interval <= 0 {
		c.Cleanup.Interval = time.Hour
	}
	if c.Cleanup.MaxAge <= 0 {
		c.Cleanup.MaxAge = 5 * time.Minute
	}

	if c.Client.MaxPreviews <= 0 {
		c.Client.MaxPreviews = 6
	}
	c.Client.ServerURL = strings.TrimRight(c.Client.ServerURL, "/")

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// ListenAddr returns the host:port the server binds to
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper functions

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
