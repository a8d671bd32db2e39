package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"image-compress-go/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.DefaultConfig()
	gt.NoError(t, cfg.Validate())

	gt.Equal(t, cfg.Compression.MaxWidth, 1280)
	gt.Equal(t, cfg.Compression.MaxHeight, 1280)
	gt.Equal(t, cfg.Compression.Quality, 85)
	gt.Equal(t, cfg.Server.MaxUploadSize, int64(16<<20))
	gt.Equal(t, cfg.Cleanup.MaxAge, 5*time.Minute)
	gt.Equal(t, cfg.Client.MaxPreviews, 6)
	gt.Equal(t, cfg.ListenAddr(), "0.0.0.0:5000")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{
			name:   "quality at upper bound",
			mutate: func(c *config.Config) { c.Compression.Quality = 100 },
		},
		{
			name:    "quality above range",
			mutate:  func(c *config.Config) { c.Compression.Quality = 101 },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Storage.Backend = "s3" },
			wantErr: true,
		},
		{
			name: "minio without bucket",
			mutate: func(c *config.Config) {
				c.Storage.Backend = "minio"
				c.Storage.MinIO.Bucket = ""
			},
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name: "zero values get defaults",
			mutate: func(c *config.Config) {
				c.Compression.Workers = 0
				c.Cleanup.Interval = 0
				c.Client.MaxPreviews = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Number(t, cfg.Compression.Workers).Greater(0)
			gt.Number(t, cfg.Client.MaxPreviews).Greater(0)
		})
	}
}

func TestValidateNormalizesValues(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Compression.AllowedExtensions = []string{"PNG", ".Jpg"}
	cfg.Storage.Backend = "minio"
	cfg.Storage.MinIO.Endpoint = "https://play.min.io"
	cfg.Client.ServerURL = "http://localhost:5000/"

	gt.NoError(t, cfg.Validate())
	gt.Equal(t, cfg.Compression.AllowedExtensions[0], ".png")
	gt.Equal(t, cfg.Compression.AllowedExtensions[1], ".jpg")
	gt.Equal(t, cfg.Storage.MinIO.Endpoint, "play.min.io")
	gt.Equal(t, cfg.Client.ServerURL, "http://localhost:5000")
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8099
compression:
  quality: 70
cleanup:
  max_age: 10m
logging:
  level: debug
`
	gt.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := config.LoadConfig(path)
	gt.NoError(t, err)
	gt.Equal(t, cfg.Server.Port, 8099)
	gt.Equal(t, cfg.Compression.Quality, 70)
	gt.Equal(t, cfg.Compression.MaxWidth, 1280)
	gt.Equal(t, cfg.Cleanup.MaxAge, 10*time.Minute)
	gt.Equal(t, cfg.Logging.Level, "debug")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8099\n"), 0644))
	t.Setenv("IMGCOMPRESS_SERVER_PORT", "7000")

	cfg, err := config.LoadConfig(path)
	gt.NoError(t, err)
	gt.Equal(t, cfg.Server.Port, 7000)
}
