package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-compress-go/internal/client"
	"image-compress-go/internal/compressor"
	"image-compress-go/internal/config"
	"image-compress-go/internal/extractor"
	"image-compress-go/internal/logger"
	"image-compress-go/internal/processor"
	"image-compress-go/internal/statistics"
	"image-compress-go/internal/storage"
	"image-compress-go/internal/web"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool

	port int

	serverURL   string
	maxWidth    int
	maxHeight   int
	quality     int
	format      string
	downloadDir string

	remote bool
	maxAge time.Duration
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "imgcompress",
	Short: "Compress and resize images through a small HTTP service",
	Long: `imgcompress resizes images to fit a bounding box and re-encodes them,
either on the server it runs itself or by submitting files to a running server.

Features:
- Single and batch uploads over multipart HTTP
- JPEG, PNG, GIF, BMP, TIFF and WebP output
- Local directory or MinIO storage with scheduled cleanup
- Live batch progress over a websocket`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serveCmd starts the compression server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compression server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// compressCmd submits images to a running server.
var compressCmd = &cobra.Command{
	Use:   "compress <paths...>",
	Short: "Submit images or directories to the compression server",
	Long: `Submits the selected images to the server. One file is sent to the
single-file endpoint, several files are sent together to the batch endpoint.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args)
	},
}

// previewCmd shows the selection without submitting it.
var previewCmd = &cobra.Command{
	Use:   "preview <paths...>",
	Short: "Show the preview of a selection without submitting it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(args)
	},
}

// inspectCmd prints the metadata of one image.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show dimensions, format and EXIF data of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// cleanupCmd removes stale uploads and outputs.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale uploaded and compressed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanup(cmd)
	},
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	serveCmd.Flags().IntVar(&port, "port", 5000, "port to run the server on")

	compressCmd.Flags().StringVar(&serverURL, "server", "", "server URL (default from config)")
	compressCmd.Flags().IntVar(&maxWidth, "max-width", 0, "maximum output width (default from config)")
	compressCmd.Flags().IntVar(&maxHeight, "max-height", 0, "maximum output height (default from config)")
	compressCmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality 0-100 (default from config)")
	compressCmd.Flags().StringVar(&format, "format", "original", "output format: original, jpeg, png, gif, bmp, tiff")
	compressCmd.Flags().StringVar(&downloadDir, "download-dir", "", "download compressed files into this directory")

	cleanupCmd.Flags().BoolVar(&remote, "remote", false, "ask the configured server to clean up instead of local storage")
	cleanupCmd.Flags().DurationVar(&maxAge, "max-age", 0, "remove files older than this (default from config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// initEnv loads a .env file so its variables reach the config layer.
func initEnv() {
	if err := godotenv.Load(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}
}

// runServe starts the server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}

	log := setupLogger(cfg)
	ctx := context.Background()

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var tagger compressor.Tagger
	if cfg.Metadata.TagOutput {
		et, err := compressor.NewExiftoolTagger(cfg.Metadata.Software)
		if err != nil {
			log.Warnf("EXIF stamping disabled: %v", err)
		} else {
			defer et.Close()
			tagger = et
		}
	}

	stats := statistics.NewStatistics()
	proc := processor.NewFileProcessor(cfg, log, stats, store, compressor.NewDefaultCompressor(log, tagger))
	server := web.NewServer(cfg, log, stats, proc, store)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	if !quiet {
		fmt.Printf("Compression server listening on %s (storage: %s)\n", cfg.ListenAddr(), cfg.Storage.Backend)
		fmt.Printf("Press Ctrl+C to stop the server\n\n")
	}

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigChan:
	}

	if !quiet {
		fmt.Println("\nShutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if !quiet {
		fmt.Println(stats.GetSummary())
		fmt.Println(stats.GetFormatBreakdown())
		fmt.Println(stats.GetErrorSummary())
	}
	return nil
}

// runCompress selects, previews and submits the given paths.
func runCompress(cmd *cobra.Command, paths []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}
	ctrl, err := newController(cfg, log)
	if err != nil {
		return err
	}

	if _, err := ctrl.Intake(paths); err != nil {
		return fmt.Errorf("failed to select files: %w", err)
	}

	opts := client.OptionsFromConfig(cfg.Compression)
	if cmd.Flags().Changed("max-width") {
		opts.MaxWidth = maxWidth
	}
	if cmd.Flags().Changed("max-height") {
		opts.MaxHeight = maxHeight
	}
	if cmd.Flags().Changed("quality") {
		opts.Quality = quality
	}
	opts.Format = format

	outcome, err := ctrl.Submit(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if outcome.Failed() {
		return errors.New(outcome.Error)
	}

	if downloadDir != "" {
		for _, link := range outcome.Links() {
			path, err := ctrl.Download(cmd.Context(), link, downloadDir)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			if !quiet {
				fmt.Printf("Saved %s\n", path)
			}
		}
	}
	return nil
}

// runPreview renders the preview of a selection.
func runPreview(paths []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	ctrl, err := newController(cfg, log)
	if err != nil {
		return err
	}
	if _, err := ctrl.Intake(paths); err != nil {
		return fmt.Errorf("failed to select files: %w", err)
	}
	return nil
}

// runInspect prints what the extractor finds in a file.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	fmt.Printf("Inspecting: %s\n", filePath)

	infoExtractor := extractor.NewEXIFExtractor(log)
	info, err := infoExtractor.Extract(filePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	fmt.Printf("Format:      %s\n", info.Format)
	fmt.Printf("Dimensions:  %s\n", info.Dimensions())
	if info.Orientation > 0 {
		fmt.Printf("Orientation: %d\n", info.Orientation)
	}
	if info.Camera != "" {
		fmt.Printf("Camera:      %s\n", info.Camera)
	}
	if info.TakenAt != nil {
		fmt.Printf("Taken at:    %s\n", info.TakenAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Taken at:    no date found in EXIF data")
	}

	tagger, err := compressor.NewExiftoolTagger(cfg.Metadata.Software)
	if err != nil {
		fmt.Printf("Stamped:     unknown (%v)\n", err)
		return nil
	}
	defer tagger.Close()

	stamped, err := tagger.IsStamped(filePath)
	if err != nil {
		fmt.Printf("Stamped:     unknown (%v)\n", err)
		return nil
	}
	fmt.Printf("Stamped:     %t\n", stamped)
	return nil
}

// runCleanup removes stale files locally or through the server.
func runCleanup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	if remote {
		api, err := client.NewAPI(cfg.Client.ServerURL, nil)
		if err != nil {
			return err
		}
		resp, err := api.Cleanup(cmd.Context())
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("cleanup failed: %s", resp.Error)
		}
		if !quiet {
			fmt.Println(resp.Message)
		}
		return nil
	}

	age := cfg.Cleanup.MaxAge
	if cmd.Flags().Changed("max-age") {
		age = maxAge
	}

	store, err := storage.New(cmd.Context(), cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	removed, err := storage.CleanupAll(cmd.Context(), store, age)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	if !quiet {
		fmt.Printf("removed %d files\n", removed)
	}
	return nil
}

// newController wires the upload controller to stdout.
func newController(cfg *config.Config, log *logrus.Logger) (*client.Controller, error) {
	api, err := client.NewAPI(cfg.Client.ServerURL, nil)
	if err != nil {
		return nil, err
	}
	log.WithField("server", api.BaseURL()).Debug("Using compression server")
	renderer := client.NewRenderer(os.Stdout, api.Resolve, noColor || cfg.Client.NoColor)
	return client.NewController(api, extractor.NewEXIFExtractor(log), renderer, log, cfg.Client.MaxPreviews), nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.DefaultConfig()
	loggerCfg.Level = cfg.Logging.Level
	loggerCfg.FilePath = cfg.Logging.FilePath
	if cfg.Logging.MaxSize > 0 {
		loggerCfg.MaxSize = cfg.Logging.MaxSize
	}
	if cfg.Logging.MaxBackups > 0 {
		loggerCfg.MaxBackups = cfg.Logging.MaxBackups
	}
	if cfg.Logging.MaxAge > 0 {
		loggerCfg.MaxAge = cfg.Logging.MaxAge
	}
	loggerCfg.Compress = cfg.Logging.Compress
	loggerCfg.Console = !quiet

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
