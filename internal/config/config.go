package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// Engine defaults
	DefaultBaseScale       = 1.5
	DefaultZoomPercent     = 100.0
	DefaultCheckboxMaxSize = 30.0
	DefaultFuzzyThreshold  = 0.7

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the field synchronization server.
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// WorkDirectory is where documents and descriptor files are read from
	// and exports are written to.
	WorkDirectory string

	// Engine configuration
	BaseScale       float64
	ZoomPercent     float64
	CheckboxMaxSize float64
	FuzzyThreshold  float64

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum document file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio, // stdio is what MCP clients expect
		Host:            DefaultHost,
		Port:            DefaultPort,
		WorkDirectory:   currentDir,
		BaseScale:       DefaultBaseScale,
		ZoomPercent:     DefaultZoomPercent,
		CheckboxMaxSize: DefaultCheckboxMaxSize,
		FuzzyThreshold:  DefaultFuzzyThreshold,
		Version:         "1.0.0",
		ServerName:      "pdf-fieldsync",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.WorkDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.WorkDirectory); err == nil {
			cfg.WorkDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FIELDSYNC")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.WorkDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("basescale", cfg.BaseScale)
	viper.SetDefault("zoom", cfg.ZoomPercent)
	viper.SetDefault("checkboxmaxsize", cfg.CheckboxMaxSize)
	viper.SetDefault("fuzzythreshold", cfg.FuzzyThreshold)
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.WorkDirectory, "Working directory for documents and descriptor files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum document file size in bytes")
	pflag.Float64("basescale", cfg.BaseScale, "Base display scale applied before zoom")
	pflag.Float64("zoom", cfg.ZoomPercent, "Initial zoom percentage")
	pflag.Float64("checkboxmaxsize", cfg.CheckboxMaxSize, "Classification threshold: max display size of an undeclared checkbox")
	pflag.Float64("fuzzythreshold", cfg.FuzzyThreshold, "Minimum similarity score for fuzzy descriptor matching")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("dir", pflag.Lookup("dir"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxfilesize", pflag.Lookup("maxfilesize"))
	_ = viper.BindPFlag("basescale", pflag.Lookup("basescale"))
	_ = viper.BindPFlag("zoom", pflag.Lookup("zoom"))
	_ = viper.BindPFlag("checkboxmaxsize", pflag.Lookup("checkboxmaxsize"))
	_ = viper.BindPFlag("fuzzythreshold", pflag.Lookup("fuzzythreshold"))
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF FieldSync - A Model Context Protocol server for synchronizing editable PDF fields\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                    "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/forms      # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_MODE            Server mode\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_HOST            Server host\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_PORT            Server port\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_DIR             Working directory\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_LOGLEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_MAXFILESIZE     Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_BASESCALE       Base display scale\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_ZOOM            Initial zoom percentage\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_CHECKBOXMAXSIZE Checkbox classification threshold\n")
		fmt.Fprintf(os.Stderr, "  FIELDSYNC_FUZZYTHRESHOLD  Fuzzy match threshold\n")
	}
}

// checkVersionFlag checks if version flag was requested.
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.WorkDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.BaseScale = viper.GetFloat64("basescale")
	cfg.ZoomPercent = viper.GetFloat64("zoom")
	cfg.CheckboxMaxSize = viper.GetFloat64("checkboxmaxsize")
	cfg.FuzzyThreshold = viper.GetFloat64("fuzzythreshold")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.WorkDirectory == "" {
		return errors.New("working directory cannot be empty")
	}

	// Create the working directory on first run.
	if _, err := os.Stat(c.WorkDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.WorkDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create working directory %s: %w", c.WorkDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access working directory %s: %w", c.WorkDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.BaseScale <= 0 {
		return errors.New("base scale must be positive")
	}

	if c.ZoomPercent <= 0 {
		return errors.New("zoom percentage must be positive")
	}

	if c.CheckboxMaxSize <= 0 {
		return errors.New("checkbox size threshold must be positive")
	}

	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return errors.New("fuzzy threshold must be between 0 and 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, WorkDirectory: %s, LogLevel: %s, MaxFileSize: %d, BaseScale: %.2f, Zoom: %.0f%%}",
		c.Mode, c.Host, c.Port, c.WorkDirectory, c.LogLevel, c.MaxFileSize, c.BaseScale, c.ZoomPercent)
}

// IsServerMode returns true if the server is running in HTTP server mode.
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode.
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
