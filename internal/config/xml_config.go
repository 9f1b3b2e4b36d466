// Package config provides XML-based configuration for the join console.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultFileName is the config file looked up next to the binary.
const DefaultFileName = "JoinConsole.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"JoinConsole"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Join backend the console forwards to
	Backend BackendConfig `xml:"Backend"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int    `xml:"Port" validate:"min=1,max=65535"`
	BindAddress    string `xml:"BindAddress" validate:"required"`
	EnableCORS     bool   `xml:"EnableCORS"`
	AllowOrigins   string `xml:"AllowOrigins"`
	ReadTimeout    int    `xml:"ReadTimeoutSeconds" validate:"min=0"`
	WriteTimeout   int    `xml:"WriteTimeoutSeconds" validate:"min=0"`
	IdleTimeout    int    `xml:"IdleTimeoutSeconds" validate:"min=0"`
	RequestTimeout int    `xml:"RequestTimeoutSeconds" validate:"min=1"`
	BodyLimit      string `xml:"BodyLimit" validate:"required"`
}

// BackendConfig points at the external join backend
type BackendConfig struct {
	BaseURL        string `xml:"BaseURL" validate:"required,url"`
	TimeoutSeconds int    `xml:"TimeoutSeconds" validate:"min=1"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory      string `xml:"DataDirectory" validate:"required"`
	UploadsDirectory   string `xml:"UploadsDirectory" validate:"required"`
	DownloadsDirectory string `xml:"DownloadsDirectory" validate:"required"`
}

// ProcessingConfig contains session and job settings
type ProcessingConfig struct {
	MaxSessions            int `xml:"MaxSessions" validate:"min=1"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes" validate:"min=1"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes" validate:"min=1"`
	JobRetentionMinutes    int `xml:"JobRetentionMinutes" validate:"min=1"`
	ExportPauseMillis      int `xml:"ExportPauseMillis" validate:"min=0"`
	PreviewRows            int `xml:"PreviewRows" validate:"min=1,max=1000"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	RequireAdminUnlock bool `xml:"RequireAdminUnlock"`
	UnlockTaps         int  `xml:"UnlockTaps" validate:"min=1"`
	UnlockWindowMillis int  `xml:"UnlockWindowMillis" validate:"min=100"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel" validate:"oneof=debug info warn error"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB" validate:"min=1"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:           8090,
			BindAddress:    "127.0.0.1",
			EnableCORS:     true,
			AllowOrigins:   "*",
			ReadTimeout:    30,
			WriteTimeout:   330,
			IdleTimeout:    120,
			RequestTimeout: 320,
			BodyLimit:      "512M",
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 300,
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			UploadsDirectory:   "./data/uploads",
			DownloadsDirectory: "./data/downloads",
		},
		Processing: ProcessingConfig{
			MaxSessions:            50,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			JobRetentionMinutes:    60,
			ExportPauseMillis:      500,
			PreviewRows:            20,
		},
		Security: SecurityConfig{
			RequireAdminUnlock: true,
			UnlockTaps:         5,
			UnlockWindowMillis: 2000,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from an XML file, creating it with defaults
// on first run. A .env file next to it is loaded before environment overrides
// are applied.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	if err := LoadEnvFile(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	var config *AppConfig
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config = DefaultConfig()
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(configDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Join Console Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves the uploads and downloads along with it
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.DownloadsDirectory = filepath.Join(dataDir, "downloads")
	}

	if baseURL := os.Getenv("JOIN_API_URL"); baseURL != "" {
		c.Backend.BaseURL = baseURL
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = strings.ToLower(level)
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.DownloadsDirectory,
	} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// BackendTimeout returns the per-request timeout for the join backend.
func (c *AppConfig) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// SessionTimeout returns how long an idle wizard session lives.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the background cleanup loop.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// JobRetention returns how long finished conversion jobs are kept.
func (c *AppConfig) JobRetention() time.Duration {
	return time.Duration(c.Processing.JobRetentionMinutes) * time.Minute
}

// ExportPause returns the pause between batch downloads.
func (c *AppConfig) ExportPause() time.Duration {
	return time.Duration(c.Processing.ExportPauseMillis) * time.Millisecond
}

// UnlockWindow returns the maximum gap between unlock taps.
func (c *AppConfig) UnlockWindow() time.Duration {
	return time.Duration(c.Security.UnlockWindowMillis) * time.Millisecond
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.DownloadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
