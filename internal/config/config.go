// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds mirror-remote configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"mirror-remote"`

	// HTTP API
	HTTPAddr string `envconfig:"REMOTE_HTTP_ADDR"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8090"`

	// Auth
	APIKey string `envconfig:"REMOTE_API_KEY"`
	// SecureEndpoints keeps sensitive routes closed when no API key is set.
	SecureEndpoints bool `envconfig:"REMOTE_SECURE_ENDPOINTS" default:"true"`

	// Paths
	MirrorDir  string `envconfig:"MIRROR_DIR" default:"/opt/magicmirror"`
	ModulesDir string `envconfig:"MODULES_DIR"`
	OwnDir     string `envconfig:"REMOTE_OWN_DIR"`
	DataDir    string `envconfig:"REMOTE_DATA_DIR" default:"/var/lib/mirror-remote"`

	// Shell command overrides (empty = Raspberry Pi defaults)
	MonitorOnCommand     string `envconfig:"MONITOR_ON_COMMAND"`
	MonitorOffCommand    string `envconfig:"MONITOR_OFF_COMMAND"`
	MonitorStatusCommand string `envconfig:"MONITOR_STATUS_COMMAND"`
	ShutdownCommand      string `envconfig:"SHUTDOWN_COMMAND"`
	RebootCommand        string `envconfig:"REBOOT_COMMAND"`

	// CommandAliases names operator-defined shell snippets for the COMMAND
	// action, as name:script pairs separated by commas.
	CommandAliases map[string]string `envconfig:"REMOTE_COMMANDS"`

	// Update checking
	UpdateCheckSchedule string `envconfig:"UPDATE_CHECK_SCHEDULE" default:"0 */6 * * *"`

	// Timeouts
	InstallTimeout  time.Duration `envconfig:"INSTALL_TIMEOUT" default:"2m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if c.ModulesDir == "" {
		c.ModulesDir = c.MirrorDir + "/modules"
	}
	if c.OwnDir == "" {
		c.OwnDir = c.ModulesDir + "/MMM-Remote-Control"
	}
	return &c, nil
}

// ListenAddr resolves the HTTP listen address, preferring the explicit addr.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ValidateForServe checks required config when running the server.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%s - REMOTE_DATA_DIR is required for serve", logPrefix)
	}
	if c.InstallTimeout <= 0 {
		return fmt.Errorf("%s - INSTALL_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	return nil
}
