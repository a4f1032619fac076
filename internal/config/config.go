// Package config provides configuration management for the auto-editor agent.
// Values come from defaults, then an optional TOML file, then environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort       = 8788
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".autoeditor-agent"
	DefaultBinary     = "auto-editor"
	DefaultRunTimeout = 2 * time.Hour

	// Environment variable names
	EnvConfigPath = "AUTOEDITOR_CONFIG"
	EnvPort       = "AUTOEDITOR_PORT"
	EnvLogLevel   = "AUTOEDITOR_LOG_LEVEL"
	EnvDataDir    = "AUTOEDITOR_DATA_DIR"
	EnvMediaDir   = "AUTOEDITOR_MEDIA_DIR"
	EnvHeadless   = "AUTOEDITOR_HEADLESS"
	EnvBinary     = "AUTOEDITOR_BINARY"
	EnvRunTimeout = "AUTOEDITOR_RUN_TIMEOUT"
	EnvDebugPaths = "AUTOEDITOR_DEBUG_PATHS"

	// Files under the data directory
	DBFilename     = "autoeditor.db"
	LockFilename   = "agent.lock"
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LockPath() string
	TempDir() string
	MediaDir() string
	ImportDir() string
	Headless() bool
	Binary() string
	RunTimeout() time.Duration
	DebugPaths() bool
}

// fileConfig is the TOML layout. Zero values leave the default in place.
type fileConfig struct {
	Port       int    `toml:"port"`
	LogLevel   string `toml:"log_level"`
	DataDir    string `toml:"data_dir"`
	MediaDir   string `toml:"media_dir"`
	ImportDir  string `toml:"import_dir"`
	Headless   *bool  `toml:"headless"`
	Binary     string `toml:"binary"`
	RunTimeout string `toml:"run_timeout"`
	DebugPaths *bool  `toml:"debug_paths"`
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	mediaDir   string
	importDir  string
	headless   bool
	binary     string
	runTimeout time.Duration
	debugPaths bool

	path   string
	loaded bool
}

// New resolves the configuration from defaults, the config file and the
// environment.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:       DefaultPort,
		logLevel:   DefaultLogLevel,
		dataDir:    defaultDataDir(),
		binary:     DefaultBinary,
		runTimeout: DefaultRunTimeout,
	}

	// The data dir may move the default config file, so read it first.
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	c.path = path
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.loaded = true

	if fc.Port != 0 {
		if err := validPort(fc.Port); err != nil {
			return fmt.Errorf("invalid port in %s: %w", path, err)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" && os.Getenv(EnvDataDir) == "" {
		c.dataDir = expandHome(fc.DataDir)
	}
	if fc.MediaDir != "" {
		c.mediaDir = expandHome(fc.MediaDir)
	}
	if fc.ImportDir != "" {
		c.importDir = expandHome(fc.ImportDir)
	}
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}
	if fc.Binary != "" {
		c.binary = fc.Binary
	}
	if fc.RunTimeout != "" {
		d, err := time.ParseDuration(fc.RunTimeout)
		if err != nil {
			return fmt.Errorf("invalid run_timeout in %s: %w", path, err)
		}
		c.runTimeout = d
	}
	if fc.DebugPaths != nil {
		c.debugPaths = *fc.DebugPaths
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if err := validPort(port); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if md := os.Getenv(EnvMediaDir); md != "" {
		c.mediaDir = md
	}
	if b := os.Getenv(EnvBinary); b != "" {
		c.binary = b
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		v, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = v
	}
	if d := os.Getenv(EnvDebugPaths); d != "" {
		v, err := strconv.ParseBool(d)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebugPaths, err)
		}
		c.debugPaths = v
	}

	if t := os.Getenv(EnvRunTimeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRunTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", EnvRunTimeout)
		}
		c.runTimeout = d
	}
	return nil
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LockPath is the single-instance lock file.
func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

// TempDir holds output files before they are imported.
func (c *EnvConfig) TempDir() string {
	return filepath.Join(c.dataDir, "tmp")
}

// MediaDir is the folder served as the clip pool. Empty means no clip source.
func (c *EnvConfig) MediaDir() string {
	return c.mediaDir
}

func (c *EnvConfig) ImportDir() string {
	if c.importDir != "" {
		return c.importDir
	}
	return filepath.Join(c.dataDir, "imports")
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// Binary is the default auto-editor executable when the panel leaves it blank.
func (c *EnvConfig) Binary() string {
	return c.binary
}

func (c *EnvConfig) RunTimeout() time.Duration {
	return c.runTimeout
}

// DebugPaths disables home-directory masking in logs.
func (c *EnvConfig) DebugPaths() bool {
	return c.debugPaths
}

// FilePath is the config file consulted, and whether it existed.
func (c *EnvConfig) FilePath() (string, bool) {
	return c.path, c.loaded
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
