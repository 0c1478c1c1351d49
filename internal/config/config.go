package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LogLevel defines the minimum severity for logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration structure for the tool.
type Config struct {
	Server  *ServerConfig  `json:"server,omitempty" toml:"server,omitempty"`
	Decoder *DecoderConfig `json:"decoder,omitempty" toml:"decoder,omitempty"`
	Logging *LoggingConfig `json:"logging,omitempty" toml:"logging,omitempty"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	ListenAddress  string `json:"listen_address,omitempty" toml:"listen_address,omitempty"`
	MaxConnections *int   `json:"max_connections,omitempty" toml:"max_connections,omitempty"`
}

// DecoderConfig holds the per-session decoder knobs. All three are
// fixed at decoder construction and immutable afterwards.
type DecoderConfig struct {
	// Version is the single SPDY version accepted: 2 or 3.
	Version *uint16 `json:"version,omitempty" toml:"version,omitempty"`
	// MaxChunkSize bounds the payload of any emitted data chunk.
	MaxChunkSize *int `json:"max_chunk_size,omitempty" toml:"max_chunk_size,omitempty"`
	// MaxHeaderSize bounds the decompressed size of one header block.
	MaxHeaderSize *int `json:"max_header_size,omitempty" toml:"max_header_size,omitempty"`
}

// LoggingConfig holds the logging configuration.
type LoggingConfig struct {
	LogLevel LogLevel `json:"log_level,omitempty" toml:"log_level,omitempty"`
	// Target is "stdout", "stderr", or an absolute file path.
	Target string `json:"target,omitempty" toml:"target,omitempty"`
}

// Defaults mirror the original SPDY codec's construction defaults.
const (
	DefaultVersion       uint16 = 3
	DefaultMaxChunkSize         = 8192
	DefaultMaxHeaderSize        = 16384

	DefaultListenAddress  = "127.0.0.1:6121"
	DefaultMaxConnections = 64
)

// Default returns a fully-populated configuration with every field at
// its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, decodes, defaults and validates the configuration file at
// path. The format is chosen by extension: .toml is TOML, .json is
// JSON; anything else is tried as TOML first, then JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", path, err)
		}
	default:
		if tomlErr := toml.Unmarshal(data, cfg); tomlErr != nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, fmt.Errorf("parsing config %s: not valid TOML (%v) nor JSON (%v)", path, tomlErr, jsonErr)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Server.MaxConnections == nil {
		n := DefaultMaxConnections
		c.Server.MaxConnections = &n
	}

	if c.Decoder == nil {
		c.Decoder = &DecoderConfig{}
	}
	if c.Decoder.Version == nil {
		v := DefaultVersion
		c.Decoder.Version = &v
	}
	if c.Decoder.MaxChunkSize == nil {
		n := DefaultMaxChunkSize
		c.Decoder.MaxChunkSize = &n
	}
	if c.Decoder.MaxHeaderSize == nil {
		n := DefaultMaxHeaderSize
		c.Decoder.MaxHeaderSize = &n
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = LogLevelInfo
	}
	if c.Logging.Target == "" {
		c.Logging.Target = "stderr"
	}
}

// Validate checks a defaulted configuration for values the decoder or
// listener would reject later.
func (c *Config) Validate() error {
	if v := *c.Decoder.Version; v != 2 && v != 3 {
		return fmt.Errorf("decoder.version must be 2 or 3, got %d", v)
	}
	if n := *c.Decoder.MaxChunkSize; n <= 0 {
		return fmt.Errorf("decoder.max_chunk_size must be positive, got %d", n)
	}
	if n := *c.Decoder.MaxHeaderSize; n <= 0 {
		return fmt.Errorf("decoder.max_header_size must be positive, got %d", n)
	}
	if n := *c.Server.MaxConnections; n <= 0 {
		return fmt.Errorf("server.max_connections must be positive, got %d", n)
	}
	switch c.Logging.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("logging.log_level must be one of DEBUG, INFO, WARNING, ERROR, got %q", c.Logging.LogLevel)
	}
	if t := c.Logging.Target; t != "stdout" && t != "stderr" && !filepath.IsAbs(t) {
		return fmt.Errorf("logging.target must be stdout, stderr, or an absolute path, got %q", t)
	}
	return nil
}
