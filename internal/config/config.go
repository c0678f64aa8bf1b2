// Package config loads flowlens's runtime configuration from a YAML file
// and environment variables via viper, and watches the file via fsnotify so
// a changed file is reloaded while running. flowlensd applies only the
// reloaded log level; every other field takes effect on restart.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the configuration surface described in spec.md §6.6.
type Config struct {
	Interface       string            `mapstructure:"interface" yaml:"interface"`
	BPF             string            `mapstructure:"bpf" yaml:"bpf"`
	PortMap         map[string]string `mapstructure:"port_map" yaml:"port_map"`
	IdleTimeoutS    int               `mapstructure:"idle_timeout_s" yaml:"idle_timeout_s"`
	EventChannelCap int               `mapstructure:"event_channel_cap" yaml:"event_channel_cap"`
	LogLevel        string            `mapstructure:"log_level" yaml:"log_level"`
	LogJSON         bool              `mapstructure:"log_json" yaml:"log_json"`
	MaxBufferedRows int               `mapstructure:"max_buffered_rows" yaml:"max_buffered_rows"`
	SinkHighWatermark int             `mapstructure:"sink_high_watermark" yaml:"sink_high_watermark"`
	AdminAddr       string            `mapstructure:"admin_addr" yaml:"admin_addr"`
}

// defaults mirror the tuning values named in spec.md §6.6 and §4.D.
func defaults(v *viper.Viper) {
	v.SetDefault("idle_timeout_s", 300)
	v.SetDefault("event_channel_cap", 1024)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("max_buffered_rows", 1000)
	v.SetDefault("sink_high_watermark", 1000)
	v.SetDefault("admin_addr", ":9090")
	v.SetDefault("bpf", "tcp")
}

// Load reads configuration from path (if non-empty) plus FLOWLENS_*
// environment variables, env taking precedence. An empty path is valid:
// configuration then comes from the environment and defaults, except
// port_map, which has no environment form and comes from the file only.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("FLOWLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only reaches keys viper already knows from a default or
	// the file; interface has no default, so bind it explicitly.
	_ = v.BindEnv("interface")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants a process-fatal config error (spec.md
// §6.7, §7) must catch before capture starts.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("config: interface is required")
	}
	if len(c.PortMap) == 0 {
		return fmt.Errorf("config: port_map must name at least one port")
	}
	for port, dbType := range c.PortMap {
		if dbType != "MySQL" {
			return fmt.Errorf("config: port_map[%s]: unsupported db type %q", port, dbType)
		}
	}
	if c.IdleTimeoutS <= 0 {
		return fmt.Errorf("config: idle_timeout_s must be positive")
	}
	return nil
}

// ToYAML renders the resolved configuration back out as YAML, for the
// `flowlensd config` subcommand to print what was actually loaded (file
// plus environment plus defaults) in the same format an operator would
// write it in.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// IdleTimeout returns the configured inactivity timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutS) * time.Second
}

// Watch re-reads path on every write and calls onChange with the newly
// loaded Config. It runs until stop is closed. Grounded in the
// teacher's cobra/viper config stack, generalized with fsnotify per
// SPEC_FULL.md §3.2. onChange decides what to apply; flowlensd's callback
// applies log_level only.
func Watch(path string, onChange func(*Config), stop <-chan struct{}) error {
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %q: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					continue
				}
				onChange(cfg)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// ParsePortMap converts the string-keyed PortMap into numeric ports for
// internal/flow.
func (c *Config) ParsePortMap() (map[uint16]string, error) {
	out := make(map[uint16]string, len(c.PortMap))
	for portStr, dbType := range c.PortMap {
		var port uint16
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, fmt.Errorf("config: invalid port %q: %w", portStr, err)
		}
		out[port] = dbType
	}
	return out, nil
}
