package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/tapcraft-io/kubemirror/internal/k8s"
)

// Config holds the application configuration
type Config struct {
	// Paths
	ConfigDir string `mapstructure:"config-dir"`
	LogFile   string `mapstructure:"log-file"`

	// Kubernetes
	KubeconfigPath string   `mapstructure:"kubeconfig"`
	Context        string   `mapstructure:"context"`
	Kinds          []string `mapstructure:"kinds"`
	Demo           bool     `mapstructure:"demo"`

	// Sync
	WarmStart     bool          `mapstructure:"warm-start"`
	UsageInterval time.Duration `mapstructure:"usage-interval"`

	// UI
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`

	// Observability
	LogLevel    string `mapstructure:"log-level"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// NewConfig creates a new configuration with defaults
func NewConfig() (*Config, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, ".kubemirror")

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	kubeconfigPath := os.Getenv("KUBECONFIG")
	if kubeconfigPath == "" {
		kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
	}

	return &Config{
		ConfigDir:       configDir,
		LogFile:         filepath.Join(configDir, "kubemirror.log"),
		KubeconfigPath:  kubeconfigPath,
		WarmStart:       true,
		UsageInterval:   15 * time.Second,
		RefreshInterval: 500 * time.Millisecond,
		LogLevel:        "info",
	}, nil
}

// Load builds the configuration from defaults, the config file, KUBEMIRROR_*
// environment variables and whatever flags are bound to v, in increasing
// order of precedence. An empty cfgFile looks for config.yaml in the config
// directory and tolerates its absence.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg, err := NewConfig()
	if err != nil {
		return nil, err
	}

	v.SetDefault("config-dir", cfg.ConfigDir)
	v.SetDefault("log-file", cfg.LogFile)
	v.SetDefault("kubeconfig", cfg.KubeconfigPath)
	v.SetDefault("context", cfg.Context)
	v.SetDefault("kinds", cfg.Kinds)
	v.SetDefault("demo", cfg.Demo)
	v.SetDefault("warm-start", cfg.WarmStart)
	v.SetDefault("usage-interval", cfg.UsageInterval)
	v.SetDefault("refresh-interval", cfg.RefreshInterval)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("metrics-addr", cfg.MetricsAddr)

	v.SetEnvPrefix("KUBEMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(cfg.ConfigDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the mirror cannot run with
func (c *Config) Validate() error {
	if c.UsageInterval <= 0 {
		return fmt.Errorf("usage-interval must be positive, got %s", c.UsageInterval)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh-interval must be positive, got %s", c.RefreshInterval)
	}
	if _, unknown := k8s.SelectKinds(c.Kinds); len(unknown) > 0 {
		return fmt.Errorf("unknown kinds: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// SelectedKinds resolves the configured kind names. No names means every
// supported kind.
func (c *Config) SelectedKinds() []k8s.Kind {
	kinds, _ := k8s.SelectKinds(c.Kinds)
	return kinds
}
