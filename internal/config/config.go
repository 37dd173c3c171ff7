// Package config loads the client configuration from nutrifacts.yaml, the
// environment (NUTRIFACTS_*) and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	envPrefix  = "NUTRIFACTS"
	configName = "nutrifacts"
	dataDir    = ".nutrifacts"
)

// Store selects where session tokens are kept.
type Store struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Namespace string `mapstructure:"namespace"`
}

// Config is the client configuration.
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	ScanTimeout    time.Duration `mapstructure:"scan_timeout"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	Store          Store         `mapstructure:"store"`
	KeyFile        string        `mapstructure:"key_file"`
	CaptureCommand string        `mapstructure:"capture_command"`
	AlbumDir       string        `mapstructure:"album_dir"`
	Lang           string        `mapstructure:"lang"`
	Debug          bool          `mapstructure:"debug"`
}

// Options locate the configuration sources. Empty fields use the defaults:
// nutrifacts.yaml in ./ or ~/.nutrifacts, and ./.env.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load reads the configuration. Missing files are not an error; invalid
// values are.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading %s: %w", envFile, err)
	}

	home := homeDir()
	v := viper.New()
	setDefaults(v, home)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, dataDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Lang == "" {
		cfg.Lang = os.Getenv("LANG")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	dir := filepath.Join(home, dataDir)
	v.SetDefault("api_url", "http://localhost:8000/api")
	v.SetDefault("scan_timeout", 30*time.Second)
	v.SetDefault("http_timeout", 60*time.Second)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dsn", filepath.Join(dir, "nutrifacts.db"))
	v.SetDefault("store.namespace", "default")
	v.SetDefault("key_file", filepath.Join(dir, "device.key"))
	v.SetDefault("capture_command", "")
	v.SetDefault("album_dir", filepath.Join(home, "Pictures"))
	v.SetDefault("lang", "")
	v.SetDefault("debug", false)
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.ScanTimeout <= 0 {
		return errors.New("scan_timeout must be positive")
	}
	if c.HTTPTimeout < c.ScanTimeout {
		return errors.New("http_timeout must not be shorter than scan_timeout")
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver != DriverMemory && c.KeyFile == "" {
		return errors.New("key_file is required")
	}
	return nil
}
