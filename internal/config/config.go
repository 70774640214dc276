package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	DefaultMongoURI  = "mongodb://127.0.0.1:27017"
	DefaultRedisAddr = "127.0.0.1:6379"
	DefaultPort      = 8080
	DefaultWorkers   = 4
)

// Config is the immutable configuration snapshot for one orchestrator
// invocation. It is loaded exactly once at entry and handed to component
// constructors; no component reads the process environment directly.
type Config struct {
	MongoURI      string
	RedisAddr     string
	Mode          string
	Port          int
	Workers       int
	SessionString string
	WorkDir       string
}

// Load reads configuration for the given working directory. A `.env` file in
// workDir (when present) provides defaults; real environment variables win.
func Load(workDir string) (Config, error) {
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Config{}, err
		}
		workDir = cwd
	}

	v := viper.New()
	v.SetDefault("MONGODB_URI", DefaultMongoURI)
	v.SetDefault("REDIS_ADDR", DefaultRedisAddr)
	v.SetDefault("DEPLOY_MODE", ModeDevelopment)
	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("WORKERS", DefaultWorkers)
	v.SetDefault("SESSION_STRING", "")

	envFile := filepath.Join(workDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		MongoURI:      v.GetString("MONGODB_URI"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		Mode:          strings.ToLower(strings.TrimSpace(v.GetString("DEPLOY_MODE"))),
		Port:          v.GetInt("PORT"),
		Workers:       v.GetInt("WORKERS"),
		SessionString: v.GetString("SESSION_STRING"),
		WorkDir:       workDir,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return fmt.Errorf("DEPLOY_MODE must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1, got %d", c.Workers)
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGODB_URI must not be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	return nil
}

// Production reports whether the deployment mode is production.
func (c Config) Production() bool { return c.Mode == ModeProduction }

// HasSession reports whether a pre-provisioned session credential is set.
// Absence is not an error; voice features degrade without it.
func (c Config) HasSession() bool { return c.SessionString != "" }

// MongoLocal reports whether the document store endpoint points at this host.
// Only local endpoints are subject to bootstrap and backup actions.
func (c Config) MongoLocal() bool {
	u, err := url.Parse(c.MongoURI)
	if err != nil {
		return false
	}
	return hostIsLocal(u.Hostname())
}

// RedisLocal reports whether the cache endpoint points at this host.
func (c Config) RedisLocal() bool {
	host, _, err := net.SplitHostPort(c.RedisAddr)
	if err != nil {
		host = c.RedisAddr
	}
	return hostIsLocal(host)
}

// RedisPort returns the cache TCP port, defaulting to 6379.
func (c Config) RedisPort() string {
	_, port, err := net.SplitHostPort(c.RedisAddr)
	if err != nil || port == "" {
		return "6379"
	}
	return port
}

// MongoPort returns the document store TCP port, defaulting to 27017.
func (c Config) MongoPort() string {
	u, err := url.Parse(c.MongoURI)
	if err != nil {
		return "27017"
	}
	if p := u.Port(); p != "" {
		return p
	}
	return "27017"
}

func hostIsLocal(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Snapshot renders the configuration in .env form with the session credential
// masked, suitable for inclusion in a backup archive.
func (c Config) Snapshot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MONGODB_URI=%s\n", c.MongoURI)
	fmt.Fprintf(&b, "REDIS_ADDR=%s\n", c.RedisAddr)
	fmt.Fprintf(&b, "DEPLOY_MODE=%s\n", c.Mode)
	fmt.Fprintf(&b, "PORT=%d\n", c.Port)
	fmt.Fprintf(&b, "WORKERS=%d\n", c.Workers)
	if c.HasSession() {
		b.WriteString("SESSION_STRING=<redacted>\n")
	}
	return b.String()
}
