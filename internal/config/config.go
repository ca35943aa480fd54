// Package config provides configuration management for tplc using Viper for
// flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files (.tplc.yml), environment
// variable overrides with the TPLC_ prefix, defaulting and validation. It
// covers where page sources live, where compiled artifacts are cached, the
// compiler switches (always recompile, minify, HTML escaping), the JavaScript
// bundle behind the js tag, and the development server.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments, mirroring the debug/live switch of the host application.
const (
	EnvironmentDebug = "debug"
	EnvironmentLive  = "live"
)

// Cache namespaces.
const (
	NamespaceTemplates  = "Templates"
	NamespaceJavaScript = "JavaScript"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	Templates   TemplatesConfig `mapstructure:"templates"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Compiler    CompilerConfig  `mapstructure:"compiler"`
	Assets      AssetsConfig    `mapstructure:"assets"`
	Server      ServerConfig    `mapstructure:"server"`
	Log         LogConfig       `mapstructure:"log"`
}

type TemplatesConfig struct {
	Dir         string `mapstructure:"dir"`
	FragmentExt string `mapstructure:"fragment_ext"`
}

type CacheConfig struct {
	Dir            string        `mapstructure:"dir"`
	MemoryMaxBytes int64         `mapstructure:"memory_max_bytes"`
	TTL            time.Duration `mapstructure:"ttl"`
}

type CompilerConfig struct {
	AlwaysRecompile bool `mapstructure:"always_recompile"`
	Minify          bool `mapstructure:"minify"`
	HTMLEscape      bool `mapstructure:"html_escape"`
}

type AssetsConfig struct {
	SourceDir  string   `mapstructure:"source_dir"`
	Builtin    []string `mapstructure:"builtin"`
	Custom     []string `mapstructure:"custom"`
	BundleName string   `mapstructure:"bundle_name"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	IndexPage    string `mapstructure:"index_page"`
	NotFoundPage string `mapstructure:"not_found_page"`
	LiveReload   bool   `mapstructure:"live_reload"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TemplatesCacheDir is the directory holding compiled page artifacts.
func (c *Config) TemplatesCacheDir() string {
	return filepath.Join(c.Cache.Dir, NamespaceTemplates)
}

// BundlePath is the cache-relative path the js tag resolves to.
func (c *Config) BundlePath() string {
	return filepath.ToSlash(filepath.Join(c.Cache.Dir, NamespaceJavaScript, c.Assets.BundleName))
}

// BundleURL is the request path the development server serves the bundle
// under, matching what the js tag emits.
func (c *Config) BundleURL() string {
	return "/" + strings.TrimPrefix(c.BundlePath(), "/")
}

// IsDebug reports whether the debug environment is active.
func (c *Config) IsDebug() bool {
	return c.Environment == EnvironmentDebug
}

// DefaultBuiltinScripts lists the scripts bundled by default, relative to
// assets.source_dir.
var DefaultBuiltinScripts = []string{
	"md5.js",
	"dmsf/main.js",
	"dmsf/modal.js",
	"dmsf/notification.js",
	"dmsf/graphs.js",
	"dmsf/deepclone.js",
	"dmsf/isEqual.js",
	"accordion.js",
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Environment == "" {
		config.Environment = EnvironmentDebug
	}
	config.Environment = strings.ToLower(config.Environment)

	// Apply default values for TemplatesConfig if not set
	if config.Templates.Dir == "" {
		config.Templates.Dir = "templates"
	}
	if config.Templates.FragmentExt == "" {
		config.Templates.FragmentExt = ".tpl"
	}
	if !strings.HasPrefix(config.Templates.FragmentExt, ".") {
		config.Templates.FragmentExt = "." + config.Templates.FragmentExt
	}

	// Apply default values for CacheConfig if not set
	if config.Cache.Dir == "" {
		config.Cache.Dir = "cache"
	}
	if config.Cache.MemoryMaxBytes == 0 {
		config.Cache.MemoryMaxBytes = 8 << 20
	}
	if config.Cache.TTL == 0 {
		config.Cache.TTL = time.Hour
	}

	// The debug environment recompiles on every request unless told otherwise
	if viper.IsSet("compiler.always_recompile") {
		config.Compiler.AlwaysRecompile = viper.GetBool("compiler.always_recompile")
	} else {
		config.Compiler.AlwaysRecompile = config.IsDebug()
	}

	// Apply default values for AssetsConfig if not set
	if config.Assets.SourceDir == "" {
		config.Assets.SourceDir = filepath.Join(config.Templates.Dir, "src", "javascript")
	}
	if !viper.IsSet("assets.builtin") && len(config.Assets.Builtin) == 0 {
		config.Assets.Builtin = append([]string(nil), DefaultBuiltinScripts...)
	}
	if config.Assets.BundleName == "" {
		config.Assets.BundleName = "javascript.min.js"
	}

	// Apply default values for ServerConfig if not set
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 8080
	}
	if config.Server.IndexPage == "" {
		config.Server.IndexPage = "index.tpl"
	}
	if config.Server.NotFoundPage == "" {
		config.Server.NotFoundPage = "404.tpl"
	}
	if !viper.IsSet("server.live_reload") {
		config.Server.LiveReload = config.IsDebug()
	}

	// Apply default values for LogConfig if not set
	if config.Log.Level == "" {
		config.Log.Level = viper.GetString("log-level")
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if config.Environment != EnvironmentDebug && config.Environment != EnvironmentLive {
		return fmt.Errorf("environment must be %q or %q, got %q", EnvironmentDebug, EnvironmentLive, config.Environment)
	}

	if err := validatePath(config.Templates.Dir); err != nil {
		return fmt.Errorf("templates.dir: %w", err)
	}

	if err := validatePath(config.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}

	if config.Cache.MemoryMaxBytes < 0 {
		return fmt.Errorf("cache.memory_max_bytes must not be negative")
	}

	if err := validatePath(config.Assets.SourceDir); err != nil {
		return fmt.Errorf("assets.source_dir: %w", err)
	}

	if strings.ContainsAny(config.Assets.BundleName, `/\`) {
		return fmt.Errorf("assets.bundle_name must be a plain file name: %s", config.Assets.BundleName)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}

	for _, page := range []string{config.IndexPage, config.NotFoundPage} {
		if strings.Contains(filepath.Clean(page), "..") {
			return fmt.Errorf("page %s contains path traversal", page)
		}
	}

	return nil
}

// validatePath validates a relative directory setting
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
