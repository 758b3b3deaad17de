package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-intercept/internal/intercept/repos/parsers"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Workers bounds how many requests are evaluated concurrently.
	Workers int `koanf:"workers" validate:"required,gte=1,lte=1024"`

	// UpgradeList is a plain host list of HTTPS-capable sites. "@@" entries are exclusions.
	UpgradeList   string  `koanf:"upgrade_list"`
	UpgradeFPRate float64 `koanf:"upgrade_fp_rate" validate:"gt=0,lt=1"`

	// TrustedList is a plain host list of sites exempt from all interception.
	TrustedList string `koanf:"trusted_list"`

	// TrustedSites are additional trusted patterns, e.g. "example.com" or "*.example.com".
	TrustedSites []string `koanf:"trusted_sites" validate:"dive,host_pattern"`

	// UntrustedSites are removed from the trust registry after the list and TrustedSites are applied.
	UntrustedSites []string `koanf:"untrusted_sites" validate:"dive,host_pattern"`

	// TrackerLists are plain or hosts-format tracker lists; the file name is the network name.
	TrackerLists []string `koanf:"tracker_lists" validate:"dive,required"`

	// TrackerDB is the bbolt database for tracker rules. Empty keeps rules in memory.
	TrackerDB string `koanf:"tracker_db"`

	// TrackerCacheSize is the decision cache capacity; 0 disables the cache.
	TrackerCacheSize int     `koanf:"tracker_cache_size" validate:"gte=0"`
	TrackerFPRate    float64 `koanf:"tracker_fp_rate" validate:"gt=0,lt=1"`

	// SurrogatesFile holds stand-in payloads for blocked resources.
	SurrogatesFile string `koanf:"surrogates_file"`

	// ListenerBuffer is the capacity of the asynchronous event queue.
	ListenerBuffer int `koanf:"listener_buffer" validate:"required,gte=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration: production
// logging at info, eight workers, in-memory tracker rules and no lists loaded.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:              "prod",
	LogLevel:         "info",
	Workers:          8,
	UpgradeFPRate:    0.0001,
	TrackerCacheSize: 10000,
	TrackerFPRate:    0.001,
	ListenerBuffer:   1024,
}

// validHostPattern validates a trusted site pattern such as "example.com" or "*.example.com".
func validHostPattern(fl validator.FieldLevel) bool {
	_, _, ok := parsers.ParsePattern(fl.Field().String())
	return ok
}

// envLoader loads environment variables with the prefix "INTERCEPT_".
// Keys are lowercased with the prefix removed; values containing spaces or
// commas become lists. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "INTERCEPT_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "INTERCEPT_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// ConfigFileEnv names the environment variable pointing at an optional
// YAML, JSON or TOML config file. File values override defaults; environment
// variables override the file.
const ConfigFileEnv = "INTERCEPT_CONFIG_FILE"

// fileLoader loads the config file named by ConfigFileEnv, if any.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if path == "" {
		return nil
	}
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file type %q", path)
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers the "host_pattern" tag with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("host_pattern", validHostPattern)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := fileLoader(k); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
