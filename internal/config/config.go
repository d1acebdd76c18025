package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataloom-cli/internal/email"
	"github.com/KaramelBytes/dataloom-cli/internal/impute"
)

// EnvPrefix prefixes every environment override, e.g. DATALOOM_SPAM_THRESHOLD.
const EnvPrefix = "DATALOOM"

// Global configuration structure. The email and imputation settings are
// flattened into the top level of the file.
type Global struct {
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat        string `mapstructure:"log_format" yaml:"log_format"`
	IngestTimeoutSec int    `mapstructure:"ingest_timeout_sec" yaml:"ingest_timeout_sec"`
	MaxInputBytes    int64  `mapstructure:"max_input_bytes" yaml:"max_input_bytes"`
	CacheDir         string `mapstructure:"cache_dir" yaml:"cache_dir"`
	ServeAddr        string `mapstructure:"serve_addr" yaml:"serve_addr"`

	Email  email.Config   `mapstructure:",squash" yaml:",inline"`
	Impute impute.Options `mapstructure:",squash" yaml:",inline"`
}

// Dir is ~/.dataloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dataloom"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
	v.SetDefault("ingest_timeout_sec", 30)
	v.SetDefault("max_input_bytes", 64<<20)
	v.SetDefault("cache_dir", "")
	v.SetDefault("serve_addr", "127.0.0.1:8080")

	e := email.DefaultConfig()
	v.SetDefault("spam_threshold", e.SpamThreshold)
	v.SetDefault("priority_base", e.PriorityBase)
	v.SetDefault("priority_urgent_weight", e.PriorityUrgentWeight)
	v.SetDefault("priority_promo_weight", e.PriorityPromoWeight)
	v.SetDefault("priority_internal_bonus", e.PriorityInternalBonus)
	v.SetDefault("internal_domains", orEmpty(e.InternalDomains))
	v.SetDefault("urgent_keywords", e.UrgentKeywords)
	v.SetDefault("promo_keywords", e.PromoKeywords)
	v.SetDefault("spam_subject_keywords", e.SpamSubjectKeywords)
	v.SetDefault("spam_domain_patterns", e.SpamDomainPatterns)
	v.SetDefault("generic_sender_prefixes", e.GenericSenderPrefixes)
	v.SetDefault("spam_body_phrases", e.SpamBodyPhrases)
	v.SetDefault("generic_greetings", e.GenericGreetings)

	im := impute.DefaultOptions()
	v.SetDefault("normality_sample_cap", im.SampleCap)
	v.SetDefault("normality_alpha", im.Alpha)
	v.SetDefault("heavy_missing_pct", im.HeavyMissingPct)
	v.SetDefault("knn_k", im.K)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file (cfgFile or ~/.dataloom/config.yaml) > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.CacheDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.CacheDir = dir
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values no component can work with.
func (c *Global) Validate() error {
	switch {
	case c.Email.SpamThreshold < 0 || c.Email.SpamThreshold > 100:
		return fmt.Errorf("spam_threshold must be within 0..100, got %d", c.Email.SpamThreshold)
	case c.Impute.Alpha <= 0 || c.Impute.Alpha >= 1:
		return fmt.Errorf("normality_alpha must be within (0, 1), got %g", c.Impute.Alpha)
	case c.Impute.K <= 0:
		return fmt.Errorf("knn_k must be positive, got %d", c.Impute.K)
	case c.LogFormat != "console" && c.LogFormat != "json":
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Keys lists every settable key in sorted order.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Set assigns one key from its string form. List keys take comma-separated values.
func (c *Global) Set(key, val string) error {
	intVal := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	floatVal := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float for %s: %v", key, val)
		}
		return f, nil
	}
	var err error
	switch key {
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	case "ingest_timeout_sec":
		c.IngestTimeoutSec, err = intVal()
	case "max_input_bytes":
		var i int
		i, err = intVal()
		c.MaxInputBytes = int64(i)
	case "cache_dir":
		c.CacheDir = val
	case "serve_addr":
		c.ServeAddr = val
	case "spam_threshold":
		c.Email.SpamThreshold, err = intVal()
	case "priority_base":
		c.Email.PriorityBase, err = intVal()
	case "priority_urgent_weight":
		c.Email.PriorityUrgentWeight, err = intVal()
	case "priority_promo_weight":
		c.Email.PriorityPromoWeight, err = intVal()
	case "priority_internal_bonus":
		c.Email.PriorityInternalBonus, err = intVal()
	case "internal_domains":
		c.Email.InternalDomains = splitList(val)
	case "urgent_keywords":
		c.Email.UrgentKeywords = splitList(val)
	case "promo_keywords":
		c.Email.PromoKeywords = splitList(val)
	case "spam_subject_keywords":
		c.Email.SpamSubjectKeywords = splitList(val)
	case "spam_domain_patterns":
		c.Email.SpamDomainPatterns = splitList(val)
	case "generic_sender_prefixes":
		c.Email.GenericSenderPrefixes = splitList(val)
	case "spam_body_phrases":
		c.Email.SpamBodyPhrases = splitList(val)
	case "generic_greetings":
		c.Email.GenericGreetings = splitList(val)
	case "normality_sample_cap":
		c.Impute.SampleCap, err = intVal()
	case "normality_alpha":
		c.Impute.Alpha, err = floatVal()
	case "heavy_missing_pct":
		c.Impute.HeavyMissingPct, err = floatVal()
	case "knn_k":
		c.Impute.K, err = intVal()
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return err
	}
	return c.Validate()
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
