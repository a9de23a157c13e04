// Package config loads and validates the aggregator's configuration:
// read YAML, apply defaults, apply MA_-prefixed environment overrides,
// validate — the same LoadConfig/ValidateConfig pipeline shape used
// elsewhere in this codebase, but built on gopkg.in/yaml.v3 and
// struct-tag validation via go-playground/validator/v10 instead of a
// hand-rolled ConfigValidator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig holds process-identity and logging settings.
type AppConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Environment string `yaml:"environment" validate:"required,oneof=development staging production"`
	LogLevel    string `yaml:"log_level" validate:"required,oneof=trace debug info warn error fatal panic"`
	LogFormat   string `yaml:"log_format" validate:"required,oneof=json text"`
}

// AdminConfig configures the admin HTTP server (see internal/admin).
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host" validate:"required_if=Enabled true"`
	Port    int    `yaml:"port" validate:"required_if=Enabled true,min=0,max=65535"`
}

// MetricsConfig configures the Prometheus metrics endpoint (see
// internal/metrics).
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
	Path      string `yaml:"path" validate:"required_if=Enabled true"`
}

// TracingConfig configures the OpenTelemetry exporter (see
// internal/tracing).
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Enabled true"`
	ServiceName string `yaml:"service_name"`
}

// FileDestinationConfig configures a files-in-directory serialize.Destination.
type FileDestinationConfig struct {
	Directory string `yaml:"directory" validate:"required"`
	Prefix    string `yaml:"prefix"`
	Suffix    string `yaml:"suffix"`
	Codec     string `yaml:"codec" validate:"omitempty,oneof=none gzip snappy lz4"`
}

// KafkaDestinationConfig configures a pkg/kafkadest.Strategy.
type KafkaDestinationConfig struct {
	Brokers      []string `yaml:"brokers" validate:"required,min=1,dive,required"`
	Topic        string   `yaml:"topic" validate:"required"`
	AuthEnabled  bool     `yaml:"auth_enabled"`
	AuthMechanism string  `yaml:"auth_mechanism" validate:"omitempty,oneof=plain scram-sha-256 scram-sha-512"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
}

// DestinationsConfig groups every output sink the run might write to.
type DestinationsConfig struct {
	File  *FileDestinationConfig  `yaml:"file"`
	Kafka *KafkaDestinationConfig `yaml:"kafka"`
}

// SigningConfig configures pkg/signing.
type SigningConfig struct {
	Enabled           bool     `yaml:"enabled"`
	KeyFile           string   `yaml:"key_file" validate:"required_if=Enabled true"`
	CertFile          string   `yaml:"cert_file" validate:"required_if=Enabled true"`
	ShaVariant        string   `yaml:"sha_variant" validate:"omitempty,oneof=sha256 sha384 sha512"`
	EmitKeyValue      bool     `yaml:"emit_key_value"`
	EmitX509Data      bool     `yaml:"emit_x509_data"`
	InclusivePrefixes []string `yaml:"inclusive_prefixes"`
}

// RetryConfig configures pkg/retrypolicy.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
	MaxRetries      uint64        `yaml:"max_retries"`
}

// ResourceMonitorConfig configures pkg/resourcemon thresholds.
type ResourceMonitorConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoroutineGrowth       int    `yaml:"goroutine_growth"`
	RSSGrowthBytes        uint64 `yaml:"rss_growth_bytes"`
}

// HotReloadConfig configures pkg/hotreload.
type HotReloadConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SourceConfig names the directory the aggregator reads entity XML files
// from (see stages/source). AdditionalDirectories names zero or more
// further directories; when non-empty the aggregator fans out to a
// loader per directory (see pkg/splitter) and merges the results with
// the primary directory's items, deduplicating by ItemId.
type SourceConfig struct {
	Directory             string   `yaml:"directory" validate:"required"`
	AdditionalDirectories []string `yaml:"additional_directories"`
}

// PruneConfig configures stages/prune: elements named in BlockedElements
// are stripped from every item's tree, at any depth, before filtering.
type PruneConfig struct {
	Enabled         bool     `yaml:"enabled"`
	BlockedElements []string `yaml:"blocked_elements" validate:"required_if=Enabled true"`
}

// FilterRuleConfig configures one stages/filter.Rule: items whose Attr
// attribute equals Value are kept and, when Authority is set, tagged with
// that registration authority.
type FilterRuleConfig struct {
	Attr      string `yaml:"attr" validate:"required"`
	Value     string `yaml:"value" validate:"required"`
	Authority string `yaml:"authority"`
}

// PipelineConfig is the top-level, validated configuration for a run of
// the aggregator.
type PipelineConfig struct {
	App             AppConfig             `yaml:"app" validate:"required"`
	Admin           AdminConfig           `yaml:"admin"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Tracing         TracingConfig         `yaml:"tracing"`
	Source          SourceConfig          `yaml:"source" validate:"required"`
	Destinations    DestinationsConfig    `yaml:"destinations"`
	Prune           PruneConfig           `yaml:"prune"`
	FilterRules     []FilterRuleConfig    `yaml:"filter_rules"`
	Signing         SigningConfig         `yaml:"signing"`
	Retry           RetryConfig           `yaml:"retry"`
	ResourceMonitor ResourceMonitorConfig `yaml:"resource_monitor"`
	HotReload       HotReloadConfig       `yaml:"hot_reload"`
}

var validate = validator.New()

// Load reads path (if non-empty), applies defaults, applies MA_-prefixed
// environment overrides, and validates the result.
func Load(path string) (*PipelineConfig, error) {
	cfg := &PipelineConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *PipelineConfig) {
	if cfg.App.Name == "" {
		cfg.App.Name = "metadata-aggregator"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "production"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}

	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8401
	}
	if cfg.Admin.Host == "" {
		cfg.Admin.Host = "0.0.0.0"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "metadata_aggregator"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}

	if cfg.Source.Directory == "" {
		cfg.Source.Directory = "./in"
	}

	if cfg.Signing.ShaVariant == "" {
		cfg.Signing.ShaVariant = "sha256"
	}

	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = 200 * time.Millisecond
	}
	if cfg.Retry.MaxInterval == 0 {
		cfg.Retry.MaxInterval = 10 * time.Second
	}
	if cfg.Retry.MaxElapsedTime == 0 {
		cfg.Retry.MaxElapsedTime = time.Minute
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 8
	}

	if cfg.ResourceMonitor.GoroutineGrowth == 0 {
		cfg.ResourceMonitor.GoroutineGrowth = 100
	}
	if cfg.ResourceMonitor.RSSGrowthBytes == 0 {
		cfg.ResourceMonitor.RSSGrowthBytes = 64 * 1024 * 1024
	}
}

// applyEnvironmentOverrides applies MA_-prefixed environment variables,
// the same prefixed-env-var override pattern used elsewhere in this
// codebase.
func applyEnvironmentOverrides(cfg *PipelineConfig) {
	cfg.App.Name = getEnvString("MA_APP_NAME", cfg.App.Name)
	cfg.App.Environment = getEnvString("MA_APP_ENVIRONMENT", cfg.App.Environment)
	cfg.App.LogLevel = getEnvString("MA_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnvString("MA_LOG_FORMAT", cfg.App.LogFormat)

	cfg.Admin.Enabled = getEnvBool("MA_ADMIN_ENABLED", cfg.Admin.Enabled)
	cfg.Admin.Host = getEnvString("MA_ADMIN_HOST", cfg.Admin.Host)
	cfg.Admin.Port = getEnvInt("MA_ADMIN_PORT", cfg.Admin.Port)

	cfg.Metrics.Enabled = getEnvBool("MA_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = getEnvString("MA_METRICS_PATH", cfg.Metrics.Path)

	cfg.Tracing.Enabled = getEnvBool("MA_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.OTLPEndpoint = getEnvString("MA_TRACING_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)

	cfg.Signing.Enabled = getEnvBool("MA_SIGNING_ENABLED", cfg.Signing.Enabled)
	cfg.Signing.KeyFile = getEnvString("MA_SIGNING_KEY_FILE", cfg.Signing.KeyFile)
	cfg.Signing.CertFile = getEnvString("MA_SIGNING_CERT_FILE", cfg.Signing.CertFile)

	cfg.HotReload.Enabled = getEnvBool("MA_HOT_RELOAD_ENABLED", cfg.HotReload.Enabled)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

