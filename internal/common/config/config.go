package config

import "fmt"

// Config is the root configuration of the worker manager.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Template     TemplateConfig          `mapstructure:"template"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	APIs         APIsConfig              `mapstructure:"apis"`
	Resolver     ResolverConfig          `mapstructure:"resolver"`
	Orchestrator OrchestratorConfig      `mapstructure:"orchestrator"`
	Sanitizer    SanitizerConfig         `mapstructure:"sanitizer"`
	Search       SearchConfig            `mapstructure:"search"`
	Tracing      TracingConfig           `mapstructure:"tracing"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddress string `mapstructure:"http_address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	Index     string   `mapstructure:"index"`
}

// GetAddresses returns Addresses, falling back to the single URL field.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
	// FailOnError makes engine workers fail degraded results instead of
	// completing them.
	FailOnError bool `mapstructure:"fail_on_error"`
}

// --- Engine Configuration ---

// GenAIConfig configures the assisted-generation collaborator.
type GenAIConfig struct {
	Provider   string  `mapstructure:"provider"` // "http" or "openai"
	BaseURL    string  `mapstructure:"base_url"`
	APIKey     string  `mapstructure:"api_key"`
	Model      string  `mapstructure:"model"`
	Timeout    int     `mapstructure:"timeout"` // milliseconds
	MaxRetries int     `mapstructure:"max_retries"`
	RateLimit  float64 `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst      int     `mapstructure:"burst"`
	CacheTTL   int     `mapstructure:"cache_ttl"` // seconds, 0 disables
}

type APIsConfig struct {
	GenAI GenAIConfig `mapstructure:"genai"`
}

type ResolverConfig struct {
	HistoryWindow        int     `mapstructure:"history_window"`
	RecentWindow         int     `mapstructure:"recent_window"`
	SimilarityThreshold  float64 `mapstructure:"similarity_threshold"`
	ClarificationEnabled *bool   `mapstructure:"clarification_enabled"`
	LatencyBudget        int     `mapstructure:"latency_budget_ms"`
	HistoryTimeout       int     `mapstructure:"history_timeout_ms"`
}

type OrchestratorConfig struct {
	TemplateConfidence      float64 `mapstructure:"template_confidence"`
	AssistedMaxConfidence   float64 `mapstructure:"assisted_max_confidence"`
	InvalidConfidenceFactor float64 `mapstructure:"invalid_confidence_factor"`
	DefaultGovernment       int     `mapstructure:"default_government"`
	GenerationTimeout       int     `mapstructure:"generation_timeout_ms"`
}

type SanitizerConfig struct {
	MaxStringLength int `mapstructure:"max_string_length"`
	MaxListLength   int `mapstructure:"max_list_length"`
}

type SearchConfig struct {
	CacheTTL   int `mapstructure:"cache_ttl"` // seconds
	MaxResults int `mapstructure:"max_results"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TemplateConfig points at the optional template override registry.
type TemplateConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}
