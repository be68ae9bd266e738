package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Engine   EngineConfig   `mapstructure:"engine"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Balance  BalanceConfig  `mapstructure:"balance"`
	Push     PushConfig     `mapstructure:"push"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// EngineConfig drives the heartbeat scheduler and the task state machine.
type EngineConfig struct {
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	BatchSize           int           `mapstructure:"batch_size"`
	PendingAgeLimit     time.Duration `mapstructure:"pending_age_limit"`
	ProcessingAgeLimit  time.Duration `mapstructure:"processing_age_limit"`
	MaxRetries          int           `mapstructure:"max_retries"`
	EnrichTimeout       time.Duration `mapstructure:"enrich_timeout"`
	RateRefreshInterval time.Duration `mapstructure:"rate_refresh_interval"`
	KnowledgeTopN       int           `mapstructure:"knowledge_top_n"`
}

// Normalize fills unset engine parameters with production defaults.
func (e *EngineConfig) Normalize() {
	if e.TickInterval <= 0 {
		e.TickInterval = time.Minute
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 5
	}
	if e.PendingAgeLimit <= 0 {
		e.PendingAgeLimit = 30 * time.Minute
	}
	if e.ProcessingAgeLimit <= 0 {
		e.ProcessingAgeLimit = 5 * time.Minute
	}
	if e.MaxRetries <= 0 {
		e.MaxRetries = 5
	}
	if e.EnrichTimeout <= 0 {
		e.EnrichTimeout = 10 * time.Second
	}
	if e.RateRefreshInterval <= 0 {
		e.RateRefreshInterval = time.Hour
	}
	if e.KnowledgeTopN <= 0 {
		e.KnowledgeTopN = 5
	}
}

type LLMConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	PromptCostPerTok float64       `mapstructure:"prompt_cost_per_token"`
	OutputCostPerTok float64       `mapstructure:"output_cost_per_token"`
}

type RelayConfig struct {
	GatewayURL string        `mapstructure:"gateway_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type BalanceConfig struct {
	GatewayURL string        `mapstructure:"gateway_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type PushConfig struct {
	ProviderURL string        `mapstructure:"provider_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RatesConfig struct {
	ProviderURL string        `mapstructure:"provider_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("AGORA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Engine.Normalize()

	return &cfg, nil
}
