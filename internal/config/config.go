package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"kitchenprint/internal/models"
	"kitchenprint/internal/ticket"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Ticket     TicketConfig     `yaml:"ticket"`
	Agent      AgentConfig      `yaml:"agent"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	Enabled        bool               `yaml:"enabled"`
	HTTP           APIHTTPConfig      `yaml:"http"`
	Auth           APIAuthConfig      `yaml:"auth"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
	AgentRateLimit APIRateLimitConfig `yaml:"agent_rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
	// Tenants restricts the key to the listed tenants. Empty means any tenant.
	Tenants []int64 `yaml:"tenants"`
}

// AllowsTenant reports whether the key may act on the tenant.
func (k APIClientKey) AllowsTenant(tenantID int64) bool {
	if len(k.Tenants) == 0 {
		return true
	}
	for _, id := range k.Tenants {
		if id == tenantID {
			return true
		}
	}
	return false
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite, postgres
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
}

type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	OrdersTopic string   `yaml:"orders_topic"`
	GroupID     string   `yaml:"group_id"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool          `yaml:"prometheus_enabled"`
	PrometheusPort    int           `yaml:"prometheus_port"`
	MonitorInterval   time.Duration `yaml:"monitor_interval"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type DispatchConfig struct {
	DirectTimeout       time.Duration `yaml:"direct_timeout"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	PollBatchSize       int           `yaml:"poll_batch_size"`
	ConnectedThreshold  time.Duration `yaml:"connected_threshold"`
	StuckThreshold      time.Duration `yaml:"stuck_threshold"`
	FallbackAllPrinters bool          `yaml:"fallback_all_printers"`
}

type TicketConfig struct {
	Labels ticket.Labels `yaml:"labels"`
}

// AgentConfig configures the remote print agent binary.
type AgentConfig struct {
	ServerURL         string        `yaml:"server_url"`
	Token             string        `yaml:"token"`
	MinPollInterval   time.Duration `yaml:"min_poll_interval"`
	MaxPollInterval   time.Duration `yaml:"max_poll_interval"`
	BackoffThreshold  time.Duration `yaml:"backoff_threshold"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	PrintTimeout      time.Duration `yaml:"print_timeout"`
	USBDevice         string        `yaml:"usb_device"`
	AckRetries        int           `yaml:"ack_retries"`
	AckRetryDelay     time.Duration `yaml:"ack_retry_delay"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

// Validate checks settings required by the server.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	for i, k := range c.API.Auth.APIKeys {
		if strings.TrimSpace(k.Key) == "" || strings.TrimSpace(k.Extra) == "" {
			return fmt.Errorf("api.auth.api_keys[%d]: key and extra are required", i)
		}
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.OrdersTopic == "") {
		return errors.New("kafka brokers and orders_topic are required when kafka is enabled")
	}

	if c.Dispatch.DirectTimeout <= 0 || c.Dispatch.ProbeTimeout <= 0 {
		return errors.New("dispatch timeouts must be positive")
	}
	return nil
}

// ValidateAgent checks settings required by the print agent.
func (c *Config) ValidateAgent() error {
	if strings.TrimSpace(c.Agent.ServerURL) == "" {
		return errors.New("agent server_url is required")
	}
	if strings.TrimSpace(c.Agent.Token) == "" {
		return errors.New("agent token is required")
	}
	if c.Agent.MinPollInterval > c.Agent.MaxPollInterval {
		return fmt.Errorf("agent min_poll_interval %s exceeds max_poll_interval %s",
			c.Agent.MinPollInterval, c.Agent.MaxPollInterval)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "kitchenprint"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Monitoring.MonitorInterval == 0 {
		c.Monitoring.MonitorInterval = 30 * time.Second
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "kitchenprint:jobs"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "kitchenprint-dispatch"
	}

	// Dispatch defaults
	if c.Dispatch.DirectTimeout == 0 {
		c.Dispatch.DirectTimeout = models.DirectSendTimeout
	}
	if c.Dispatch.ProbeTimeout == 0 {
		c.Dispatch.ProbeTimeout = models.ProbeTimeout
	}
	if c.Dispatch.PollBatchSize == 0 {
		c.Dispatch.PollBatchSize = models.DefaultPollBatchSize
	}
	if c.Dispatch.ConnectedThreshold == 0 {
		c.Dispatch.ConnectedThreshold = models.ConnectedThreshold
	}
	if c.Dispatch.StuckThreshold == 0 {
		c.Dispatch.StuckThreshold = models.StuckJobThreshold
	}

	// Agent defaults
	if c.Agent.MinPollInterval == 0 {
		c.Agent.MinPollInterval = 3 * time.Second
	}
	if c.Agent.MaxPollInterval == 0 {
		c.Agent.MaxPollInterval = 10 * time.Second
	}
	if c.Agent.BackoffThreshold == 0 {
		c.Agent.BackoffThreshold = 30 * time.Second
	}
	if c.Agent.HeartbeatInterval == 0 {
		c.Agent.HeartbeatInterval = 30 * time.Second
	}
	if c.Agent.RequestTimeout == 0 {
		c.Agent.RequestTimeout = 10 * time.Second
	}
	if c.Agent.PrintTimeout == 0 {
		c.Agent.PrintTimeout = models.DirectSendTimeout
	}
	if c.Agent.AckRetries == 0 {
		c.Agent.AckRetries = 3
	}
	if c.Agent.AckRetryDelay == 0 {
		c.Agent.AckRetryDelay = time.Second
	}
}
