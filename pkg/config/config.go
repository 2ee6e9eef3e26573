package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Solver     SolverConfig     `mapstructure:"solver"`
	OrderFill  OrderFillConfig  `mapstructure:"order_fill"`
	Prices     PricesConfig     `mapstructure:"prices"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// SolverConfig identifies the solver wallet being tracked
type SolverConfig struct {
	Address string `mapstructure:"address"`
}

// OrderFillConfig contains settings for the external order-fill ledger API
type OrderFillConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Contract  string        `mapstructure:"contract"`
	Filler    string        `mapstructure:"filler"`
	PageLimit int           `mapstructure:"page_limit"`
	PageDelay time.Duration `mapstructure:"page_delay"`
}

// PricesConfig contains price oracle settings.
// Tokens maps a price group (ETH, MATIC, AVAX) to the mainnet address of a
// representative wrapped token whose spot price stands in for the whole group.
type PricesConfig struct {
	OracleURL string            `mapstructure:"oracle_url"`
	APIKey    string            `mapstructure:"api_key"`
	TTL       time.Duration     `mapstructure:"ttl"`
	Tokens    map[string]string `mapstructure:"tokens"`
}

// SyncConfig contains settings shared by both sync pipelines
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ChainConfig describes one EVM chain the solver operates on
type ChainConfig struct {
	ChainID         int64         `mapstructure:"chain_id"`
	Name            string        `mapstructure:"name"`
	RPCURL          string        `mapstructure:"rpc_url"`
	GatewayContract string        `mapstructure:"gateway_contract"`
	DeploymentBlock uint64        `mapstructure:"deployment_block"`
	PriceGroup      string        `mapstructure:"price_group"`
	ExplorerURL     string        `mapstructure:"explorer_url"`
	ExplorerAPIKey  string        `mapstructure:"explorer_api_key"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "solver_sync")

	// Order-fill API defaults
	viper.SetDefault("order_fill.page_limit", 1000)
	viper.SetDefault("order_fill.page_delay", "200ms")

	// Price cache defaults
	viper.SetDefault("prices.ttl", "4h")
	viper.SetDefault("prices.tokens", map[string]string{
		"ETH":   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"MATIC": "0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0",
		"AVAX":  "0x85f138bfEE4ef8e540890CFb48F620571d67Eda3",
	})

	// Sync defaults
	viper.SetDefault("sync.interval", "5m")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Solver.Address == "" {
		return fmt.Errorf("solver.address is required")
	}
	if config.OrderFill.BaseURL == "" {
		return fmt.Errorf("order_fill.base_url is required")
	}
	if config.OrderFill.Contract == "" {
		return fmt.Errorf("order_fill.contract is required")
	}
	if config.OrderFill.Filler == "" {
		return fmt.Errorf("order_fill.filler is required")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	seen := make(map[int64]bool)
	for i := range config.Chains {
		chain := &config.Chains[i]
		if chain.ChainID == 0 {
			return fmt.Errorf("chains[%d].chain_id is required", i)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
		if chain.RPCURL == "" {
			return fmt.Errorf("chains[%d].rpc_url is required", i)
		}
		if chain.GatewayContract == "" {
			return fmt.Errorf("chains[%d].gateway_contract is required", i)
		}
		if chain.PriceGroup == "" {
			return fmt.Errorf("chains[%d].price_group is required", i)
		}
		if _, ok := config.Prices.Tokens[chain.PriceGroup]; !ok {
			return fmt.Errorf("chains[%d].price_group %q has no token mapping", i, chain.PriceGroup)
		}
		if chain.RetryAttempts <= 0 {
			chain.RetryAttempts = 3
		}
		if chain.RetryDelay <= 0 {
			chain.RetryDelay = time.Second
		}
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
