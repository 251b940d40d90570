package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del keeper. Inmutable tras Load.
type Config struct {
	Keeper    KeeperConfig    `yaml:"keeper"`
	Network   NetworkConfig   `yaml:"network"`
	Contracts ContractsConfig `yaml:"contracts"`
	Assets    []AssetConfig   `yaml:"assets"`
	Journal   JournalConfig   `yaml:"journal"`
	Log       LogConfig       `yaml:"log"`
}

// KeeperConfig controla los intervalos del loop principal.
type KeeperConfig struct {
	PollIntervalSeconds    int `yaml:"poll_interval_seconds"`
	OracleIntervalSeconds  int `yaml:"oracle_interval_seconds"`
	FundingIntervalSeconds int `yaml:"funding_interval_seconds"`
	WritePacingMillis      int `yaml:"write_pacing_ms"` // pausa entre writes del oracle (mismo signer)
}

// NetworkConfig identifica la red y el RPC.
type NetworkConfig struct {
	Name    string `yaml:"name"`
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`
	// PrivateKeyHex se carga solo desde el entorno (KEEPER_PRIVATE_KEY),
	// nunca desde el YAML.
	PrivateKeyHex string `yaml:"-"`
}

// ContractsConfig contiene las direcciones de los contratos. Ambas son
// obligatorias: sin ellas el proceso no arranca.
type ContractsConfig struct {
	Market string `yaml:"market"`
	Oracle string `yaml:"oracle"`
}

// AssetConfig es un activo del oracle: símbolo on-chain y símbolo del feed.
type AssetConfig struct {
	Symbol     string `yaml:"symbol"`
	FeedSymbol string `yaml:"feed_symbol"`
}

// JournalConfig controla el journal opcional de transacciones.
type JournalConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite; vacío = deshabilitado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las variables de entorno sobreescriben el YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba la configuración mínima para arrancar. Los contratos
// que falten son un error fatal de arranque, no un warning.
func (c *Config) Validate() error {
	if c.Contracts.Market == "" {
		return fmt.Errorf("config: market contract address is required (contracts.market or MARKET_CONTRACT)")
	}
	if c.Contracts.Oracle == "" {
		return fmt.Errorf("config: oracle contract address is required (contracts.oracle or ORACLE_CONTRACT)")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("config: at least one asset is required")
	}
	return nil
}

// PollInterval devuelve el intervalo del loop como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Keeper.PollIntervalSeconds) * time.Second
}

// OracleInterval devuelve el intervalo de refresco del oracle.
func (c *Config) OracleInterval() time.Duration {
	return time.Duration(c.Keeper.OracleIntervalSeconds) * time.Second
}

// FundingInterval devuelve el intervalo de settlement del funding.
func (c *Config) FundingInterval() time.Duration {
	return time.Duration(c.Keeper.FundingIntervalSeconds) * time.Second
}

// WritePacing devuelve la pausa entre writes consecutivos del oracle.
func (c *Config) WritePacing() time.Duration {
	return time.Duration(c.Keeper.WritePacingMillis) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Network.RPCURL = v
	}
	if v := os.Getenv("MARKET_CONTRACT"); v != "" {
		cfg.Contracts.Market = v
	}
	if v := os.Getenv("ORACLE_CONTRACT"); v != "" {
		cfg.Contracts.Oracle = v
	}
	if v := os.Getenv("KEEPER_PRIVATE_KEY"); v != "" {
		cfg.Network.PrivateKeyHex = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Keeper.PollIntervalSeconds <= 0 {
		cfg.Keeper.PollIntervalSeconds = 5
	}
	if cfg.Keeper.OracleIntervalSeconds <= 0 {
		cfg.Keeper.OracleIntervalSeconds = 30
	}
	if cfg.Keeper.FundingIntervalSeconds <= 0 {
		cfg.Keeper.FundingIntervalSeconds = 3600
	}
	if cfg.Keeper.WritePacingMillis <= 0 {
		cfg.Keeper.WritePacingMillis = 1500
	}
	if cfg.Network.Name == "" {
		cfg.Network.Name = "testnet"
	}
	if cfg.Network.RPCURL == "" {
		cfg.Network.RPCURL = "http://localhost:8545"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
