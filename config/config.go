package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airchains-network/devchain/miner"
	"github.com/holiman/uint256"
	"github.com/pelletier/go-toml"
)

// DirName is the node home directory under the user's home
const DirName = ".devchain"

// Config holds the application configuration
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Chain    ChainConfig    `toml:"chain"`
	Fork     ForkConfig     `toml:"fork"`
	Mining   MiningConfig   `toml:"mining"`
	Database DatabaseConfig `toml:"database"`
	Genesis  GenesisConfig  `toml:"genesis"`
}

// GeneralConfig holds the server settings
type GeneralConfig struct {
	RPCPort  string `toml:"rpc_port"`
	WSPort   string `toml:"ws_port"`
	LogLevel string `toml:"log_level"`
	Metrics  bool   `toml:"metrics"`
}

// ChainConfig holds the chain parameters. Amounts are decimal wei strings.
type ChainConfig struct {
	ChainID          uint64 `toml:"chain_id"`
	GasLimit         uint64 `toml:"gas_limit"`
	BaseFee          string `toml:"base_fee"`
	MinGasPrice      string `toml:"min_gas_price"`
	GenesisTimestamp uint64 `toml:"genesis_timestamp"`
	HistoryDepth     uint64 `toml:"history_depth"`
}

// ForkConfig points the node at a remote chain. An empty URL disables forking.
type ForkConfig struct {
	URL         string `toml:"url"`
	BlockNumber uint64 `toml:"block_number"` // 0 means the remote head
	Retries     uint64 `toml:"retries"`
}

// MiningConfig selects when blocks are produced
type MiningConfig struct {
	Mode      string `toml:"mode"` // "auto", "manual" or "interval"
	BlockTime uint64 `toml:"block_time"`
}

// DatabaseConfig holds the state dump location. Empty disables persistence.
type DatabaseConfig struct {
	StatePath string `toml:"state_path"`
}

// GenesisConfig holds the genesis allocation and the dev account funding
type GenesisConfig struct {
	FilePath string `toml:"file_path"`
	Balance  string `toml:"balance"`
}

// Default returns the default configuration values
func Default() Config {
	return Config{
		General: GeneralConfig{
			RPCPort:  ":8545",
			WSPort:   ":8546",
			LogLevel: "info",
			Metrics:  true,
		},
		Chain: ChainConfig{
			ChainID:      31337,
			GasLimit:     30_000_000,
			BaseFee:      "1000000000",
			HistoryDepth: 128,
		},
		Fork: ForkConfig{
			Retries: 5,
		},
		Mining: MiningConfig{
			Mode: miner.Auto.String(),
		},
		Genesis: GenesisConfig{
			Balance: "10000000000000000000000",
		},
	}
}

// HomeDir returns ~/.devchain
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(home, DirName), nil
}

// LoadConfig reads config.toml on top of the defaults
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}

	err = toml.Unmarshal(file, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	return cfg, cfg.Validate()
}

// Save writes the configuration as TOML
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late at startup
func (c Config) Validate() error {
	if !strings.Contains(c.General.RPCPort, ":") {
		return fmt.Errorf("invalid rpc_port %q: want host:port or :port", c.General.RPCPort)
	}
	if c.General.WSPort != "" && !strings.Contains(c.General.WSPort, ":") {
		return fmt.Errorf("invalid ws_port %q: want host:port or :port", c.General.WSPort)
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain_id must not be zero")
	}
	if c.Chain.GasLimit == 0 {
		return fmt.Errorf("gas_limit must not be zero")
	}
	mode, err := c.MiningMode()
	if err != nil {
		return err
	}
	if mode == miner.Interval && c.Mining.BlockTime == 0 {
		return fmt.Errorf("interval mining needs a non-zero block_time")
	}
	for name, v := range map[string]string{
		"chain.base_fee":      c.Chain.BaseFee,
		"chain.min_gas_price": c.Chain.MinGasPrice,
		"genesis.balance":     c.Genesis.Balance,
	} {
		if _, err := Amount(v); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	return nil
}

// MiningMode parses mining.mode
func (c Config) MiningMode() (miner.Mode, error) {
	return miner.ParseMode(c.Mining.Mode)
}

// Amount parses a decimal wei amount. Empty yields nil.
func Amount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return uint256.FromDecimal(s)
}
