package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airchains-network/devchain/config"
	"github.com/spf13/cobra"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the node home directory",
	Long: `Initialize the node with the required configuration.
This command creates the home directory, the data directory and config.toml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd)
	},
}

func init() {
	addInitFlags(InitCmd)
}

func addInitFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc.port", ":8545", "JSON-RPC HTTP listen address")
	cmd.Flags().String("ws.port", ":8546", "JSON-RPC WebSocket listen address")
	cmd.Flags().Uint64("chain.id", 31337, "Chain id")
	cmd.Flags().String("fork.url", "", "Remote JSON-RPC endpoint to fork from")
	cmd.Flags().Uint64("fork.block-number", 0, "Block to fork at (0 means the remote head)")
	cmd.Flags().String("mining.mode", "auto", "Mining mode (auto/manual/interval)")
	cmd.Flags().Uint64("mining.block-time", 0, "Seconds between blocks in interval mode")
	cmd.Flags().String("genesis.file", "", "Optional genesis.json with an alloc section")
	cmd.Flags().Bool("persist", false, "Dump the state on shutdown and reload it on start")
	cmd.Flags().Bool("force", false, "Overwrite an existing config.toml")
}

func initCommand(cmd *cobra.Command) error {
	rpcPort, _ := cmd.Flags().GetString("rpc.port")
	wsPort, _ := cmd.Flags().GetString("ws.port")
	chainID, _ := cmd.Flags().GetUint64("chain.id")
	forkURL, _ := cmd.Flags().GetString("fork.url")
	forkBlock, _ := cmd.Flags().GetUint64("fork.block-number")
	mode, _ := cmd.Flags().GetString("mining.mode")
	blockTime, _ := cmd.Flags().GetUint64("mining.block-time")
	genesisFile, _ := cmd.Flags().GetString("genesis.file")
	persist, _ := cmd.Flags().GetBool("persist")
	force, _ := cmd.Flags().GetBool("force")

	log, err := newLogger("info")
	if err != nil {
		return err
	}

	home, err := homeDir(cmd)
	if err != nil {
		return err
	}
	path := configPath(home)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s, use --force to overwrite", path)
	}

	dataDir := filepath.Join(home, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", dataDir, err)
	}

	cfg := config.Default()
	cfg.General.RPCPort = rpcPort
	cfg.General.WSPort = wsPort
	cfg.Chain.ChainID = chainID
	cfg.Fork.URL = forkURL
	cfg.Fork.BlockNumber = forkBlock
	cfg.Mining.Mode = mode
	cfg.Mining.BlockTime = blockTime
	cfg.Genesis.FilePath = genesisFile
	if persist {
		cfg.Database.StatePath = filepath.Join(dataDir, "state_db")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	log.Infof("Created config file at: %s", path)

	fmt.Println("\n=== Configuration Summary ===")
	fmt.Printf("RPC Port: %s\n", cfg.General.RPCPort)
	fmt.Printf("WebSocket Port: %s\n", cfg.General.WSPort)
	fmt.Printf("Chain ID: %d\n", cfg.Chain.ChainID)
	fmt.Printf("Mining Mode: %s\n", cfg.Mining.Mode)
	if cfg.Fork.URL != "" {
		fmt.Printf("Fork URL: %s\n", cfg.Fork.URL)
	}
	if cfg.Database.StatePath != "" {
		fmt.Printf("State Path: %s\n", cfg.Database.StatePath)
	}
	fmt.Printf("Config File: %s\n", path)

	log.Info("Initialization completed successfully!")
	log.Info("You can start the node using: ./devchain start")
	return nil
}
