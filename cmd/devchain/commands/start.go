package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airchains-network/devchain/accounts"
	"github.com/airchains-network/devchain/api"
	"github.com/airchains-network/devchain/chaintime"
	"github.com/airchains-network/devchain/config"
	"github.com/airchains-network/devchain/db"
	"github.com/airchains-network/devchain/engine"
	"github.com/airchains-network/devchain/eth"
	"github.com/airchains-network/devchain/fork"
	"github.com/airchains-network/devchain/metrics"
	"github.com/airchains-network/devchain/proxy"
	"github.com/airchains-network/devchain/state"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// StartCmd represents the start command
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the development node",
	Long: `Start the development node with the configuration from ~/.devchain/config.toml.
Flags override the values of the config file. Without a config file the defaults are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCommand(cmd)
	},
}

func init() {
	addStartFlags(StartCmd)
}

func addStartFlags(cmd *cobra.Command) {
	cmd.Flags().String("fork.url", "", "Remote JSON-RPC endpoint to fork from")
	cmd.Flags().Uint64("fork.block-number", 0, "Block to fork at (0 means the remote head)")
	cmd.Flags().String("mining.mode", "", "Mining mode (auto/manual/interval)")
	cmd.Flags().Uint64("mining.block-time", 0, "Seconds between blocks in interval mode")
	cmd.Flags().String("rpc.port", "", "JSON-RPC HTTP listen address")
	cmd.Flags().String("ws.port", "", "JSON-RPC WebSocket listen address")
	cmd.Flags().Uint64("chain.id", 0, "Chain id (defaults to the remote chain id when forking)")
	cmd.Flags().String("log.level", "", "Log level (debug/info/warn/error)")
}

// loadStartConfig reads config.toml when it exists and applies the flags
func loadStartConfig(cmd *cobra.Command) (config.Config, error) {
	home, err := homeDir(cmd)
	if err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	path := configPath(home)
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %v", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("fork.url") {
		cfg.Fork.URL, _ = flags.GetString("fork.url")
	}
	if flags.Changed("fork.block-number") {
		cfg.Fork.BlockNumber, _ = flags.GetUint64("fork.block-number")
	}
	if flags.Changed("mining.mode") {
		cfg.Mining.Mode, _ = flags.GetString("mining.mode")
	}
	if flags.Changed("mining.block-time") {
		cfg.Mining.BlockTime, _ = flags.GetUint64("mining.block-time")
	}
	if flags.Changed("rpc.port") {
		cfg.General.RPCPort, _ = flags.GetString("rpc.port")
	}
	if flags.Changed("ws.port") {
		cfg.General.WSPort, _ = flags.GetString("ws.port")
	}
	if flags.Changed("chain.id") {
		cfg.Chain.ChainID, _ = flags.GetUint64("chain.id")
	}
	if flags.Changed("log.level") {
		cfg.General.LogLevel, _ = flags.GetString("log.level")
	}
	return cfg, cfg.Validate()
}

// connectFork dials the remote chain and pins the overlay at the fork block.
// It returns the timestamp of the fork block and the remote chain id.
func connectFork(ctx context.Context, cfg config.Config, m *metrics.Metrics, log *logrus.Logger) (*eth.Client, *fork.Overlay, uint64, uint64, error) {
	log.Infof("Connecting to fork endpoint %s", cfg.Fork.URL)
	client, err := eth.NewClient(ctx, cfg.Fork.URL)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("failed to connect to fork endpoint: %v", err)
	}

	var pinned *uint64
	if cfg.Fork.BlockNumber != 0 {
		pinned = &cfg.Fork.BlockNumber
	}
	block, err := client.ForkBlock(ctx, pinned)
	if err != nil {
		client.Close()
		return nil, nil, 0, 0, err
	}
	timestamp, err := client.ForkTimestamp(ctx, block)
	if err != nil {
		client.Close()
		return nil, nil, 0, 0, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, 0, 0, err
	}

	overlay, err := fork.New(client, fork.Config{
		BlockNumber:   block,
		Retries:       cfg.Fork.Retries,
		RetryInterval: 500 * time.Millisecond,
	}, log, m)
	if err != nil {
		client.Close()
		return nil, nil, 0, 0, err
	}
	log.WithFields(logrus.Fields{
		"block":     block,
		"timestamp": timestamp,
		"chain_id":  chainID,
	}).Info("Forked remote chain")
	return client, overlay, timestamp, chainID, nil
}

func startCommand(cmd *cobra.Command) error {
	cfg, err := loadStartConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.General.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	engineCfg := engine.Config{
		ChainID:          cfg.Chain.ChainID,
		GasLimit:         cfg.Chain.GasLimit,
		GenesisTimestamp: cfg.Chain.GenesisTimestamp,
		HistoryDepth:     cfg.Chain.HistoryDepth,
		BlockTime:        time.Duration(cfg.Mining.BlockTime) * time.Second,
		ForkURL:          cfg.Fork.URL,
	}
	if engineCfg.Mode, err = cfg.MiningMode(); err != nil {
		return err
	}
	if engineCfg.BaseFee, err = config.Amount(cfg.Chain.BaseFee); err != nil {
		return fmt.Errorf("invalid base fee: %v", err)
	}
	if engineCfg.MinGasPrice, err = config.Amount(cfg.Chain.MinGasPrice); err != nil {
		return fmt.Errorf("invalid min gas price: %v", err)
	}
	if engineCfg.DevBalance, err = config.Amount(cfg.Genesis.Balance); err != nil {
		return fmt.Errorf("invalid dev balance: %v", err)
	}

	deps := engine.Deps{
		Clock:   chaintime.SystemClock{},
		Log:     log,
		Metrics: m,
	}

	if cfg.Fork.URL != "" {
		client, overlay, forkTimestamp, remoteChainID, err := connectFork(ctx, cfg, m, log)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Overlay = overlay
		if !cmd.Flags().Changed("chain.id") {
			engineCfg.ChainID = remoteChainID
		}
		if engineCfg.GenesisTimestamp == 0 {
			engineCfg.GenesisTimestamp = forkTimestamp
		}
	}

	if cfg.Genesis.FilePath != "" {
		genesis, err := state.LoadGenesis(cfg.Genesis.FilePath)
		if err != nil {
			return err
		}
		engineCfg.Genesis = genesis
		engineCfg.Coinbase = genesis.Coinbase()
		if engineCfg.GenesisTimestamp == 0 {
			engineCfg.GenesisTimestamp = uint64(genesis.Timestamp)
		}
		if genesis.GasLimit != 0 {
			engineCfg.GasLimit = uint64(genesis.GasLimit)
		}
		log.Infof("Loaded genesis from %s with %d accounts", cfg.Genesis.FilePath, len(genesis.Alloc))
	}
	if engineCfg.GenesisTimestamp == 0 {
		engineCfg.GenesisTimestamp = uint64(time.Now().Unix())
	}

	wallet, err := accounts.NewDevWallet()
	if err != nil {
		return fmt.Errorf("failed to create dev wallet: %v", err)
	}
	deps.Wallet = wallet

	e, err := engine.New(ctx, engineCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %v", err)
	}

	if cfg.Database.StatePath != "" {
		stateDB, err := db.NewLevelDB(cfg.Database.StatePath)
		if err != nil {
			return fmt.Errorf("failed to open state database: %v", err)
		}
		defer stateDB.Close()
		if err := e.LoadState(stateDB); err != nil {
			return err
		}
		defer func() {
			if err := e.DumpState(stateDB); err != nil {
				log.Errorf("Failed to dump state: %v", err)
			}
		}()
	}

	printAccounts(wallet)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Run(gctx)
	})
	g.Go(func() error {
		return proxy.Start(gctx, proxy.Config{
			RPCAddr: cfg.General.RPCPort,
			WSAddr:  cfg.General.WSPort,
			Metrics: cfg.General.Metrics,
		}, api.NewRouter(e, log), e, m, log)
	})

	log.Info("Node started")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("Shutting down")
	return nil
}
