package main

import (
	"os"

	"github.com/airchains-network/devchain/cmd/devchain/commands"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devchain",
		Short: "A programmable local Ethereum development node",
		Long: `A programmable local Ethereum development node with state overrides,
account impersonation, controllable block time and optional forking of a remote chain.`,
	}
	rootCmd.PersistentFlags().String("home", "", "Node home directory (default ~/.devchain)")

	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.AccountsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
