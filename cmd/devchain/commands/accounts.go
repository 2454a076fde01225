package commands

import (
	"fmt"

	"github.com/airchains-network/devchain/accounts"
	"github.com/spf13/cobra"
)

// AccountsCmd prints the development accounts
var AccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the development accounts and their private keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		wallet, err := accounts.NewDevWallet()
		if err != nil {
			return err
		}
		printAccounts(wallet)
		return nil
	},
}

func printAccounts(wallet *accounts.Wallet) {
	fmt.Println("\nAvailable Accounts")
	fmt.Println("==================")
	for i, acc := range wallet.Accounts() {
		fmt.Printf("(%d) %s\n", i, acc.Address.Hex())
	}
	fmt.Println("\nPrivate Keys")
	fmt.Println("==================")
	for i, acc := range wallet.Accounts() {
		fmt.Printf("(%d) %s\n", i, acc.PrivateKeyHex())
	}
	fmt.Println()
}
