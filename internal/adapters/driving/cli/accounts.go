package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

var (
	accountName   string
	accountConfig []string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage provider accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts",
	RunE:  runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <provider>",
	Short: "Add a provider account",
	Long: `Adds an account for a provider (google, microsoft or generic).
Provider credentials are given as repeated --config key=value flags,
e.g. --config access_token=... or --config base_url=https://...`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountsAdd,
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <account-id>",
	Short: "Remove an account and its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

func init() {
	accountsAddCmd.Flags().StringVar(&accountName, "name", "", "Display name for the account")
	accountsAddCmd.Flags().StringArrayVar(&accountConfig, "config", nil, "Provider setting as key=value (repeatable)")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsList(cmd *cobra.Command, _ []string) error {
	if accountStore == nil {
		return errors.New("account store not configured")
	}

	accounts, err := accountStore.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		cmd.Println("No accounts configured. Run 'relaysync accounts add' to add one.")
		return nil
	}
	for i := range accounts {
		acc := &accounts[i]
		name := acc.Name
		if name == "" {
			name = "(unnamed)"
		}
		cmd.Printf("%s  %-10s  %s\n", acc.ID, acc.Provider, name)
	}
	return nil
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	if accountStore == nil {
		return errors.New("account store not configured")
	}

	provider := args[0]
	switch provider {
	case domain.ProviderGoogle, domain.ProviderMicrosoft, domain.ProviderGeneric:
	default:
		return fmt.Errorf("unknown provider %q (expected google, microsoft or generic)", provider)
	}

	config := make(map[string]string, len(accountConfig))
	for _, c := range accountConfig {
		key, value, ok := strings.Cut(c, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --config %q, expected key=value", c)
		}
		config[key] = value
	}

	account := domain.Account{
		ID:       uuid.NewString(),
		Provider: provider,
		Name:     accountName,
		Config:   config,
	}
	if err := accountStore.Save(context.Background(), account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	cmd.Printf("Added %s account %s.\n", provider, account.ID)
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	if accountStore == nil {
		return errors.New("account store not configured")
	}

	if err := accountStore.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	cmd.Printf("Removed account %s and its local records.\n", args[0])
	return nil
}
