package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [account-id] [kind]",
	Short: "Show sync status",
	Long: `Shows the sync state for every (account, kind) pair, or for one pair
when both arguments are given.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if stateStore == nil {
		return errors.New("state store not configured")
	}

	ctx := context.Background()

	if len(args) == 2 {
		state, err := stateStore.Get(ctx, args[0], domain.RecordKind(args[1]))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				cmd.Printf("No sync state for %s/%s yet.\n", args[0], args[1])
				return nil
			}
			return fmt.Errorf("failed to get sync state: %w", err)
		}
		printState(cmd, state)
		return nil
	}

	states, err := stateStore.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sync states: %w", err)
	}
	if len(states) == 0 {
		cmd.Println("No sync states recorded yet.")
		return nil
	}
	for i := range states {
		printState(cmd, &states[i])
		cmd.Println()
	}
	return nil
}

func printState(cmd *cobra.Command, st *domain.SyncState) {
	cmd.Printf("%s / %s\n", st.AccountID, st.Kind)
	cmd.Printf("  Status:    %s\n", st.Status)
	if st.Status == domain.RunSyncing && st.CurrentOperation != "" {
		cmd.Printf("  Operation: %s (%d%%)\n", st.CurrentOperation, st.ProgressPercentage)
	}
	c := st.Counters
	cmd.Printf("  Records:   %d total, %d synced, %d pending, %d conflicts, %d errors\n",
		c.TotalRecords, c.SyncedRecords, c.PendingRecords, c.ConflictRecords, c.ErrorRecords)
	if !st.LastSuccessfulSyncAt.IsZero() {
		cmd.Printf("  Last sync: %s\n", st.LastSuccessfulSyncAt.Format("2006-01-02 15:04:05"))
	}
	if st.SyncError != "" {
		cmd.Printf("  Error:     %s\n", st.SyncError)
	}
	cmd.Printf("  Enabled:   %t (auto-sync: %t)\n", st.SyncEnabled, st.AutoSync)
}
