package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

var (
	syncFull  bool
	syncWatch bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <account-id> <kind>",
	Short: "Run one sync pass for an account",
	Long: `Runs one synchronisation pass for the given account and record kind
(contact or event). By default the pass is incremental, resuming from
the cursor the previous pass stored; --full discards the cursor and
re-enumerates the provider.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Discard the stored cursor and re-enumerate the provider")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Stream progress events while the pass runs")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncEngine == nil {
		return errors.New("sync engine not configured")
	}

	accountID := args[0]
	kind := domain.RecordKind(args[1])
	ctx := context.Background()

	if syncWatch {
		return watchSync(ctx, cmd, accountID, kind)
	}

	cmd.Printf("Syncing %s records for account %s...\n", kind, accountID)
	result, err := syncEngine.TriggerSync(ctx, accountID, kind, syncFull)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	c := result.Counters
	cmd.Printf("Sync complete: %d synced, %d pending, %d conflicts, %d errors\n",
		c.SyncedRecords, c.PendingRecords, c.ConflictRecords, c.ErrorRecords)
	if c.ConflictRecords > 0 {
		cmd.Println("Run 'relaysync records list --status conflict' to review conflicts.")
	}
	return nil
}

// watchSync streams progress events until the pass terminates.
func watchSync(ctx context.Context, cmd *cobra.Command, accountID string, kind domain.RecordKind) error {
	events, err := syncEngine.StreamSync(ctx, accountID, kind, syncFull)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	for ev := range events {
		switch ev.Type {
		case domain.EventProgress:
			cmd.Printf("\r%s: %d/%d records (%d%%)",
				ev.OperationLabel, ev.Counters.SyncedRecords, ev.Counters.TotalRecords, ev.Counters.Percent())
		case domain.EventComplete:
			cmd.Printf("\nSync complete: %d synced, %d conflicts, %d errors\n",
				ev.Counters.SyncedRecords, ev.Counters.ConflictRecords, ev.Counters.ErrorRecords)
		case domain.EventError:
			cmd.Println()
			return fmt.Errorf("sync failed: %s", ev.Message)
		}
	}
	return nil
}
