package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

var autosyncCmd = &cobra.Command{
	Use:   "autosync",
	Short: "Manage background synchronisation",
}

var autosyncEnableCmd = &cobra.Command{
	Use:   "enable <account-id> <kind>",
	Short: "Enable auto-sync for a pair",
	Args:  cobra.ExactArgs(2),
	RunE:  runAutosyncEnable,
}

var autosyncDisableCmd = &cobra.Command{
	Use:   "disable <account-id> <kind>",
	Short: "Disable auto-sync for a pair",
	Args:  cobra.ExactArgs(2),
	RunE:  runAutosyncDisable,
}

var autosyncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduling round now",
	RunE:  runAutosyncRun,
}

var autosyncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scheduler until interrupted",
	RunE:  runAutosyncWatch,
}

func init() {
	autosyncCmd.AddCommand(autosyncEnableCmd)
	autosyncCmd.AddCommand(autosyncDisableCmd)
	autosyncCmd.AddCommand(autosyncRunCmd)
	autosyncCmd.AddCommand(autosyncWatchCmd)
	rootCmd.AddCommand(autosyncCmd)
}

func runAutosyncEnable(cmd *cobra.Command, args []string) error {
	return setAutoSync(cmd, args[0], domain.RecordKind(args[1]), true)
}

func runAutosyncDisable(cmd *cobra.Command, args []string) error {
	return setAutoSync(cmd, args[0], domain.RecordKind(args[1]), false)
}

func setAutoSync(cmd *cobra.Command, accountID string, kind domain.RecordKind, enabled bool) error {
	if stateStore == nil {
		return errors.New("state store not configured")
	}
	if !kind.IsValid() {
		return fmt.Errorf("unknown record kind %q (expected contact or event)", kind)
	}

	if err := stateStore.SetAutoSync(context.Background(), accountID, kind, enabled); err != nil {
		return fmt.Errorf("failed to update auto-sync: %w", err)
	}
	if enabled {
		cmd.Printf("Auto-sync enabled for %s/%s.\n", accountID, kind)
	} else {
		cmd.Printf("Auto-sync disabled for %s/%s.\n", accountID, kind)
	}
	return nil
}

func runAutosyncRun(cmd *cobra.Command, _ []string) error {
	if syncScheduler == nil {
		return errors.New("scheduler not configured")
	}

	cmd.Println("Running one scheduling round...")
	syncScheduler.RunOnce(context.Background())
	cmd.Println("Done.")
	return nil
}

func runAutosyncWatch(cmd *cobra.Command, _ []string) error {
	if syncScheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Scheduler running; press Ctrl-C to stop.")
	if err := syncScheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler stopped: %w", err)
	}
	cmd.Println("Scheduler stopped.")
	return nil
}
