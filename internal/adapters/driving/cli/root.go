// Package cli implements the relaysync command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
	"github.com/custodia-labs/relaysync/internal/core/ports/driving"
	"github.com/custodia-labs/relaysync/internal/core/services"
	"github.com/custodia-labs/relaysync/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services the commands depend on, wired by the composition root before
// Execute. Commands guard against missing wiring so partial test setups
// fail with a clear message instead of a panic.
var (
	recordService driving.RecordService
	syncEngine    driving.SyncEngine
	accountStore  driven.AccountStore
	stateStore    driven.SyncStateStore
	syncScheduler *services.Scheduler
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "relaysync",
	Short: "Synchronise contacts and calendars with remote providers",
	Long: `Relaysync keeps a local record store and remote directory providers
(Google, Microsoft, generic gateways) in sync, both ways.

Local edits are queued and pushed on the next pass; remote changes are
pulled incrementally and reconciled, with conflicts surfaced for an
explicit decision rather than silently overwritten.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// SetServices wires the service implementations the commands use.
func SetServices(
	records driving.RecordService,
	engine driving.SyncEngine,
	accounts driven.AccountStore,
	states driven.SyncStateStore,
	scheduler *services.Scheduler,
) {
	recordService = records
	syncEngine = engine
	accountStore = accounts
	stateStore = states
	syncScheduler = scheduler
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
