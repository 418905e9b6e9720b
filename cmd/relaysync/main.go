// Command relaysync synchronises contacts and calendar events between a
// local record store and remote directory providers.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/relaysync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/relaysync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/relaysync/internal/adapters/driving/cli"
	"github.com/custodia-labs/relaysync/internal/core/services"
	"github.com/custodia-labs/relaysync/internal/directory"
)

// Build-time overrides via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relaysync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	accounts := store.AccountStore()
	records := store.RecordStore()
	states := store.SyncStateStore()

	factory := directory.NewFactory()
	engine := services.NewSyncOrchestrator(accounts, records, states, factory)
	recordSvc := services.NewRecordService(records, accounts)

	interval := services.DefaultSyncInterval
	if secs := cfg.GetInt("sync.interval_seconds"); secs > 0 {
		interval = time.Duration(secs) * time.Second
	}
	scheduler := services.NewScheduler(interval, states, engine)

	cli.SetServices(recordSvc, engine, accounts, states, scheduler)
	cli.SetVersion(version)
	return cli.Execute()
}
