package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

var (
	recordFields  []string
	recordVersion int64
	recordStatus  string
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage local records",
	Long: `Inspect and edit the local record store. Edits are queued as pending
and pushed to the provider on the next sync pass.`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list <account-id> <kind>",
	Short: "List records for an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordsList,
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsShow,
}

var recordsCreateCmd = &cobra.Command{
	Use:   "create <account-id> <kind>",
	Short: "Create a local record",
	Long: `Creates a record locally as pending_create. Field values are given as
repeated --field key=value flags, e.g.

  relaysync records create acc-1 contact --field display_name="Ann Barker" --field emails=ann@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordsCreate,
}

var recordsUpdateCmd = &cobra.Command{
	Use:   "update <record-id>",
	Short: "Edit a local record",
	Long: `Applies a local edit guarded by --version, the version last observed.
If the record changed since, the edit is rejected and the current copy
is shown; re-run with the fresh version to overwrite deliberately.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordsUpdate,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsDelete,
}

var recordsResolveCmd = &cobra.Command{
	Use:   "resolve <record-id> <keep_local|accept_remote>",
	Short: "Resolve a sync conflict",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordsResolve,
}

func init() {
	recordsListCmd.Flags().StringVar(&recordStatus, "status", "", "Only records in this sync status")
	recordsCreateCmd.Flags().StringArrayVar(&recordFields, "field", nil, "Field as key=value (repeatable)")
	recordsUpdateCmd.Flags().StringArrayVar(&recordFields, "field", nil, "Field as key=value (repeatable)")
	recordsUpdateCmd.Flags().Int64Var(&recordVersion, "version", 0, "Version last observed")
	recordsDeleteCmd.Flags().Int64Var(&recordVersion, "version", 0, "Version last observed")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsCreateCmd)
	recordsCmd.AddCommand(recordsUpdateCmd)
	recordsCmd.AddCommand(recordsDeleteCmd)
	recordsCmd.AddCommand(recordsResolveCmd)
	rootCmd.AddCommand(recordsCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	ctx := context.Background()
	accountID, kind := args[0], domain.RecordKind(args[1])

	var (
		records []domain.Record
		err     error
	)
	if recordStatus != "" {
		records, err = recordService.ListByStatus(ctx, accountID, kind, domain.SyncStatus(recordStatus))
	} else {
		records, err = recordService.List(ctx, accountID, kind)
	}
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(records) == 0 {
		cmd.Println("No records found.")
		return nil
	}
	for i := range records {
		rec := &records[i]
		name := recordLabel(rec)
		cmd.Printf("%s  v%d  %-15s  %s\n", rec.ID, rec.Version, rec.SyncStatus, name)
	}
	cmd.Printf("\n%d record(s)\n", len(records))
	return nil
}

func runRecordsShow(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	rec, err := recordService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	cmd.Printf("ID:        %s\n", rec.ID)
	cmd.Printf("Account:   %s\n", rec.AccountID)
	cmd.Printf("Kind:      %s\n", rec.Kind)
	cmd.Printf("Status:    %s\n", rec.SyncStatus)
	cmd.Printf("Version:   %d\n", rec.Version)
	if rec.RemoteID != "" {
		cmd.Printf("Remote ID: %s\n", rec.RemoteID)
	}
	if rec.IsDeleted {
		cmd.Println("Deleted:   yes")
	}
	if rec.SyncError != "" {
		cmd.Printf("Error:     %s\n", rec.SyncError)
	}
	cmd.Println("Fields:")
	printFields(cmd, rec.Fields, "  ")
	if rec.RemoteSnapshot != nil {
		cmd.Println("Remote copy (conflicting):")
		printFields(cmd, rec.RemoteSnapshot.Fields, "  ")
	}
	return nil
}

func runRecordsCreate(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	fields, err := parseFieldFlags(recordFields)
	if err != nil {
		return err
	}

	rec, err := recordService.Create(context.Background(), args[0], domain.RecordKind(args[1]), fields)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	cmd.Printf("Created record %s (pending push on next sync).\n", rec.ID)
	return nil
}

func runRecordsUpdate(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	fields, err := parseFieldFlags(recordFields)
	if err != nil {
		return err
	}

	rec, err := recordService.Update(context.Background(), args[0], fields, recordVersion)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			cmd.Printf("Edit rejected: the record changed since version %d.\n", recordVersion)
			cmd.Printf("Current version is %d:\n", conflict.Current.Version)
			printFields(cmd, conflict.Current.Fields, "  ")
			cmd.Printf("Re-run with --version %d to overwrite.\n", conflict.Current.Version)
			return err
		}
		return fmt.Errorf("failed to update record: %w", err)
	}
	cmd.Printf("Updated record %s to version %d (pending push on next sync).\n", rec.ID, rec.Version)
	return nil
}

func runRecordsDelete(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	if err := recordService.Delete(context.Background(), args[0], recordVersion); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			cmd.Printf("Delete rejected: the record changed since version %d (current is %d).\n",
				recordVersion, conflict.Current.Version)
			return err
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}
	cmd.Printf("Record %s marked for deletion (removed remotely on next sync).\n", args[0])
	return nil
}

func runRecordsResolve(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	rec, err := recordService.Resolve(context.Background(), args[0], domain.ConflictResolution(args[1]))
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	cmd.Printf("Conflict resolved (%s); record %s is now %s.\n", args[1], rec.ID, rec.SyncStatus)
	return nil
}

// parseFieldFlags turns repeated key=value flags into a field map.
func parseFieldFlags(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, errors.New("at least one --field key=value is required")
	}
	fields := make(map[string]any, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q, expected key=value", f)
		}
		fields[key] = value
	}
	return fields, nil
}

func recordLabel(rec *domain.Record) string {
	for _, key := range []string{"display_name", "title"} {
		if v, ok := rec.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return "(unnamed)"
}

func printFields(cmd *cobra.Command, fields map[string]any, indent string) {
	data, err := json.MarshalIndent(fields, indent, "  ")
	if err != nil {
		cmd.Printf("%s%v\n", indent, fields)
		return
	}
	cmd.Printf("%s%s\n", indent, data)
}
