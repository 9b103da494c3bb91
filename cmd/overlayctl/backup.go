package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nwstad/overlayctl/internal/backup"
	"github.com/nwstad/overlayctl/internal/config"
	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/entity"
	"github.com/nwstad/overlayctl/internal/store"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage local entity backups",
	Long: `Manage local backups of widget and overlay drafts.

Backups are identity-stripped snapshots stored per kind in the config
directory, capped at ` + strconv.Itoa(backup.MaxBackups) + ` per kind. A save at the cap is a silent no-op;
delete old snapshots to make room.`,
}

var backupSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a backup of an entity on the device",
	Example: `  overlayctl backup save --kind textOverlay --id 2`,
	RunE:  runBackupSave,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups for a kind",
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <index>",
	Short: "Restore a backup as a new entity on the device",
	Long: `Restore the backup at the given index as a new entity. The snapshot
carries no identity; the device assigns a fresh one, so restoring never
overwrites an existing entity.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRestore,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <index>...",
	Short: "Delete one or more backups",
	Long: `Delete the backups at the given indices. Indices refer to the list as
printed by 'backup list'; when several are given they are resolved
against that same listing, so deleting 0 2 3 removes exactly those
three rows.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBackupDelete,
}

var backupClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all backups for a kind",
	RunE:  runBackupClear,
}

func init() {
	backupCmd.PersistentFlags().StringVar(&kindFlag, "kind", "", "Entity kind: widget, imageOverlay, textOverlay (required)")
	_ = backupCmd.MarkPersistentFlagRequired("kind")

	backupSaveCmd.Flags().IntVar(&identityFlag, "id", 0, "Entity identity on the device (required)")
	_ = backupSaveCmd.MarkFlagRequired("id")

	backupCmd.AddCommand(backupSaveCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupClearCmd)
	rootCmd.AddCommand(backupCmd)
}

// openBackupStore opens the backup store for the --kind flag value.
func openBackupStore() (*backup.Store, entity.Kind, error) {
	kind, err := parseKind(kindFlag)
	if err != nil {
		return nil, "", err
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	bs, err := backup.Open(dir, kind)
	if err != nil {
		return nil, "", err
	}
	return bs, kind, nil
}

func runBackupSave(cmd *cobra.Command, args []string) error {
	bs, kind, err := openBackupStore()
	if err != nil {
		return err
	}

	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s := storeFor(client, kind)
	if err := s.Probe(ctx); err != nil && s.Support() == store.Unsupported {
		return fmt.Errorf("%ss are not supported on this device: %w", s.Kind(), err)
	}
	if _, err := s.List(ctx); err != nil {
		return fmt.Errorf("failed to list %ss: %w", s.Kind(), err)
	}

	for _, e := range s.Entities() {
		if e.Identity != identityFlag || e.Kind != kind {
			continue
		}
		ok, err := bs.Save(e)
		if err != nil {
			return fmt.Errorf("failed to save backup: %w", err)
		}
		if !ok {
			fmt.Printf("Backup limit reached (%d); delete one first with 'overlayctl backup delete'.\n", backup.MaxBackups)
			return nil
		}
		fmt.Printf("Saved backup %d of %s %d.\n", bs.Len()-1, kind, identityFlag)
		return nil
	}
	return fmt.Errorf("no %s with identity %d on the device", kind, identityFlag)
}

func runBackupList(cmd *cobra.Command, args []string) error {
	bs, kind, err := openBackupStore()
	if err != nil {
		return err
	}

	records := bs.List()
	if len(records) == 0 {
		fmt.Printf("No %s backups.\n", kind)
		return nil
	}

	fmt.Printf("%-6s %-14s %-20s %s\n", "INDEX", "POSITION", "SAVED", "PARAMS")
	for i, r := range records {
		fmt.Printf("%-6d %-14s %-20s %s\n",
			i, r.Position, r.SavedAt.Local().Format("2006-01-02 15:04:05"), summarizeParams(r.Params))
	}
	fmt.Printf("\n%d of %d slots used.\n", len(records), backup.MaxBackups)
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	bs, kind, err := openBackupStore()
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return deviceapi.NewValidationError(fmt.Sprintf("invalid backup index %q", args[0]))
	}

	draft, err := bs.Restore(index)
	if err != nil {
		return err
	}

	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s := storeFor(client, kind)
	if err := s.Probe(ctx); err != nil && s.Support() == store.Unsupported {
		return fmt.Errorf("%ss are not supported on this device: %w", s.Kind(), err)
	}

	if err := s.Add(ctx, draft); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	fmt.Printf("Restored backup %d as a new %s.\n", index, kind)
	return nil
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	bs, kind, err := openBackupStore()
	if err != nil {
		return err
	}

	indices := make([]int, 0, len(args))
	for _, arg := range args {
		i, err := strconv.Atoi(arg)
		if err != nil {
			return deviceapi.NewValidationError(fmt.Sprintf("invalid backup index %q", arg))
		}
		indices = append(indices, i)
	}

	if err := bs.DeleteMany(indices); err != nil {
		return err
	}
	fmt.Printf("Deleted %d %s backup(s); %d remain.\n", len(indices), kind, bs.Len())
	return nil
}

func runBackupClear(cmd *cobra.Command, args []string) error {
	bs, kind, err := openBackupStore()
	if err != nil {
		return err
	}

	n := bs.Len()
	if err := bs.Clear(); err != nil {
		return err
	}
	fmt.Printf("Cleared %d %s backup(s).\n", n, kind)
	return nil
}
