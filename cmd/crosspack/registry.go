package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/regsource"
)

var (
	registryAddKind        string
	registryAddFingerprint string
	registryAddPriority    uint32
	registryAddDisabled    bool
	registryRemovePurge    bool
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage configured registry sources",
}

var registryAddCmd = &cobra.Command{
	Use:   "add <name> <location>",
	Short: "Add a registry source",
	Args:  cobra.ExactArgs(2),
	RunE:  runRegistryAdd,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured registry sources",
	Args:  cobra.NoArgs,
	RunE:  runRegistryList,
}

var registryRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registry source",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryRemove,
}

func init() {
	registryAddCmd.Flags().StringVar(&registryAddKind, "kind", "git", "source kind: git or filesystem")
	registryAddCmd.Flags().StringVar(&registryAddFingerprint, "fingerprint", "", "SHA-256 fingerprint of the source's registry.pub (required)")
	registryAddCmd.Flags().Uint32Var(&registryAddPriority, "priority", 0, "source priority, lower wins ties")
	registryAddCmd.Flags().BoolVar(&registryAddDisabled, "disabled", false, "add the source without enabling it")

	registryRemoveCmd.Flags().BoolVar(&registryRemovePurge, "purge-cache", false, "also delete the source's synced cache")

	registryCmd.AddCommand(registryAddCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryRemoveCmd)
}

func openStore() (*regsource.Store, error) {
	l, err := prefixLayout()
	if err != nil {
		return nil, err
	}
	return regsource.New(registryStateRoot(l)), nil
}

func runRegistryAdd(cmd *cobra.Command, args []string) error {
	if registryAddFingerprint == "" {
		return fmt.Errorf("--fingerprint is required")
	}
	var kind regsource.SourceKind
	switch registryAddKind {
	case "git":
		kind = regsource.SourceGit
	case "filesystem":
		kind = regsource.SourceFilesystem
	default:
		return fmt.Errorf("invalid --kind %q: must be git or filesystem", registryAddKind)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	record := regsource.SourceRecord{
		Name:              args[0],
		Kind:              kind,
		Location:          args[1],
		FingerprintSHA256: registryAddFingerprint,
		Enabled:           !registryAddDisabled,
		Priority:          registryAddPriority,
	}
	if err := store.AddSource(record); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added source %s\n", record.Name)
	return nil
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	listed, err := store.ListSourcesWithSnapshotState()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, entry := range listed {
		status := "none"
		switch {
		case entry.Snapshot.Ready:
			status = fmt.Sprintf("ready:%s", entry.Snapshot.SnapshotID)
		case entry.Snapshot.Exists:
			status = fmt.Sprintf("error:%s:%s", entry.Snapshot.Status, entry.Snapshot.ReasonCode)
		}
		enabled := "enabled"
		if !entry.Source.Enabled {
			enabled = "disabled"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\t%s\n", entry.Source.Name, entry.Source.Kind, entry.Source.Location, entry.Source.Priority, enabled, status)
	}
	return nil
}

func runRegistryRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.RemoveSourceWithCachePurge(args[0], registryRemovePurge); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed source %s\n", args[0])
	return nil
}
