package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/regsource"
)

var updateCmd = &cobra.Command{
	Use:   "update [source...]",
	Short: "Sync one or more registry sources, or every configured source",
	RunE:  runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	results, err := store.UpdateSources(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var updated, upToDate, failed int
	for _, r := range results {
		switch r.Status {
		case regsource.StatusUpdated:
			updated++
			fmt.Fprintf(out, "%s: updated (%s)\n", r.Name, r.SnapshotID)
		case regsource.StatusUpToDate:
			upToDate++
			fmt.Fprintf(out, "%s: up-to-date (%s)\n", r.Name, r.SnapshotID)
		case regsource.StatusFailed:
			failed++
			fmt.Fprintf(out, "%s: failed: %s\n", r.Name, r.Error)
		}
	}
	fmt.Fprintf(out, "update summary: updated=%d up-to-date=%d failed=%d\n", updated, upToDate, failed)

	if failed > 0 {
		return fmt.Errorf("%d source(s) failed to update", failed)
	}
	return nil
}
