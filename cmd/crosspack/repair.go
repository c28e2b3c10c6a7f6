package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/txn"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Finish whatever transaction was left active by a crashed run",
	Args:  cobra.NoArgs,
	RunE:  runRepair,
}

func runRepair(cmd *cobra.Command, args []string) error {
	l, err := prefixLayout()
	if err != nil {
		return err
	}

	txid, err := txn.ReadActiveTransaction(l)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if txid == "" {
		fmt.Fprintln(out, "no active transaction; nothing to repair")
		return nil
	}

	metadata, err := txn.ReadMetadata(l, txid)
	if err != nil {
		return err
	}
	if metadata == nil {
		fmt.Fprintf(out, "active marker names '%s' but its metadata is missing; clearing stale marker\n", txid)
		return txn.ClearActiveTransaction(l)
	}

	journal, err := txn.ReadJournal(l, txid)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "transaction %s: operation=%s status=%s steps=%d\n", txid, metadata.Operation, metadata.Status, len(journal))

	t, err := txn.Resume(l, txid)
	if err != nil {
		return err
	}
	if err := t.Abort(); err != nil {
		return err
	}
	fmt.Fprintf(out, "repaired: marked %s aborted, released active-transaction marker\n", txid)
	fmt.Fprintln(out, "note: this does not undo filesystem mutations already journaled by the crashed run")
	return nil
}
