package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/txn"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <txid>",
	Short: "Finish a crashed transaction by txid, marking it aborted",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

func runRollback(cmd *cobra.Command, args []string) error {
	txid := args[0]

	l, err := prefixLayout()
	if err != nil {
		return err
	}
	metadata, err := txn.ReadMetadata(l, txid)
	if err != nil {
		return err
	}
	if metadata == nil {
		return fmt.Errorf("no transaction metadata found for '%s'", txid)
	}

	journal, err := txn.ReadJournal(l, txid)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "transaction %s: operation=%s status=%s steps=%d\n", txid, metadata.Operation, metadata.Status, len(journal))

	if metadata.Status != txn.StatusStarted {
		fmt.Fprintf(out, "transaction %s already finalized (%s); nothing to roll back\n", txid, metadata.Status)
		return nil
	}

	t, err := txn.Resume(l, txid)
	if err != nil {
		return err
	}
	if err := t.Abort(); err != nil {
		return err
	}
	fmt.Fprintf(out, "rolled back %s: marked aborted, released active-transaction marker\n", txid)
	fmt.Fprintln(out, "note: this does not undo filesystem mutations already journaled by the crashed run; inspect the journal above and use 'repair' or manual cleanup if packages were left partially staged")
	return nil
}
