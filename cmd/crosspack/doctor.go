package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/install"
	"github.com/crosspack/crosspack/internal/txn"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Print prefix, bin, cache, and transaction health",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	l, err := prefixLayout()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "prefix: %s\n", l.Prefix())
	reportDir(out, "bin", l.BinDir())
	reportDir(out, "cache", l.CacheDir())
	reportDir(out, "state", l.StateDir())
	reportDir(out, "share", l.ShareDir())

	receipts, err := install.ReadReceipts(l)
	if err != nil {
		fmt.Fprintf(out, "packages: error reading receipts: %v\n", err)
	} else {
		fmt.Fprintf(out, "packages: %d installed\n", len(receipts))
	}

	txid, err := txn.ReadActiveTransaction(l)
	if err != nil {
		fmt.Fprintf(out, "transactions: error reading active marker: %v\n", err)
	} else if txid == "" {
		fmt.Fprintln(out, "transactions: none active")
	} else {
		metadata, merr := txn.ReadMetadata(l, txid)
		if merr != nil || metadata == nil {
			fmt.Fprintf(out, "transactions: active marker names '%s' but metadata is unreadable; run 'repair'\n", txid)
		} else {
			fmt.Fprintf(out, "transactions: '%s' active (operation=%s, status=%s); run 'repair' to finish it\n", txid, metadata.Operation, metadata.Status)
		}
	}

	return nil
}

func reportDir(out io.Writer, label, path string) {
	info, err := os.Stat(path)
	switch {
	case err != nil && os.IsNotExist(err):
		fmt.Fprintf(out, "%s: %s (missing)\n", label, path)
	case err != nil:
		fmt.Fprintf(out, "%s: %s (error: %v)\n", label, path, err)
	case !info.IsDir():
		fmt.Fprintf(out, "%s: %s (not a directory)\n", label, path)
	default:
		fmt.Fprintf(out, "%s: %s (ok)\n", label, path)
	}
}
