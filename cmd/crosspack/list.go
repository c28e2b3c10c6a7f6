package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/install"
)

var listRootsOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listRootsOnly, "roots", false, "show only explicitly-installed root packages")
}

func runList(cmd *cobra.Command, args []string) error {
	l, err := prefixLayout()
	if err != nil {
		return err
	}
	receipts, err := install.ReadReceipts(l)
	if err != nil {
		return err
	}

	sort.Slice(receipts, func(i, j int) bool { return receipts[i].Name < receipts[j].Name })

	out := cmd.OutOrStdout()
	for _, r := range receipts {
		if listRootsOnly && r.InstallReason != install.ReasonRoot {
			continue
		}
		fmt.Fprintf(out, "%s %s\n", r.Name, r.Version)
	}
	return nil
}
