package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/install"
)

var uninstallEscalation string

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed package and any dependencies it was the last user of",
	Args:  cobra.ExactArgs(1),
	RunE:  runUninstall,
}

func init() {
	uninstallCmd.Flags().StringVar(&uninstallEscalation, "escalation", "prompt", "confirmation policy: prompt, auto, none")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	if err := validEscalation(uninstallEscalation); err != nil {
		return err
	}
	name := args[0]

	l, err := prefixLayout()
	if err != nil {
		return err
	}

	ok, err := confirmEscalation(uninstallEscalation, fmt.Sprintf("Uninstall %s?", name))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "aborted")
		return nil
	}

	result, err := install.Uninstall(l, name, install.UninstallOptions{})
	if err != nil {
		return err
	}

	switch result.Status {
	case install.StatusNotInstalled:
		fmt.Fprintf(out, "%s is not installed\n", name)
	case install.StatusBlockedByDependents:
		fmt.Fprintf(out, "%s is still required by: %s\n", name, strings.Join(result.BlockingRoots, ", "))
		return fmt.Errorf("blocked-by-dependents: %s", name)
	case install.StatusRepairedStaleState:
		fmt.Fprintf(out, "uninstalled %s (repaired stale install state)\n", name)
	default:
		fmt.Fprintf(out, "uninstalled %s\n", name)
	}
	for _, pruned := range result.PrunedDependencies {
		fmt.Fprintf(out, "  also removed unused dependency %s\n", pruned)
	}
	return nil
}
