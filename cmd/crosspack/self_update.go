package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/resolver"
)

// selfPackageName is the registry package name crosspack installs itself
// under; self-update resolves and installs this name like any other spec.
const selfPackageName = "crosspack"

var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Resolve and install the latest version of crosspack itself",
	Args:  cobra.NoArgs,
	RunE:  runSelfUpdate,
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	l, err := prefixLayout()
	if err != nil {
		return err
	}
	idx, err := openIndex(l)
	if err != nil {
		return err
	}
	pins, err := loadedPins(l)
	if err != nil {
		return err
	}

	constraint, err := parseConstraint("*")
	if err != nil {
		return err
	}
	roots := []resolver.RootRequirement{{Name: selfPackageName, Constraint: constraint}}
	graph, err := resolver.ResolveDependencyGraph(roots, pins, makeLoadVersions(idx, nil))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	resolved := graph.Manifests[selfPackageName]
	fmt.Fprintf(out, "self-updating to %s@%s\n", resolved.Name, resolved.Version)
	return applyResolvedGraph(out, l, graph, map[string]bool{selfPackageName: true}, "", false)
}
