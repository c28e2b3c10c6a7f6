package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/install"
	"github.com/crosspack/crosspack/internal/resolver"
)

var (
	upgradeDryRun     bool
	upgradeProviders  map[string]string
	upgradeEscalation string
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [spec]",
	Short: "Re-resolve and upgrade one root package, or all of them if spec is omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpgrade,
}

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeDryRun, "dry-run", false, "resolve and print the plan without upgrading")
	upgradeCmd.Flags().StringToStringVar(&upgradeProviders, "provider", nil, "name=pkg overrides for capability resolution (repeatable)")
	upgradeCmd.Flags().StringVar(&upgradeEscalation, "escalation", "prompt", "confirmation policy: prompt, auto, none")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	if err := validEscalation(upgradeEscalation); err != nil {
		return err
	}

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
	receipts, err := install.ReadReceipts(l)
	if err != nil {
		return err
	}
	installedVersions := make(map[string]string, len(receipts))
	for _, r := range receipts {
		installedVersions[r.Name] = r.Version
	}

	var roots []resolver.RootRequirement
	rootNames := map[string]bool{}
	if len(args) == 1 {
		name, requirement := parseSpec(args[0])
		constraint, err := parseConstraint(requirement)
		if err != nil {
			return err
		}
		roots = append(roots, resolver.RootRequirement{Name: name, Constraint: constraint})
		rootNames[name] = true
	} else {
		for _, r := range receipts {
			if r.InstallReason != install.ReasonRoot {
				continue
			}
			constraint, err := parseConstraint("*")
			if err != nil {
				return err
			}
			roots = append(roots, resolver.RootRequirement{Name: r.Name, Constraint: constraint})
			rootNames[r.Name] = true
		}
		if len(roots) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no root packages installed")
			return nil
		}
	}

	graph, err := resolver.ResolveDependencyGraph(roots, pins, makeLoadVersions(idx, upgradeProviders))
	if err != nil {
		return err
	}

	changed := false
	for _, name := range graph.InstallOrder {
		if installedVersions[name] != graph.Manifests[name].Version.String() {
			changed = true
			break
		}
	}

	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, "already up to date")
		return nil
	}

	if upgradeDryRun {
		for _, name := range graph.InstallOrder {
			m := graph.Manifests[name]
			current, wasInstalled := installedVersions[name]
			switch {
			case !wasInstalled:
				fmt.Fprintf(out, "install %s@%s\n", m.Name, m.Version)
			case current != m.Version.String():
				fmt.Fprintf(out, "upgrade %s: %s -> %s\n", m.Name, current, m.Version)
			default:
				fmt.Fprintf(out, "keep %s@%s\n", m.Name, m.Version)
			}
		}
		return nil
	}

	ok, err := confirmEscalation(upgradeEscalation, fmt.Sprintf("Apply %d package change(s)?", len(graph.InstallOrder)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "aborted")
		return nil
	}

	return applyResolvedGraph(out, l, graph, rootNames, "", false)
}
