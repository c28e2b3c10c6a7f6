package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/archive"
	"github.com/crosspack/crosspack/internal/fetch"
	"github.com/crosspack/crosspack/internal/httputil"
	"github.com/crosspack/crosspack/internal/install"
	"github.com/crosspack/crosspack/internal/layout"
	"github.com/crosspack/crosspack/internal/resolver"
	"github.com/crosspack/crosspack/internal/txn"
)

var (
	installTarget          string
	installDryRun          bool
	installForceRedownload bool
	installProviders       map[string]string
	installEscalation      string
)

var installCmd = &cobra.Command{
	Use:   "install <spec>",
	Short: "Resolve and install a package and its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installTarget, "target", "", "target triple to install for (defaults to the host)")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "resolve and print the plan without installing")
	installCmd.Flags().BoolVar(&installForceRedownload, "force-redownload", false, "re-fetch the artifact even if cached")
	installCmd.Flags().StringToStringVar(&installProviders, "provider", nil, "name=pkg overrides for capability resolution (repeatable)")
	installCmd.Flags().StringVar(&installEscalation, "escalation", "prompt", "confirmation policy: prompt, auto, none")
}

func runInstall(cmd *cobra.Command, args []string) error {
	if err := validEscalation(installEscalation); err != nil {
		return err
	}
	name, requirement := parseSpec(args[0])
	constraint, err := parseConstraint(requirement)
	if err != nil {
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

	roots := []resolver.RootRequirement{{Name: name, Constraint: constraint}}
	graph, err := resolver.ResolveDependencyGraph(roots, pins, makeLoadVersions(idx, installProviders))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if installDryRun {
		return printInstallPlan(out, l, graph, name)
	}

	ok, err := confirmEscalation(installEscalation, fmt.Sprintf("Install %d package(s) to satisfy %s?", len(graph.InstallOrder), name))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "aborted")
		return nil
	}

	return applyResolvedGraph(out, l, graph, map[string]bool{name: true}, installTarget, installForceRedownload)
}

func printInstallPlan(out io.Writer, l layout.PrefixLayout, graph *resolver.ResolvedGraph, root string) error {
	for _, name := range graph.InstallOrder {
		m := graph.Manifests[name]
		plan, err := install.PlanInstall(l, m, install.Options{Target: installTarget, ForceRedownload: installForceRedownload})
		if err != nil {
			return err
		}
		action := "install dependency"
		if name == root {
			action = "install"
		}
		fmt.Fprintf(out, "%s %s@%s (target=%s, download=%v)\n", action, plan.Name, plan.Version, plan.Target, plan.WillDownload)
	}
	return nil
}

// applyResolvedGraph installs every package in graph's topological order
// inside a single transaction, aborting on the first failure. Every name in
// roots is recorded with InstallReason Root; everything else pulled in only
// to satisfy them is recorded as a Dependency.
func applyResolvedGraph(out io.Writer, l layout.PrefixLayout, graph *resolver.ResolvedGraph, roots map[string]bool, target string, forceRedownload bool) error {
	t, err := txn.Begin(l, "install", "")
	if err != nil {
		return err
	}

	fetcher := fetch.NewDefaultFetcher(httputil.DefaultOptions())
	extractor := archive.DefaultExtractor{}
	opts := install.Options{Target: target, ForceRedownload: forceRedownload}

	for _, name := range graph.InstallOrder {
		m := graph.Manifests[name]
		reason := install.ReasonDependency
		if roots[name] {
			reason = install.ReasonRoot
		}
		deps := dependencyTokens(m, graph.Manifests)

		receipt, err := install.InstallResolved(globalCtx, l, t, m, deps, reason, fetcher, extractor, opts)
		if err != nil {
			_ = t.Abort()
			return fmt.Errorf("failed installing %s@%s: %w", m.Name, m.Version, err)
		}
		fmt.Fprintf(out, "installed %s@%s\n", receipt.Name, receipt.Version)
	}

	return t.Commit()
}
