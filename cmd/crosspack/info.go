package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show every known version of a package, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	name := args[0]

	l, err := prefixLayout()
	if err != nil {
		return err
	}
	idx, err := openIndex(l)
	if err != nil {
		return err
	}

	versions, err := idx.PackageVersions(name)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("package '%s' was not found in the registry index", name)
	}

	out := cmd.OutOrStdout()
	for _, m := range versions {
		fmt.Fprintf(out, "%s %s\n", m.Name, m.Version)
		if m.License != "" {
			fmt.Fprintf(out, "  license: %s\n", m.License)
		}
		if m.Homepage != "" {
			fmt.Fprintf(out, "  homepage: %s\n", m.Homepage)
		}
		if len(m.Provides) > 0 {
			fmt.Fprintf(out, "  provides: %v\n", m.Provides)
		}
		for _, artifact := range m.Artifacts {
			fmt.Fprintf(out, "  target %s: %s\n", artifact.Target, artifact.URL)
			for _, bin := range artifact.Binaries {
				fmt.Fprintf(out, "    bin: %s -> %s\n", bin.Name, bin.Path)
			}
			for _, completion := range artifact.Completions {
				fmt.Fprintf(out, "    completion(%s): %s\n", completion.Shell, completion.Path)
			}
			for _, app := range artifact.GuiApps {
				fmt.Fprintf(out, "    gui app: %s (%s)\n", app.AppID, app.DisplayName)
			}
		}
	}
	return nil
}
