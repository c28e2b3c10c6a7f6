package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/install"
)

var pinCmd = &cobra.Command{
	Use:   "pin <spec>",
	Short: "Pin a package to a version requirement",
	Args:  cobra.ExactArgs(1),
	RunE:  runPin,
}

func runPin(cmd *cobra.Command, args []string) error {
	name, requirement := parseSpec(args[0])
	constraint, err := parseConstraint(requirement)
	if err != nil {
		return err
	}

	l, err := prefixLayout()
	if err != nil {
		return err
	}
	if _, err := install.WritePin(l, name, constraint.String()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pinned %s to %s\n", name, constraint.String())
	return nil
}
