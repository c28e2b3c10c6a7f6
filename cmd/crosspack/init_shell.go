package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var initShellCmd = &cobra.Command{
	Use:   "init-shell [shell]",
	Short: "Emit a snippet that prepends bin/ to PATH and sources completions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitShell,
}

func runInitShell(cmd *cobra.Command, args []string) error {
	shell, err := resolveShell(args)
	if err != nil {
		return err
	}

	l, err := prefixLayout()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch shell {
	case "fish":
		fmt.Fprintf(out, "fish_add_path -g %s\n", filepath.ToSlash(l.BinDir()))
		fmt.Fprintf(out, "crosspack completions fish | source\n")
	case "powershell":
		fmt.Fprintf(out, "$env:PATH = \"%s\" + [IO.Path]::PathSeparator + $env:PATH\n", l.BinDir())
		fmt.Fprintf(out, "crosspack completions powershell | Out-String | Invoke-Expression\n")
	default:
		fmt.Fprintf(out, "export PATH=\"%s:$PATH\"\n", l.BinDir())
		fmt.Fprintf(out, "eval \"$(crosspack completions %s)\"\n", shell)
	}
	return nil
}

// resolveShell returns the explicit shell argument, or infers one from
// $SHELL's basename when none is given.
func resolveShell(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		return "", fmt.Errorf("SHELL is not set; pass a shell explicitly: init-shell {bash,zsh,fish,powershell}")
	}
	name := strings.ToLower(filepath.Base(shellPath))
	switch {
	case strings.HasPrefix(name, "bash"):
		return "bash", nil
	case strings.HasPrefix(name, "zsh"):
		return "zsh", nil
	case strings.HasPrefix(name, "fish"):
		return "fish", nil
	case strings.Contains(name, "pwsh"), strings.Contains(name, "powershell"):
		return "powershell", nil
	default:
		return "", fmt.Errorf("could not infer shell from SHELL=%q; pass one explicitly", shellPath)
	}
}
