package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/manifest"
)

var completionsCmd = &cobra.Command{
	Use:       "completions <shell>",
	Short:     "Emit shell completions for crosspack plus a package-completion loader snippet",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE:      runCompletions,
}

func runCompletions(cmd *cobra.Command, args []string) error {
	shell := args[0]
	out := cmd.OutOrStdout()
	root := cmd.Root()

	l, err := prefixLayout()
	if err != nil {
		return err
	}

	switch shell {
	case "bash":
		if err := root.GenBashCompletionV2(out, true); err != nil {
			return err
		}
	case "zsh":
		if err := root.GenZshCompletion(out); err != nil {
			return err
		}
	case "fish":
		if err := root.GenFishCompletion(out, true); err != nil {
			return err
		}
	case "powershell":
		if err := root.GenPowerShellCompletionWithDesc(out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported shell %q: must be one of bash, zsh, fish, powershell", shell)
	}

	fmt.Fprintln(out, packageCompletionLoaderSnippet(shell, l.PackageCompletionsShellDir(manifest.CompletionShell(shell))))
	return nil
}

// packageCompletionLoaderSnippet returns a shell-appropriate loader that
// sources every package completion script exposed into dir by an
// installed artifact.
func packageCompletionLoaderSnippet(shell, dir string) string {
	switch shell {
	case "fish":
		return fmt.Sprintf(`for __crosspack_f in %s/*
    source $__crosspack_f
end`, filepath.ToSlash(dir))
	case "powershell":
		return fmt.Sprintf(`Get-ChildItem "%s" -ErrorAction SilentlyContinue |
  ForEach-Object { . $_.FullName }`, dir)
	default:
		return fmt.Sprintf(`for __crosspack_f in "%s"/*; do
  [ -r "$__crosspack_f" ] && . "$__crosspack_f"
done
unset __crosspack_f`, dir)
	}
}
