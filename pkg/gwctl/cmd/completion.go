package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const completionLong = `Print a completion script for gwctl to standard output.

Completions cover every subcommand and flag, plus the config keys accepted by
"gwctl config get|set|unset".`

const completionExample = `  # bash, current shell only
  source <(gwctl completion bash)

  # bash, every new shell (Linux)
  gwctl completion bash > /etc/bash_completion.d/gwctl

  # zsh
  gwctl completion zsh > "${fpath[1]}/_gwctl"

  # fish
  gwctl completion fish > ~/.config/fish/completions/gwctl.fish

  # PowerShell
  gwctl completion powershell | Out-String | Invoke-Expression`

func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion <bash|zsh|fish|powershell>",
		Short:                 "Generate the gwctl shell completion script",
		Long:                  completionLong,
		Example:               completionExample,
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			root, w := cmd.Root(), rt.Writer()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(w)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
