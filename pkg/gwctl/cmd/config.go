package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gwctl/gwctl/pkg/gwctl/config"
	"github.com/gwctl/gwctl/pkg/gwctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gwctl configuration",
	}

	cmd.AddCommand(
		newConfigViewCommand(),
		newConfigGetCommand(),
		newConfigSetCommand(),
		newConfigUnsetCommand(),
		newConfigPathCommand(),
	)

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "get [key]",
		Short:     "Print one configuration value, or all of them",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			w := rt.Writer()
			if len(args) == 1 {
				value, err := rt.cfg.Get(args[0])
				if err != nil {
					return err
				}
				if value == "" {
					value = effectiveValue(rt, args[0])
				}
				_, _ = fmt.Fprintln(w, value)
				return nil
			}
			for _, key := range config.Keys() {
				value, err := rt.cfg.Get(key)
				if err != nil {
					return err
				}
				if value == "" {
					value = effectiveValue(rt, key) + " (default)"
				}
				_, _ = fmt.Fprintf(w, "%s: %s\n", key, value)
			}
			return nil
		},
	}
}

// effectiveValue is what gwctl uses when key is not set in the file.
func effectiveValue(rt *runtimeState, key string) string {
	switch key {
	case config.KeyAPIURL:
		if url, err := config.ResolveAPIURL("", rt.cfg); err == nil {
			return url
		}
		return config.DefaultAPIURL
	case config.KeyJWKSTTL:
		return fmt.Sprint(config.DefaultJWKSTTLSeconds)
	case config.KeyTokenStorage:
		return config.DefaultTokenStorage
	case config.KeyOutputFormat:
		return config.DefaultOutputFormat
	default:
		return ""
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Set a configuration value",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(rt.configPath, rt.cfg); err != nil {
				return err
			}
			value, _ := rt.cfg.Get(args[0])
			_, _ = fmt.Fprintf(rt.Writer(), "Set %s to %s\n", args[0], value)
			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "unset <key>",
		Short:     "Remove a configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			changed, err := rt.cfg.Unset(args[0])
			if err != nil {
				return err
			}
			if !changed {
				_, _ = fmt.Fprintf(rt.Writer(), "%s was not set\n", args[0])
				return nil
			}
			if err := config.Save(rt.configPath, rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Unset %s\n", args[0])
			return nil
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file and data directory locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "config: %s\ndata:   %s\n", rt.configPath, rt.dataDir)
			return nil
		},
	}
}
