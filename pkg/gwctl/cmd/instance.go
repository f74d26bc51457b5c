package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gwctl/gwctl/pkg/gwctl/management"
	"github.com/gwctl/gwctl/pkg/gwctl/output"
	"github.com/gwctl/gwctl/pkg/gwctl/registry"
)

func NewInstanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instance",
		Aliases: []string{"instances"},
		Short:   "Manage gateway instances and query their management API",
	}
	cmd.AddCommand(
		newInstanceAddCommand(),
		newInstanceListCommand(),
		newInstanceRemoveCommand(),
		newInstanceQueryCommand(management.ResourceInfo, "Show instance information"),
		newInstanceQueryCommand(management.ResourcePipelines, "List the pipelines of an instance"),
		newInstanceQueryCommand(management.ResourceRoutes, "List the routes of an instance"),
		newInstanceReloadCommand(),
		newInstanceSetKeyCommand(),
		newInstanceShowKeyCommand(),
		newInstanceDeleteKeyCommand(),
	)
	return cmd
}

// instanceSelector picks one registered instance from a positional id or
// label, or from --id / --label.
type instanceSelector struct {
	id    string
	label string
}

func (s *instanceSelector) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.id, "id", "", "Instance id")
	cmd.Flags().StringVarP(&s.label, "label", "l", "", "Instance label")
}

func (s *instanceSelector) resolve(rt *runtimeState, args []string) (registry.Instance, error) {
	if len(args) == 1 {
		return rt.Registry().Find(args[0])
	}
	return rt.Registry().Resolve(s.id, s.label)
}

func newInstanceAddCommand() *cobra.Command {
	var (
		inst registry.Instance
		key  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update an instance",
		Long:  "Add or update an instance. The label defaults to ip:port. An optional base64 encryption key is stored in the OS keychain.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			saved, err := rt.Registry().Add(inst)
			if err != nil {
				return err
			}
			w := rt.Writer()
			_, _ = fmt.Fprintf(w, "Saved instance %s (%s) at %s\n", saved.Label, saved.ID, saved.Address())
			if key == "" {
				return nil
			}
			if err := rt.InstanceKeys().Save(saved.ID, key); err != nil {
				rt.Logger().Warnw("Could not save encryption key", "instance", saved.ID, "error", err)
				return nil
			}
			_, _ = fmt.Fprintln(w, "Encryption key saved to the OS keychain.")
			return nil
		},
	}
	cmd.Flags().StringVar(&inst.IP, "ip", "127.0.0.1", "Instance IP address or host name")
	cmd.Flags().Uint16Var(&inst.Port, "port", 8081, "Instance management port")
	cmd.Flags().StringVarP(&inst.Label, "label", "l", "", "Instance label (default ip:port)")
	cmd.Flags().StringVar(&inst.PathPrefix, "path-prefix", registry.DefaultPathPrefix, "Management API path prefix")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Base64 encryption key to store in the OS keychain")
	return cmd
}

func newInstanceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			list, err := rt.Registry().Load()
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				if list == nil {
					list = []registry.Instance{}
				}
				return output.WriteObject(rt.Writer(), format, list)
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(rt.Writer(), "No instances registered. Add one with `gwctl instance add`.")
				return nil
			}
			output.WriteInstanceTable(rt.Writer(), list)
			return nil
		},
	}
}

func newInstanceRemoveCommand() *cobra.Command {
	var (
		ip   string
		port uint16
	)
	cmd := &cobra.Command{
		Use:     "remove [id|label]",
		Aliases: []string{"rm"},
		Short:   "Remove an instance by id, label or address",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			reg := rt.Registry()

			var removed bool
			switch {
			case len(args) == 1:
				removed, err = reg.RemoveByID(args[0])
				if err == nil && !removed {
					removed, err = reg.RemoveByLabel(args[0])
				}
			case ip != "" && port != 0:
				removed, err = reg.RemoveByAddr(ip, port)
			default:
				return errors.New("specify an id or label, or both --ip and --port")
			}
			if err != nil {
				return err
			}
			if !removed {
				return registry.ErrNoInstance
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Removed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "Instance IP address")
	cmd.Flags().Uint16Var(&port, "port", 0, "Instance management port")
	return cmd
}

func newInstanceQueryCommand(resource, short string) *cobra.Command {
	var (
		sel     instanceSelector
		rawJSON bool
	)
	cmd := &cobra.Command{
		Use:   resource + " [id|label]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManagement(cmd, args, &sel, rawJSON, resource, "", func(ctx context.Context, mc *management.Client, inst registry.Instance) (any, error) {
				return mc.Get(ctx, inst, resource)
			})
		},
	}
	sel.bind(cmd)
	cmd.Flags().BoolVar(&rawJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func newInstanceReloadCommand() *cobra.Command {
	var sel instanceSelector
	cmd := &cobra.Command{
		Use:   "reload [id|label]",
		Short: "Trigger a configuration reload on an instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManagement(cmd, args, &sel, false, "", "Reload triggered.", func(ctx context.Context, mc *management.Client, inst registry.Instance) (any, error) {
				return mc.Reload(ctx, inst)
			})
		},
	}
	sel.bind(cmd)
	return cmd
}

type managementCall func(ctx context.Context, mc *management.Client, inst registry.Instance) (any, error)

// runManagement resolves the instance, performs call and renders its result.
// Table output prints header first and unwraps the array held under
// collection, if any.
func runManagement(cmd *cobra.Command, args []string, sel *instanceSelector, rawJSON bool, collection, header string, call managementCall) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	if rawJSON {
		format = output.FormatJSON
	}
	inst, err := sel.resolve(rt, args)
	if err != nil {
		return err
	}
	mc, err := rt.Management()
	if err != nil {
		return err
	}
	res, err := call(cmd.Context(), mc, inst)
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.WriteObject(rt.Writer(), format, res)
	}
	if header != "" {
		_, _ = fmt.Fprintln(rt.Writer(), header)
	}
	return output.WriteValue(rt.Writer(), management.Collection(res, collection))
}

func newInstanceSetKeyCommand() *cobra.Command {
	var (
		sel instanceSelector
		key string
	)
	cmd := &cobra.Command{
		Use:   "set-key [id|label]",
		Short: "Store the encryption key of an instance in the OS keychain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			inst, err := sel.resolve(rt, args)
			if err != nil {
				return err
			}
			if err := rt.InstanceKeys().Save(inst.ID, key); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Encryption key saved for instance %s (%s).\n", inst.Label, inst.ID)
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringVarP(&key, "key", "k", "", "Base64 encryption key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newInstanceShowKeyCommand() *cobra.Command {
	var sel instanceSelector
	cmd := &cobra.Command{
		Use:   "show-key [id|label]",
		Short: "Print the stored encryption key of an instance",
		Long:  "Print the stored encryption key of an instance. The key is sensitive, keep it out of logs and shared terminals.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			inst, err := sel.resolve(rt, args)
			if err != nil {
				return err
			}
			key, found, err := rt.InstanceKeys().Load(inst.ID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no encryption key found for instance %s (%s)", inst.Label, inst.ID)
			}
			rt.Logger().Warnw("Printing a sensitive encryption key", "instance", inst.ID)
			_, _ = fmt.Fprintln(rt.Writer(), key)
			return nil
		},
	}
	sel.bind(cmd)
	return cmd
}

func newInstanceDeleteKeyCommand() *cobra.Command {
	var sel instanceSelector
	cmd := &cobra.Command{
		Use:   "delete-key [id|label]",
		Short: "Remove the stored encryption key of an instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			inst, err := sel.resolve(rt, args)
			if err != nil {
				return err
			}
			deleted, err := rt.InstanceKeys().Delete(inst.ID)
			if err != nil {
				return err
			}
			if deleted {
				_, _ = fmt.Fprintf(rt.Writer(), "Encryption key deleted for instance %s (%s).\n", inst.Label, inst.ID)
			} else {
				_, _ = fmt.Fprintf(rt.Writer(), "No encryption key found for instance %s (%s).\n", inst.Label, inst.ID)
			}
			return nil
		},
	}
	sel.bind(cmd)
	return cmd
}
