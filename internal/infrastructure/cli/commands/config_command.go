package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/aicmd-go/internal/app"
)

// NewConfigCommand creates the config command with its subcommands.
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect aicmd configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd, container)
		},
	}

	configCmd.AddCommand(
		newConfigShowCommand(container),
		newConfigPathCommand(container),
		newConfigValidateCommand(container),
	)

	return configCmd
}

func newConfigShowCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the full effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd, container)
		},
	}
}

func newConfigPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), container.ConfigLoader.Path())
			return nil
		},
	}
}

func newConfigValidateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Reload the configuration file and check its values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := container.ConfigLoader.Load(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}
}

func showConfiguration(cmd *cobra.Command, container *app.Container) error {
	data, err := yaml.Marshal(container.Config)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", container.ConfigLoader.Path(), data)
	return nil
}
