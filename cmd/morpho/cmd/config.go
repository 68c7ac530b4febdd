package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/morpho/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	initCmd := &cobra.Command{
		Use:         "init [FILE]",
		Short:       "Write a configuration file with the default settings",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				file = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(file); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", file)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.GenerateDefaultConfigFile(file); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", file)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(c.config())
			if err != nil {
				return err
			}
			if used := c.loader.GetConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	pathCmd := &cobra.Command{
		Use:         "path",
		Short:       "List the directories searched for " + config.ConfigFileName + ".yaml",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.GetConfigSearchPaths() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}
