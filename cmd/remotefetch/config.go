package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/remotefetch/internal/config"
	"github.com/quantmind-br/remotefetch/internal/tui"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit remotefetch configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(c.cfg)
			if err != nil {
				return err
			}
			_, err = c.stdout.Write(out)
			return err
		},
	})

	edit := &cobra.Command{
		Use:   "edit",
		Short: "Edit the configuration interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tui.IsInteractive(c.stdin) {
				return tui.ErrNotInteractive
			}
			accessible, _ := cmd.Flags().GetBool("accessible")
			return tui.Run(cmd.Context(), tui.Options{
				Config:     c.cfg,
				Path:       c.configPath(),
				SaveFunc:   c.saveConfig,
				Accessible: accessible,
				Input:      c.stdin,
				Output:     c.stdout,
			})
		},
	}
	edit.Flags().Bool("accessible", false, "Use accessible forms for screen readers")
	cmd.AddCommand(edit)

	return cmd
}

func (c *cli) configPath() string {
	if c.cfgFile != "" {
		return c.cfgFile
	}
	return config.ConfigFilePath()
}

// saveConfig writes cfg to the file it was loaded from
func (c *cli) saveConfig(cfg *config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(c.configPath(), out, 0644); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	c.cfg = cfg
	return nil
}
