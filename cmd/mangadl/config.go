package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangadl/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(configPath); err == nil && !force {
			cobra.CheckErr(fmt.Errorf("%s already exists (use --force to overwrite)", configPath))
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			cobra.CheckErr(err)
		}

		cobra.CheckErr(config.DefaultSettings().Save(configPath))
		fmt.Printf("✅ Wrote default settings to %s\n", configPath)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := json.MarshalIndent(settings, "", "  ")
		cobra.CheckErr(err)
		fmt.Printf("# %s\n%s\n", configPath, raw)
		fmt.Printf("# image threads in use: %d\n", settings.ImageThreads())
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
