package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangadl/pkg/config"
	"github.com/kerbaras/mangadl/pkg/data"
)

var (
	configPath string
	verbose    bool

	settings *config.Settings
	logger   = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
)

var rootCmd = &cobra.Command{
	Use:   "mangadl",
	Short: "Concurrent manga chapter downloader",
	Long:  "Download manga chapters concurrently and package them as PDF, CBZ or EPUB",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger.SetLevel(log.WarnLevel)
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
		log.SetDefault(logger)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// logToFile sends log output to a file next to the settings while a full
// screen UI owns the terminal.
func logToFile() (io.Closer, error) {
	path := filepath.Join(filepath.Dir(configPath), "mangadl.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(f)
	return f, nil
}

// openLibrary opens the download library. Downloads work without it, so
// failures are only logged.
func openLibrary() *data.Repository {
	repo, err := data.NewDuckDBRepository(settings.DatabasePath)
	if err != nil {
		logger.Warn("library unavailable", "path", settings.DatabasePath, "err", err)
		return nil
	}
	return repo
}
