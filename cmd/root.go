package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mhews/mhews/cmd/notify"
	"github.com/mhews/mhews/cmd/serve"
	"github.com/mhews/mhews/cmd/weekly"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mhews",
		Short:         "Multi-hazard early warning system backend",
		Version:       settings.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		notify.Command(settings),
		weekly.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings)
	}

	return rootCmd
}

// initialize sets up logging once flags have been applied to settings.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	logger.Global().Module("main").Info("mhews starting",
		logger.String("version", settings.Version),
		logger.String("build_date", settings.BuildDate),
		logger.String("database", settings.Database.Type))
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Database.Type, "database", viper.GetString("database.type"), "Database backend (sqlite or mysql)")
	rootCmd.PersistentFlags().StringVar(&settings.Database.SQLite.Path, "dbpath", viper.GetString("database.sqlite.path"), "Path to the SQLite database")

	return bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"debug":    "debug",
		"database": "database.type",
		"dbpath":   "database.sqlite.path",
	})
}

// bindFlags binds each flag to its config key so that flags take precedence
// over the config file.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
