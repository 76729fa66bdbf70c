// Package cmd implements the command-line interface for godocscan.
// It provides the root command and subcommands for running the scan
// scheduler and inspecting the analysis queue.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joho/godotenv"
	"github.com/jonesrussell/godocscan/cmd/queue"
	"github.com/jonesrussell/godocscan/cmd/scan"
	"github.com/jonesrussell/godocscan/cmd/serve"
	"github.com/jonesrussell/godocscan/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands
	Debug bool

	// rootCmd represents the root command for the godocscan CLI.
	rootCmd = &cobra.Command{
		Use:   "godocscan",
		Short: "A document scan and AI analysis scheduler",
		Long: `godocscan watches document repository instances on a cron schedule,
queues new documents for AI metadata analysis, and optionally applies
the suggestions back to the source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get debug flag before creating logger
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("godocscan version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(serve.Command(&Debug))
	rootCmd.AddCommand(scan.Command(&Debug))
	rootCmd.AddCommand(queue.Command(&Debug))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Environment variables take precedence over config file values.
	viper.SetEnvPrefix("GODOCSCAN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config.SetDefaults(viper.GetViper())

	// Config file is optional: defaults and environment variables cover
	// every setting.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Config file not found: %v (using defaults and environment variables)\n", err)
	}

	return nil
}
