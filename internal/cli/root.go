// Package cli implements decisionq, the operator tool for the query engine.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/pkg/registry"
)

var (
	cfgFile      string
	registryPath string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "decisionq",
	Short: "Compile and inspect government-decision queries",
	Long: `decisionq runs the query engine offline.

It compiles requests with the template path only, validates SQL against the
engine's rules and lists or checks the template catalog. No broker, database
or generation service is contacted.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "decisionq v1.0.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "template override registry")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("template.registry_path", rootCmd.PersistentFlags().Lookup("registry"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads the worker configuration file, when present, for the
// settings the offline engine shares with the workers.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("DECISIONQ")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadCatalog returns the builtin catalog merged with the configured
// override registry.
func loadCatalog() (*catalog.Catalog, error) {
	cat := catalog.Default()
	path := viper.GetString("template.registry_path")
	if path == "" {
		return cat, nil
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return cat.WithOverrides(reg)
}
