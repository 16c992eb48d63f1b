package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const app = "tailorjobctl"

var rootCmd = &cobra.Command{
	Use:          app,
	Short:        "tailorjobctl runs support and maintenance tasks against the TailorJob databases",
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")

	viper.BindPFlag("yes", rootCmd.PersistentFlags().Lookup("yes"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// initConfig loads .env for the database settings and lets TAILORJOBCTL_* override flags.
func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix(app)
	viper.AutomaticEnv()
}
