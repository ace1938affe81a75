package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "CRM dashboard session service",
	Long: `dashboard signs users in against the identity service, resolves their
dashboard roles and guards navigation between role areas.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; settings then come from the environment.
		if err := godotenv.Load(envFile); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devIdentityCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
