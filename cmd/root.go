package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/microx-shell/microx/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "microx",
	Short: "An AI-augmented interactive shell",
	Long: `micro_X is an interactive shell that runs literal commands directly
and translates natural-language requests into commands via a local or
remote AI model. Commands execute under per-command categories that
decide where their output goes.`,
	Run: func(cmd *cobra.Command, args []string) {
		application, err := app.NewApplication()
		if err != nil {
			log.Fatalf("Failed to create application: %v", err)
		}
		defer application.Stop()

		if err := application.Start(); err != nil {
			log.Fatalf("Application error: %v", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(useCmd)
}
