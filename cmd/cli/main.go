package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host  string
	token string
	claim string
)

var rootCmd = &cobra.Command{
	Use:   "scoreline-cli",
	Short: "A CLI to interact with the scoreline server",
	Long: `A command-line interface for making requests to the various endpoints
of the scoreline application.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("SCORELINE_TOKEN"), "Principal token (see sign-in)")
	rootCmd.PersistentFlags().StringVar(&claim, "claim", os.Getenv("SCORELINE_ADMIN_CLAIM"), "Admin claim for locked edits")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
