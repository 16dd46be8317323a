// Command blast drives a running broadcast server from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "blast:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var apiURL, user, pass string

	rootCmd := &cobra.Command{
		Use:   "blast",
		Short: "Send WhatsApp broadcasts through the API server",
		Long: `blast talks to a running broadcast server.

Examples:
  blast qr
  blast send --file customers.xlsx --template 2f1c... --at 2026-05-01T09:00:00+03:00
  blast send --to 0501234567 --to 0507654321 --text "{Hi|Hello} <name>"
  blast status JOB_ID --watch`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("BLAST_API_URL", "http://localhost:2121"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&user, "user", envOr("BLAST_API_USER", "admin"), "API username")
	rootCmd.PersistentFlags().StringVar(&pass, "password", os.Getenv("BLAST_API_PASS"), "API password")

	client := func() *Client { return NewClient(apiURL, user, pass) }

	rootCmd.AddCommand(
		newSendCmd(client),
		newStatusCmd(client),
		newCancelCmd(client),
		newQRCmd(client),
		newHashPasswordCmd(),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
