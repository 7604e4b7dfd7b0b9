package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"expensebot/internal/validate"
)

// newSignCmd prints the signature header for a payload, for replaying
// webhook deliveries against a local server.
func newSignCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sign [payload-file]",
		Short: "Print the X-Hub-Signature-256 header for a webhook payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("WHATSAPP_APP_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or WHATSAPP_APP_SECRET required")
			}

			var (
				raw []byte
				err error
			)
			if len(args) == 1 && args[0] != "-" {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "X-Hub-Signature-256: %s\n", validate.Sign(raw, secret))
			return nil
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "App secret (defaults to WHATSAPP_APP_SECRET)")
	return cmd
}
