package main

import (
	"context"
	"fmt"
	"pairscan/internal/config"
	"pairscan/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// verifyCommand constructs the 'verify' subcommand that submits one code pair
// to the configured verification endpoint and prints the outcome.
func verifyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submits a code pair to the verification endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			first, _ := cmd.Flags().GetString("first")
			second, _ := cmd.Flags().GetString("second")

			res, err := newVerifier(ctx, cfg).Verify(ctx, first, second)
			if err != nil {
				logger.Fatal(ctx, "could not verify pair", zap.Error(err))
			}

			fmt.Println(res.Outcome) //nolint: forbidigo
			if verbose, _ := cmd.Flags().GetBool("body"); verbose {
				fmt.Println(res.Body) //nolint: forbidigo
			}
		},
	}

	cmd.Flags().String("first", "", "First (delivery) code")
	cmd.Flags().String("second", "", "Second (product) code")
	cmd.Flags().Bool("body", false, "Print the raw response body")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("second")

	return cmd
}
