package main

import (
	"context"
	"pairscan/pkg/logger"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// labelCommand constructs the 'label' subcommand that renders a QR code label
// as a PNG, e.g. to feed the file-backed cameras.
func labelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Writes a QR code label PNG for the given text",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			text, _ := cmd.Flags().GetString("text")
			out, _ := cmd.Flags().GetString("out")
			size, _ := cmd.Flags().GetInt("size")

			if err := qrcode.WriteFile(text, qrcode.Medium, size, out); err != nil {
				logger.Fatal(ctx, "could not write label", zap.String("out", out), zap.Error(err))
			}
			logger.Info(ctx, "label written", zap.String("out", out))
		},
	}

	cmd.Flags().String("text", "", "Text to encode")
	cmd.Flags().String("out", "label.png", "Output PNG path")
	cmd.Flags().Int("size", 256, "Image side in pixels")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}
