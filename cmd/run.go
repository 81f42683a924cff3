package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"pairscan/internal/api"
	"pairscan/internal/api/handler/v1handler"
	"pairscan/internal/config"
	"pairscan/internal/display"
	"pairscan/internal/eventloop"
	"pairscan/internal/pairing"
	"pairscan/pkg/capture/filecam"
	"pairscan/pkg/decoder/zxing"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"
	"pairscan/pkg/verifier/formpost"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupServer(ctx context.Context, cfg *config.Config, deps api.Deps) func(ctx context.Context) {
	server, err := api.NewServer(deps, api.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) *formpost.Client {
	client, err := formpost.New(&http.Client{Timeout: cfg.Verifier.Timeout}, formpost.Options{
		Endpoint:      cfg.Verifier.Endpoint,
		FirstField:    cfg.Verifier.FirstField,
		SecondField:   cfg.Verifier.SecondField,
		SuccessMarker: cfg.Verifier.SuccessMarker,
	})
	if err != nil {
		logger.Fatal(ctx, "could not create verifier client", zap.Error(err))
	}

	return client
}

func runCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the pairing station, its operator screen and the control API",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mp, err := api.NewMeterProvider()
			if err != nil {
				logger.Fatal(ctx, "could not create meter provider", zap.Error(err))
			}
			defer func() {
				if err := mp.Shutdown(context.Background()); err != nil {
					logger.Warn(ctx, "could not shutdown meter provider", zap.Error(err))
				}
			}()

			hub := display.NewHub(ctx, display.HubOptions{
				MaxDisplayLength: cfg.Preview.MaxDisplayLength,
				PreviewFPS:       cfg.Preview.FPS,
				PreviewWidth:     cfg.Preview.Width,
				JPEGQuality:      cfg.Preview.JPEGQuality,
			})
			presenters := []display.Presenter{hub}
			if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
				presenters = append(presenters, display.NewConsole(ctx, os.Stdout, cfg.Preview.MaxDisplayLength))
			}

			device := filecam.New(filecam.Options{
				Dirs: map[domain.Slot]string{
					domain.SlotFirst:  cfg.Capture.FirstDir,
					domain.SlotSecond: cfg.Capture.SecondDir,
				},
				Warmup:        cfg.Capture.Warmup,
				FrameInterval: cfg.Capture.FrameInterval,
			})

			loop := eventloop.New(cfg.Scan.FrameInterval)
			station := pairing.New(ctx, pairing.Deps{
				Runtime:   loop,
				Device:    device,
				Decoder:   zxing.New(zxing.Options{TryHarder: cfg.Decoder.TryHarder}),
				Verifier:  newVerifier(ctx, cfg),
				Presenter: display.Multi(presenters...),
			}, pairing.NewOptions(cfg))

			stopWebserver := setupServer(ctx, cfg, api.Deps{
				Deps: v1handler.Deps{
					Operator:      pairing.NewRemote(loop, station),
					Events:        hub,
					MeterProvider: mp,
				},
			})

			if cfg.Scan.AutoRestart {
				loop.Post(func() {
					if err := station.Start(); err != nil {
						logger.Warn(ctx, "could not start first cycle", zap.Error(err))
					}
				})
			}

			logger.Info(ctx, "pairing station is running")
			loop.Run(ctx)

			// the loop has stopped; nothing else touches the controller now
			station.Shutdown()
			loop.Drain()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)
		},
	}

	cmd.Flags().Bool("quiet", false, "Do not print operator messages to stdout")

	return cmd
}
