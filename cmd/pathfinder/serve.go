package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pathfinder-ai/pathfinder/identity"
	"github.com/pathfinder-ai/pathfinder/server"
	"github.com/pathfinder-ai/pathfinder/voice"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			var verifier identity.Verifier = identity.NullVerifier{}
			if app.cfg.Auth0Domain != "" && app.cfg.Auth0Audience != "" {
				verifier = identity.NewAuth0(app.cfg.Auth0Domain, app.cfg.Auth0Audience)
			}

			var synth voice.Synthesizer
			if app.cfg.ElevenLabsKey != "" {
				synth = voice.NewElevenLabs(app.cfg.ElevenLabsKey)
			}

			handler := server.New(server.Config{
				Engine:          app.engine,
				Verifier:        verifier,
				Voice:           synth,
				Logger:          app.log,
				PipelineTimeout: app.cfg.PipelineTimeout,
				Registry:        app.registry,
			})

			srv := &http.Server{
				Addr:              app.cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				app.log.Info().Str("addr", app.cfg.Addr).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case sig := <-stop:
				app.log.Info().Str("signal", sig.String()).Msg("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
}
