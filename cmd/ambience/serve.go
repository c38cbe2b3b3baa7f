package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/audio"
	"github.com/livrya/ambience/internal/httpapi"
	"github.com/livrya/ambience/internal/ollama"
	"github.com/livrya/ambience/internal/soundscape"
	"github.com/livrya/ambience/internal/store"
	"github.com/livrya/ambience/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ambience channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	log := logger
	log.Info("ambience starting up",
		zap.Int("port", cfg.Port),
		zap.String("uploads", cfg.UploadsDir),
		zap.Bool("channel", cfg.ChannelEnabled),
	)

	st := store.New(cfg.UploadsDir, log)

	// Ollama (optional: soundtrack suggestions and channel track names)
	var gen ollama.Generator
	var llmModel string
	ollamaReady := false
	if cfg.OllamaURL != "" {
		client := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTemperature, log)
		gen = client
		llmModel = cfg.OllamaModel

		readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
		ollamaReady = client.WaitForReady(readyCtx, 3*time.Second)
		readyCancel()
		if !ollamaReady {
			log.Warn("ollama not available, suggestions fall back until it responds", zap.String("url", cfg.OllamaURL))
		}
	} else {
		log.Info("ollama not configured (set OLLAMA_URL to enable soundtrack suggestions)")
	}
	suggester := ollama.NewSuggester(gen, log)

	deps := httpapi.Deps{
		Store:          st,
		Suggester:      suggester,
		SuggestTimeout: cfg.SuggestTimeout,
		LLMModel:       llmModel,
		Log:            log,
	}

	var webrtcHandler *stream.WebRTCHandler
	if cfg.ChannelEnabled {
		pipeline := audio.NewPipeline(cfg.CrossfadeDuration, nil, log)
		go pipeline.Run(ctx)

		broadcaster := stream.NewBroadcaster()
		go broadcaster.Run(ctx, pipeline.Frames())

		sched := soundscape.NewScheduler(st, pipeline, soundscape.SchedulerConfig{
			StartingCategory: cfg.StartingCategory,
			TrackDuration:    cfg.TrackDuration,
			BufferAhead:      cfg.BufferAhead,
			DwellMin:         cfg.DwellMin,
			DwellMax:         cfg.DwellMax,
		}, log)
		pipeline.OnDecoded(sched.Release)
		if ollamaReady {
			sched.SetNameFunc(suggester.Name)
		}

		webrtcHandler = stream.NewWebRTCHandler(broadcaster, nil, log)

		// Idle detection: WebRTC peers subscribe to the broadcaster too
		sched.SetListenerCountFunc(broadcaster.ListenerCount)

		go sched.Run(ctx)

		deps.Channel = sched
		deps.Player = pipeline
		deps.Stream = stream.NewHTTPHandler(broadcaster, log)
		deps.Offer = webrtcHandler
		deps.ListenerCount = broadcaster.ListenerCount
		deps.PeerCount = webrtcHandler.PeerCount
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(httpapi.NewHandlers(deps)),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /stream responses are unbounded.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	if webrtcHandler != nil {
		webrtcHandler.Close()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Open /stream connections do not drain on their own.
		_ = srv.Close()
	}
	return nil
}
