// Command livecaptions listens to an audio source, segments it into
// utterances with a voice activity detector, and prints a live caption line
// to stdout while forwarding final captions to the shared state server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/livecaptions/internal/archive"
	"github.com/MrWong99/livecaptions/internal/caption"
	"github.com/MrWong99/livecaptions/internal/caption/broadcast"
	"github.com/MrWong99/livecaptions/internal/config"
	"github.com/MrWong99/livecaptions/internal/health"
	"github.com/MrWong99/livecaptions/internal/observe"
	"github.com/MrWong99/livecaptions/internal/resilience"
	"github.com/MrWong99/livecaptions/internal/segment"
	"github.com/MrWong99/livecaptions/internal/state"
	"github.com/MrWong99/livecaptions/internal/transcript"
	"github.com/MrWong99/livecaptions/pkg/audio"
)

const defaultConfigPath = "config.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	speak := flag.Bool("speak", false, "send final captions to the speech queue instead of the prompt")
	useState := flag.Bool("use-state", false, "gate listening on and forward captions to the state server")
	input := flag.String("input", "", "replay this WAV file instead of capturing the microphone")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "livecaptions: %v\n", err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "livecaptions: %v\n", err)
		return 1
	}
	if *useState && cfg.State.URL == "" {
		cfg.State.URL = config.DefaultStateURL
	}
	if *speak {
		cfg.State.Speak = true
	}
	if *input != "" {
		cfg.Providers.Audio = config.ProviderEntry{
			Name:    "wavfile",
			Options: map[string]any{"path": *input},
		}
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "livecaptions: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stderr, so log lines do not break the caption line on stdout.
	logger := config.NewLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)
	slog.Info("livecaptions starting",
		"config", *configPath,
		"stt", cfg.Providers.STT.Name,
		"vad", cfg.Providers.VAD.Name,
		"audio", cfg.Providers.Audio.Name,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	sessionID := uuid.New()
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "livecaptions",
		InstanceID:  sessionID.String(),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Captions.SampleRate, cfg.Captions.Vocabulary)

	tr, closers, err := buildTranscriber(ctx, cfg, reg)
	defer func() {
		if err := closeAll(closers); err != nil {
			slog.Warn("stt close error", "err", err)
		}
	}()
	if err != nil {
		slog.Error("failed to build transcriber", "err", err)
		return 1
	}

	det, err := buildDetector(cfg, reg)
	if err != nil {
		slog.Error("failed to build detector", "err", err)
		return 1
	}
	defer det.Close()

	format := audio.Format{SampleRate: cfg.Captions.SampleRate, ChunkSize: cfg.Captions.ChunkSize}
	src, err := reg.CreateAudio(cfg.Providers.Audio, format)
	if err != nil {
		slog.Error("failed to build audio source", "name", cfg.Providers.Audio.Name, "err", err)
		return 1
	}
	defer src.Close()

	// ── Loop wiring ───────────────────────────────────────────────────────────
	cache := caption.NewCache()
	display := caption.NewDisplay(os.Stdout, cfg.Captions.MaxLineLength, cache)
	queue := audio.NewQueue()

	opts := []segment.Option{
		segment.WithDisplay(display),
		segment.WithCache(cache),
		segment.WithMetrics(metrics),
		segment.WithLogger(logger),
	}
	if len(cfg.Captions.Vocabulary) > 0 {
		opts = append(opts, segment.WithCorrector(transcript.New(cfg.Captions.Vocabulary, transcript.WithLogger(logger))))
	}

	var checks []health.Checker
	var running atomic.Bool
	checks = append(checks, health.Flag("audio", &running))

	if cfg.State.URL != "" {
		client, err := state.NewClient(cfg.State.URL,
			state.WithTimeout(cfg.State.Timeout),
			state.WithSpeakMode(cfg.State.Speak),
			state.WithLogger(logger),
		)
		if err != nil {
			slog.Error("invalid state url", "err", err)
			return 1
		}
		opts = append(opts,
			segment.WithGate(client),
			segment.WithGateBreaker(resilience.CircuitBreakerConfig{
				Name:         "state-gate",
				MaxFailures:  3,
				ResetTimeout: 5 * time.Second,
				HalfOpenMax:  1,
				Logger:       logger,
			}),
			segment.WithSink("state", client),
		)
		checks = append(checks, health.Ping("state", client.Ping))
		slog.Info("state server enabled", "url", cfg.State.URL, "speak", cfg.State.Speak)
	}

	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		store, pool, err := archive.Connect(ctx, dsn,
			archive.WithSessionID(sessionID),
			archive.WithLogger(logger),
		)
		if err != nil {
			slog.Error("failed to open caption archive", "err", err)
			return 1
		}
		defer pool.Close()
		opts = append(opts, segment.WithSink("archive", store))
		checks = append(checks, health.Ping("archive", pool.Ping))
		slog.Info("caption archive enabled", "session", store.SessionID())
	}

	var hub *broadcast.Hub
	if cfg.Broadcast.ListenAddr != "" {
		hub = broadcast.NewHub(
			broadcast.WithOriginPatterns(cfg.Broadcast.OriginPatterns...),
			broadcast.WithLogger(logger),
			broadcast.WithMetrics(metrics),
		)
		defer hub.Close()
		opts = append(opts, segment.WithSink("broadcast", hub))
	}

	loop, err := segment.New(cfg.Captions.Segment(), queue, det, tr, opts...)
	if err != nil {
		slog.Error("failed to create captioning loop", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := newMetricsServer(addr, metrics, health.New(checks...))
		g.Go(func() error { return serve(gctx, srv, "metrics") })
	}
	if hub != nil {
		srv := newBroadcastServer(cfg.Broadcast.ListenAddr, hub, metrics)
		g.Go(func() error { return serve(gctx, srv, "broadcast") })
	}

	if err := display.Show("Ready..."); err != nil {
		slog.Warn("display error", "err", err)
	}
	if err := src.Start(gctx, queue); err != nil {
		slog.Error("failed to start audio source", "err", err)
		return 1
	}
	running.Store(true)

	g.Go(func() error {
		// End of input stops the servers too.
		defer cancel()
		err := loop.Run(gctx)
		running.Store(false)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	fmt.Fprintln(os.Stdout)
	slog.Info("captioning stopped", "summary", loop.Summary())
	if err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path. A missing file at the default path runs on
// defaults so the binary works without any setup.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath {
		return config.LoadFromReader(strings.NewReader(""))
	}
	return cfg, err
}
