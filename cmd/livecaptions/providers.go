package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/livecaptions/internal/config"
	"github.com/MrWong99/livecaptions/internal/resilience"
	"github.com/MrWong99/livecaptions/pkg/audio"
	"github.com/MrWong99/livecaptions/pkg/audio/mic"
	"github.com/MrWong99/livecaptions/pkg/audio/wavfile"
	"github.com/MrWong99/livecaptions/pkg/provider/stt"
	"github.com/MrWong99/livecaptions/pkg/provider/stt/deepgram"
	sttopenai "github.com/MrWong99/livecaptions/pkg/provider/stt/openai"
	"github.com/MrWong99/livecaptions/pkg/provider/stt/whisper"
	"github.com/MrWong99/livecaptions/pkg/provider/vad"
	"github.com/MrWong99/livecaptions/pkg/provider/vad/energy"
	"github.com/MrWong99/livecaptions/pkg/provider/vad/silero"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// vocabulary is handed to backends that accept keyword hints.
func registerBuiltinProviders(reg *config.Registry, sampleRate int, vocabulary []string) {
	boosts := make([]stt.KeywordBoost, 0, len(vocabulary))
	for _, w := range vocabulary {
		boosts = append(boosts, stt.KeywordBoost{Keyword: w, Boost: 1})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		opts := []whisper.Option{whisper.WithSampleRate(sampleRate), whisper.WithKeywords(boosts)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = config.OptString(entry.Options, "model_path")
		}
		opts := []whisper.NativeOption{whisper.WithNativeKeywords(boosts)}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n, ok := config.OptInt(entry.Options, "threads"); ok && n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		opts := []sttopenai.Option{sttopenai.WithSampleRate(sampleRate), sttopenai.WithKeywords(boosts)}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		opts := []deepgram.Option{deepgram.WithSampleRate(sampleRate), deepgram.WithKeywords(boosts)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Engine, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = config.OptString(entry.Options, "model_path")
		}
		return silero.New(modelPath)
	})

	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("mic", func(_ config.ProviderEntry, f audio.Format) (audio.Source, error) {
		return mic.New(mic.WithSampleRate(f.SampleRate), mic.WithChunkSize(f.ChunkSize))
	})

	reg.RegisterAudio("wavfile", func(entry config.ProviderEntry, f audio.Format) (audio.Source, error) {
		path := config.OptString(entry.Options, "path")
		realtime := true
		if v, ok := config.OptBool(entry.Options, "realtime"); ok {
			realtime = v
		}
		hq, _ := config.OptBool(entry.Options, "high_quality")
		return wavfile.New(path,
			wavfile.WithSampleRate(f.SampleRate),
			wavfile.WithChunkSize(f.ChunkSize),
			wavfile.WithRealtime(realtime),
			wavfile.WithHighQuality(hq),
		)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildTranscriber creates the primary STT backend, adds any configured
// fallbacks behind a circuit breaker, and wraps the result in an
// [stt.Metered] for usage accounting.
func buildTranscriber(ctx context.Context, cfg *config.Config, reg *config.Registry) (*stt.Metered, []func() error, error) {
	var closers []func() error
	track := func(t stt.Transcriber) {
		if c, ok := t.(interface{ Close() error }); ok {
			closers = append(closers, c.Close)
		}
	}

	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	track(primary)
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	var tr stt.Transcriber = primary
	name := cfg.Providers.STT.Name
	if len(cfg.Providers.STTFallback) > 0 {
		fb := resilience.NewTranscriberFallback(primary, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.STTFallback {
			t, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, closers, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
			}
			track(t)
			if err := fb.AddFallback(entry.Name, t); err != nil {
				return nil, closers, err
			}
			slog.Info("provider created", "kind", "stt_fallback", "name", entry.Name)
		}
		tr = fb
		name = "fallback"
	}

	m, err := stt.NewMetered(ctx, tr, stt.WithWarmup(true), stt.WithProviderName(name))
	if err != nil {
		return nil, closers, err
	}
	return m, closers, nil
}

// buildDetector creates the VAD engine and one detector for the loop.
func buildDetector(cfg *config.Config, reg *config.Registry) (vad.Detector, error) {
	engine, err := reg.CreateVAD(cfg.Providers.VAD)
	if err != nil {
		return nil, fmt.Errorf("create vad provider %q: %w", cfg.Providers.VAD.Name, err)
	}
	det, err := engine.NewDetector(vad.Config{
		SampleRate:   cfg.Captions.SampleRate,
		ChunkSize:    cfg.Captions.ChunkSize,
		Threshold:    cfg.Captions.VADThreshold,
		MinSilenceMs: cfg.Captions.MinSilenceMs,
	})
	if err != nil {
		return nil, fmt.Errorf("create vad detector: %w", err)
	}
	slog.Info("provider created", "kind", "vad", "name", cfg.Providers.VAD.Name)
	return det, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
