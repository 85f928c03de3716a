package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"whisper", "whisper-native", "openai", "deepgram"},
	"vad":   {"silero", "energy"},
	"audio": {"mic", "wavfile"},
}

// apiKeyEnv maps hosted provider names to the environment variable their
// API key is read from when api_key is empty.
var apiKeyEnv = map[string]string{
	"openai":   "OPENAI_API_KEY",
	"deepgram": "DEEPGRAM_API_KEY",
}

// Load reads the YAML configuration file at path, applies defaults and
// environment overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment overrides, and validates the result. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from the given .env files (default
// ".env"). Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %q: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv fills empty api_key fields of hosted providers from their
// environment variable (OPENAI_API_KEY, DEEPGRAM_API_KEY).
func ApplyEnv(cfg *Config) {
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" {
			return
		}
		if env, ok := apiKeyEnv[e.Name]; ok {
			e.APIKey = os.Getenv(env)
		}
	}
	fill(&cfg.Providers.STT)
	for i := range cfg.Providers.STTFallback {
		fill(&cfg.Providers.STTFallback[i])
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := cfg.Captions.Segment().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("captions: %w", err))
	}
	if cfg.Captions.MaxLineLength < 0 {
		errs = append(errs, fmt.Errorf("captions.max_line_length %d must not be negative", cfg.Captions.MaxLineLength))
	}
	if cfg.Captions.VADThreshold < 0 || cfg.Captions.VADThreshold > 1 {
		errs = append(errs, fmt.Errorf("captions.vad_threshold %.2f is out of range [0, 1]", cfg.Captions.VADThreshold))
	}
	if cfg.Captions.MinSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("captions.min_silence_ms %d must not be negative", cfg.Captions.MinSilenceMs))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)
	for i, fb := range cfg.Providers.STTFallback {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallback[%d].name is required", i))
			continue
		}
		validateProviderName("stt", fb.Name)
	}
	for _, e := range append([]ProviderEntry{cfg.Providers.STT}, cfg.Providers.STTFallback...) {
		if env, ok := apiKeyEnv[e.Name]; ok && e.APIKey == "" {
			slog.Warn("hosted STT provider has no api key", "name", e.Name, "env", env)
		}
	}

	if cfg.State.Timeout < 0 {
		errs = append(errs, fmt.Errorf("state.timeout %s must not be negative", cfg.State.Timeout))
	}
	if cfg.State.Speak && cfg.State.URL == "" {
		errs = append(errs, errors.New("state.speak requires state.url"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
