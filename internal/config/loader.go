package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
	"chat":       {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults, mirroring
// the defaults documented in the config schema.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3030
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogLevelInfo
	}
	if cfg.VectorStore.EmbeddingDimensions == 0 {
		cfg.VectorStore.EmbeddingDimensions = 1536
	}
	if cfg.VectorStore.CollectionName == "" {
		cfg.VectorStore.CollectionName = "tool-index"
	}
	if cfg.Index.DefaultTopK == 0 {
		cfg.Index.DefaultTopK = 5
	}
	if cfg.Index.DefaultThreshold == 0 {
		cfg.Index.DefaultThreshold = 0.55
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("embeddings", cfg.Embeddings.Name)
	if cfg.Embeddings.Name == "" {
		slog.Warn("embeddings provider is not configured; the tool index cannot be refreshed")
	}

	validateProviderName("chat", cfg.Chat.Provider.Name)
	if cfg.Index.UseEnhancedPhraseGeneration && cfg.Chat.Provider.Name == "" {
		slog.Warn("index.use_enhanced_phrase_generation is true but chat.provider is not configured; falling back to heuristic phrases")
	}

	if cfg.VectorStore.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("vector_store.embedding_dimensions must be positive"))
	}

	if cfg.Index.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("index.default_top_k must be positive"))
	}
	if cfg.Index.DefaultThreshold < 0 || cfg.Index.DefaultThreshold > 1 {
		errs = append(errs, fmt.Errorf("index.default_threshold %.2f is out of range [0, 1]", cfg.Index.DefaultThreshold))
	}

	seen := make(map[string]int, len(cfg.Upstream))
	for i, srv := range cfg.Upstream {
		prefix := fmt.Sprintf("upstream[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := seen[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of upstream[%d]", prefix, srv.Name, prev))
			}
			seen[srv.Name] = i
		}

		if !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http, sse", prefix, srv.Transport))
			continue
		}

		switch srv.Transport {
		case TransportStdio:
			if srv.Command == "" {
				errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
			}
		case TransportStreamableHTTP, TransportSSE:
			if srv.URL == "" {
				errs = append(errs, fmt.Errorf("%s.url is required when transport is %s", prefix, srv.Transport))
			}
		}
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
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
