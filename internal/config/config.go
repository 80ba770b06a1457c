// Package config provides the configuration schema, loader, and provider
// registry for the toolweave MCP aggregation proxy.
package config

import "fmt"

// Config is the root configuration structure for toolweave. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embeddings  ProviderEntry     `yaml:"embeddings"`
	Chat        ChatConfig        `yaml:"chat"`
	Index       IndexConfig       `yaml:"index"`
	Upstream    []UpstreamConfig  `yaml:"upstream"`
}

// ServerConfig holds network and logging settings for the proxy's HTTP/MCP
// front-end.
type ServerConfig struct {
	// Host is the TCP host the server binds to (e.g., "localhost").
	Host string `yaml:"host"`

	// Port is the TCP port the server listens on.
	Port int `yaml:"port"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// Addr returns the "host:port" listen address derived from Host and Port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogLevel is a validated logging verbosity string.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	default:
		return false
	}
}

// VectorStoreConfig configures the in-memory tool vector store.
type VectorStoreConfig struct {
	// CollectionName is a human-readable label for the index, surfaced in
	// get_tool_index_info responses. Purely cosmetic.
	CollectionName string `yaml:"collection_name"`

	// EmbeddingDimensions is the fixed vector length every embedding must
	// have. Must match the configured embeddings provider's model.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// ProviderEntry is the common configuration block shared by pluggable
// providers. The Name field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// ChatConfig configures the optional LLM used for enhanced tool search-phrase
// generation. When Provider.Name is empty, the index falls back to the
// heuristic phrase template for every tool.
type ChatConfig struct {
	Provider ProviderEntry `yaml:"provider"`

	// Temperature is read from the configuration file but is not passed to
	// the chat provider: phrase generation always uses a temperature of 0.2.
	Temperature float64 `yaml:"temperature"`

	// PhraseGenerationPrompt overrides the default system prompt used when
	// asking the chat model to rewrite a tool into a search phrase. Empty
	// uses the built-in default template.
	PhraseGenerationPrompt string `yaml:"phrase_generation_prompt"`
}

// IndexConfig controls how the tool index is built and searched.
type IndexConfig struct {
	// UseEnhancedPhraseGeneration enables LLM-assisted search-phrase
	// generation via Chat. When false, or when Chat.Provider.Name is empty,
	// only the heuristic template is used.
	UseEnhancedPhraseGeneration bool `yaml:"use_enhanced_phrase_generation"`

	// DefaultTopK is the default result count for search_tools_semantic when
	// the caller does not specify one.
	DefaultTopK int `yaml:"default_top_k"`

	// DefaultThreshold is the default minimum cosine similarity score for
	// search_tools_semantic when the caller does not specify one.
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// UpstreamConfig describes how to connect to a single upstream MCP server.
type UpstreamConfig struct {
	// Name is a unique, human-readable identifier for this server. Tool IDs
	// are formed as "{name}.{tool}".
	Name string `yaml:"name"`

	// Description is an optional free-text note about this server. It is not
	// included in any meta-tool output.
	Description string `yaml:"description"`

	// Transport specifies the connection mechanism.
	// Valid values: "stdio", "streamable-http", "sse".
	Transport Transport `yaml:"transport"`

	// Command is the executable launched when Transport is "stdio".
	Command string `yaml:"command"`

	// Args are additional command-line arguments passed to Command.
	Args []string `yaml:"args"`

	// Env holds extra environment variables injected into the subprocess
	// when Transport is "stdio". These are set on the child process only —
	// never on the proxy's own environment.
	Env map[string]string `yaml:"env"`

	// WorkDir is the working directory for the subprocess. Defaults to the
	// user's home directory (os.UserHomeDir) when empty.
	WorkDir string `yaml:"work_dir"`

	// URL is the endpoint address used when Transport is "streamable-http"
	// or "sse".
	URL string `yaml:"url"`

	// Enabled controls whether this server is started by start_all. Disabled
	// servers remain in the Supervisor's registry in the Stopped state and
	// are rejected with DISABLED on call().
	Enabled bool `yaml:"enabled"`
}

// Transport identifies how the proxy connects to an upstream MCP server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable-http"
	TransportSSE            Transport = "sse"
)

// IsValid reports whether t is a recognised transport kind.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP, TransportSSE:
		return true
	default:
		return false
	}
}
