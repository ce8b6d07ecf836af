// Package config provides configuration management for the document translator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// DefaultWorkDir holds every artifact unless a path is absolute
	DefaultWorkDir        = "raw"
	DefaultInputPath      = "document.pdf"
	DefaultStructuredPath = "temp.json"
	DefaultTranslatedPath = "translated.json"
	DefaultOutputPath     = "translated.pdf"

	BackendOllama = "ollama"
	BackendOpenAI = "openai"

	DefaultBackend         = BackendOllama
	DefaultOllamaEndpoint  = "http://localhost:11434"
	DefaultOpenAIEndpoint  = "https://api.openai.com/v1"
	DefaultModel           = "gemma3:4b"
	DefaultTimeoutSeconds  = 60
	DefaultCheckpointEvery = 10
	DefaultLogFile         = "doc-translator.log"
	DefaultErrorLog        = "errors.json"
	DefaultLogLevel        = "info"

	EnvModel     = "DOC_TRANSLATOR_MODEL"
	EnvEndpoint  = "DOC_TRANSLATOR_ENDPOINT"
	EnvBackend   = "DOC_TRANSLATOR_BACKEND"
	EnvOpenAIKey = "OPENAI_API_KEY"
	// DefaultEnvFile is loaded if present; existing environment wins
	DefaultEnvFile = ".env"
)

// ConfigManager loads and validates pipeline configuration
type ConfigManager struct {
	configPath    string
	envFile       string
	config        *types.Config
	inputOverride bool
}

// NewConfigManager creates a manager for configPath. An empty path means
// defaults plus environment only.
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
		envFile:    DefaultEnvFile,
		config:     defaultConfig(),
	}
}

// SetEnvFile overrides the dotenv file read by Load; empty disables it
func (m *ConfigManager) SetEnvFile(path string) {
	m.envFile = path
}

func defaultConfig() *types.Config {
	return &types.Config{
		WorkDir:            DefaultWorkDir,
		InputPath:          DefaultInputPath,
		StructuredPath:     DefaultStructuredPath,
		TranslatedPath:     DefaultTranslatedPath,
		OutputPath:         DefaultOutputPath,
		Backend:            DefaultBackend,
		Model:              DefaultModel,
		TimeoutSeconds:     DefaultTimeoutSeconds,
		CheckpointInterval: DefaultCheckpointEvery,
		ErrorLogPath:       DefaultErrorLog,
		LogFile:            DefaultLogFile,
		LogLevel:           DefaultLogLevel,
	}
}

// Load reads the env file, the JSON config file and environment overrides,
// then fills defaults. A missing config file is not an error; a malformed
// one is.
func (m *ConfigManager) Load() error {
	if m.envFile != "" {
		if err := godotenv.Load(m.envFile); err != nil && !os.IsNotExist(err) {
			return types.NewAppErrorWithDetails(types.ErrConfig, "failed to load env file", m.envFile, err)
		}
	}

	cfg := defaultConfig()
	if m.configPath != "" {
		data, err := os.ReadFile(m.configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return types.NewAppErrorWithDetails(types.ErrConfig, "invalid config file", m.configPath, err)
			}
			logger.Info("configuration loaded", logger.String("path", m.configPath))
		case os.IsNotExist(err):
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		default:
			return types.NewAppErrorWithDetails(types.ErrConfig, "failed to read config file", m.configPath, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	m.config = cfg
	return nil
}

func applyEnv(cfg *types.Config) {
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = v
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvOpenAIKey)
	}
}

func applyDefaults(cfg *types.Config) {
	d := defaultConfig()
	if cfg.WorkDir == "" {
		cfg.WorkDir = d.WorkDir
	}
	if cfg.InputPath == "" {
		cfg.InputPath = d.InputPath
	}
	if cfg.StructuredPath == "" {
		cfg.StructuredPath = d.StructuredPath
	}
	if cfg.TranslatedPath == "" {
		cfg.TranslatedPath = d.TranslatedPath
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = d.OutputPath
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = d.Backend
	}
	if cfg.Endpoint == "" {
		if cfg.Backend == BackendOpenAI {
			cfg.Endpoint = DefaultOpenAIEndpoint
		} else {
			cfg.Endpoint = DefaultOllamaEndpoint
		}
	}
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = d.TimeoutSeconds
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = d.CheckpointInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
}

// SetInputPath overrides the source document (the CLI positional argument).
// An override is used as given, not placed under the work directory.
func (m *ConfigManager) SetInputPath(path string) {
	if path != "" {
		m.config.InputPath = path
		m.inputOverride = true
	}
}

// Validate checks values that defaults cannot repair
func (m *ConfigManager) Validate() error {
	cfg := m.config
	switch cfg.Backend {
	case BackendOllama:
	case BackendOpenAI:
		if cfg.APIKey == "" {
			return types.NewAppErrorWithDetails(types.ErrConfig, "openai backend requires an API key",
				"set api_key or "+EnvOpenAIKey, nil)
		}
	default:
		return types.NewAppErrorWithDetails(types.ErrConfig, "unknown backend", cfg.Backend, nil)
	}

	input := m.Resolve(cfg.InputPath)
	if m.inputOverride {
		// a CLI source path is used as given, not placed under the work dir
		input = filepath.Clean(cfg.InputPath)
	}
	paths := []struct{ name, path string }{
		{"input_path", input},
		{"structured_path", m.Resolve(cfg.StructuredPath)},
		{"translated_path", m.Resolve(cfg.TranslatedPath)},
		{"output_path", m.Resolve(cfg.OutputPath)},
	}
	seen := make(map[string]string)
	for _, p := range paths {
		if other, ok := seen[p.path]; ok {
			return types.NewAppErrorWithDetails(types.ErrConfig, "input and output paths must differ",
				fmt.Sprintf("%s and %s both resolve to %s", other, p.name, p.path), nil)
		}
		seen[p.path] = p.name
	}
	return nil
}

// Resolve places relative paths under the work directory
func (m *ConfigManager) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	// paths already rooted at the work dir (e.g. "raw/x.pdf" from the CLI) stay as-is
	clean := filepath.Clean(path)
	workDir := filepath.Clean(m.config.WorkDir)
	if clean == workDir || strings.HasPrefix(clean, workDir+string(filepath.Separator)) {
		return clean
	}
	return filepath.Join(workDir, clean)
}

// Resolved returns a copy of the config with every path resolved
func (m *ConfigManager) Resolved() *types.Config {
	c := *m.config
	if !m.inputOverride {
		c.InputPath = m.Resolve(c.InputPath)
	}
	c.StructuredPath = m.Resolve(c.StructuredPath)
	c.TranslatedPath = m.Resolve(c.TranslatedPath)
	c.OutputPath = m.Resolve(c.OutputPath)
	if c.CachePath != "" {
		c.CachePath = m.Resolve(c.CachePath)
	}
	if c.ErrorLogPath != "" {
		c.ErrorLogPath = m.Resolve(c.ErrorLogPath)
	}
	if c.LogFile != "" {
		c.LogFile = m.Resolve(c.LogFile)
	}
	return &c
}

// GetConfig returns the raw (unresolved) configuration
func (m *ConfigManager) GetConfig() *types.Config {
	return m.config
}

// GetConfigPath returns the path to the config file
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}
