package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EngineGemini     = "gemini"
	EngineOpenRouter = "openrouter"
	EngineTesseract  = "tesseract"

	StoreMemory = "memory"
	StoreYAML   = "yaml"
	StoreSQLite = "sqlite"

	SourcePaste  = "paste"
	SourceRegion = "region"

	DefaultGeminiKeyPath     = "/run/secrets/api_keys/gemini"
	DefaultOpenRouterKeyPath = "/run/secrets/api_keys/openrouter"
	GeminiKeyPathEnvVar      = "GEMINI_API_KEY_FILE"
	OpenRouterKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"

	DefaultGeminiModel = "gemini-3-flash-preview"
	DefaultHotkey      = "Ctrl+Alt+T"
	EnvFileEnvVar      = "CAD_LINGO_ENV"
)

type LoadOptions struct {
	APIKeyPathOverride    string
	EngineOverride        string
	GlossaryStoreOverride string
}

type Config struct {
	Engine             string
	APIKey             string
	APIKeyPath         string
	Model              string
	Providers          []string
	EnableFileLogging  bool
	LogLevel           string
	Hotkey             string
	HotkeySource       string
	CaptureRegion      string
	AnalyzeDeadlineSec int
	GlossaryStore      string
	GlossaryPath       string
	TesseractLang      string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) the file named by CAD_LINGO_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	engine, err := resolveEngine(firstNonEmpty(opts.EngineOverride, os.Getenv("ENGINE")))
	if err != nil {
		return nil, err
	}

	store, err := resolveStore(firstNonEmpty(opts.GlossaryStoreOverride, os.Getenv("GLOSSARY_STORE")))
	if err != nil {
		return nil, err
	}

	deadline := 20
	if v := os.Getenv("ANALYZE_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			deadline = n
		}
	}

	keyPath := resolveAPIKeyPath(engine, opts, dotenvValues)

	cfg := &Config{
		Engine:             engine,
		APIKey:             resolveAPIKey(engine, keyPath),
		APIKeyPath:         keyPath,
		Model:              resolveModel(engine, os.Getenv("MODEL")),
		Providers:          splitList(os.Getenv("PROVIDERS")),
		EnableFileLogging:  strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
		Hotkey:             getEnvWithDefault("HOTKEY", DefaultHotkey),
		HotkeySource:       resolveSource(os.Getenv("HOTKEY_SOURCE")),
		CaptureRegion:      strings.TrimSpace(os.Getenv("CAPTURE_REGION")),
		AnalyzeDeadlineSec: deadline,
		GlossaryStore:      store,
		GlossaryPath:       resolveGlossaryPath(store, os.Getenv("GLOSSARY_PATH")),
		TesseractLang:      getEnvWithDefault("TESSERACT_LANG", "eng"),
	}

	return cfg, nil
}

// Validate reports settings the selected engine cannot run without.
func (c *Config) Validate() error {
	if c.Engine == EngineTesseract {
		return nil
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s API key not found. Checked key file %s and %s env var", c.Engine, c.APIKeyPath, apiKeyEnvVar(c.Engine))
	}
	if c.Model == "" {
		return fmt.Errorf("MODEL is required for engine %s", c.Engine)
	}
	return nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}
	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}
	return values
}

func resolveEngine(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", EngineGemini:
		return EngineGemini, nil
	case EngineOpenRouter:
		return EngineOpenRouter, nil
	case EngineTesseract, "offline":
		return EngineTesseract, nil
	default:
		return "", fmt.Errorf("unknown engine %q (want gemini, openrouter or tesseract)", value)
	}
}

func resolveStore(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", StoreYAML, "file":
		return StoreYAML, nil
	case StoreMemory:
		return StoreMemory, nil
	case StoreSQLite:
		return StoreSQLite, nil
	default:
		return "", fmt.Errorf("unknown glossary store %q (want memory, yaml or sqlite)", value)
	}
}

func resolveSource(value string) string {
	if strings.ToLower(strings.TrimSpace(value)) == SourceRegion {
		return SourceRegion
	}
	return SourcePaste
}

func resolveModel(engine, value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if engine == EngineGemini {
		return DefaultGeminiModel
	}
	// OpenRouter has no sensible default; tesseract ignores the model.
	return ""
}

func resolveGlossaryPath(store, value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	switch store {
	case StoreSQLite:
		return "glossary.db"
	case StoreYAML:
		return "glossary.yaml"
	default:
		return ""
	}
}

func resolveAPIKeyPath(engine string, opts LoadOptions, dotenvValues map[string]string) string {
	envVar := GeminiKeyPathEnvVar
	keyPath := DefaultGeminiKeyPath
	if engine == EngineOpenRouter {
		envVar = OpenRouterKeyPathEnvVar
		keyPath = DefaultOpenRouterKeyPath
	}

	if envPath := strings.TrimSpace(os.Getenv(envVar)); envPath != "" {
		keyPath = envPath
	}
	if dotenvPath := strings.TrimSpace(dotenvValues[envVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}
	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}
	return keyPath
}

func resolveAPIKey(engine, keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}
	return os.Getenv(apiKeyEnvVar(engine))
}

func apiKeyEnvVar(engine string) string {
	if engine == EngineOpenRouter {
		return "OPENROUTER_API_KEY"
	}
	return "GEMINI_API_KEY"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
