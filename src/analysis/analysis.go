// Package analysis turns a screenshot of engineering software into English/Vietnamese
// translation pairs, using a vision model or the offline OCR engine.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"cad-lingo/src/config"
	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
)

var (
	ErrNotConfigured     = errors.New("analyzer not configured")
	ErrEngineUnavailable = errors.New("engine not available in this build")
)

// Result is one text element found in the screenshot.
type Result struct {
	Original          string `json:"original"`
	Translated        string `json:"translated"`
	IsDictionaryMatch bool   `json:"isDictionaryMatch"`
	Confidence        string `json:"confidence,omitempty"`
}

// Analyzer extracts and translates the text in an image. entries is the glossary
// snapshot the translation must prefer.
type Analyzer interface {
	Analyze(ctx context.Context, img imageinput.Image, entries []glossary.Entry) ([]Result, error)
	Ping(ctx context.Context) error
	Name() string
}

// New builds the analyzer selected by cfg.Engine.
func New(cfg *config.Config) (Analyzer, error) {
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	switch cfg.Engine {
	case config.EngineGemini, "":
		g, err := NewGemini(GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.EngineOpenRouter:
		o, err := NewOpenRouter(OpenRouterConfig{APIKey: cfg.APIKey, Model: cfg.Model, Providers: cfg.Providers})
		if err != nil {
			return nil, err
		}
		return o, nil
	case config.EngineTesseract:
		return NewTesseract(cfg.TesseractLang)
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
