// Package runtimeinit holds the startup sequence shared by the resident and run-once modes.
package runtimeinit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cad-lingo/src/analysis"
	"cad-lingo/src/clipboard"
	"cad-lingo/src/config"
	"cad-lingo/src/notify"
)

const DefaultPingTimeout = 15 * time.Second

type Options struct {
	LoadOptions       config.LoadOptions
	SetupLogging      func(*config.Config)
	ShowBlockingError bool
	PingTimeout       time.Duration

	// NewAnalyzer and InitClipboard default to analysis.New and clipboard.Init.
	NewAnalyzer   func(*config.Config) (analysis.Analyzer, error)
	InitClipboard func() error
}

// Bootstrap loads configuration, sets up logging, builds the analyzer and checks
// that it answers, then initializes the clipboard.
func Bootstrap(ctx context.Context, opts Options) (*config.Config, analysis.Analyzer, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	newAnalyzer := opts.NewAnalyzer
	if newAnalyzer == nil {
		newAnalyzer = analysis.New
	}
	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return nil, nil, err
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := analyzer.Ping(pingCtx); err != nil {
		if opts.ShowBlockingError {
			notify.ShowBlocking("LLM unavailable", fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
		}
		return nil, nil, fmt.Errorf("startup check for %s failed: %w", analyzer.Name(), err)
	}
	zap.S().Infof("%s ping succeeded", analyzer.Name())

	initClipboard := opts.InitClipboard
	if initClipboard == nil {
		initClipboard = clipboard.Init
	}
	if err := initClipboard(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	return cfg, analyzer, nil
}
