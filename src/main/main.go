package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cad-lingo/src/config"
	"cad-lingo/src/eventloop"
	"cad-lingo/src/glossary"
	"cad-lingo/src/hotkey"
	"cad-lingo/src/logutil"
	"cad-lingo/src/notify"
	"cad-lingo/src/runtimeinit"
	"cad-lingo/src/screenshot"
	"cad-lingo/src/session"
	"cad-lingo/src/singleinstance"
	"cad-lingo/src/tray"
)

type mainOptions struct {
	runOnce    bool
	runOnceStd bool
	source     string
	apiKeyPath string
}

func main() {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cad-lingo",
		Short:         "Resident EN→VI screenshot translator for CAD/BIM software",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Translate once, copy to clipboard, and exit")
	cmd.Flags().BoolVar(&opts.runOnceStd, "run-once-std", false, "Translate once, print to stdout, and exit")
	cmd.Flags().StringVar(&opts.source, "source", "", "Image source for run-once: paste or region (default from HOTKEY_SOURCE)")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags (-run-once, -api-key-path=...) to cobra's form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once-std", "run-once", "api-key-path", "source"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

func runMain(opts mainOptions) error {
	loadOpts := config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath}
	if opts.runOnce || opts.runOnceStd {
		// Load .env early so SINGLEINSTANCE_PORT_* are applied before delegation scan
		cfg, err := config.LoadWithOptions(loadOpts)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		setupLogging(cfg)
		enableDPIAwareness()
		req := singleinstance.Request{Source: firstNonEmpty(opts.source, cfg.HotkeySource), OutputToStdout: opts.runOnceStd}
		return handleRunOnceWithDelegation(req, singleinstance.NewClient(), func() error {
			return runStandalone(loadOpts, req)
		})
	}

	return runResident(loadOpts)
}

// handleRunOnceWithDelegation hands req to a running resident if there is one,
// and calls fallback only when none answered. A resident that replies with an
// error, busy included, ends the run with that error.
func handleRunOnceWithDelegation(req singleinstance.Request, client singleinstance.Client, fallback func() error) error {
	ctx := context.Background()
	delegated, text, err := client.TryRun(ctx, req)
	if delegated {
		if err != nil {
			zap.S().Warnf("Resident reported an error: %v", err)
			return fmt.Errorf("resident: %w", err)
		}
		zap.S().Infof("Delegated to resident")
		if req.OutputToStdout && text != "" {
			fmt.Println(text)
		}
		return nil
	}
	if err != nil {
		zap.S().Warnf("Delegation error: %v; falling back to standalone", err)
	} else {
		zap.S().Infof("No resident detected (not delegated), running standalone")
	}
	return fallback()
}

func setupLogging(cfg *config.Config) {
	logutil.Setup(logutil.Options{EnableFileLogging: cfg.EnableFileLogging, Level: cfg.LogLevel})
}

func sourceFor(kind string, cfg *config.Config) (session.Source, error) {
	if kind == config.SourceRegion {
		region, err := screenshot.ParseRegion(cfg.CaptureRegion)
		if err != nil {
			return nil, fmt.Errorf("CAPTURE_REGION: %w", err)
		}
		return session.RegionSource{Region: region}, nil
	}
	return session.ClipboardSource{}, nil
}

// runStandalone performs one analysis in this process.
func runStandalone(loadOpts config.LoadOptions, req singleinstance.Request) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, analyzer, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:       loadOpts,
		SetupLogging:      setupLogging,
		ShowBlockingError: true,
	})
	if err != nil {
		return err
	}
	src, err := sourceFor(req.Source, cfg)
	if err != nil {
		return err
	}
	store, err := glossary.Open(cfg.GlossaryStore, cfg.GlossaryPath)
	if err != nil {
		return fmt.Errorf("failed to open glossary: %w", err)
	}
	defer store.Close()

	var target session.ResultTarget = session.WriterTarget{Writer: os.Stdout}
	if !req.OutputToStdout {
		target = session.ClipboardTarget{}
	}
	out, err := session.Execute(ctx, session.Options{
		Source:   src,
		Analyzer: analyzer,
		Glossary: store,
		Target:   target,
		Deadline: time.Duration(cfg.AnalyzeDeadlineSec) * time.Second,
	})
	if err != nil {
		return err
	}
	if !req.OutputToStdout {
		title, msg := notify.Summary(out.Results)
		notify.ShowBlocking(title, msg)
	}
	return nil
}

func runResident(loadOpts config.LoadOptions) error {
	// Lock main goroutine to its own OS thread; systray and the hook need a stable thread.
	runtime.LockOSThread()

	// Load .env early so SINGLEINSTANCE_PORT_* are available for pre-flight
	cfg, err := config.LoadWithOptions(loadOpts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg)
	// DPI awareness must be set before any capture or window
	enableDPIAwareness()
	logMonitorConfiguration()

	// ---------- SINGLE-INSTANCE PRE-FLIGHT ----------
	if port, err := singleinstance.Preflight(); err != nil {
		fmt.Printf("one is already running on port %d\n", port)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, analyzer, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:       loadOpts,
		SetupLogging:      setupLogging,
		ShowBlockingError: true,
	})
	if err != nil {
		return err
	}
	store, err := glossary.Open(cfg.GlossaryStore, cfg.GlossaryPath)
	if err != nil {
		return fmt.Errorf("failed to open glossary: %w", err)
	}
	defer store.Close()

	var region screenshot.Region
	if cfg.CaptureRegion != "" || cfg.HotkeySource == config.SourceRegion {
		if region, err = screenshot.ParseRegion(cfg.CaptureRegion); err != nil {
			return fmt.Errorf("invalid CAPTURE_REGION: %w", err)
		}
	}

	zap.S().Infof("CAD-Lingo Bridge initialized")
	zap.S().Infof("Engine: %s", analyzer.Name())
	zap.S().Infof("Hotkey: %s (%s)", cfg.Hotkey, cfg.HotkeySource)
	zap.S().Infof("Glossary: %s %s", cfg.GlossaryStore, cfg.GlossaryPath)
	zap.S().Infof("Analysis deadline: %ds", cfg.AnalyzeDeadlineSec)

	idleTooltip := fmt.Sprintf("CAD-Lingo Bridge - Press %s to translate", cfg.Hotkey)
	var trayIcon *tray.Tray
	loop := eventloop.New(eventloop.Options{
		Analyzer:     analyzer,
		Glossary:     store,
		Deadline:     time.Duration(cfg.AnalyzeDeadlineSec) * time.Second,
		HotkeySource: cfg.HotkeySource,
		Region:       region,
		OnBusy:       func(b bool) { trayIcon.SetBusy(b) },
	})

	glossaryFile := ""
	if cfg.GlossaryStore == config.StoreYAML {
		glossaryFile = cfg.GlossaryPath
	}
	trayIcon = tray.New(tray.Config{
		Title:        "CAD-Lingo Bridge",
		Tooltip:      idleTooltip,
		GlossaryPath: glossaryFile,
		OnPaste:      func() { loop.Trigger(config.SourcePaste) },
		OnExit:       cancel,
	})
	go trayIcon.Run()
	defer trayIcon.Quit()

	if err := hotkey.Listen(ctx, cfg.Hotkey, loop.HotkeyPressed); err != nil {
		return fmt.Errorf("invalid HOTKEY: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if fs, ok := store.(*glossary.FileStore); ok {
		w, err := glossary.NewWatcher(fs.Path(), fs, nil)
		if err != nil {
			zap.S().Warnf("glossary watcher disabled: %v", err)
		} else {
			defer w.Close()
			g.Go(func() error {
				w.Run(gctx)
				return nil
			})
		}
	}

	err = g.Wait()
	zap.S().Infof("Resident stopped")
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
