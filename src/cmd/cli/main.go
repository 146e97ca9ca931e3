package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cad-lingo/src/analysis"
	"cad-lingo/src/clipboard"
	"cad-lingo/src/config"
	"cad-lingo/src/glossary"
	"cad-lingo/src/logutil"
	"cad-lingo/src/render"
	"cad-lingo/src/screenshot"
	"cad-lingo/src/session"
)

type cliOptions struct {
	verbose       bool
	apiKeyPath    string
	engine        string
	glossaryStore string

	jsonOutput bool
	styled     bool
	filePath   string
	region     string
	from       string
	to         string
	view       string
	category   string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Hooks for tests; nil means the real implementation.
	newAnalyzer   func(*config.Config) (analysis.Analyzer, error)
	readClipboard func() ([]byte, error)
	capture       func(screenshot.Region) ([]byte, error)
	captureView   func(screenshot.Region, int, int) ([]byte, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runWithArgs(ctx, normalizeLegacyArgs(os.Args), defaultOptions())
}

func defaultOptions() *cliOptions {
	return &cliOptions{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func runWithArgs(ctx context.Context, args []string, opts *cliOptions) error {
	if len(args) == 0 {
		args = []string{"cadlingo"}
	}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	cmd.SetIn(opts.stdin)
	cmd.SetOut(opts.stdout)
	cmd.SetErr(opts.stderr)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cadlingo",
		Short:         "Translate English CAD/BIM screenshots into Vietnamese",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	pf.StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	pf.StringVar(&opts.engine, "engine", "", "Analysis engine: gemini, openrouter or tesseract")
	pf.StringVar(&opts.glossaryStore, "glossary-store", "", "Glossary store: memory, yaml or sqlite")

	cmd.AddCommand(newAnalyzeCmd(opts), newPasteCmd(opts), newCaptureCmd(opts), newGlossaryCmd(opts))
	return cmd
}

func addOutputFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.styled, "styled", false, "Render results as terminal cards")
}

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an image file (use '-' for stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), opts, session.FileSource{Path: opts.filePath, Stdin: opts.stdin})
		},
	}
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG/JPEG/WebP/GIF/BMP file or data URL (use '-' for stdin)")
	_ = cmd.MarkFlagRequired("file")
	addOutputFlags(cmd, opts)
	return cmd
}

func newPasteCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Analyze the image on the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			read := opts.readClipboard
			if read == nil {
				if err := clipboard.Init(); err != nil {
					return fmt.Errorf("failed to initialize clipboard: %w", err)
				}
				read = clipboard.ReadImage
			}
			return runSession(cmd.Context(), opts, session.ClipboardSource{Read: read})
		},
	}
	addOutputFlags(cmd, opts)
	return cmd
}

func newCaptureCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a screen region and analyze it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := regionSource(opts)
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), opts, src)
		},
	}
	cmd.Flags().StringVar(&opts.region, "region", "", "Region to capture as x,y,w,h")
	cmd.Flags().StringVar(&opts.from, "from", "", "Drag start as x,y (use with --to)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Drag end as x,y (use with --from)")
	cmd.Flags().StringVar(&opts.view, "view", "", "Coordinates are relative to a WxH view of the whole screen")
	addOutputFlags(cmd, opts)
	return cmd
}

// regionSource builds the capture source from either --region or a --from/--to drag.
func regionSource(opts *cliOptions) (session.RegionSource, error) {
	var sel screenshot.Region
	var err error
	drag := opts.from != "" || opts.to != ""
	switch {
	case opts.region != "" && drag:
		return session.RegionSource{}, fmt.Errorf("use either --region or --from/--to, not both")
	case opts.region != "":
		sel, err = screenshot.ParseRegion(opts.region)
	case opts.from != "" && opts.to != "":
		var start, end screenshot.Point
		if start, err = screenshot.ParsePoint(opts.from); err != nil {
			return session.RegionSource{}, err
		}
		if end, err = screenshot.ParsePoint(opts.to); err != nil {
			return session.RegionSource{}, err
		}
		sel, err = screenshot.SelectionFromDrag(start, end)
	case drag:
		return session.RegionSource{}, fmt.Errorf("--from and --to must be given together")
	default:
		return session.RegionSource{}, fmt.Errorf("--region or --from/--to is required")
	}
	if err != nil {
		return session.RegionSource{}, err
	}

	src := session.RegionSource{Region: sel, Capture: opts.capture, CaptureView: opts.captureView}
	if opts.view != "" {
		if src.ViewWidth, src.ViewHeight, err = screenshot.ParseSize(opts.view); err != nil {
			return session.RegionSource{}, err
		}
	}
	return src, nil
}

func newGlossaryCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Manage the translation glossary",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List glossary entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s glossary.Store) error {
				entries, err := s.List()
				if err != nil {
					return err
				}
				fmt.Fprint(opts.stdout, render.Glossary(entries))
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <term> <translation>",
		Short: "Add a glossary entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := glossary.ParseCategory(opts.category)
			if err != nil {
				return err
			}
			return withStore(opts, func(s glossary.Store) error {
				e, err := s.Add(args[0], args[1], category)
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.stdout, e.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&opts.category, "category", string(glossary.CategoryGeneral), "Category: bridge, road, revit or general")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a glossary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s glossary.Store) error {
				return s.Delete(args[0])
			})
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the glossary as YAML to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s glossary.Store) error {
				entries, err := s.List()
				if err != nil {
					return err
				}
				return glossary.Export(opts.stdout, entries)
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Append entries from a YAML file ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := opts.stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			entries, err := glossary.Import(in)
			if err != nil {
				return err
			}
			return withStore(opts, func(s glossary.Store) error {
				for _, e := range entries {
					if _, err := s.Add(e.Term, e.Translation, e.Category); err != nil {
						return fmt.Errorf("failed to import %q: %w", e.Term, err)
					}
				}
				fmt.Fprintf(opts.stderr, "Imported %d entries\n", len(entries))
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, del, export, imp)
	return cmd
}

func setupLogging(opts *cliOptions) {
	var console io.Writer
	level := "info"
	if opts.verbose {
		console = opts.stderr
		level = "debug"
	}
	logutil.Setup(logutil.Options{Console: console, Level: level})
}

func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		APIKeyPathOverride:    opts.apiKeyPath,
		EngineOverride:        opts.engine,
		GlossaryStoreOverride: opts.glossaryStore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	zap.S().Debugf("Config loaded: engine=%s model=%s glossary=%s:%s", cfg.Engine, cfg.Model, cfg.GlossaryStore, cfg.GlossaryPath)
	zap.S().Debugf("Effective API key path: %s (key %s)", cfg.APIKeyPath, logutil.RedactKey(cfg.APIKey))
	return cfg, nil
}

func withStore(opts *cliOptions, fn func(glossary.Store) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := glossary.Open(cfg.GlossaryStore, cfg.GlossaryPath)
	if err != nil {
		return fmt.Errorf("failed to open glossary: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newAnalyzer(cfg *config.Config) (analysis.Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return analysis.New(cfg)
}

func runSession(ctx context.Context, opts *cliOptions, src session.Source) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	factory := opts.newAnalyzer
	if factory == nil {
		factory = newAnalyzer
	}
	analyzer, err := factory(cfg)
	if err != nil {
		return err
	}
	store, err := glossary.Open(cfg.GlossaryStore, cfg.GlossaryPath)
	if err != nil {
		return fmt.Errorf("failed to open glossary: %w", err)
	}
	defer store.Close()

	_, err = session.Execute(ctx, session.Options{
		Source:   src,
		Analyzer: analyzer,
		Glossary: store,
		Target:   session.WriterTarget{Writer: opts.stdout, JSON: opts.jsonOutput, Styled: opts.styled, Errors: opts.stderr},
		Deadline: deadline(cfg),
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return nil
}

func deadline(cfg *config.Config) time.Duration {
	if cfg.AnalyzeDeadlineSec <= 0 {
		return session.DefaultDeadline
	}
	return time.Duration(cfg.AnalyzeDeadlineSec) * time.Second
}

// normalizeLegacyArgs rewrites the old single-dash flags to cobra's double-dash form.
// A bare "-file" with no subcommand becomes "analyze --file".
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, 0, len(args)+1)
	normalized = append(normalized, args[0])

	legacy := []string{"file", "json", "verbose", "api-key-path", "engine", "glossary-store", "region", "from", "to", "view", "category", "styled"}
	commands := map[string]bool{"analyze": true, "paste": true, "capture": true, "glossary": true, "help": true}
	sawFile := false
	hasCommand := false
	for _, arg := range args[1:] {
		for _, name := range legacy {
			switch {
			case arg == "-"+name:
				arg = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				arg = "-" + arg
			}
		}
		if arg == "--file" || strings.HasPrefix(arg, "--file=") {
			sawFile = true
		}
		if commands[arg] {
			hasCommand = true
		}
		normalized = append(normalized, arg)
	}

	if sawFile && !hasCommand {
		normalized = append([]string{normalized[0], "analyze"}, normalized[1:]...)
	}
	return normalized
}
