package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cad-lingo/src/singleinstance"
)

type stressOptions struct {
	n           int
	mode        string
	source      string
	deadline    time.Duration
	concurrency int
}

type summary struct {
	launched int
	ok       int32
	busy     int32
	notFound int32
	err      int32
	elapsed  time.Duration
}

func (s summary) String() string {
	return fmt.Sprintf("launched=%d ok=%d busy=%d no-resident=%d err=%d elapsed=%s",
		s.launched, s.ok, s.busy, s.notFound, s.err, s.elapsed)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, os.Stdout)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-runonce",
		Short:         "Stress test run-once delegation against a resident cad-lingo",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mode != "std" && opts.mode != "clip" {
				return fmt.Errorf("unknown mode %q (want std or clip)", opts.mode)
			}
			s := stress(cmd.Context(), *opts, singleinstance.NewClient)
			fmt.Fprintln(out, s)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: run-once-std (stdout) or run-once (clipboard)")
	cmd.Flags().StringVar(&opts.source, "source", singleinstance.SourcePaste, "paste|region: image source requested from the resident")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "max clients in flight (0 = all at once)")

	return cmd
}

func stress(ctx context.Context, opts stressOptions, newClient func() singleinstance.Client) summary {
	s := summary{launched: opts.n}
	req := singleinstance.Request{Source: opts.source, OutputToStdout: opts.mode == "std"}

	var g errgroup.Group
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}
	start := time.Now()
	for i := 0; i < opts.n; i++ {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, opts.deadline)
			defer cancel()
			delegated, _, err := newClient().TryRun(cctx, req)
			switch {
			case err != nil && strings.Contains(strings.ToLower(err.Error()), "busy"):
				atomic.AddInt32(&s.busy, 1)
			case err != nil:
				atomic.AddInt32(&s.err, 1)
			case delegated:
				atomic.AddInt32(&s.ok, 1)
			default:
				atomic.AddInt32(&s.notFound, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.elapsed = time.Since(start)
	return s
}
