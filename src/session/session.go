package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cad-lingo/src/analysis"
	"cad-lingo/src/glossary"
)

const DefaultDeadline = 20 * time.Second

var ErrSelectionCancelled = errors.New("selection cancelled")

type Options struct {
	Machine  *Machine
	Source   Source
	Analyzer analysis.Analyzer
	Glossary glossary.Store
	Target   ResultTarget
	Deadline time.Duration
}

// Outcome is a finished analysis together with where it came from.
type Outcome struct {
	Results  []analysis.Result
	Source   string
	Engine   string
	Duration time.Duration
}

// Execute runs one acquire → analyze → deliver cycle. The glossary is read once,
// when the image is submitted.
func Execute(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Source == nil {
		return Outcome{}, errors.New("Source is required")
	}
	if opts.Analyzer == nil {
		return Outcome{}, errors.New("Analyzer is required")
	}
	if opts.Target == nil {
		return Outcome{}, errors.New("Target is required")
	}
	m := opts.Machine
	if m == nil {
		m = NewMachine()
	}

	if err := m.BeginCapture(); err != nil {
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}

	img, err := opts.Source.Acquire(ctx)
	if errors.Is(err, ErrSelectionCancelled) {
		_ = m.CancelCapture()
		_ = opts.Target.OnFailure(ErrSelectionCancelled)
		return Outcome{}, ErrSelectionCancelled
	}
	if err != nil {
		_ = m.Fail(err)
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}

	var entries []glossary.Entry
	if opts.Glossary != nil {
		entries, err = opts.Glossary.List()
		if err != nil {
			zap.S().Warnf("session: glossary unavailable, analyzing without it: %v", err)
			entries = nil
		}
	}

	if err := m.Submit(img); err != nil {
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	zap.S().Infof("session: analyzing %dx%d image from %s with %s", img.Width, img.Height, opts.Source.Name(), opts.Analyzer.Name())
	start := time.Now()
	results, err := opts.Analyzer.Analyze(jobCtx, img, entries)
	elapsed := time.Since(start)
	if err != nil {
		zap.S().Warnf("session: analysis failed after %v: %v", elapsed, err)
		_ = m.Fail(err)
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}
	_ = m.Complete(results)
	zap.S().Infof("session: %d items in %v", len(results), elapsed)

	out := Outcome{
		Results:  results,
		Source:   opts.Source.Name(),
		Engine:   opts.Analyzer.Name(),
		Duration: elapsed,
	}
	if err := opts.Target.OnSuccess(out); err != nil {
		_ = opts.Target.OnFailure(err)
		return Outcome{}, err
	}
	return out, nil
}
