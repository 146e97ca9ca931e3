package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cad-lingo/src/analysis"
	"cad-lingo/src/config"
	"cad-lingo/src/glossary"
	"cad-lingo/src/notify"
	"cad-lingo/src/screenshot"
	"cad-lingo/src/session"
	"cad-lingo/src/singleinstance"
	"cad-lingo/src/worker"
)

var ErrBusy = errors.New("Busy, please retry")

// Options wires the loop to its collaborators. Zero-valued hooks fall back to the
// real clipboard, screen and notification implementations.
type Options struct {
	Analyzer analysis.Analyzer
	Glossary glossary.Store
	Server   singleinstance.Server
	Deadline time.Duration

	// HotkeySource is config.SourcePaste or config.SourceRegion.
	HotkeySource string
	Region       screenshot.Region

	ReadClipboard  func() ([]byte, error)
	WriteClipboard func(string) error
	Capture        func(screenshot.Region) ([]byte, error)
	Notify         func(title, message string)
	// OnBusy is told when a job starts and finishes, e.g. to update the tray tooltip.
	OnBusy func(busy bool)
}

// Loop is the single-threaded coordinator for delegated runs and hotkey presses.
type Loop struct {
	opts     Options
	machine  *session.Machine
	pool     *worker.Pool
	busy     bool
	results  chan result
	hotkeyCh chan string
}

type result struct {
	results []analysis.Result
	err     error
	target  session.ResultTarget
	source  string
	started time.Time
	cancel  context.CancelFunc
	closer  func()
}

// New creates a loop. A deadline <= 0 means session.DefaultDeadline.
func New(opts Options) *Loop {
	if opts.Deadline <= 0 {
		opts.Deadline = session.DefaultDeadline
	}
	if opts.HotkeySource == "" {
		opts.HotkeySource = config.SourcePaste
	}
	if opts.Notify == nil {
		opts.Notify = notify.Show
	}
	return &Loop{
		opts:     opts,
		machine:  session.NewMachine(),
		pool:     worker.New(opts.Analyzer, 1),
		results:  make(chan result, 1),
		hotkeyCh: make(chan string, 4),
	}
}

// Machine exposes the session state, for observers such as the tray.
func (l *Loop) Machine() *session.Machine { return l.machine }

// Deadline returns the configured analysis deadline.
func (l *Loop) Deadline() time.Duration { return l.opts.Deadline }

// Trigger posts a hotkey-style run into the loop. It never blocks; presses are
// dropped while the queue is full.
func (l *Loop) Trigger(source string) {
	if source == "" {
		source = l.opts.HotkeySource
	}
	select {
	case l.hotkeyCh <- source:
	default:
		zap.S().Debugf("eventloop: trigger dropped, queue full")
	}
}

// HotkeyPressed is the hotkey callback.
func (l *Loop) HotkeyPressed() { l.Trigger("") }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.opts.OnBusy != nil {
		l.opts.OnBusy(b)
	}
}

// Run starts the single-instance server and processes requests until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	srv := l.opts.Server
	if srv == nil {
		srv = singleinstance.NewServer()
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Close()
	if p := srv.Port(); p > 0 {
		zap.S().Infof("Resident listening on 127.0.0.1:%d", p)
	}
	defer l.pool.Close()

	// Accept loop in background to avoid blocking result handling
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := srv.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case source := <-l.hotkeyCh:
			l.handleHotkey(ctx, source)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	zap.S().Infof("eventloop: delegated run source=%s stdout=%v", req.Source, req.OutputToStdout)
	target := session.DelegatedTarget{Conn: conn, OutputToStdout: req.OutputToStdout, Write: l.opts.WriteClipboard}
	l.startRequest(ctx, req.Source, target, func() { _ = conn.Close() })
}

func (l *Loop) handleHotkey(ctx context.Context, source string) {
	zap.S().Infof("eventloop: hotkey run source=%s", source)
	l.startRequest(ctx, source, notifyingTarget{
		inner:  session.ClipboardTarget{Write: l.opts.WriteClipboard},
		notify: l.opts.Notify,
	}, nil)
}

// startRequest acquires the image synchronously and hands analysis to the pool.
// closer, if set, runs once the target has been answered.
func (l *Loop) startRequest(ctx context.Context, sourceKind string, target session.ResultTarget, closer func()) {
	finish := func(err error) {
		_ = target.OnFailure(err)
		if closer != nil {
			closer()
		}
	}
	if l.busy {
		zap.S().Infof("eventloop: busy, rejecting %s run", sourceKind)
		finish(ErrBusy)
		return
	}

	src, err := l.source(sourceKind)
	if err != nil {
		finish(err)
		return
	}
	if err := l.machine.BeginCapture(); err != nil {
		finish(err)
		return
	}
	img, err := src.Acquire(ctx)
	if err != nil {
		zap.S().Warnf("eventloop: acquire from %s failed: %v", src.Name(), err)
		_ = l.machine.Fail(err)
		finish(err)
		return
	}

	var entries []glossary.Entry
	if l.opts.Glossary != nil {
		if entries, err = l.opts.Glossary.List(); err != nil {
			zap.S().Warnf("eventloop: glossary unavailable, analyzing without it: %v", err)
			entries = nil
		}
	}
	if err := l.machine.Submit(img); err != nil {
		finish(err)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.opts.Deadline)
	l.setBusy(true)
	started := time.Now()
	submitted := l.pool.Submit(jobCtx, img, entries, func(results []analysis.Result, err error) {
		res := result{results: results, err: err, target: target, source: src.Name(), started: started, cancel: cancel, closer: closer}
		select {
		case l.results <- res:
		case <-ctx.Done():
			cancel()
			if closer != nil {
				closer()
			}
		}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		_ = l.machine.Fail(ErrBusy)
		finish(ErrBusy)
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
		if res.closer != nil {
			res.closer()
		}
	}()

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			res.err = fmt.Errorf("analysis timed out after %v: %w", l.opts.Deadline, res.err)
		}
		zap.S().Warnf("eventloop: analysis failed: %v", res.err)
		_ = l.machine.Fail(res.err)
		_ = res.target.OnFailure(res.err)
		return
	}

	_ = l.machine.Complete(res.results)
	out := session.Outcome{
		Results:  res.results,
		Source:   res.source,
		Engine:   l.opts.Analyzer.Name(),
		Duration: time.Since(res.started),
	}
	zap.S().Infof("eventloop: %d items in %v", len(out.Results), out.Duration)
	if err := res.target.OnSuccess(out); err != nil {
		zap.S().Warnf("eventloop: delivery failed: %v", err)
		_ = res.target.OnFailure(err)
	}
}

func (l *Loop) source(kind string) (session.Source, error) {
	switch kind {
	case config.SourcePaste, "":
		return session.ClipboardSource{Read: l.opts.ReadClipboard}, nil
	case config.SourceRegion:
		return session.RegionSource{Region: l.opts.Region, Capture: l.opts.Capture}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}

// notifyingTarget delivers to inner and then pops a summary.
type notifyingTarget struct {
	inner  session.ResultTarget
	notify func(title, message string)
}

func (t notifyingTarget) OnSuccess(out session.Outcome) error {
	if err := t.inner.OnSuccess(out); err != nil {
		return err
	}
	title, msg := notify.Summary(out.Results)
	t.notify(title, msg)
	return nil
}

func (t notifyingTarget) OnFailure(err error) error {
	_ = t.inner.OnFailure(err)
	title, msg := notify.Failure(err)
	t.notify(title, msg)
	return nil
}
