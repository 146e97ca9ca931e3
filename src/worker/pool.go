package worker

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"cad-lingo/src/analysis"
	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
)

// ResultCallback is invoked on analysis completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(results []analysis.Result, err error)

// Pool is a fixed-size analysis worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	analyzer analysis.Analyzer
	jobs     chan job
	wg       sync.WaitGroup
	once     sync.Once
}

type job struct {
	ctx     context.Context
	img     imageinput.Image
	entries []glossary.Entry
	cb      ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(analyzer analysis.Analyzer, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{analyzer: analyzer, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				zap.S().Debugf("worker: analyzing %dx%d image", j.img.Width, j.img.Height)
				results, err := p.analyzeWithContext(j.ctx, j.img, j.entries)
				zap.S().Debugf("worker: analysis done, items=%d err=%v", len(results), err)
				j.cb(results, err)
			}
		}()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
// entries is the glossary snapshot taken at submit time.
func (p *Pool) Submit(ctx context.Context, img imageinput.Image, entries []glossary.Entry, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, img: img, entries: entries, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

// analyzeWithContext returns when ctx ends even if the analyzer ignores it.
func (p *Pool) analyzeWithContext(ctx context.Context, img imageinput.Image, entries []glossary.Entry) ([]analysis.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type outcome struct {
		results []analysis.Result
		err     error
	}
	resCh := make(chan outcome, 1)
	go func() {
		results, err := p.analyzer.Analyze(ctx, img, entries)
		resCh <- outcome{results, err}
	}()
	select {
	case r := <-resCh:
		return r.results, r.err
	case <-ctx.Done():
		// Allow the analyzer to finish in the background; we return timeout.
		return nil, ctx.Err()
	}
}
