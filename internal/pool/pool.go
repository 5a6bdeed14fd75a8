// Package pool dispatches language-server queries to a fixed set of
// worker goroutines with admission control. Requests are refused (not
// queued) once per-kind or total in-flight capacity is reached, and a
// request that waits too long before a worker picks it up returns its
// fallback result instead of running. There is no mid-flight
// cancellation: a task is started fresh, timed out before starting, or
// runs to completion.
package pool

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Kind names a query family for per-kind admission control.
type Kind string

const (
	KindHover      Kind = "hover"
	KindDefinition Kind = "definition"
	KindSymbols    Kind = "symbols"
)

var (
	// ErrBusy reports that per-kind or total capacity was exhausted;
	// the request was refused, not queued.
	ErrBusy = errors.New("pool: at capacity")
	// ErrClosed reports a submit after Close.
	ErrClosed = errors.New("pool: closed")
	// ErrInternal wraps a recovered panic from a task body.
	ErrInternal = errors.New("pool: internal error")
)

// Config sizes the pool. Zero fields fall back to the defaults below.
type Config struct {
	Workers      int           // worker goroutines
	PerKindLimit int64         // max in-flight tasks of one kind
	TotalLimit   int64         // max in-flight tasks across kinds
	StartTimeout time.Duration // max queue wait before the fallback is used
}

const (
	defaultWorkers      = 4
	defaultPerKindLimit = 8
	defaultTotalLimit   = 32
	defaultStartTimeout = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.PerKindLimit <= 0 {
		c.PerKindLimit = defaultPerKindLimit
	}
	if c.TotalLimit <= 0 {
		c.TotalLimit = defaultTotalLimit
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = defaultStartTimeout
	}
	return c
}

// Result is what a task resolves to: the task's value, the fallback
// value (when the start timeout fired), or an error.
type Result struct {
	Value    any
	Err      error
	Fallback bool // true when the start timeout produced the value
}

type task struct {
	id       uuid.UUID
	kind     Kind
	enqueued time.Time
	run      func() (any, error)
	fallback func() any
	done     chan Result
}

// Pool is safe for concurrent use.
type Pool struct {
	cfg    Config
	logger *log.Logger

	total *semaphore.Weighted

	mu      sync.Mutex
	perKind map[Kind]*semaphore.Weighted
	closed  bool

	queue chan *task
	wg    sync.WaitGroup
}

// New starts a pool with cfg.Workers workers. logger may be nil.
func New(cfg Config, logger *log.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		total:   semaphore.NewWeighted(cfg.TotalLimit),
		perKind: make(map[Kind]*semaphore.Weighted),
		queue:   make(chan *task, cfg.TotalLimit),
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) kindSem(kind Kind) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem := p.perKind[kind]
	if sem == nil {
		sem = semaphore.NewWeighted(p.cfg.PerKindLimit)
		p.perKind[kind] = sem
	}
	return sem
}

// Submit enqueues a task. The returned channel receives exactly one
// Result. Submit fails with ErrBusy when the kind or the pool as a
// whole is at capacity, and with ErrClosed after Close.
func (p *Pool) Submit(kind Kind, run func() (any, error), fallback func() any) (<-chan Result, error) {
	sem := p.kindSem(kind)
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: kind %q", ErrBusy, kind)
	}
	if !p.total.TryAcquire(1) {
		sem.Release(1)
		return nil, fmt.Errorf("%w: total", ErrBusy)
	}

	t := &task{
		id:       uuid.New(),
		kind:     kind,
		enqueued: time.Now(),
		run:      run,
		fallback: fallback,
		done:     make(chan Result, 1),
	}

	// The queue is buffered to TotalLimit, so the send below cannot
	// block while the total semaphore is held. Sending under the mutex
	// keeps Close's channel close ordered after any admitted send.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		sem.Release(1)
		p.total.Release(1)
		return nil, ErrClosed
	}
	p.queue <- t
	p.mu.Unlock()
	return t.done, nil
}

// Do submits and waits.
func (p *Pool) Do(kind Kind, run func() (any, error), fallback func() any) (Result, error) {
	ch, err := p.Submit(kind, run, fallback)
	if err != nil {
		return Result{}, err
	}
	return <-ch, nil
}

// Close stops accepting work and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		res := p.serve(t)
		// Release before delivering: receiving a Result must imply the
		// freed capacity is already available to the next Submit.
		p.release(t.kind)
		t.done <- res
	}
}

func (p *Pool) release(kind Kind) {
	p.kindSem(kind).Release(1)
	p.total.Release(1)
}

// serve resolves one task: stale tasks short-circuit to their fallback,
// and panics in the task body are contained here so a bad query can
// never take the process down. The caller delivers the returned Result
// after releasing capacity.
func (p *Pool) serve(t *task) (res Result) {
	if waited := time.Since(t.enqueued); waited > p.cfg.StartTimeout {
		p.logger.Printf("pool: task %s (%s) waited %v, returning fallback", t.id, t.kind, waited.Round(time.Millisecond))
		var val any
		if t.fallback != nil {
			val = t.fallback()
		}
		return Result{Value: val, Fallback: true}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("pool: task %s (%s) panicked: %v", t.id, t.kind, r)
			res = Result{Err: fmt.Errorf("%w: %v", ErrInternal, r)}
		}
	}()
	val, err := t.run()
	return Result{Value: val, Err: err}
}
