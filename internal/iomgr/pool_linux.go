//go:build linux

package iomgr

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const POOL_WORKERS		= 0x10
const POOL_POLL_IVAL	= 10 * time.Millisecond

type PoolConfig struct {
	Workers			int				`mapstructure:"workers" validate:"omitempty,gte=1"`
	PollInterval	time.Duration	`mapstructure:"poll_interval"`
}

// Pool executes ops on goroutines, at most Workers of them touching the host at
// once. Stream ops wait for readiness outside the semaphore so a quiet pipe
// can't starve file I/O.
type Pool struct {
	log			slog.Logger
	opSem		chan struct{}
	pollIval	time.Duration
	wg			sync.WaitGroup

	mu			sync.Mutex // orders Submit against Close
	closed		bool
}

func CreatePool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 { cfg.Workers = POOL_WORKERS }
	if cfg.PollInterval <= 0 { cfg.PollInterval = POOL_POLL_IVAL }

	log := *slog.With("src", "Pool")
	log.Debug("CreatePool", "workers", cfg.Workers, "poll", cfg.PollInterval)

	return &Pool{
		log:		log,
		opSem:		make(chan struct{}, cfg.Workers),
		pollIval:	cfg.PollInterval,
	}
}

func (p *Pool) Name() string {
	return "threadpool"
}

func (p *Pool) Submit(op *Op) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		op.finish(-int32(unix.ECANCELED))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		op.finish(p.run(op))
	}()
}

func (p *Pool) run(op *Op) int32 {
	if op.Stream {
		for !Ready(op.Fd, op.Opcode == OpWrite, p.pollIval) {
			if op.Cancelled() { return -int32(unix.ECANCELED) }
		}
	}

	p.opSem <- struct{}{}
	defer func() { <-p.opSem }()

	if op.Cancelled() { return -int32(unix.ECANCELED) }
	return Exec(op)
}

// Close waits for every submitted op. Callers cancel stream ops first.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
