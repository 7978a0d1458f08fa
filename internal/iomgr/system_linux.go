//go:build linux

package iomgr

import (
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"ntaio/internal/util"

	"github.com/aethne0/giouring"
	"golang.org/x/sys/unix"
)

// PERF:
// 1. read/write fixed
// 2. register buffer
// 3. register file
// Buffers come from callers (NT-style request buffers) so registering them
// isn't possible without a copy; files come and go with handles.

const MMAP_MODE   	= unix.MAP_ANON  | unix.MAP_PRIVATE
const MMAP_PROT   	= unix.PROT_READ | unix.PROT_WRITE
const RING_ENTRIES 	= 0x80
const RING_DPTHTRG	= 0x40
const OP_Q_SIZE		= 0x100

type RingConfig struct {
	Entries		uint32	`mapstructure:"ring_entries" validate:"omitempty,gte=1,lte=32768"`
	DepthTarget	uint	`mapstructure:"depth_target"`
	Pool		PoolConfig	`mapstructure:",squash"`
}

// Page aligned scratch buffers (the CLI copy loop uses these). liburing handles
// the ring mmaps itself.
func AllocSlab(size int) ([]byte, error) {
	raw, err := unix.Mmap(-1, 0, int(size), MMAP_PROT, MMAP_MODE)
	if err != nil {
		slog.Error("AllocSlab", "err", err)
	}
	return raw, err
}

func DeallocSlab(ptr []byte) error {
	err := unix.Munmap(ptr)
	if err != nil {
		slog.Error("DeallocSlab", "err", err)
	}
	return err
}

// IoMgr drives one io_uring from a single locked goroutine. Stream ops and
// appends go to a Pool: the first may block forever in the kernel where we
// can't cancel them, the second must resolve EOF and write under one lock.
type IoMgr struct {
	log			slog.Logger
	ring 		*giouring.Ring
	opQueue		chan *Op
	opSem		chan struct{}
	slots		util.TicketQueue[*Op] // ringlord only
	depthTrg	uint
	fallback	*Pool

	closeOnce	sync.Once
	subMu		sync.RWMutex // Submit holds it shared across the enqueue
	closed		bool
	exited		chan struct{}
}

func CreateIoMgr(cfg RingConfig) (*IoMgr ,error) {
	log := *slog.With("src", "IoMgr")

	if cfg.Entries == 0 { cfg.Entries = RING_ENTRIES }
	if cfg.DepthTarget == 0 { cfg.DepthTarget = uint(cfg.Entries / 2) }

	ring, err := giouring.CreateRing(cfg.Entries)
	if err != nil { return nil, err }

	iomgr := IoMgr {
		log: 		log,
		ring: 		ring,
		opQueue: 	make(chan *Op, OP_Q_SIZE),
		opSem: 		make(chan struct{}, cfg.Entries),
		slots:		util.CreateTicketQueue[*Op](int(cfg.Entries)),
		depthTrg:	cfg.DepthTarget,
		fallback:	CreatePool(cfg.Pool),
		exited:		make(chan struct{}),
	}
	log.Debug("CreateIoMgr", "entries", cfg.Entries, "depth", cfg.DepthTarget)

	go iomgr.ringlord()
	return &iomgr, nil
}

func (m *IoMgr) Name() string {
	return "uring"
}

func (m *IoMgr) Close() error {
	m.closeOnce.Do(func() {
		// no Submit can enqueue behind the sentinel
		m.subMu.Lock()
		m.closed = true
		m.subMu.Unlock()
		m.opQueue <- nil
		<-m.exited
		m.fallback.Close()
	})
	return nil
}

func (m *IoMgr) Submit(op *Op) {
	if op.Stream || op.Append {
		m.fallback.Submit(op)
		return
	}
	m.subMu.RLock()
	if m.closed {
		m.subMu.RUnlock()
		op.finish(-int32(unix.ECANCELED))
		return
	}
	m.opSem <- struct{}{}
	m.opQueue <- op
	m.subMu.RUnlock()
}

// Returns the number of SQEs prepared.
func (m *IoMgr) prepSQE(op *Op) uint {
	if op.Cancelled() {
		<- m.opSem
		op.finish(-int32(unix.ECANCELED))
		return 0
	}

	ticket := uint64(m.slots.Acq(op))
	switch op.Opcode {
	case OpNop:
		sqe := m.ring.GetSQE()
		sqe.PrepareNop()
		sqe.UserData = ticket

	case OpWrite:
		sqe := m.ring.GetSQE()
		sqe.PrepareWrite(op.Fd, bufPtr(op.Buf), uint32(len(op.Buf)), uint64(op.Off))
		sqe.UserData = ticket

	case OpRead:
		sqe := m.ring.GetSQE()
		sqe.PrepareRead(op.Fd, bufPtr(op.Buf), uint32(len(op.Buf)), uint64(op.Off))
		sqe.UserData = ticket

	case OpSync:
		sqe := m.ring.GetSQE()
		sqe.PrepareFsync(op.Fd, 0)
		sqe.UserData = ticket

	default:
		m.log.Warn("Invalid opcode", "opcode", op.Opcode)
		m.slots.Rel(int(ticket))
		<- m.opSem
		op.finish(-int32(unix.EINVAL))
		return 0
	}
	return 1
}

func bufPtr(buf []byte) uintptr {
	if len(buf) == 0 { return 0 }
	return uintptr(unsafe.Pointer(&buf[0]))
}

// "Those who sow the good seed
// Shall surely reap"
func (m *IoMgr) ringlord() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(m.exited)

	var queued   uint = 0 // SQEs that we have "got" and prepared from the opQueue
	var inflight uint = 0 // SQEs that have been SUBMITTED
	closing := false

	collect := func(op *Op) {
		if op == nil {
			closing = true
			return
		}
		queued += m.prepSQE(op)
	}

	// 1. collect ops from the opQueue and prepare SQEs
	// 2. submit
	// 3. reap CQEs, finish ops
	for {
		// STAGE 1
		if inflight == 0 && queued == 0 {
			if closing {
				m.ring.QueueExit()
				return
			}
			// nothing to reap, block for work
			collect(<- m.opQueue)
		}
		COLLECT: for {
			select {
			case op := <- m.opQueue:
				collect(op)
			default:
				break COLLECT
			}
		}

		// STAGE 2
		if queued > 0 || inflight > 0 {
			var submitted uint
			var err error
			if inflight + queued > m.depthTrg || queued == 0 {
				// either deep enough to batch, or idle with ops in the kernel:
				// park until something completes instead of spinning
				submitted, err = m.ring.SubmitAndWait(1)
			} else {
				submitted, err = m.ring.Submit()
			}
			if err != nil && err != unix.ETIME && err != unix.EINTR && err != unix.EAGAIN {
				m.log.Error("Submit", "err", err)
			}
			queued   -= min(submitted, queued)
			inflight += submitted
		}

		// STAGE 3
		for inflight > 0 {
			cqe, err := m.ring.PeekCQE()
			if err == unix.EAGAIN || err == unix.EINTR || err == unix.ETIME {
				break
			} else if err != nil {
				m.log.Error("Peek cqe fatal error", "err", err)
				panic("Something wrong with your IO_URING!")
			}

			if cqe == nil {
				m.log.Warn("cqe == nil but we didnt get an err (eagain)?")
				break
			}

			inflight--

			ticket := int(cqe.UserData)
			op := m.slots.Get(ticket)
			res := cqe.Res
			m.slots.Rel(ticket)
			m.ring.CQESeen(cqe)
			<- m.opSem

			op.finish(res)
		}
	}
}
