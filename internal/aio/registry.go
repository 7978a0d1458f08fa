//go:build linux

package aio

import (
	"sync"

	"ntaio/internal/file"

	"github.com/negrel/assert"
)

// registry tracks asynchronous operations from submission until their
// completion has been delivered.
type registry struct {
	mu		sync.Mutex
	idle	*sync.Cond
	ops		map[*file.FileObject]map[*operation]struct{}
	cnt		int
}

func createRegistry() *registry {
	r := &registry{ ops: make(map[*file.FileObject]map[*operation]struct{}) }
	r.idle = sync.NewCond(&r.mu)
	return r
}

func (r *registry) add(op *operation) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.ops[op.fo]
	if !ok {
		set = make(map[*operation]struct{})
		r.ops[op.fo] = set
	}
	set[op] = struct{}{}
	r.cnt++
	return r.cnt
}

func (r *registry) remove(op *operation) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.ops[op.fo]
	if _, ok := set[op]; !ok { panic("aio: removing an unregistered operation") }
	delete(set, op)
	if len(set) == 0 { delete(r.ops, op.fo) }
	r.cnt--
	assert.GreaterOrEqual(r.cnt, 0, "registry count underflow")
	r.idle.Broadcast()
	return r.cnt
}

// cancel flags fo's operations, or only the one using iosb, and returns how
// many were still pending.
func (r *registry) cancel(fo *file.FileObject, iosb *IoStatusBlock) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for op := range r.ops[fo] {
		if iosb != nil && op.req.IOSB != iosb { continue }
		op.hop.Cancel()
		n++
	}
	return n
}

func (r *registry) objects() []*file.FileObject {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*file.FileObject, 0, len(r.ops))
	for fo := range r.ops {
		out = append(out, fo)
	}
	return out
}

func (r *registry) pending(fo *file.FileObject) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops[fo])
}

// drain waits until fo has nothing pending; a nil fo waits for everything.
func (r *registry) drain(fo *file.FileObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for (fo == nil && r.cnt > 0) || (fo != nil && len(r.ops[fo]) > 0) {
		r.idle.Wait()
	}
}
