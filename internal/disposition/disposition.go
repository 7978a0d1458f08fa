// Package disposition tracks delete state per backing store. Every File Object
// on the same device+inode shares one Record from the Arena.
package disposition

import (
	"fmt"
	"sync"

	c "ntaio/internal"
	"ntaio/internal/status"
	"ntaio/internal/util"

	"github.com/negrel/assert"
)

type FileID struct {
	Dev	uint64
	Ino	uint64
}

func (id FileID) String() string {
	return fmt.Sprintf("%x:%x", id.Dev, id.Ino)
}

type State uint8
const (
	Normal State = iota
	MarkedForDelete
	Removed // name is gone, open File Objects keep working
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case MarkedForDelete:
		return "marked"
	case Removed:
		return "removed"
	}
	return "?"
}

// Open is one File Object's footprint on a Record.
type Open struct {
	Access			c.Access
	Share			c.Share
	DeleteOnClose	bool // FILE_DELETE_ON_CLOSE or FILE_DISPOSITION_ON_CLOSE
	OpenedDOC		bool // FILE_DELETE_ON_CLOSE at open time, can't be cleared
}

func (o *Open) data() bool {
	return o.Access & c.DATA_ACCESS != 0
}

// Host facts sampled right before a delete mark.
type Facts struct {
	ReadOnly	bool
	NonEmpty	bool
}

type Record struct {
	ID			FileID
	IsDir		bool

	mu			sync.Mutex
	state		State
	opens		[]*Open
	sections	int
	renaming	int
	irrevocable	bool
	path		string
	refs		int // arena references, guarded by the shard lock
}

// Sharing between a new request and one existing open, both directions.
func compatible(o *Open, access c.Access, share c.Share) bool {
	if !o.data() || access & c.DATA_ACCESS == 0 { return true }
	if access.Reads() && o.Share & c.FILE_SHARE_READ == 0 { return false }
	if access.Writes() && o.Share & c.FILE_SHARE_WRITE == 0 { return false }
	if access & c.DELETE != 0 && o.Share & c.FILE_SHARE_DELETE == 0 { return false }
	if o.Access.Reads() && share & c.FILE_SHARE_READ == 0 { return false }
	if o.Access.Writes() && share & c.FILE_SHARE_WRITE == 0 { return false }
	if o.Access & c.DELETE != 0 && share & c.FILE_SHARE_DELETE == 0 { return false }
	return true
}

func (r *Record) shareable(access c.Access, share c.Share) bool {
	for _, o := range r.opens {
		if !compatible(o, access, share) { return false }
	}
	return true
}

// AddOpen registers a new File Object. Sharing is checked before the delete
// mark, so an incompatible opener sees SharingViolation either way.
func (r *Record) AddOpen(access c.Access, share c.Share, doc bool) (*Open, status.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.shareable(access, share) { return nil, status.SharingViolation }
	switch r.state {
	case MarkedForDelete:
		return nil, status.DeletePending
	case Removed:
		return nil, status.ObjectNameNotFound
	}

	o := &Open{
		Access:			access,
		Share:			share,
		DeleteOnClose:	doc,
		OpenedDOC:		doc,
	}
	r.opens = append(r.opens, o)
	return o, status.Success
}

// RemoveOpen drops o. When it returns a path, the caller removes that name:
// the last reference on a marked store just went away.
func (r *Record) RemoveOpen(o *Open) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.opens {
		if p == o {
			r.opens = append(r.opens[:i], r.opens[i+1:]...)
			break
		}
	}
	if o.DeleteOnClose && r.state == Normal {
		r.state = MarkedForDelete
	}
	if o.DeleteOnClose {
		r.irrevocable = true
	}
	return r.reap()
}

func (r *Record) reap() (string, bool) {
	if len(r.opens) > 0 || r.sections > 0 || r.state != MarkedForDelete { return "", false }
	r.state = Removed
	return r.path, true
}

// Restore puts a store back to normal after its removal failed on the host.
func (r *Record) Restore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Removed { r.state = Normal }
	r.irrevocable = false
}

// SetDisposition applies FileDispositionInformation(Ex) for o. It reports true
// when the name must be unlinked right away (POSIX semantics).
func (r *Record) SetDisposition(o *Open, flags c.DispositionFlags, facts Facts) (status.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.Access & c.DELETE == 0 { return status.AccessDenied, false }

	if flags & c.FILE_DISPOSITION_DELETE == 0 {
		return r.unmark(o, flags), false
	}

	if r.state == Removed { return status.Success, false }
	if r.renaming > 0 { return status.AccessDenied, false }
	if r.sections > 0 { return status.CannotDelete, false }
	if facts.ReadOnly && flags & c.FILE_DISPOSITION_IGNORE_READONLY_ATTRIBUTE == 0 {
		return status.CannotDelete, false
	}
	if r.IsDir && facts.NonEmpty { return status.CannotDelete, false }
	for _, p := range r.opens {
		if p != o && p.data() && p.Share & c.FILE_SHARE_DELETE == 0 {
			return status.AccessDenied, false
		}
	}

	if flags & c.FILE_DISPOSITION_ON_CLOSE != 0 {
		o.DeleteOnClose = true
		return status.Success, false
	}
	if flags & c.FILE_DISPOSITION_POSIX_SEMANTICS != 0 {
		r.state = Removed
		return status.Success, true
	}
	r.state = MarkedForDelete
	return status.Success, false
}

func (r *Record) unmark(o *Open, flags c.DispositionFlags) status.Status {
	// silently ignored, matching what NT does for these handles
	if o.OpenedDOC { return status.Success }

	if flags & c.FILE_DISPOSITION_ON_CLOSE != 0 {
		o.DeleteOnClose = false
		return status.Success
	}
	if r.state == MarkedForDelete && !r.irrevocable {
		r.state = Normal
	}
	return status.Success
}

func (r *Record) AddSection() {
	r.mu.Lock()
	r.sections++
	r.mu.Unlock()
}

func (r *Record) RemoveSection() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections--
	assert.GreaterOrEqual(r.sections, 0, "section count underflow")
	return r.reap()
}

// BeginRename blocks delete marks until EndRename.
func (r *Record) BeginRename() status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Normal { return status.DeletePending }
	r.renaming++
	return status.Success
}

func (r *Record) EndRename(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renaming--
	assert.GreaterOrEqual(r.renaming, 0, "rename count underflow")
	if path != "" { r.path = path }
}

func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Record) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *Record) SetPath(path string) {
	r.mu.Lock()
	r.path = path
	r.mu.Unlock()
}

func (r *Record) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opens)
}

func (r *Record) Sections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sections
}


const SHARDS = 0x10

type shard struct {
	mu		sync.Mutex
	recs	map[FileID]*Record
}

type Arena struct {
	shards	[SHARDS]shard
}

func CreateArena() *Arena {
	a := &Arena{}
	for i := range a.shards {
		a.shards[i].recs = make(map[FileID]*Record)
	}
	return a
}

func (a *Arena) shard(id FileID) *shard {
	return &a.shards[util.Hash(id.Ino ^ util.Hash(id.Dev)) % SHARDS]
}

// Acquire returns the Record for id, creating it on first use.
func (a *Arena) Acquire(id FileID, path string, isDir bool) *Record {
	s := a.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recs[id]
	if !ok {
		r = &Record{ ID: id, IsDir: isDir, path: path }
		s.recs[id] = r
	}
	r.refs++
	return r
}

func (a *Arena) Release(r *Record) {
	s := a.shard(r.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	r.refs--
	assert.GreaterOrEqual(r.refs, 0, "record released twice")
	if r.refs == 0 { delete(s.recs, r.ID) }
}

func (a *Arena) Lookup(id FileID) *Record {
	s := a.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[id]
}

func (a *Arena) Len() int {
	n := 0
	for i := range a.shards {
		a.shards[i].mu.Lock()
		n += len(a.shards[i].recs)
		a.shards[i].mu.Unlock()
	}
	return n
}

// OnClose reports whether o will mark the store when it closes.
func (r *Record) OnClose(o *Open) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return o.DeleteOnClose
}
