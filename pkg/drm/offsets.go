package drm

import (
	"sync"

	"github.com/google/btree"

	"github.com/kms-core/kms-go/pkg/gem"
)

// Offset table layout. Offsets start above 4 GiB so they never collide with
// small integers a client may pass by mistake.
const (
	OffsetBase = 0x100000000
	offsetPage = 4096
)

type offsetEntry struct {
	start uint64
	size  uint64
	obj   *gem.Object
}

func offsetLess(a, b offsetEntry) bool {
	return a.start < b.start
}

// offsetTable maps memory-map offsets to buffer objects. Each buffer gets one
// page-aligned range for as long as it is registered.
type offsetTable struct {
	mu     sync.Mutex
	next   uint64
	ranges *btree.BTreeG[offsetEntry]
	byObj  map[*gem.Object]uint64
}

func newOffsetTable() *offsetTable {
	return &offsetTable{
		next:   OffsetBase,
		ranges: btree.NewG(8, offsetLess),
		byObj:  make(map[*gem.Object]uint64),
	}
}

func (t *offsetTable) create(obj *gem.Object) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if off, ok := t.byObj[obj]; ok {
		return off
	}
	size := (obj.Size() + offsetPage - 1) &^ (offsetPage - 1)
	if size == 0 {
		size = offsetPage
	}
	off := t.next
	t.next += size
	t.ranges.ReplaceOrInsert(offsetEntry{start: off, size: size, obj: obj})
	t.byObj[obj] = off
	return off
}

func (t *offsetTable) lookup(off uint64) (*gem.Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var found *gem.Object
	t.ranges.DescendLessOrEqual(offsetEntry{start: off}, func(e offsetEntry) bool {
		if off < e.start+e.size {
			found = e.obj
		}
		return false
	})
	return found, found != nil
}

func (t *offsetTable) remove(obj *gem.Object) {
	t.mu.Lock()
	defer t.mu.Unlock()

	off, ok := t.byObj[obj]
	if !ok {
		return
	}
	delete(t.byObj, obj)
	t.ranges.Delete(offsetEntry{start: off})
}

func (t *offsetTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byObj)
}
