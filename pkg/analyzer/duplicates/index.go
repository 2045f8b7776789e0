package duplicates

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const indexShards = 64

// FileSet is a read-only set of file IDs, where an ID is the position of a
// file in the enumerated list.
type FileSet struct {
	bm *roaring.Bitmap
}

var emptyBitmap = roaring.New()

// Len returns the number of files in the set.
func (s FileSet) Len() int {
	if s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// Contains reports whether file id is in the set.
func (s FileSet) Contains(id uint32) bool {
	return s.bm != nil && s.bm.Contains(id)
}

// IDs returns the file IDs in ascending order.
func (s FileSet) IDs() []uint32 {
	if s.bm == nil {
		return nil
	}
	return s.bm.ToArray()
}

func (s FileSet) bitmap() *roaring.Bitmap {
	if s.bm == nil {
		return emptyBitmap
	}
	return s.bm
}

// Index maps line fingerprints to the set of files containing them. It is
// written concurrently while indexing, then frozen; after Freeze it is
// read-only and lookups take no locks.
type Index struct {
	shards [indexShards]indexShard
	frozen atomic.Bool
}

type indexShard struct {
	mu   sync.Mutex
	sets map[Fingerprint]*roaring.Bitmap
}

// NewIndex creates an empty, writable index.
func NewIndex() *Index {
	x := &Index{}
	for i := range x.shards {
		x.shards[i].sets = make(map[Fingerprint]*roaring.Bitmap)
	}
	return x
}

func (x *Index) shard(fp Fingerprint) *indexShard {
	return &x.shards[binary.LittleEndian.Uint64(fp[:8])%indexShards]
}

// Insert adds file to the fingerprint's file-set. Repeated inserts of the
// same pair have no further effect.
func (x *Index) Insert(fp Fingerprint, file uint32) error {
	if x.frozen.Load() {
		return ErrIndexFrozen
	}
	sh := x.shard(fp)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	bm, ok := sh.sets[fp]
	if !ok {
		bm = roaring.New()
		sh.sets[fp] = bm
	}
	bm.Add(file)
	return nil
}

// InsertFile adds file to the file-set of every fingerprint in fps.
func (x *Index) InsertFile(fps []Fingerprint, file uint32) error {
	for _, fp := range fps {
		if err := x.Insert(fp, file); err != nil {
			return err
		}
	}
	return nil
}

// Freeze seals the index. It must not race with Insert.
func (x *Index) Freeze() {
	if x.frozen.Load() {
		return
	}
	for i := range x.shards {
		sh := &x.shards[i]
		sh.mu.Lock()
		for _, bm := range sh.sets {
			bm.RunOptimize()
		}
		sh.mu.Unlock()
	}
	x.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (x *Index) Frozen() bool {
	return x.frozen.Load()
}

// Lookup returns the files containing fp, or an empty set if it was never
// inserted. Before Freeze the result is a snapshot copy.
func (x *Index) Lookup(fp Fingerprint) FileSet {
	sh := x.shard(fp)
	if x.frozen.Load() {
		return FileSet{bm: sh.sets[fp]}
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if bm, ok := sh.sets[fp]; ok {
		return FileSet{bm: bm.Clone()}
	}
	return FileSet{}
}

// Len returns the number of distinct fingerprints.
func (x *Index) Len() int {
	n := 0
	for i := range x.shards {
		sh := &x.shards[i]
		sh.mu.Lock()
		n += len(sh.sets)
		sh.mu.Unlock()
	}
	return n
}
