package buffer

import (
	"hash/fnv"
	"sync"

	"github.com/SimonWaldherr/tinySQL/internal/file"
)

// residencyTable maps BlockID -> frame index, sharded by a hash of the
// BlockID so that blocks hashing to different shards never contend on the
// map lookup/insert critical section. The invariant this table exists to
// maintain: at most one frame serves a given BlockID at any time visible
// outside the pin critical section.
type residencyTable struct {
	shards []residencyShard
}

type residencyShard struct {
	mu sync.RWMutex
	m  map[file.BlockID]int
}

func newResidencyTable(shardCount int) *residencyTable {
	if shardCount < 1 {
		shardCount = 1
	}
	rt := &residencyTable{shards: make([]residencyShard, shardCount)}
	for i := range rt.shards {
		rt.shards[i].m = make(map[file.BlockID]int)
	}
	return rt
}

func blockShard(b file.BlockID, n int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(b.Filename))
	var numBuf [8]byte
	v := uint64(b.Num)
	for i := 0; i < 8; i++ {
		numBuf[i] = byte(v >> (8 * i))
	}
	_, _ = h.Write(numBuf[:])
	return int(h.Sum64() % uint64(n))
}

func (rt *residencyTable) shardFor(b file.BlockID) *residencyShard {
	return &rt.shards[blockShard(b, len(rt.shards))]
}

func (rt *residencyTable) get(b file.BlockID) (int, bool) {
	s := rt.shardFor(b)
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.m[b]
	return idx, ok
}

func (rt *residencyTable) put(b file.BlockID, idx int) {
	s := rt.shardFor(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[b] = idx
}

func (rt *residencyTable) delete(b file.BlockID) {
	s := rt.shardFor(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, b)
}
