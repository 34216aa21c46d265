package buffer

import "sync"

// latchTable is a sharded map of short-lived mutexes that serializes the
// "observe residency -> assign frame" critical section for a single block,
// so two threads missing on the same block never load it twice. Latches
// are held only across that critical section (which, for the miss path,
// includes the victim eviction and replacement I/O needed to safely
// publish the new residency entry). A latch guards a shard, not a single
// block: distinct blocks whose hashes fall in the same shard share one
// mutex and do contend; blocks in different shards do not.
type latchTable struct {
	shards []sync.Mutex
}

func newLatchTable(shardCount int) *latchTable {
	if shardCount < 1 {
		shardCount = 1
	}
	return &latchTable{shards: make([]sync.Mutex, shardCount)}
}

// lock acquires the shard guarding block and returns a function to release
// it.
func (lt *latchTable) lock(bShard int) func() {
	m := &lt.shards[bShard]
	m.Lock()
	return m.Unlock
}
