package match

import (
	"sync"

	"github.com/miroirapp/miroir/internal/db"
)

const lockShards = 128

// pairLock serializes mutual-like evaluation per canonical user pair.
// Sharded so unrelated pairs almost never contend and no global lock
// exists; the DB unique index on (user_a, user_b) remains the hard
// backstop for the rare shard collision.
type pairLock struct {
	shards [lockShards]sync.Mutex
}

func newPairLock() *pairLock {
	return &pairLock{}
}

func (l *pairLock) shard(x, y uint64) *sync.Mutex {
	a, b := db.CanonicalPair(x, y)
	// cheap mix; both orders of the pair land on the same shard
	h := a*0x9e3779b9 + b
	return &l.shards[h%lockShards]
}

// Lock acquires the lock for the unordered pair (x, y).
func (l *pairLock) Lock(x, y uint64) { l.shard(x, y).Lock() }

// Unlock releases the lock for the unordered pair (x, y).
func (l *pairLock) Unlock(x, y uint64) { l.shard(x, y).Unlock() }
