package memory

import (
	"hash/fnv"
	"sync"
)

// keyMutexShards bounds lock-table growth; collisions only serialize more.
const keyMutexShards = 64

// KeyMutex serializes work per (user, chat) key via a fixed shard table,
// so concurrent turns for the same chat run one at a time while turns for
// different chats proceed in parallel.
type KeyMutex struct {
	shards [keyMutexShards]sync.Mutex
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{}
}

// Lock acquires the shard for key and returns its unlock function.
func (m *KeyMutex) Lock(userID, chatID string) func() {
	shard := &m.shards[shardIndex(userID, chatID)]
	shard.Lock()
	return shard.Unlock
}

func shardIndex(userID, chatID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(chatID))
	return h.Sum32() % keyMutexShards
}
