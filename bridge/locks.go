package bridge

import "sync"

// chatLocks serializes state transitions per chat while letting distinct
// chats proceed in parallel. Entries are never evicted; the table grows with
// the number of chats seen, which stays small for this bot.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int64]*sync.Mutex)}
}

func (c *chatLocks) get(chatID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[chatID] = l
	}
	return l
}
