package repo

import (
	"sync"

	"quizroom-service/internal/domain"
)

// SessionCache remembers which student identity each name joined a room
// as in this process, so a reconnecting client re-identifies itself
// after a page refresh instead of minting a second identity, even when
// the store's student collection no longer carries it. Session-scoped,
// never persisted.
type SessionCache struct {
	mu    sync.RWMutex
	byKey map[sessionKey]domain.Student
}

type sessionKey struct {
	roomID string
	name   string
}

func NewSessionCache() *SessionCache {
	return &SessionCache{byKey: make(map[sessionKey]domain.Student)}
}

func (c *SessionCache) Put(roomID string, student domain.Student) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[sessionKey{roomID: roomID, name: student.Name}] = student
}

// Resume returns the identity this name previously joined as, if any.
func (c *SessionCache) Resume(roomID, name string) (domain.Student, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	student, ok := c.byKey[sessionKey{roomID: roomID, name: name}]
	return student, ok
}
