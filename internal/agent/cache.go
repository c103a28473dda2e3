package agent

import (
	"sync"

	"github.com/inboxagent/inboxagent/internal/gmail"
)

// Cache remembers emails fetched while the agent works so that reply tools
// can address them by ID. A zero-capacity cache grows without bound and is
// meant to be cleared at the start of every turn; a bounded cache evicts
// its oldest entry and suits long-lived sessions.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*gmail.Email
	order    []string
	lastID   string
	capacity int
}

// NewCache creates an unbounded cache.
func NewCache() *Cache {
	return newCache(0)
}

// NewBoundedCache creates a cache that holds at most capacity entries,
// evicting the oldest when full. Capacity must be positive.
func NewBoundedCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return newCache(capacity)
}

func newCache(capacity int) *Cache {
	return &Cache{
		entries:  make(map[string]*gmail.Email),
		capacity: capacity,
	}
}

// Put records an email under its message ID and marks it as the most
// recently fetched.
func (c *Cache) Put(id string, email *gmail.Email) {
	if id == "" || email == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
		if c.capacity > 0 && len(c.order) > c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
			if c.lastID == oldest {
				c.lastID = ""
			}
		}
	}

	c.entries[id] = email
	c.lastID = id
}

// Get returns the email recorded under id.
func (c *Cache) Get(id string) (*gmail.Email, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	email, ok := c.entries[id]
	return email, ok
}

// Last returns the most recently recorded email.
func (c *Cache) Last() (*gmail.Email, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastID == "" {
		return nil, false
	}
	email, ok := c.entries[c.lastID]
	return email, ok
}

// LastID returns the message ID of the most recently recorded email.
func (c *Cache) LastID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastID, c.lastID != ""
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*gmail.Email)
	c.order = c.order[:0]
	c.lastID = ""
}

// Len returns the number of cached emails.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
