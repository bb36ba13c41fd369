package question

import (
	"context"
	"sync"
)

// MemoryCatalog keeps questions in process. Used for tests and as a fallback
// when no database is configured.
type MemoryCatalog struct {
	mu           sync.RWMutex
	byID         map[string]Question
	byDifficulty map[int][]Question
}

var _ Catalog = (*MemoryCatalog)(nil)

// NewMemoryCatalog indexes the given questions.
func NewMemoryCatalog(questions []Question) *MemoryCatalog {
	c := &MemoryCatalog{
		byID:         make(map[string]Question, len(questions)),
		byDifficulty: make(map[int][]Question),
	}
	for _, q := range questions {
		c.add(q)
	}
	return c
}

// Add inserts or replaces a question.
func (c *MemoryCatalog) Add(q Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(q)
}

func (c *MemoryCatalog) add(q Question) {
	if old, ok := c.byID[q.ID]; ok {
		pool := c.byDifficulty[old.Difficulty]
		for i := range pool {
			if pool[i].ID == q.ID {
				c.byDifficulty[old.Difficulty] = append(pool[:i:i], pool[i+1:]...)
				break
			}
		}
	}
	c.byID[q.ID] = q
	c.byDifficulty[q.Difficulty] = append(c.byDifficulty[q.Difficulty], q)
}

func (c *MemoryCatalog) AtDifficulty(_ context.Context, d int) ([]Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pool := c.byDifficulty[d]
	out := make([]Question, len(pool))
	copy(out, pool)
	return out, nil
}

func (c *MemoryCatalog) ByID(_ context.Context, id string) (*Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.byID[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}
