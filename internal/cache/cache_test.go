// Copyright © 2024 The ELPS authors

package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type revKey struct {
	id  int
	rev uint64
}

func TestLRUEvicts(t *testing.T) {
	c := New[revKey, string]("test", 2, nil)
	c.Add(revKey{1, 1}, "a")
	c.Add(revKey{2, 1}, "b")
	c.Add(revKey{3, 1}, "c")
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(revKey{1, 1})
	assert.False(t, ok)
	v, ok := c.Get(revKey{3, 1})
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	// A new revision is a different key.
	_, ok = c.Get(revKey{3, 2})
	assert.False(t, ok)

	c.Remove(revKey{3, 1})
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestLRUConcurrent(t *testing.T) {
	c := New[int, int]("test", 0, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Add(g*1000+i, i)
				c.Get(g*1000 + i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 800, c.Len())
}
