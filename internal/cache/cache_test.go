package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_New(t *testing.T) {
	c := New[int]()

	require.NotNil(t, c)
	assert.NotNil(t, c.items)
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetAndGet(t *testing.T) {
	c := New[string]()

	c.Set("infantry", "sdf-bytes")

	v, ok := c.Get("infantry")
	require.True(t, ok, "expected to find infantry")
	assert.Equal(t, "sdf-bytes", v)
}

func TestCache_Get_NotFound(t *testing.T) {
	c := New[*int]()

	v, ok := c.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestCache_Delete(t *testing.T) {
	c := New[int]()
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	c.Delete("nonexistent")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok, "expected b to still exist")
}

func TestCache_Reset(t *testing.T) {
	c := New[int]()
	c.Set("a", 1)
	c.Set("b", 2)

	c.Reset()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			c.Set(fmt.Sprintf("k%d", id), id)
		}(i)
		go func(id int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("k%d", id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len())
}
