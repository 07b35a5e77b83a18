package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type placement struct {
	ID    int
	Asset string
}

func TestQueue_DrainKeepsOrder(t *testing.T) {
	q := New[placement]()
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())

	q.Push(placement{ID: 1, Asset: "infantry"})
	q.Push(placement{ID: 2}, placement{ID: 3})
	assert.Equal(t, 3, q.Len())

	got := q.Drain()
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ReadyCoalesces(t *testing.T) {
	q := New[int]()

	select {
	case <-q.Ready():
		t.Fatal("ready before any push")
	default:
	}

	q.Push(1)
	q.Push(2)
	q.Push() // no-op

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("no ready signal")
	}
	select {
	case <-q.Ready():
		t.Fatal("pushes should coalesce into one signal")
	default:
	}
	assert.Equal(t, []int{1, 2}, q.Drain())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 50)
}
