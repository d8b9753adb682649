package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueueClaims(t *testing.T) {
	q := newWorkQueue()

	assert.True(t, q.Push("/a.jpg"))
	assert.True(t, q.Push("/b.jpg"))
	assert.False(t, q.Push("/a.jpg"), "queued path must not be queued twice")
	assert.Equal(t, 2, q.Len())

	path, ok := q.Pop(context.Background(), time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "/a.jpg", path)

	assert.False(t, q.Push("/a.jpg"), "path in delivery must not be queued")
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2, q.Claimed())

	q.Done("/a.jpg")
	assert.Equal(t, 1, q.Claimed())
	assert.True(t, q.Push("/a.jpg"), "released path can be queued again")

	path, ok = q.Pop(context.Background(), time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "/b.jpg", path)
}

func TestWorkQueuePopTimeout(t *testing.T) {
	q := newWorkQueue()

	start := time.Now()
	_, ok := q.Pop(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWorkQueuePopWakesOnPush(t *testing.T) {
	q := newWorkQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push("/late.jpg")
	}()

	path, ok := q.Pop(context.Background(), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "/late.jpg", path)
}

func TestWorkQueuePopCancelled(t *testing.T) {
	q := newWorkQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Pop(ctx, 5*time.Second)
	assert.False(t, ok)
}
