package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestNewQueue(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")

	assert.NotNil(t, q)
	assert.Equal(t, "test_queue", q.queueName)
	assert.Equal(t, client, q.client)
}

func TestQueue_Push(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")
	ctx := context.Background()

	t.Run("push single message", func(t *testing.T) {
		msg := &JobMessage{
			JobID:     1,
			UserID:    10,
			RepoOwner: "octocat",
			RepoName:  "hello-world",
		}

		err := q.Push(ctx, msg)
		require.NoError(t, err)

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)
	})

	t.Run("push multiple messages", func(t *testing.T) {
		client.Del(ctx, "test_queue2")

		q2 := NewQueue(client, "test_queue2")

		for i := 0; i < 5; i++ {
			msg := &JobMessage{JobID: int64(i)}
			err := q2.Push(ctx, msg)
			require.NoError(t, err)
		}

		length, err := q2.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), length)
	})
}

func TestQueue_Pop(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("pop from queue with messages", func(t *testing.T) {
		q := NewQueue(client, "test_pop_queue")

		msg := &JobMessage{
			JobID:     42,
			UserID:    20,
			RepoOwner: "octocat",
			RepoName:  "spoon-knife",
		}

		err := q.Push(ctx, msg)
		require.NoError(t, err)

		result, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, int64(42), result.JobID)
		assert.Equal(t, int64(20), result.UserID)
		assert.Equal(t, "octocat", result.RepoOwner)
		assert.Equal(t, "spoon-knife", result.RepoName)
	})

	t.Run("pop FIFO order", func(t *testing.T) {
		q := NewQueue(client, "test_fifo_queue")

		for i := 1; i <= 3; i++ {
			msg := &JobMessage{JobID: int64(i)}
			err := q.Push(ctx, msg)
			require.NoError(t, err)
		}

		for i := 1; i <= 3; i++ {
			result, err := q.Pop(ctx, time.Second)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, int64(i), result.JobID)
		}
	})

	t.Run("pop from empty queue times out", func(t *testing.T) {
		q := NewQueue(client, "test_empty_queue")

		result, err := q.Pop(ctx, 10*time.Millisecond)

		// miniredis doesn't support BRPop timeout properly, so check for nil or error
		if err == nil {
			assert.Nil(t, result)
		}
	})
}

func TestQueue_Length(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("length of empty queue", func(t *testing.T) {
		q := NewQueue(client, "test_length_empty")

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), length)
	})

	t.Run("length after push and pop", func(t *testing.T) {
		q := NewQueue(client, "test_length_ops")

		for i := 0; i < 3; i++ {
			msg := &JobMessage{JobID: int64(i)}
			err := q.Push(ctx, msg)
			require.NoError(t, err)
		}

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), length)

		_, err = q.Pop(ctx, time.Second)
		require.NoError(t, err)

		length, err = q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), length)
	})
}
