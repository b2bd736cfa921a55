package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepProgress(t *testing.T) {
	steps := []string{StepFetching, StepDetecting, StepValidating, StepReporting, StepDone}

	for _, step := range steps {
		progress, ok := StepProgress[step]
		assert.True(t, ok, "Step %s should have progress value", step)
		assert.Greater(t, progress, 0, "Progress for %s should be > 0", step)
		assert.LessOrEqual(t, progress, 100, "Progress for %s should be <= 100", step)
	}

	// 进度必须随阶段单调递增
	assert.Less(t, StepProgress[StepFetching], StepProgress[StepDetecting])
	assert.Less(t, StepProgress[StepDetecting], StepProgress[StepValidating])
	assert.Less(t, StepProgress[StepValidating], StepProgress[StepReporting])
	assert.Less(t, StepProgress[StepReporting], StepProgress[StepDone])
	assert.Equal(t, 100, StepProgress[StepDone])
}

func TestStepMessages(t *testing.T) {
	steps := []string{StepFetching, StepDetecting, StepValidating, StepReporting, StepDone}

	for _, step := range steps {
		msg, ok := StepMessages[step]
		assert.True(t, ok, "Step %s should have message", step)
		assert.NotEmpty(t, msg, "Message for %s should not be empty", step)
	}
}

func TestProgressMessage_JSON(t *testing.T) {
	msg := &ProgressMessage{
		Type:     "job_progress",
		UserID:   1,
		JobID:    3,
		Status:   "processing",
		Step:     StepDetecting,
		Progress: 30,
		Message:  "scanning",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	// Verify snake_case keys
	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	assert.Contains(t, raw, "user_id")
	assert.Contains(t, raw, "job_id")

	var decoded ProgressMessage
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, msg.UserID, decoded.UserID)
	assert.Equal(t, msg.JobID, decoded.JobID)
	assert.Equal(t, msg.Step, decoded.Step)
}

func TestProgressMessage_OmitEmpty(t *testing.T) {
	msg := &ProgressMessage{
		UserID: 1,
		Status: "processing",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	_, hasMessage := raw["message"]
	_, hasError := raw["error"]
	assert.False(t, hasMessage, "empty message should be omitted")
	assert.False(t, hasError, "empty error should be omitted")
}

// Integration tests with real Redis (skip if not available)
func TestPublisherSubscriber_Integration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer testCancel()

	received := make(chan *ProgressMessage, 1)

	go func() {
		subscriber.Subscribe(testCtx, func(msg *ProgressMessage) {
			received <- msg
		})
	}()

	// Give subscriber time to connect
	time.Sleep(100 * time.Millisecond)

	msg := &ProgressMessage{
		UserID: 123,
		JobID:  789,
		Status: "processing",
		Step:   StepValidating,
	}

	err := publisher.PublishProgress(testCtx, msg)
	require.NoError(t, err)

	select {
	case receivedMsg := <-received:
		assert.Equal(t, msg.UserID, receivedMsg.UserID)
		assert.Equal(t, msg.JobID, receivedMsg.JobID)
		assert.Equal(t, "job_progress", receivedMsg.Type)
		assert.Equal(t, 90, receivedMsg.Progress) // Auto-filled from step
		assert.NotEmpty(t, receivedMsg.Message)   // Auto-filled from step
	case <-testCtx.Done():
		t.Fatal("Timeout waiting for message")
	}
}

func TestPublisher_AutoFillProgress(t *testing.T) {
	msg := &ProgressMessage{
		UserID: 1,
		Step:   StepDetecting,
	}

	// Simulate the auto-fill logic from PublishProgress
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	assert.Equal(t, 30, msg.Progress)
	assert.Equal(t, StepMessages[StepDetecting], msg.Message)
}
