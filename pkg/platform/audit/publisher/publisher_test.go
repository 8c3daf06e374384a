package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amsf/pkg/domain"
	audit "amsf/pkg/platform/audit"
	"amsf/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subID := id.SubmissionID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		SubmissionID: subID,
		Action:       string(audit.EventValuesPopulated),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventValuesPopulated), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	subID := id.SubmissionID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		SubmissionID: subID,
		Action:       string(audit.EventAnswerSaved),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), subID)
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	subID := id.SubmissionID(uuid.New())
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			SubmissionID: subID,
			Action:       string(audit.EventLockAcquired),
		})
		require.NoError(t, err)
	}

	require.NoError(t, pub.Close())

	events, err := store.ListBySubmission(context.Background(), subID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFullDropsWithoutPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	subID := id.SubmissionID(uuid.New())
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				SubmissionID: subID,
				Action:       string(audit.EventLockAcquired),
			})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subID := id.SubmissionID(uuid.New())
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	err := pub.Emit(context.Background(), audit.Event{
		SubmissionID: subID,
		Action:       string(audit.EventAnswerSaved),
		Timestamp:    customTime,
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_CancelledContextInAsyncMode(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Emit(ctx, audit.Event{
		SubmissionID: id.SubmissionID(uuid.New()),
		Action:       string(audit.EventAnswerSaved),
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPublisher_CloseIsIdempotent(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
}
