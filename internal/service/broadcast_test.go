package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-bot/internal/model"
	"points-bot/internal/repository/memory"
)

type fakeNotifier struct {
	mu     sync.Mutex
	failOn map[int64]bool
	sent   []int64
	onSend func(userID int64)
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, _ string) error {
	if f.onSend != nil {
		f.onSend(userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[userID] {
		return errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, userID)
	return nil
}

func (f *fakeNotifier) delivered() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.sent...)
}

func seedUsers(t *testing.T, store *memory.Store, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := store.Create(context.Background(), model.Registration{UserID: id})
		require.NoError(t, err)
	}
}

func TestBroadcastService_ContinuesPastFailures(t *testing.T) {
	store := memory.New()
	seedUsers(t, store, 1, 2, 3, 4, 5)
	notifier := &fakeNotifier{failOn: map[int64]bool{2: true, 4: true}}
	svc := NewBroadcastService(store, notifier, 0)

	var announced int
	result, err := svc.Broadcast(context.Background(), 100, " hello ", func(total int) { announced = total })
	require.NoError(t, err)

	assert.Equal(t, 5, announced)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 2, result.Failed)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []int64{1, 3, 5}, notifier.delivered())
}

func TestBroadcastService_IncludesBlockedUsers(t *testing.T) {
	store := memory.New()
	seedUsers(t, store, 1, 2)
	require.NoError(t, store.Block(context.Background(), 2))
	notifier := &fakeNotifier{}
	svc := NewBroadcastService(store, notifier, 0)

	result, err := svc.Broadcast(context.Background(), 100, "news", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Success)
}

func TestBroadcastService_EmptyText(t *testing.T) {
	svc := NewBroadcastService(memory.New(), &fakeNotifier{}, 0)

	_, err := svc.Broadcast(context.Background(), 100, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestBroadcastService_Cancel(t *testing.T) {
	store := memory.New()
	seedUsers(t, store, 1, 2, 3, 4, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &fakeNotifier{}
	notifier.onSend = func(userID int64) {
		if userID == 2 {
			cancel()
		}
	}
	svc := NewBroadcastService(store, notifier, 0)

	result, err := svc.Broadcast(ctx, 100, "hello", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 0, result.Failed)
}

func TestBroadcastService_OneRunPerAdmin(t *testing.T) {
	store := memory.New()
	seedUsers(t, store, 1)

	release := make(chan struct{})
	entered := make(chan struct{})
	notifier := &fakeNotifier{onSend: func(int64) {
		close(entered)
		<-release
	}}
	svc := NewBroadcastService(store, notifier, 0)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Broadcast(context.Background(), 100, "first", nil)
		done <- err
	}()

	<-entered
	assert.True(t, svc.InProgress(100))

	_, err := svc.Broadcast(context.Background(), 100, "second", nil)
	assert.ErrorIs(t, err, ErrBroadcastInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, svc.InProgress(100))
}

func TestBroadcastService_Paced(t *testing.T) {
	store := memory.New()
	seedUsers(t, store, 1, 2, 3)
	svc := NewBroadcastService(store, &fakeNotifier{}, 20*time.Millisecond)

	start := time.Now()
	result, err := svc.Broadcast(context.Background(), 100, "slow", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Success)
	// First send uses the initial token, the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}
