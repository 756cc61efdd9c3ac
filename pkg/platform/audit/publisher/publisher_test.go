package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	id "proofid/pkg/domain"
	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/audit/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = id.MustPrincipal("0x00000000000000000000000000000000000000a1")

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
	closed bool
}

func (s *recordingSink) Send(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventRecordCreated})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventRecordCreated, events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventAccessGranted}))
	}
	require.NoError(t, pub.Close())

	events, err := store.ListByPrincipal(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventRecordCreated})
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

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Actor:     alice,
		Action:    audit.EventIdentityIssued,
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_SinkReceivesEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &recordingSink{}
	pub := NewPublisher(store, WithSink(sink))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventRecordReadDenied}))
	require.NoError(t, pub.Close())

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.CategorySecurity, sink.events[0].Category)
	assert.True(t, sink.closed)
}

func TestPublisher_SinkFailureDoesNotFailEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithSink(&recordingSink{err: errors.New("broker down")}))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventRecordCreated}))

	events, err := store.ListByPrincipal(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_EmitAfterCloseIsRejected(t *testing.T) {
	for name, opts := range map[string][]Option{
		"sync":  nil,
		"async": {WithAsyncBuffer(4)},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewInMemoryStore()
			pub := NewPublisher(store, opts...)
			require.NoError(t, pub.Close())

			err := pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventAccessRevoked})
			assert.ErrorIs(t, err, ErrClosed)
			assert.NoError(t, pub.Close(), "close is idempotent")

			events, err := store.ListByPrincipal(context.Background(), alice)
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestPublisher_CloseRacesWithEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(8))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := pub.Emit(context.Background(), audit.Event{Actor: alice, Action: audit.EventRecordCreated})
				if err != nil && !errors.Is(err, ErrBufferFull) && !errors.Is(err, ErrClosed) {
					t.Errorf("unexpected emit error: %v", err)
				}
			}
		}()
	}
	require.NoError(t, pub.Close())
	wg.Wait()
}
